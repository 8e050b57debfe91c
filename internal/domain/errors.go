package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrEmptyRequest = errors.New("prompt or start frame required")
	ErrUnknownModel = errors.New("unknown model")
)
