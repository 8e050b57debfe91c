package domain

import "strings"

// Model enumerates the video generation models the remote API accepts.
type Model string

const (
	ModelVeo3     Model = "veo-3.0-generate-preview"
	ModelVeo3Fast Model = "veo-3.0-fast-generate-preview"
	ModelVeo2     Model = "veo-2.0-generate-001"
)

// DefaultModel is used when a request does not name a model.
const DefaultModel = ModelVeo3Fast

// Valid reports whether m is one of the supported model identifiers.
func (m Model) Valid() bool {
	switch m {
	case ModelVeo3, ModelVeo3Fast, ModelVeo2:
		return true
	default:
		return false
	}
}

// ModelFromString resolves a model identifier, accepting the short aliases
// used by callers ("fast", "quality") as well as the full identifiers.
func ModelFromString(s string) (Model, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "", "fast":
		return ModelVeo3Fast, nil
	case "quality":
		return ModelVeo3, nil
	}
	m := Model(strings.TrimSpace(s))
	if !m.Valid() {
		return "", ErrUnknownModel
	}
	return m, nil
}

// GenerationRequest is the immutable input to a video generation job.
// At least one of Prompt or StartFrame must be present.
type GenerationRequest struct {
	Prompt         string
	StartFrame     []byte
	StartFrameMIME string
	AspectRatio    string
	NegativePrompt string
	Model          Model
}

// Validate checks the request invariants before any network call is made.
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" && len(r.StartFrame) == 0 {
		return ErrEmptyRequest
	}
	if r.Model != "" && !r.Model.Valid() {
		return ErrUnknownModel
	}
	return nil
}
