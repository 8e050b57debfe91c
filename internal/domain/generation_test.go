package domain

import (
	"errors"
	"testing"
)

func TestModelFromString(t *testing.T) {
	cases := []struct {
		in      string
		want    Model
		wantErr bool
	}{
		{"", ModelVeo3Fast, false},
		{"fast", ModelVeo3Fast, false},
		{"FAST", ModelVeo3Fast, false},
		{"quality", ModelVeo3, false},
		{"veo-3.0-generate-preview", ModelVeo3, false},
		{"veo-2.0-generate-001", ModelVeo2, false},
		{"veo-99", "", true},
	}
	for _, tc := range cases {
		got, err := ModelFromString(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrUnknownModel) {
				t.Errorf("ModelFromString(%q) err = %v, want ErrUnknownModel", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ModelFromString(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ModelFromString(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestGenerationRequestValidate(t *testing.T) {
	if err := (GenerationRequest{}).Validate(); !errors.Is(err, ErrEmptyRequest) {
		t.Fatalf("empty request: %v", err)
	}
	if err := (GenerationRequest{Prompt: "   "}).Validate(); !errors.Is(err, ErrEmptyRequest) {
		t.Fatalf("whitespace prompt: %v", err)
	}
	if err := (GenerationRequest{Prompt: "a cat"}).Validate(); err != nil {
		t.Fatalf("prompt-only request: %v", err)
	}
	if err := (GenerationRequest{StartFrame: []byte{1}}).Validate(); err != nil {
		t.Fatalf("frame-only request: %v", err)
	}
	if err := (GenerationRequest{Prompt: "a cat", Model: "bogus"}).Validate(); !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("bogus model: %v", err)
	}
}
