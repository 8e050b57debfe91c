package blob

import (
	"errors"
	"strings"
	"testing"

	"storyreel/internal/domain"
)

func TestRegistryWrapAndResolve(t *testing.T) {
	refs := NewRegistry()

	h := refs.Wrap([]byte("payload"))
	if !strings.HasPrefix(h.Token(), TokenScheme) {
		t.Fatalf("token %q missing scheme prefix", h.Token())
	}

	data, err := h.Bytes()
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("payload mismatch: %q", data)
	}
}

func TestRegistryDistinctTokens(t *testing.T) {
	refs := NewRegistry()
	a := refs.Wrap([]byte("a"))
	b := refs.Wrap([]byte("a"))
	if a.Token() == b.Token() {
		t.Fatalf("two handles share token %q", a.Token())
	}
}

func TestHandleReleaseInvalidates(t *testing.T) {
	refs := NewRegistry()
	h := refs.Wrap([]byte("gone soon"))

	h.Release()
	if _, err := h.Bytes(); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after release, got %v", err)
	}

	// Double release must not panic or disturb other handles.
	other := refs.Wrap([]byte("still here"))
	h.Release()
	if _, err := other.Bytes(); err != nil {
		t.Fatalf("unrelated handle broken by double release: %v", err)
	}
}

func TestRegistryReleaseUnknownToken(t *testing.T) {
	refs := NewRegistry()
	refs.Release("mem://never-issued")
	if refs.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", refs.Len())
	}
}

func TestIsEphemeralToken(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"mem://abc-123", true},
		{"blob:https://example.com/550e8400", true},
		{"data:video/mp4;base64,AAAA", false},
		{"https://example.com/video.mp4", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsEphemeralToken(tc.in); got != tc.want {
			t.Errorf("IsEphemeralToken(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
