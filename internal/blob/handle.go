package blob

import (
	"strings"
	"sync"

	"storyreel/internal/domain"

	"github.com/google/uuid"
)

// TokenScheme prefixes every ephemeral handle token. Tokens are only valid
// inside the process that minted them and must never be serialized.
const TokenScheme = "mem://"

// IsEphemeralToken reports whether s looks like a session-local handle token
// rather than a portable reference. "blob:" covers tokens minted by older
// browser-based sessions that may appear in imported documents.
func IsEphemeralToken(s string) bool {
	return strings.HasPrefix(s, TokenScheme) || strings.HasPrefix(s, "blob:")
}

// Registry tracks live ephemeral handles for the current session. Handles
// hold binary payloads in memory until released, so callers must release a
// handle once it is superseded or no longer displayed.
type Registry struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string][]byte)}
}

// Wrap mints a fresh handle over data and registers it.
func (r *Registry) Wrap(data []byte) *Handle {
	token := TokenScheme + uuid.NewString()
	r.mu.Lock()
	r.entries[token] = data
	r.mu.Unlock()
	return &Handle{token: token, reg: r}
}

// Bytes returns the payload behind a token, or domain.ErrNotFound when the
// token was never issued or has been released.
func (r *Registry) Bytes(token string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.entries[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

// Release drops the payload behind a token. Releasing an unknown token is a
// no-op.
func (r *Registry) Release(token string) {
	r.mu.Lock()
	delete(r.entries, token)
	r.mu.Unlock()
}

// Len reports the number of live handles. Used by tests to verify that
// scratch handles do not leak.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Handle is an ephemeral reference to a binary payload. It is meaningless
// outside the current process; the backup codec converts handles to data
// URIs before anything is written to disk.
type Handle struct {
	token string
	reg   *Registry

	releaseOnce sync.Once
}

// Token returns the opaque session-local token.
func (h *Handle) Token() string { return h.token }

// Bytes resolves the underlying payload.
func (h *Handle) Bytes() ([]byte, error) {
	return h.reg.Bytes(h.token)
}

// Release invalidates the handle and frees its payload. Safe to call more
// than once.
func (h *Handle) Release() {
	h.releaseOnce.Do(func() { h.reg.Release(h.token) })
}
