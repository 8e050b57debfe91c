package blob

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"storyreel/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "blobs.db"), NewRegistry(), zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStorePutGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	payload := []byte{0x00, 0x1f, 0x8b, 0xff, 0x00}
	if err := store.Put(ctx, VideoKey(0), payload); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, VideoKey(0))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch: got %v want %v", got, payload)
	}
}

func TestStorePutOverwritesExisting(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "video_2", []byte("first")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "video_2", []byte("second")); err != nil {
		t.Fatalf("put again: %v", err)
	}

	got, err := store.Get(ctx, "video_2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("expected overwrite, got %q", got)
	}
}

func TestStoreGetMissingKey(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "video_99")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreDeleteIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "thumbnail_0", []byte("jpeg")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, "thumbnail_0"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "thumbnail_0"); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if _, err := store.Get(ctx, "thumbnail_0"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStoreClearRemovesEverything(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Put(ctx, VideoKey(i), []byte{byte(i)}); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := store.Get(ctx, VideoKey(i)); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("key %d survived clear: %v", i, err)
		}
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "blobs.db")
	ctx := context.Background()

	store, err := Open(dbPath, NewRegistry(), zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Put(ctx, "video_0", []byte("persisted")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(dbPath, NewRegistry(), zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "video_0")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(got) != "persisted" {
		t.Fatalf("expected persisted payload, got %q", got)
	}
}

func TestResolveEphemeralMintsFreshHandle(t *testing.T) {
	refs := NewRegistry()
	store, err := Open(filepath.Join(t.TempDir(), "blobs.db"), refs, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.Put(ctx, VideoKey(1), []byte("mp4 bytes")); err != nil {
		t.Fatalf("put: %v", err)
	}

	h, err := store.ResolveEphemeral(ctx, VideoKey(1))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	data, err := h.Bytes()
	if err != nil {
		t.Fatalf("handle bytes: %v", err)
	}
	if string(data) != "mp4 bytes" {
		t.Fatalf("handle payload mismatch: %q", data)
	}
	if refs.Len() != 1 {
		t.Fatalf("expected one live handle, got %d", refs.Len())
	}

	h.Release()
	if refs.Len() != 0 {
		t.Fatalf("expected handle registry drained after release, got %d", refs.Len())
	}

	if _, err := store.ResolveEphemeral(ctx, "video_404"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing id, got %v", err)
	}
}

func TestKeyDerivation(t *testing.T) {
	if VideoKey(3) != "video_3" {
		t.Fatalf("VideoKey(3) = %q", VideoKey(3))
	}
	if ThumbnailKey(3) != "thumbnail_3" {
		t.Fatalf("ThumbnailKey(3) = %q", ThumbnailKey(3))
	}
}
