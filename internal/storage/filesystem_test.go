package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"storyreel/internal/domain"
)

func TestFileStoreWriteReadRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	key, err := store.Write(ctx, "storyreel-backup-20260101-120000.json", []byte(`{"version":"2.0"}`))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if key != "storyreel-backup-20260101-120000.json" {
		t.Fatalf("canonical key = %q", key)
	}

	data, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"version":"2.0"}` {
		t.Fatalf("payload = %q", data)
	}
}

func TestFileStoreReadMissingKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Read(context.Background(), "nope.json"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreListSorted(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{"b.json", "a.json", "nested/c.json"} {
		if _, err := store.Write(ctx, key, []byte("{}")); err != nil {
			t.Fatalf("write %s: %v", key, err)
		}
	}

	keys, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"a.json", "b.json", "nested/c.json"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	base := t.TempDir()
	store, err := NewFileStore(filepath.Join(base, "backups"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Write(ctx, "../escape.json", []byte("{}")); err == nil {
		t.Fatal("traversal key accepted")
	}
	if _, err := store.Write(ctx, "   ", []byte("{}")); err == nil {
		t.Fatal("blank key accepted")
	}
	if _, err := os.Stat(filepath.Join(base, "escape.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("file escaped the storage root")
	}
}

func TestNewFileStoreRequiresBasePath(t *testing.T) {
	if _, err := NewFileStore("  "); err == nil {
		t.Fatal("empty base path accepted")
	}
}
