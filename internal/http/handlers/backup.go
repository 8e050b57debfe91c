package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"storyreel/internal/backup"
	"storyreel/internal/blob"
	"storyreel/internal/domain"
	"storyreel/internal/pipeline"
)

// BackupExport serializes the working set into a portable document, writes
// it to the backup directory and returns the stored key.
func (a *App) BackupExport(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	project := a.project
	images := make(map[int]string, len(a.images))
	for idx, ref := range a.images {
		images[idx] = ref
	}
	videos := make(map[int]backup.VideoRef, len(a.videos))
	for idx, ref := range a.videos {
		videos[idx] = ref
	}
	a.mu.Unlock()

	doc := a.Codec.Serialize(project, images, videos)
	data, err := backup.Encode(doc)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to encode backup")
		return
	}

	key := fmt.Sprintf("storyreel-backup-%s.json", time.Now().UTC().Format("20060102-150405"))
	savedKey, err := a.Backups.Write(r.Context(), key, data)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to write backup file")
		return
	}

	a.json(w, http.StatusCreated, map[string]any{
		"key":       savedKey,
		"version":   doc.Version,
		"timestamp": doc.Timestamp,
		"videos":    len(doc.VideoBase64),
		"images":    len(doc.GeneratedImages),
	})
}

// BackupList returns the stored backup keys.
func (a *App) BackupList(w http.ResponseWriter, r *http.Request) {
	keys, err := a.Backups.List(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list backups")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": keys})
}

// BackupDownload serves a stored backup document verbatim.
func (a *App) BackupDownload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	data, err := a.Backups.Read(r.Context(), key)
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "not_found", "backup not found")
		return
	}
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to read backup")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// BackupRestore replaces the working set from a document, supplied either
// inline as the request body or by the key of a stored backup file. The
// swap is atomic: a malformed document leaves the current state untouched.
func (a *App) BackupRestore(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 512<<20))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return
	}

	if key := restoreKey(raw); key != "" {
		raw, err = a.Backups.Read(r.Context(), key)
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "backup not found")
			return
		}
		if err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "failed to read backup")
			return
		}
	}

	doc, err := backup.Decode(raw)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	set, err := a.Codec.Deserialize(doc)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	a.mu.Lock()
	for _, job := range a.jobs {
		job.Cancel()
	}
	for _, ref := range a.videos {
		ref.Release()
	}
	a.jobs = make(map[int]*pipeline.Job)
	a.project = set.Project
	a.images = set.Images
	a.videos = set.Videos
	a.mu.Unlock()

	// Write restored binaries through to the blob store so the download
	// and thumbnail endpoints work for restored shots too. Best effort.
	for idx, ref := range set.Videos {
		if ref.Handle == nil {
			continue
		}
		data, err := ref.Handle.Bytes()
		if err != nil {
			continue
		}
		if err := a.Blobs.Put(r.Context(), blob.VideoKey(idx), data); err != nil {
			a.Logger.Warn().Err(err).Int("shot", idx).Msg("restore: blob write-through failed")
		}
	}

	a.json(w, http.StatusOK, map[string]any{
		"shots":  len(set.Project.Shots),
		"images": len(set.Images),
		"videos": len(set.Videos),
	})
}

// restoreKey extracts a backup file key from a {"key": "..."} body; any
// other body shape is treated as an inline document.
func restoreKey(raw []byte) string {
	var probe struct {
		Key     string `json:"key"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	if probe.Version != "" {
		return ""
	}
	return probe.Key
}
