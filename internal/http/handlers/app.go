// Package handlers exposes the generation pipeline's public operations over
// HTTP. The handlers are thin: they validate input, invoke the pipeline,
// and render its state; all generation behavior lives below this layer.
package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"storyreel/internal/backup"
	"storyreel/internal/blob"
	"storyreel/internal/domain"
	"storyreel/internal/pipeline"
	"storyreel/internal/storage"
)

// App wires the pipeline components together and owns the session working
// set: the storyboard project plus per-shot reference maps. The maps are
// upserted last-writer-wins by shot index; overlapping generations for the
// same index are not serialized, the last completion wins.
type App struct {
	Logger  zerolog.Logger
	Orch    *pipeline.Orchestrator
	Blobs   *blob.Store
	Refs    *blob.Registry
	Codec   *backup.Codec
	Backups *storage.FileStore

	// Model is the default model for requests that do not name one.
	Model domain.Model

	mu      sync.Mutex
	project domain.Project
	images  map[int]string
	videos  map[int]backup.VideoRef
	jobs    map[int]*pipeline.Job
}

func NewApp(logger zerolog.Logger, orch *pipeline.Orchestrator, blobs *blob.Store, refs *blob.Registry, codec *backup.Codec, backups *storage.FileStore) *App {
	return &App{
		Logger:  logger,
		Orch:    orch,
		Blobs:   blobs,
		Refs:    refs,
		Codec:   codec,
		Backups: backups,
		images:  make(map[int]string),
		videos:  make(map[int]backup.VideoRef),
		jobs:    make(map[int]*pipeline.Job),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}

// completeShot installs a finished generation result, superseding and
// releasing any previous handle for the same index.
func (a *App) completeShot(index int, handle *blob.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if prev, ok := a.videos[index]; ok {
		prev.Release()
	}
	a.videos[index] = backup.VideoRef{Handle: handle}
}
