package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"storyreel/internal/backup"
	"storyreel/internal/blob"
	"storyreel/internal/domain"
	"storyreel/internal/pipeline"
)

type generateRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negativePrompt"`
	AspectRatio    string `json:"aspectRatio"`
	Model          string `json:"model"`
	StartFrame     string `json:"startFrame,omitempty"`
	StartFrameMIME string `json:"startFrameMime,omitempty"`
}

func (a *App) shotIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid shot index")
		return 0, false
	}
	return index, true
}

// buildGenerationRequest assembles the pipeline input for one shot. The
// shot's video prompt and generated image act as defaults so a bare POST
// generates from the storyboard as-is.
func (a *App) buildGenerationRequest(index int, req generateRequest) (domain.GenerationRequest, error) {
	model := a.Model
	if req.Model != "" {
		var err error
		if model, err = domain.ModelFromString(req.Model); err != nil {
			return domain.GenerationRequest{}, err
		}
	}

	out := domain.GenerationRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		AspectRatio:    req.AspectRatio,
		Model:          model,
	}
	if out.AspectRatio == "" {
		out.AspectRatio = "16:9"
	}

	a.mu.Lock()
	if out.Prompt == "" && index < len(a.project.Shots) {
		out.Prompt = a.project.Shots[index].VideoPrompt
	}
	imageRef := a.images[index]
	a.mu.Unlock()

	switch {
	case req.StartFrame != "":
		frame, err := base64.StdEncoding.DecodeString(req.StartFrame)
		if err != nil {
			return domain.GenerationRequest{}, errors.New("startFrame is not valid base64")
		}
		out.StartFrame = frame
		out.StartFrameMIME = req.StartFrameMIME
	case backup.IsDataURI(imageRef):
		mime, frame, err := backup.DecodeDataURI(imageRef)
		if err == nil {
			out.StartFrame = frame
			out.StartFrameMIME = mime
		}
	}

	return out, out.Validate()
}

// ShotGenerate starts a video generation job for one shot and returns
// immediately; progress is observed through the status endpoint.
func (a *App) ShotGenerate(w http.ResponseWriter, r *http.Request) {
	index, ok := a.shotIndex(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if r.Body != nil {
		// An empty body means "generate from the storyboard".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	genReq, err := a.buildGenerationRequest(index, req)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	job := a.Orch.NewJob(index, genReq, nil)
	a.mu.Lock()
	a.jobs[index] = job
	a.mu.Unlock()

	go a.runJob(job)

	a.json(w, http.StatusAccepted, job.Status())
}

func (a *App) runJob(job *pipeline.Job) {
	handle, err := a.Orch.Run(context.Background(), job)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Int("shot", job.ShotIndex()).Msg("generation failed")
		}
		return
	}
	a.completeShot(job.ShotIndex(), handle)
}

// ShotGenerateAll starts generation for every shot that has a usable prompt
// or start frame. Jobs run in bounded concurrent groups.
func (a *App) ShotGenerateAll(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	shotCount := len(a.project.Shots)
	a.mu.Unlock()

	var jobs []*pipeline.Job
	for index := 0; index < shotCount; index++ {
		genReq, err := a.buildGenerationRequest(index, generateRequest{})
		if err != nil {
			continue
		}
		job := a.Orch.NewJob(index, genReq, nil)
		a.mu.Lock()
		a.jobs[index] = job
		a.mu.Unlock()
		jobs = append(jobs, job)
	}
	if len(jobs) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "no shots are ready to generate")
		return
	}

	go func() {
		err := a.Orch.RunAll(context.Background(), jobs, func(j *pipeline.Job, handle *blob.Handle, err error) {
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					a.Logger.Error().Err(err).Int("shot", j.ShotIndex()).Msg("generation failed")
				}
				return
			}
			a.completeShot(j.ShotIndex(), handle)
		})
		if err != nil {
			a.Logger.Warn().Err(err).Msg("generate-all finished with failures")
		}
	}()

	a.json(w, http.StatusAccepted, map[string]int{"started": len(jobs)})
}

// ShotVideoStatus reports the job's progress projection. A shot with a
// stored result and no active job reads as completed.
func (a *App) ShotVideoStatus(w http.ResponseWriter, r *http.Request) {
	index, ok := a.shotIndex(w, r)
	if !ok {
		return
	}
	a.mu.Lock()
	job := a.jobs[index]
	_, hasVideo := a.videos[index]
	a.mu.Unlock()

	switch {
	case job != nil:
		a.json(w, http.StatusOK, job.Status())
	case hasVideo:
		a.json(w, http.StatusOK, pipeline.Status{State: pipeline.StateCompleted, Progress: 100, Message: "Video ready"})
	default:
		a.json(w, http.StatusOK, pipeline.Status{State: pipeline.StateIdle})
	}
}

// ShotVideoDownload serves the stored video binary for a shot.
func (a *App) ShotVideoDownload(w http.ResponseWriter, r *http.Request) {
	a.serveBlob(w, r, blob.VideoKey, "video/mp4")
}

// ShotThumbnail serves the derived preview frame for a shot.
func (a *App) ShotThumbnail(w http.ResponseWriter, r *http.Request) {
	a.serveBlob(w, r, blob.ThumbnailKey, "image/jpeg")
}

func (a *App) serveBlob(w http.ResponseWriter, r *http.Request, key func(int) string, contentType string) {
	index, ok := a.shotIndex(w, r)
	if !ok {
		return
	}
	data, err := a.Blobs.Get(r.Context(), key(index))
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "not_found", "no media stored for shot")
		return
	}
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to read media")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ShotVideoDiscard cancels any running job for the shot and drops the local
// result. A remote job that is still running is simply never fetched.
func (a *App) ShotVideoDiscard(w http.ResponseWriter, r *http.Request) {
	index, ok := a.shotIndex(w, r)
	if !ok {
		return
	}

	a.mu.Lock()
	if job := a.jobs[index]; job != nil {
		job.Cancel()
		delete(a.jobs, index)
	}
	if ref, ok := a.videos[index]; ok {
		ref.Release()
		delete(a.videos, index)
	}
	a.mu.Unlock()

	// Blob deletes are idempotent; a shot that never generated is fine.
	if err := a.Blobs.Delete(r.Context(), blob.VideoKey(index)); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete stored video")
		return
	}
	if err := a.Blobs.Delete(r.Context(), blob.ThumbnailKey(index)); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete stored thumbnail")
		return
	}

	a.json(w, http.StatusOK, map[string]int{"shot": index})
}

// ResetAll drops the whole working set and clears the blob store.
func (a *App) ResetAll(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	for _, job := range a.jobs {
		job.Cancel()
	}
	for _, ref := range a.videos {
		ref.Release()
	}
	a.jobs = make(map[int]*pipeline.Job)
	a.videos = make(map[int]backup.VideoRef)
	a.images = make(map[int]string)
	a.project = domain.Project{}
	a.mu.Unlock()

	if err := a.Blobs.Clear(r.Context()); err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to clear blob store")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "reset"})
}
