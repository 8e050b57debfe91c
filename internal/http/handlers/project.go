package handlers

import (
	"encoding/json"
	"net/http"

	"storyreel/internal/domain"
)

type projectResponse struct {
	Project domain.Project `json:"project"`
	Images  map[int]bool   `json:"generatedImages"`
	Videos  map[int]bool   `json:"generatedVideos"`
}

// ProjectGet returns the storyboard with per-shot flags for which media has
// been generated this session.
func (a *App) ProjectGet(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	resp := projectResponse{
		Project: a.project,
		Images:  make(map[int]bool, len(a.images)),
		Videos:  make(map[int]bool, len(a.videos)),
	}
	for idx := range a.images {
		resp.Images[idx] = true
	}
	for idx := range a.videos {
		resp.Videos[idx] = true
	}
	a.mu.Unlock()
	a.json(w, http.StatusOK, resp)
}

// ProjectPut replaces the storyboard working state.
func (a *App) ProjectPut(w http.ResponseWriter, r *http.Request) {
	var project domain.Project
	if err := json.NewDecoder(r.Body).Decode(&project); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	a.mu.Lock()
	a.project = project
	a.mu.Unlock()
	a.json(w, http.StatusOK, map[string]int{"shots": len(project.Shots)})
}

// ShotImagePut stores a shot's generated image reference (a data URI
// produced by the separate image endpoint, which is outside this service).
func (a *App) ShotImagePut(w http.ResponseWriter, r *http.Request) {
	index, ok := a.shotIndex(w, r)
	if !ok {
		return
	}
	var body struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Image == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "image data URI required")
		return
	}
	a.mu.Lock()
	a.images[index] = body.Image
	a.mu.Unlock()
	a.json(w, http.StatusOK, map[string]int{"shot": index})
}
