package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"storyreel/internal/http/handlers"
	"storyreel/internal/middleware"
)

func NewRouter(app *handlers.App, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer, middleware.Logger(logger))

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/project", func(r chi.Router) {
		r.Get("/", app.ProjectGet)
		r.Put("/", app.ProjectPut)
	})

	r.Route("/v1/shots/{index}", func(r chi.Router) {
		r.Put("/image", app.ShotImagePut)
		r.Post("/video", app.ShotGenerate)
		r.Get("/video", app.ShotVideoDownload)
		r.Delete("/video", app.ShotVideoDiscard)
		r.Get("/video/status", app.ShotVideoStatus)
		r.Get("/thumbnail", app.ShotThumbnail)
	})

	r.Post("/v1/videos/generate-all", app.ShotGenerateAll)

	r.Route("/v1/backups", func(r chi.Router) {
		r.Post("/", app.BackupExport)
		r.Get("/", app.BackupList)
		r.Get("/{key}", app.BackupDownload)
		r.Post("/restore", app.BackupRestore)
	})

	r.Post("/v1/reset", app.ResetAll)

	return r
}
