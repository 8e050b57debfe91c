package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"storyreel/internal/backup"
	"storyreel/internal/blob"
	"storyreel/internal/domain"
	"storyreel/internal/http/handlers"
	"storyreel/internal/http/httpapi"
	"storyreel/internal/infra"
	"storyreel/internal/pipeline"
	"storyreel/internal/storage"
	"storyreel/internal/thumbnail"
	"storyreel/internal/veo"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if cfg.GeminiAPIKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY is not set; generation requests will be rejected by the remote API")
	}
	model, err := domain.ModelFromString(cfg.VideoModel)
	if err != nil {
		logger.Fatal().Str("model", cfg.VideoModel).Msg("unknown VIDEO_MODEL")
	}

	refs := blob.NewRegistry()
	blobs, err := blob.Open(cfg.BlobDBPath, refs, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open blob store")
	}
	defer blobs.Close()

	backups, err := storage.NewFileStore(cfg.BackupDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure backup storage")
	}

	client := veo.NewClient(veo.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
		Logger:     logger,
	})

	var thumbs thumbnail.Extractor = thumbnail.NewFFmpeg(cfg.FFmpegPath, logger)
	if cfg.FFmpegPath == "off" {
		thumbs = thumbnail.NewStub(logger)
	}

	orch := pipeline.New(pipeline.Options{
		Client:       client,
		Store:        blobs,
		Thumbnails:   thumbs,
		Logger:       logger,
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.PollMaxAttempts,
		BatchSize:    cfg.GenerateConcurrency,
	})

	codec := backup.NewCodec(refs, logger)
	app := handlers.NewApp(logger, orch, blobs, refs, codec, backups)
	app.Model = model
	router := httpapi.NewRouter(app, logger)
	server := infra.NewHTTPServer(cfg, router)

	logger.Info().Str("model", string(model)).Str("backup_dir", backups.BasePath()).Msg("storyreel configured")

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
