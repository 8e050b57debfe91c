package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.VideoModel != "fast" {
		t.Fatalf("video model = %q", cfg.VideoModel)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("poll interval = %v", cfg.PollInterval)
	}
	if cfg.PollMaxAttempts != 60 {
		t.Fatalf("poll max attempts = %d", cfg.PollMaxAttempts)
	}
	if cfg.GenerateConcurrency != 2 {
		t.Fatalf("concurrency = %d", cfg.GenerateConcurrency)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("POLL_INTERVAL_SECONDS", "2")
	t.Setenv("POLL_MAX_ATTEMPTS", "10")
	t.Setenv("VIDEO_MODEL", "quality")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("poll interval = %v", cfg.PollInterval)
	}
	if cfg.PollMaxAttempts != 10 {
		t.Fatalf("poll max attempts = %d", cfg.PollMaxAttempts)
	}
	if cfg.VideoModel != "quality" {
		t.Fatalf("video model = %q", cfg.VideoModel)
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("POLL_MAX_ATTEMPTS", "not-a-number")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PollMaxAttempts != 60 {
		t.Fatalf("poll max attempts = %d, want default 60", cfg.PollMaxAttempts)
	}
}
