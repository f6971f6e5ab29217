package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FFMPEG_PATH", "/opt/ffmpeg/bin/ffmpeg")
	cfg := Load()

	if cfg.FFprobePath != "/opt/ffmpeg/bin/ffprobe" {
		t.Errorf("FFprobePath = %q", cfg.FFprobePath)
	}
	if cfg.SilenceThresholdDB != -60 || cfg.MinSilenceMs != 2000 || cfg.KeepSilenceMs != 1000 || cfg.MinSegmentMs != 10000 {
		t.Errorf("silence defaults = %v/%d/%d/%d", cfg.SilenceThresholdDB, cfg.MinSilenceMs, cfg.KeepSilenceMs, cfg.MinSegmentMs)
	}
	if cfg.SufficiencyThreshold != 2 {
		t.Errorf("SufficiencyThreshold = %d", cfg.SufficiencyThreshold)
	}
	if cfg.EDLFrameRate != 29.97 || cfg.EDLDropFrame {
		t.Errorf("EDL defaults = %v, %v", cfg.EDLFrameRate, cfg.EDLDropFrame)
	}
	if len(cfg.WatchfolderExtensions) != 1 || cfg.WatchfolderExtensions[0] != ".mxf" {
		t.Errorf("WatchfolderExtensions = %v", cfg.WatchfolderExtensions)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RECOGNIZE_TIMEOUT", "90s")
	t.Setenv("SEPARATE_TIMEOUT", "120")
	t.Setenv("WATCHFOLDER_EXTENSIONS", ".MXF, .mov ,")
	t.Setenv("EDL_DROP_FRAME", "true")
	t.Setenv("JOB_WORKERS", "not-a-number")

	cfg := Load()
	if cfg.RecognizeTimeout != 90*time.Second {
		t.Errorf("RecognizeTimeout = %v", cfg.RecognizeTimeout)
	}
	if cfg.SeparateTimeout != 2*time.Minute {
		t.Errorf("SeparateTimeout = %v", cfg.SeparateTimeout)
	}
	if got := cfg.WatchfolderExtensions; len(got) != 2 || got[0] != ".mxf" || got[1] != ".mov" {
		t.Errorf("WatchfolderExtensions = %v", got)
	}
	if !cfg.EDLDropFrame {
		t.Error("EDLDropFrame not set")
	}
	if cfg.JobWorkers != 2 {
		t.Errorf("invalid JOB_WORKERS should fall back, got %d", cfg.JobWorkers)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no workers", func(c *Config) { c.JobWorkers = 0 }},
		{"zero threshold", func(c *Config) { c.SufficiencyThreshold = 0 }},
		{"minio backend without endpoint", func(c *Config) { c.EDLArtifactBackend = "minio"; c.MinioEndpoint = "" }},
		{"unknown backend", func(c *Config) { c.EDLArtifactBackend = "ftp" }},
		{"secret without hash", func(c *Config) { c.AuthJWTSecret = "k"; c.AuthPasswordHash = "" }},
		{"bad frame rate", func(c *Config) { c.EDLFrameRate = 0 }},
	}
	for _, tt := range tests {
		cfg := Load()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate accepted invalid config", tt.name)
		}
	}
}
