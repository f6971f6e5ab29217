package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"mxfedl/cache"
	"mxfedl/config"
	"mxfedl/core/audio"
	"mxfedl/core/edl"
	"mxfedl/core/job"
	"mxfedl/core/recognize"
	"mxfedl/core/workflow"
	"mxfedl/db"
	"mxfedl/logger"
	"mxfedl/storage"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds every long-lived component built from the configuration.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *gorm.DB
	redis   *redis.Client
	minio   *storage.MinioStore
	events  cache.StatusPublisher
	manager *job.Manager
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogFile,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
	})
}

// newApp connects to the configured backends and assembles the job manager.
func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}

	a.db, err = db.ConnectGorm(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(a.db); err != nil {
		a.close()
		return nil, err
	}

	if cfg.RedisEnabled() {
		a.redis, err = db.ConnectRedis(cfg)
		if err != nil {
			a.close()
			return nil, err
		}
		a.events = cache.NewRedisStatusCache(a.redis, log)
		log.Info("status events published to Redis", logger.String("host", cfg.RedisHost))
	} else {
		a.events = cache.NewMemoryStatusHub()
	}

	if cfg.MinioEnabled() {
		a.minio, err = storage.NewMinioStore(ctx, cfg, log)
		if err != nil {
			a.close()
			return nil, err
		}
	}

	a.manager = job.NewManager(a.db, a.buildPipeline(), a.events, cfg.JobWorkers, log)
	return a, nil
}

func (a *app) buildPipeline() *job.Pipeline {
	cfg := a.cfg

	ffmpeg := audio.NewFFmpegProcessor(cfg.FFmpegPath, cfg.WorkDir, cfg.ExtractTimeout, a.log)
	var separator workflow.Separator = audio.NewBandpassSeparator(ffmpeg)
	if cfg.DemucsPath != "" {
		demucs := audio.NewDemucsSeparator(cfg.DemucsPath, filepath.Join(cfg.WorkDir, "separated"), cfg.SeparateTimeout, a.log)
		separator = audio.NewFallbackSeparator(demucs, audio.NewBandpassSeparator(ffmpeg), a.log)
	}

	orchestrator := workflow.NewOrchestrator(workflow.Deps{
		Extractor:  ffmpeg,
		Recognizer: recognize.NewClient(cfg.RecognizerURL, a.log, recognize.WithAPIKey(cfg.RecognizerAPIKey)),
		Enhancer:   ffmpeg,
		Separator:  separator,
		Segmenter: audio.NewSegmenter(audio.SilenceOptions{
			ThresholdDB:   cfg.SilenceThresholdDB,
			MinSilenceMs:  cfg.MinSilenceMs,
			KeepSilenceMs: cfg.KeepSilenceMs,
			MinSegmentMs:  cfg.MinSegmentMs,
		}, a.log),
	}, workflow.Options{
		SufficiencyThreshold: cfg.SufficiencyThreshold,
		ExtractTimeout:       cfg.ExtractTimeout,
		RecognizeTimeout:     cfg.RecognizeTimeout,
		SeparateTimeout:      cfg.SeparateTimeout,
		WorkDir:              cfg.WorkDir,
	}, a.log)

	synthesizer := edl.NewSynthesizer(edl.Options{
		FrameRate:   cfg.EDLFrameRate,
		DropFrame:   cfg.EDLDropFrame,
		Deduplicate: cfg.EDLDeduplicateTitle,
	})

	var artifacts storage.ArtifactStore = storage.NewLocalStore(cfg.EDLOutputDir)
	if cfg.EDLArtifactBackend == "minio" {
		artifacts = a.minio
	}

	return job.NewPipeline(
		storage.NewResolver(a.minio, filepath.Join(cfg.WorkDir, "fetch")),
		audio.NewProber(cfg.FFprobePath, cfg.ProbeTimeout),
		orchestrator,
		synthesizer,
		artifacts,
		a.log,
	)
}

// uploads returns where multipart uploads are written.
func (a *app) uploads() storage.UploadStore {
	if a.minio != nil {
		return a.minio
	}
	return storage.NewLocalStore(a.cfg.UploadDir)
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("failed to close Redis", logger.ErrorField(err))
		}
	}
	if a.db != nil {
		if err := db.Close(a.db); err != nil {
			a.log.Warn("failed to close database", logger.ErrorField(err))
		}
	}
	a.log.Sync()
}
