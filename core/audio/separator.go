package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"mxfedl/logger"

	"go.uber.org/zap"
)

// DemucsSeparator splits audio into stems with the demucs CLI.
type DemucsSeparator struct {
	binary  string
	model   string
	outDir  string
	timeout time.Duration
	log     *zap.Logger
}

// NewDemucsSeparator creates a separator. An empty binary disables it.
func NewDemucsSeparator(binary, outDir string, timeout time.Duration, log *zap.Logger) *DemucsSeparator {
	return &DemucsSeparator{
		binary:  strings.TrimSpace(binary),
		model:   "htdemucs",
		outDir:  outDir,
		timeout: timeout,
		log:     logger.OrNop(log),
	}
}

// Available reports whether the demucs binary can be found.
func (d *DemucsSeparator) Available() bool {
	if d.binary == "" {
		return false
	}
	_, err := exec.LookPath(d.binary)
	return err == nil
}

// Separate returns stem name -> WAV path, e.g. "vocals", "drums", "bass", "other".
func (d *DemucsSeparator) Separate(ctx context.Context, inputFile string) (map[string]string, error) {
	if !d.Available() {
		return nil, fmt.Errorf("demucs: %w", ErrToolUnavailable)
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := os.MkdirAll(d.outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create demucs output directory: %w", err)
	}

	d.log.Info("separating stems", logger.String("input", inputFile), logger.String("model", d.model))
	out, err := runCommand(ctx, d.binary, "-n", d.model, "-o", d.outDir, inputFile)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("demucs: %w", ctx.Err())
		}
		return nil, fmt.Errorf("demucs failed: %w: %s", err, strings.TrimSpace(out))
	}

	stem := strings.TrimSuffix(filepath.Base(inputFile), filepath.Ext(inputFile))
	matches, err := filepath.Glob(filepath.Join(d.outDir, d.model, stem, "*.wav"))
	if err != nil {
		return nil, err
	}
	stems := make(map[string]string, len(matches))
	for _, m := range matches {
		stems[strings.TrimSuffix(filepath.Base(m), ".wav")] = m
	}
	if len(stems) == 0 {
		return nil, fmt.Errorf("demucs produced no stems for %s", inputFile)
	}
	return stems, nil
}

// BandpassSeparator approximates vocal isolation with a voice-band filter.
type BandpassSeparator struct {
	ffmpeg *FFmpegProcessor
}

// NewBandpassSeparator creates a BandpassSeparator.
func NewBandpassSeparator(ffmpeg *FFmpegProcessor) *BandpassSeparator {
	return &BandpassSeparator{ffmpeg: ffmpeg}
}

func (b *BandpassSeparator) Separate(ctx context.Context, inputFile string) (map[string]string, error) {
	out, err := b.ffmpeg.BandpassVocals(ctx, inputFile)
	if err != nil {
		return nil, err
	}
	return map[string]string{"vocals": out}, nil
}

type stemSeparator interface {
	Separate(ctx context.Context, inputFile string) (map[string]string, error)
}

// FallbackSeparator uses demucs when installed and the band-pass filter otherwise.
type FallbackSeparator struct {
	demucs   *DemucsSeparator
	fallback stemSeparator
	log      *zap.Logger
}

// NewFallbackSeparator creates a FallbackSeparator.
func NewFallbackSeparator(demucs *DemucsSeparator, fallback stemSeparator, log *zap.Logger) *FallbackSeparator {
	return &FallbackSeparator{demucs: demucs, fallback: fallback, log: logger.OrNop(log)}
}

func (f *FallbackSeparator) Separate(ctx context.Context, inputFile string) (map[string]string, error) {
	if f.demucs != nil && f.demucs.Available() {
		stems, err := f.demucs.Separate(ctx, inputFile)
		if err == nil {
			return stems, nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		f.log.Warn("demucs separation failed, using band-pass", logger.ErrorField(err))
	}
	return f.fallback.Separate(ctx, inputFile)
}

// runCommand executes an external binary and captures combined output.
func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var output strings.Builder
	cmd.Stdout = &output
	cmd.Stderr = &output
	err := cmd.Run()
	return output.String(), err
}
