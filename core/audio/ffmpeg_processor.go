package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"mxfedl/logger"

	"go.uber.org/zap"
)

// Enhancement targets.
const (
	enhanceTargetDBFS = -20.0
	enhanceMaxGainDB  = 10.0
	enhanceHighpassHz = 100
	enhancePresenceDB = 2.0

	vocalLowHz  = 300
	vocalHighHz = 3000
	vocalGainDB = 3.0
)

// FFmpegProcessor runs ffmpeg to extract and condition audio.
type FFmpegProcessor struct {
	ffmpegPath string
	workDir    string
	timeout    time.Duration
	log        *zap.Logger
}

// NewFFmpegProcessor creates a new FFmpegProcessor writing into workDir.
func NewFFmpegProcessor(ffmpegPath, workDir string, timeout time.Duration, log *zap.Logger) *FFmpegProcessor {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegProcessor{
		ffmpegPath: ffmpegPath,
		workDir:    workDir,
		timeout:    timeout,
		log:        logger.OrNop(log),
	}
}

// WorkDir returns the directory intermediates are written to.
func (p *FFmpegProcessor) WorkDir() string {
	return p.workDir
}

// ExtractStream decodes stream index of inputFile to 16-bit PCM WAV.
func (p *FFmpegProcessor) ExtractStream(ctx context.Context, inputFile string, index int) (string, error) {
	output := p.outputPath(inputFile, fmt.Sprintf("audio_%d", index))
	args := []string{
		"-y",
		"-i", inputFile,
		"-map", fmt.Sprintf("0:%d", index),
		"-c:a", "pcm_s16le",
		output,
	}
	if err := p.run(ctx, args); err != nil {
		return "", fmt.Errorf("extract stream %d of %s: %w", index, inputFile, err)
	}
	p.log.Info("audio stream extracted", logger.String("input", inputFile), logger.Int("stream", index), logger.String("output", output))
	return output, nil
}

// Enhance levels inputFile towards -20 dBFS (at most 10 dB either way), removes
// rumble below 100 Hz and adds a small presence lift.
func (p *FFmpegProcessor) Enhance(ctx context.Context, inputFile string) (string, error) {
	pcm, err := ReadWAV(inputFile)
	if err != nil {
		return "", fmt.Errorf("enhance %s: %w", inputFile, err)
	}
	gain := NormalizeGain(pcm.DBFS())

	output := p.outputPath(inputFile, "enhanced")
	filter := fmt.Sprintf("volume=%.2fdB,highpass=f=%d,volume=%.1fdB", gain, enhanceHighpassHz, enhancePresenceDB)
	args := []string{"-y", "-i", inputFile, "-af", filter, "-c:a", "pcm_s16le", output}
	if err := p.run(ctx, args); err != nil {
		return "", fmt.Errorf("enhance %s: %w", inputFile, err)
	}
	return output, nil
}

// NormalizeGain returns the gain that brings a signal at level dBFS to the
// enhancement target, clamped to +/-10 dB.
func NormalizeGain(level float64) float64 {
	if math.IsInf(level, -1) || math.IsNaN(level) {
		return enhanceMaxGainDB
	}
	gain := enhanceTargetDBFS - level
	return math.Max(-enhanceMaxGainDB, math.Min(enhanceMaxGainDB, gain))
}

// BandpassVocals keeps the 300-3000 Hz voice band and adds 3 dB.
func (p *FFmpegProcessor) BandpassVocals(ctx context.Context, inputFile string) (string, error) {
	output := p.outputPath(inputFile, "vocals_light")
	filter := fmt.Sprintf("lowpass=f=%d,highpass=f=%d,volume=%.1fdB", vocalHighHz, vocalLowHz, vocalGainDB)
	args := []string{"-y", "-i", inputFile, "-af", filter, "-c:a", "pcm_s16le", output}
	if err := p.run(ctx, args); err != nil {
		return "", fmt.Errorf("bandpass %s: %w", inputFile, err)
	}
	return output, nil
}

func (p *FFmpegProcessor) outputPath(inputFile, suffix string) string {
	stem := strings.TrimSuffix(filepath.Base(inputFile), filepath.Ext(inputFile))
	dir := p.workDir
	if dir == "" {
		dir = filepath.Dir(inputFile)
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s.wav", stem, suffix))
}

func (p *FFmpegProcessor) run(ctx context.Context, args []string) error {
	if p.workDir != "" {
		if err := os.MkdirAll(p.workDir, 0755); err != nil {
			return fmt.Errorf("failed to create work directory %s: %w", p.workDir, err)
		}
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	p.log.Debug("executing ffmpeg", logger.String("cmd", p.ffmpegPath+" "+strings.Join(args, " ")))

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("ffmpeg %s: %w", p.ffmpegPath, ErrToolUnavailable)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg execution failed: %w\nFFmpeg Error: %s", err, stderr.String())
	}
	return nil
}
