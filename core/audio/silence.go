package audio

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"mxfedl/logger"

	"go.uber.org/zap"
)

// SilenceOptions controls how audio is split on silence. Durations are in milliseconds.
type SilenceOptions struct {
	ThresholdDB   float64 // RMS level below which audio counts as silent
	MinSilenceMs  int     // shortest silent run that splits the audio
	KeepSilenceMs int     // silence kept on both sides of each region
	MinSegmentMs  int     // regions must be strictly longer than this to be kept
}

// DefaultSilenceOptions mirrors the values used in production.
func DefaultSilenceOptions() SilenceOptions {
	return SilenceOptions{
		ThresholdDB:   -60,
		MinSilenceMs:  2000,
		KeepSilenceMs: 1000,
		MinSegmentMs:  10000,
	}
}

// Range is a half-open interval in milliseconds.
type Range struct {
	StartMs int64
	EndMs   int64
}

// Duration returns the length of r.
func (r Range) Duration() int64 { return r.EndMs - r.StartMs }

const frameMs = 10

// DetectSegments returns the non-silent regions of p padded by KeepSilenceMs,
// in order, dropping those not longer than MinSegmentMs.
func DetectSegments(p *PCM, opts SilenceOptions) []Range {
	total := p.DurationMs()
	if total == 0 || p.SampleRate == 0 {
		return nil
	}

	frameLen := p.SampleRate * frameMs / 1000 * p.Channels
	if frameLen == 0 {
		frameLen = p.Channels
	}
	nFrames := (len(p.Samples) + frameLen - 1) / frameLen

	// prefix sums of squared samples and sample counts per frame
	energy := make([]float64, nFrames+1)
	counts := make([]int, nFrames+1)
	for i := 0; i < nFrames; i++ {
		from := i * frameLen
		to := from + frameLen
		if to > len(p.Samples) {
			to = len(p.Samples)
		}
		var sum float64
		for _, s := range p.Samples[from:to] {
			v := float64(s)
			sum += v * v
		}
		energy[i+1] = energy[i] + sum
		counts[i+1] = counts[i] + (to - from)
	}

	limit := 32768 * math.Pow(10, opts.ThresholdDB/20)
	window := opts.MinSilenceMs / frameMs
	if window < 1 {
		window = 1
	}

	// mark every frame covered by a silent window
	silent := make([]bool, nFrames)
	if window <= nFrames {
		for i := 0; i+window <= nFrames; i++ {
			n := counts[i+window] - counts[i]
			if n == 0 {
				continue
			}
			rms := math.Sqrt((energy[i+window] - energy[i]) / float64(n))
			if rms < limit {
				for j := i; j < i+window; j++ {
					silent[j] = true
				}
			}
		}
	}

	var regions []Range
	for i := 0; i < nFrames; {
		if silent[i] {
			i++
			continue
		}
		j := i
		for j < nFrames && !silent[j] {
			j++
		}
		end := int64(j * frameMs)
		if end > total {
			end = total
		}
		regions = append(regions, Range{StartMs: int64(i * frameMs), EndMs: end})
		i = j
	}

	keep := int64(opts.KeepSilenceMs)
	for i := range regions {
		regions[i].StartMs -= keep
		regions[i].EndMs += keep
		if regions[i].StartMs < 0 {
			regions[i].StartMs = 0
		}
		if regions[i].EndMs > total {
			regions[i].EndMs = total
		}
	}
	// overlapping padding is split at the midpoint
	for i := 1; i < len(regions); i++ {
		if regions[i].StartMs < regions[i-1].EndMs {
			mid := (regions[i].StartMs + regions[i-1].EndMs) / 2
			regions[i-1].EndMs = mid
			regions[i].StartMs = mid
		}
	}

	out := regions[:0]
	for _, r := range regions {
		if r.Duration() > int64(opts.MinSegmentMs) {
			out = append(out, r)
		}
	}
	return out
}

// Segment is a region of a larger file written to disk.
type Segment struct {
	Path       string
	OffsetMs   int64
	DurationMs int64
}

// Segmenter writes the non-silent regions of a WAV file to separate files.
type Segmenter struct {
	opts SilenceOptions
	log  *zap.Logger
}

// NewSegmenter creates a Segmenter.
func NewSegmenter(opts SilenceOptions, log *zap.Logger) *Segmenter {
	return &Segmenter{opts: opts, log: logger.OrNop(log)}
}

// Split cuts wavPath into <stem>_segment_<n>.wav files inside outDir. n is the
// 1-based position of the region before short regions are dropped.
func (s *Segmenter) Split(ctx context.Context, wavPath, outDir string) ([]Segment, error) {
	pcm, err := ReadWAV(wavPath)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", wavPath, err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create segment directory %s: %w", outDir, err)
	}

	all := DetectSegments(pcm, SilenceOptions{
		ThresholdDB:   s.opts.ThresholdDB,
		MinSilenceMs:  s.opts.MinSilenceMs,
		KeepSilenceMs: s.opts.KeepSilenceMs,
	})
	stem := strings.TrimSuffix(filepath.Base(wavPath), filepath.Ext(wavPath))

	var segments []Segment
	for i, r := range all {
		if err := ctx.Err(); err != nil {
			return segments, err
		}
		if r.Duration() <= int64(s.opts.MinSegmentMs) {
			continue
		}
		path := filepath.Join(outDir, fmt.Sprintf("%s_segment_%d.wav", stem, i+1))
		if err := WriteWAV(path, pcm.Slice(r.StartMs, r.EndMs)); err != nil {
			return segments, fmt.Errorf("failed to write segment %s: %w", path, err)
		}
		segments = append(segments, Segment{Path: path, OffsetMs: r.StartMs, DurationMs: r.Duration()})
	}

	s.log.Debug("audio split on silence",
		logger.String("file", wavPath),
		logger.Int("regions", len(all)),
		logger.Int("segments", len(segments)))
	return segments, nil
}
