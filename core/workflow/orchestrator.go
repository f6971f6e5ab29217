package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mxfedl/core/audio"
	"mxfedl/logger"
	"mxfedl/model"

	"go.uber.org/zap"
)

// Strategy tags, in escalation order.
const (
	StrategyDirect   = "direct"
	StrategyEnhanced = "enhanced"
	StrategyVocals   = "vocals-isolated"
)

// Extractor decodes one stream of a container to a WAV file.
type Extractor interface {
	ExtractStream(ctx context.Context, inputFile string, index int) (string, error)
}

// Recognizer identifies the music in an audio file. A nil result means no match.
type Recognizer interface {
	Recognize(ctx context.Context, path string) (*model.RecognitionResult, error)
}

// Enhancer writes a level-corrected copy of a WAV file.
type Enhancer interface {
	Enhance(ctx context.Context, path string) (string, error)
}

// Separator splits a WAV file into named stems.
type Separator interface {
	Separate(ctx context.Context, path string) (map[string]string, error)
}

// Segmenter cuts a WAV file on silence.
type Segmenter interface {
	Split(ctx context.Context, wavPath, outDir string) ([]audio.Segment, error)
}

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	Extractor  Extractor
	Recognizer Recognizer
	Enhancer   Enhancer
	Separator  Separator
	Segmenter  Segmenter
}

// Options tune the orchestrator.
type Options struct {
	// SufficiencyThreshold is the number of distinct titles a rung must
	// produce for the ladder to stop.
	SufficiencyThreshold int
	ExtractTimeout       time.Duration
	RecognizeTimeout     time.Duration
	SeparateTimeout      time.Duration
	// WorkDir receives silence segments; defaults to the directory of the audio.
	WorkDir string
}

// Orchestrator runs a workflow over a container and collects recognition results.
type Orchestrator struct {
	deps       Deps
	opts       Options
	log        *zap.Logger
	durationOf func(path string) (int64, error)
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps Deps, opts Options, log *zap.Logger) *Orchestrator {
	if opts.SufficiencyThreshold <= 0 {
		opts.SufficiencyThreshold = 2
	}
	return &Orchestrator{
		deps:       deps,
		opts:       opts,
		log:        logger.OrNop(log),
		durationOf: audio.WAVDurationMs,
	}
}

// Run executes kind over source and returns every result in discovery order.
func (o *Orchestrator) Run(ctx context.Context, kind Kind, topo Topology, source string) ([]*model.RecognitionResult, error) {
	switch kind {
	case Separated:
		return o.runSeparated(ctx, topo, source)
	case Mixed:
		return o.runMixed(ctx, topo, source)
	default:
		return nil, fmt.Errorf("unknown workflow %v: %w", kind, ErrNoWorkflowMatch)
	}
}

func (o *Orchestrator) runSeparated(ctx context.Context, topo Topology, source string) ([]*model.RecognitionResult, error) {
	var results []*model.RecognitionResult
	extracted := 0
	for _, stream := range topo.AudioStreams {
		wav, err := o.extract(ctx, source, stream.Index)
		if err != nil {
			o.log.Error("failed to extract audio stream",
				logger.String("source", source), logger.Int("stream", stream.Index), logger.ErrorField(err))
			continue
		}
		extracted++
		idx := stream.Index
		results = append(results, o.recognizePass(ctx, wav, Separated, StrategyDirect, &idx)...)
		o.remove(wav)
	}
	if extracted == 0 {
		return nil, fmt.Errorf("no audio stream of %s could be extracted", filepath.Base(source))
	}
	return results, nil
}

func (o *Orchestrator) runMixed(ctx context.Context, topo Topology, source string) ([]*model.RecognitionResult, error) {
	stream := topo.AudioStreams[0]
	wav, err := o.extract(ctx, source, stream.Index)
	if err != nil {
		return nil, err
	}
	defer o.remove(wav)

	idx := stream.Index
	rungs := []struct {
		strategy string
		prepare  func(context.Context, string) ([]string, error)
	}{
		{StrategyDirect, func(_ context.Context, p string) ([]string, error) { return []string{p}, nil }},
		{StrategyEnhanced, o.enhance},
		{StrategyVocals, o.isolateVocals},
	}

	var all []*model.RecognitionResult
	for _, rung := range rungs {
		inputs, err := rung.prepare(ctx, wav)
		if err != nil {
			o.log.Warn("recognition rung degraded",
				logger.String("strategy", rung.strategy),
				logger.ErrorField(fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)))
			continue
		}

		var found []*model.RecognitionResult
		for _, in := range inputs {
			found = append(found, o.recognizePass(ctx, in, Mixed, rung.strategy, &idx)...)
			if in != wav {
				o.remove(in)
			}
		}
		all = append(all, found...)

		distinct := DistinctTitles(found)
		o.log.Info("recognition rung finished",
			logger.String("source", filepath.Base(source)),
			logger.String("strategy", rung.strategy),
			logger.Int("results", len(found)),
			logger.Int("distinctTitles", distinct))
		if distinct >= o.opts.SufficiencyThreshold {
			break
		}
	}
	return all, nil
}

func (o *Orchestrator) extract(ctx context.Context, source string, index int) (string, error) {
	ctx, cancel := withTimeout(ctx, o.opts.ExtractTimeout)
	defer cancel()
	return o.deps.Extractor.ExtractStream(ctx, source, index)
}

func (o *Orchestrator) enhance(ctx context.Context, wav string) ([]string, error) {
	if o.deps.Enhancer == nil {
		return nil, errors.New("no enhancer configured")
	}
	ctx, cancel := withTimeout(ctx, o.opts.ExtractTimeout)
	defer cancel()
	out, err := o.deps.Enhancer.Enhance(ctx, wav)
	if err != nil {
		return nil, err
	}
	return []string{out}, nil
}

func (o *Orchestrator) isolateVocals(ctx context.Context, wav string) ([]string, error) {
	if o.deps.Separator == nil {
		return nil, errors.New("no separator configured")
	}
	ctx, cancel := withTimeout(ctx, o.opts.SeparateTimeout)
	defer cancel()
	stems, err := o.deps.Separator.Separate(ctx, wav)
	if err != nil {
		return nil, err
	}
	vocals, ok := stems["vocals"]
	for name, p := range stems {
		if name != "vocals" {
			o.remove(p)
		}
	}
	if !ok {
		return nil, errors.New("separator returned no vocals stem")
	}
	return []string{vocals}, nil
}

// recognizePass recognizes the whole file and then each silence segment of it.
// Failed calls are logged and contribute nothing.
func (o *Orchestrator) recognizePass(ctx context.Context, wav string, kind Kind, strategy string, streamIndex *int) []*model.RecognitionResult {
	var results []*model.RecognitionResult

	tag := func(r *model.RecognitionResult) {
		r.Strategy = strategy
		r.Workflow = kind.String()
		if streamIndex != nil {
			idx := *streamIndex
			r.StreamIndex = &idx
		}
	}

	if full := o.recognize(ctx, wav); full != nil {
		tag(full)
		full.SegmentType = model.SegmentFull
		if d, err := o.durationOf(wav); err == nil {
			full.SegmentDurationMs = d
		} else {
			o.log.Debug("could not read audio duration", logger.String("file", wav), logger.ErrorField(err))
		}
		results = append(results, full)
	}

	if o.deps.Segmenter == nil {
		return results
	}
	segDir := o.opts.WorkDir
	if segDir == "" {
		segDir = filepath.Dir(wav)
	}
	segDir = filepath.Join(segDir, strings.TrimSuffix(filepath.Base(wav), filepath.Ext(wav))+"_segments")
	defer os.RemoveAll(segDir)

	segments, err := o.deps.Segmenter.Split(ctx, wav, segDir)
	if err != nil {
		o.log.Warn("silence segmentation failed", logger.String("file", wav), logger.ErrorField(err))
	}
	for _, seg := range segments {
		r := o.recognize(ctx, seg.Path)
		if r == nil {
			continue
		}
		tag(r)
		offset := seg.OffsetMs
		r.SegmentType = model.SegmentPartial
		r.SegmentFile = filepath.Base(seg.Path)
		r.SegmentOffsetMs = &offset
		r.SegmentDurationMs = seg.DurationMs
		results = append(results, r)
	}
	return results
}

func (o *Orchestrator) recognize(ctx context.Context, path string) *model.RecognitionResult {
	ctx, cancel := withTimeout(ctx, o.opts.RecognizeTimeout)
	defer cancel()
	res, err := o.deps.Recognizer.Recognize(ctx, path)
	if err != nil {
		o.log.Warn("recognition call failed",
			logger.String("file", filepath.Base(path)),
			logger.ErrorField(fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)))
		return nil
	}
	return res
}

func (o *Orchestrator) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		o.log.Warn("failed to remove intermediate file", logger.String("file", path), logger.ErrorField(err))
	}
}

// DistinctTitles counts recognized titles, ignoring case and unknown placeholders.
func DistinctTitles(results []*model.RecognitionResult) int {
	seen := make(map[string]struct{})
	for _, r := range results {
		if !r.Recognized() {
			continue
		}
		seen[strings.ToLower(strings.TrimSpace(r.Title))] = struct{}{}
	}
	return len(seen)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
