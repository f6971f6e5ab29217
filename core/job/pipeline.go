package job

import (
	"context"
	"errors"
	"fmt"

	"mxfedl/core/edl"
	"mxfedl/core/workflow"
	"mxfedl/logger"
	"mxfedl/model"
	"mxfedl/repository"
	"mxfedl/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resolver turns a storage locator into a local path.
type Resolver interface {
	Resolve(ctx context.Context, locator string) (path string, cleanup func(), err error)
}

// Prober lists the streams of a container.
type Prober interface {
	Probe(ctx context.Context, path string) ([]model.StreamDescriptor, error)
}

// Runner executes a selected workflow.
type Runner interface {
	Run(ctx context.Context, kind workflow.Kind, topo workflow.Topology, source string) ([]*model.RecognitionResult, error)
}

// Outcome is the terminal state a pipeline run asks the manager to record.
type Outcome struct {
	Status model.MediaStatus
	EDLID  *uint
	EDL    *model.EDLDocument
	// Recognized counts recognized results per ladder strategy.
	Recognized map[string]int
}

// Pipeline runs classify, select, recognize, synthesize and persist for one file.
type Pipeline struct {
	resolver    Resolver
	prober      Prober
	runner      Runner
	synthesizer *edl.Synthesizer
	artifacts   storage.ArtifactStore
	log         *zap.Logger
}

// NewPipeline creates a Pipeline. artifacts may be nil, in which case EDL
// files are kept only in the database.
func NewPipeline(resolver Resolver, prober Prober, runner Runner, synthesizer *edl.Synthesizer, artifacts storage.ArtifactStore, log *zap.Logger) *Pipeline {
	return &Pipeline{
		resolver:    resolver,
		prober:      prober,
		runner:      runner,
		synthesizer: synthesizer,
		artifacts:   artifacts,
		log:         logger.OrNop(log),
	}
}

// Execute processes media using store for every write. Returned errors mean
// the file must end in error.
func (p *Pipeline) Execute(ctx context.Context, store *repository.Store, media *model.MediaFile) (Outcome, error) {
	log := p.log.With(logger.Uint("mediaId", media.ID), logger.String("file", media.FileName))

	path, cleanup, err := p.resolver.Resolve(ctx, media.Locator)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to resolve %s: %w", media.Locator, err)
	}
	defer cleanup()

	streams, err := p.prober.Probe(ctx, path)
	if err != nil {
		log.Warn("probe failed, treating file as having no streams", logger.ErrorField(err))
		streams = nil
	}

	topo, err := workflow.Classify(streams)
	if err != nil {
		return Outcome{}, err
	}

	kind, err := workflow.Select(topo)
	if errors.Is(err, workflow.ErrNoWorkflowMatch) {
		log.Info("no workflow matches stream layout", logger.Int("audioStreams", topo.AudioCount()))
		return Outcome{Status: model.MediaStatusNoWorkflow}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	log.Info("workflow selected", logger.String("workflow", kind.String()), logger.Int("audioStreams", topo.AudioCount()))

	results, err := p.runner.Run(ctx, kind, topo, path)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s workflow failed: %w", kind, err)
	}

	if err := store.Tracks.SaveRecognitions(ctx, media.ID, results); err != nil {
		return Outcome{}, err
	}
	timings, err := store.Tracks.Timings(ctx, media.ID)
	if err != nil {
		return Outcome{}, err
	}

	doc := p.synthesizer.Synthesize(media.FileName, results, timings)
	record := &model.EDLDocument{
		ProcessID:        uuid.NewString(),
		MediaFileID:      media.ID,
		Name:             doc.Name,
		FrameRate:        doc.FrameRate,
		DropFrame:        doc.DropFrame,
		TotalEvents:      doc.TotalEvents,
		ValidationStatus: doc.Status,
		ValidationErrors: model.StringList(doc.Errors),
		Blob:             doc.Text,
	}
	if err := store.EDL.Create(ctx, record); err != nil {
		return Outcome{}, err
	}

	status, errs, location := doc.Status, doc.Errors, ""
	if p.artifacts != nil {
		location, err = p.artifacts.Save(ctx, doc.Name, []byte(doc.Text))
		if err != nil {
			log.Error("failed to save EDL artifact", logger.String("name", doc.Name), logger.ErrorField(err))
			status, errs, location = model.EDLError, []string{model.EDLErrSaveFile}, ""
		}
	}
	if err := store.EDL.Confirm(ctx, record.ID, status, errs, location); err != nil {
		return Outcome{}, err
	}
	record.ValidationStatus = status
	record.ValidationErrors = model.StringList(errs)
	record.Path = location

	log.Info("EDL generated",
		logger.Uint("edlId", record.ID),
		logger.Int("events", doc.TotalEvents),
		logger.String("validation", status))

	recognized := make(map[string]int)
	for _, r := range results {
		if r.Recognized() {
			recognized[r.Strategy]++
		}
	}

	id := record.ID
	return Outcome{Status: model.MediaStatusProcessed, EDLID: &id, EDL: record, Recognized: recognized}, nil
}
