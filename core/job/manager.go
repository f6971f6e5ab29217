// Package job drives media files through their processing lifecycle.
package job

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"mxfedl/cache"
	"mxfedl/logger"
	"mxfedl/model"
	"mxfedl/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrAlreadyActive is returned when a pipeline for the id is already running.
	ErrAlreadyActive = errors.New("media file is already being processed")
	// ErrNotPending is returned when the file has left pending.
	ErrNotPending = errors.New("media file is not pending")
	// ErrNotFound is returned for unknown ids.
	ErrNotFound = errors.New("media file not found")
)

// Executor runs the processing stages for one file.
type Executor interface {
	Execute(ctx context.Context, store *repository.Store, media *model.MediaFile) (Outcome, error)
}

// Observer is told when jobs start and finish.
type Observer interface {
	JobStarted()
	JobFinished(status model.MediaStatus, elapsed time.Duration, recognized map[string]int)
}

type nopObserver struct{}

func (nopObserver) JobStarted() {}
func (nopObserver) JobFinished(model.MediaStatus, time.Duration, map[string]int) {}

// Manager accepts media files and runs their pipelines in the background.
type Manager struct {
	db       *gorm.DB
	pipeline Executor
	events   cache.StatusPublisher
	observer Observer
	log      *zap.Logger

	sem chan struct{}

	// 正在处理中的 MediaFile ID
	mu     sync.Mutex
	active map[uint]struct{}

	wg sync.WaitGroup
}

// NewManager creates a Manager running at most workers pipelines at once.
// events may be nil.
func NewManager(db *gorm.DB, pipeline Executor, events cache.StatusPublisher, workers int, log *zap.Logger) *Manager {
	if workers <= 0 {
		workers = 1
	}
	return &Manager{
		db:       db,
		pipeline: pipeline,
		events:   events,
		observer: nopObserver{},
		log:      logger.OrNop(log),
		sem:      make(chan struct{}, workers),
		active:   make(map[uint]struct{}),
	}
}

// SetObserver installs o; call before the first Submit.
func (m *Manager) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	m.observer = o
}

// Submit records a new pending media file and schedules it. It returns as soon
// as the record exists; pipeline failures are only visible through its status.
func (m *Manager) Submit(ctx context.Context, fileName, locator string) (*model.MediaFile, error) {
	media := &model.MediaFile{FileName: fileName, Locator: locator, Status: model.MediaStatusPending}
	if err := repository.NewStore(m.db.WithContext(ctx)).Media.Create(ctx, media); err != nil {
		return nil, err
	}
	m.log.Info("media file accepted", logger.Uint("mediaId", media.ID), logger.String("file", fileName))
	if err := m.Start(ctx, media.ID); err != nil {
		return nil, err
	}
	return media, nil
}

// Start schedules a pending media file. A second call for an id that is still
// active is rejected.
func (m *Manager) Start(ctx context.Context, id uint) error {
	media, err := repository.NewStore(m.db.WithContext(ctx)).Media.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if media == nil {
		return ErrNotFound
	}

	if !m.acquire(id) {
		return ErrAlreadyActive
	}
	if media.Status != model.MediaStatusPending {
		m.release(id)
		return fmt.Errorf("%w: status is %s", ErrNotPending, media.Status)
	}

	m.wg.Add(1)
	go m.run(id)
	return nil
}

// Active reports whether a pipeline for id is queued or running.
func (m *Manager) Active(id uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[id]
	return ok
}

// Wait blocks until every scheduled pipeline has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) acquire(id uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.active[id]; busy {
		return false
	}
	m.active[id] = struct{}{}
	return true
}

func (m *Manager) release(id uint) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

// run owns id until it reaches a terminal status. Jobs are not tied to the
// submitting request and always run to completion.
func (m *Manager) run(id uint) {
	defer m.wg.Done()
	defer m.release(id)

	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	ctx := context.Background()
	store := repository.OpenSession(ctx, m.db)
	log := m.log.With(logger.Uint("mediaId", id))

	moved, err := store.Media.TransitionStatus(ctx, id, model.MediaStatusPending, model.MediaStatusProcessing)
	if err != nil {
		log.Error("failed to start processing", logger.ErrorField(err))
		return
	}
	if !moved {
		log.Warn("media file left pending before its job started")
		return
	}
	m.publish(ctx, cache.StatusEvent{MediaID: id, Status: model.MediaStatusProcessing})

	started := time.Now()
	m.observer.JobStarted()
	outcome, err := m.execute(ctx, store, id)
	if err != nil {
		log.Error("processing failed", logger.ErrorField(err), logger.Duration("elapsed", time.Since(started)))
		m.fail(ctx, store, id, err)
		m.observer.JobFinished(model.MediaStatusError, time.Since(started), nil)
		return
	}

	if err := store.Media.Complete(ctx, id, outcome.Status, outcome.EDLID); err != nil {
		log.Error("failed to record outcome", logger.ErrorField(err))
		m.fail(ctx, store, id, err)
		m.observer.JobFinished(model.MediaStatusError, time.Since(started), nil)
		return
	}
	m.observer.JobFinished(outcome.Status, time.Since(started), outcome.Recognized)
	log.Info("processing finished",
		logger.String("status", string(outcome.Status)),
		logger.Duration("elapsed", time.Since(started)))
	m.publish(ctx, cache.StatusEvent{MediaID: id, Status: outcome.Status, EDLID: outcome.EDLID})
}

func (m *Manager) execute(ctx context.Context, store *repository.Store, id uint) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("pipeline panicked",
				logger.Uint("mediaId", id),
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())))
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	media, err := store.Media.GetByID(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if media == nil {
		return Outcome{}, ErrNotFound
	}
	return m.pipeline.Execute(ctx, store, media)
}

func (m *Manager) fail(ctx context.Context, store *repository.Store, id uint, cause error) {
	if err := store.Media.MarkFailed(ctx, id); err != nil {
		m.log.Error("failed to mark media file as error", logger.Uint("mediaId", id), logger.ErrorField(err))
	}
	m.publish(ctx, cache.StatusEvent{MediaID: id, Status: model.MediaStatusError, Error: cause.Error()})
}

func (m *Manager) publish(ctx context.Context, ev cache.StatusEvent) {
	if m.events == nil {
		return
	}
	ev.At = time.Now()
	if err := m.events.Publish(ctx, ev); err != nil {
		m.log.Warn("failed to publish status event", logger.Uint("mediaId", ev.MediaID), logger.ErrorField(err))
	}
}
