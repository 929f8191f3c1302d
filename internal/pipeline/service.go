package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"botforge/internal/logging"
	"botforge/internal/requirements"
	"botforge/internal/store"
	"botforge/pkg/models"
)

// ErrRunNotFound is returned when a run is neither live nor archived.
var ErrRunNotFound = errors.New("run not found")

// Tracker pairs a live run with its machine and cancellation handle. All
// mutation goes through update; readers take snapshots.
type Tracker struct {
	mu      sync.RWMutex
	run     *Run
	machine *Machine
	cancel  context.CancelFunc
	done    chan struct{}
}

func (t *Tracker) update(f func(*Run)) {
	t.mu.Lock()
	f(t.run)
	t.mu.Unlock()
}

// Snapshot returns a copy of the run safe to read concurrently.
func (t *Tracker) Snapshot() Run {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.run.snapshot()
}

// finish stamps the terminal state onto the run.
func (t *Tracker) finish(state State, reason, warning string) {
	t.update(func(r *Run) {
		r.State = state
		r.Reason = reason
		r.Warning = warning
		r.FinishedAt = time.Now()
	})
}

// Machine exposes the run's state machine for event subscription.
func (t *Tracker) Machine() *Machine { return t.machine }

// Service manages concurrent pipeline runs: it starts them, tracks the live
// ones, and archives them once terminal.
type Service struct {
	mu          sync.RWMutex
	coordinator *Coordinator
	archive     *store.Store // nil disables archiving
	live        map[string]*Tracker
	log         *zap.Logger
}

// NewService creates the run manager.
func NewService(coordinator *Coordinator, archive *store.Store) *Service {
	return &Service{
		coordinator: coordinator,
		archive:     archive,
		live:        make(map[string]*Tracker),
		log:         logging.L().With(zap.String("component", "pipeline_service")),
	}
}

// Start launches a new run for the payload and returns its ID immediately;
// the pipeline executes on its own goroutine.
func (s *Service) Start(payload requirements.Payload) string {
	id := uuid.New().String()
	runCtx, cancel := context.WithCancel(context.Background())

	t := &Tracker{
		run:     newRun(id, payload),
		machine: NewMachine(id),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.live[id] = t
	s.mu.Unlock()

	go func() {
		defer cancel()
		defer close(t.done)
		s.coordinator.Execute(runCtx, t)
		s.archiveRun(t)
	}()

	s.log.Info("run started", zap.String("run_id", id))
	return id
}

// Get returns the current state of a run, live or archived. Retrieving a
// terminal run evicts it from the live set; the archive keeps the record.
func (s *Service) Get(id string) (*models.RunRecord, error) {
	s.mu.RLock()
	t, ok := s.live[id]
	s.mu.RUnlock()

	if ok {
		snap := t.Snapshot()
		rec := snap.Record()
		if t.machine.IsTerminal() {
			s.mu.Lock()
			delete(s.live, id)
			s.mu.Unlock()
		}
		return rec, nil
	}

	if s.archive != nil {
		rec, err := s.archive.Get(id)
		if err == nil {
			return rec, nil
		}
	}
	return nil, ErrRunNotFound
}

// Cancel stops a live run. Cancelling an already-terminal or unknown run is
// not an error.
func (s *Service) Cancel(id string) {
	s.mu.RLock()
	t, ok := s.live[id]
	s.mu.RUnlock()
	if !ok {
		return
	}
	s.log.Info("cancelling run", zap.String("run_id", id))
	t.cancel()
}

// Subscribe attaches to a live run's transition stream. Returns the channel
// plus an unsubscribe func, or ErrRunNotFound for unknown/terminal runs.
func (s *Service) Subscribe(id string) (chan Transition, func(), error) {
	s.mu.RLock()
	t, ok := s.live[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrRunNotFound
	}
	ch := t.machine.Subscribe(32)
	return ch, func() { t.machine.Unsubscribe(ch) }, nil
}

// Wait blocks until the run finishes. Intended for tests and shutdown.
func (s *Service) Wait(id string) {
	s.mu.RLock()
	t, ok := s.live[id]
	s.mu.RUnlock()
	if !ok {
		return
	}
	<-t.done
}

// CancelAll cancels every live run. Used during shutdown.
func (s *Service) CancelAll() {
	s.mu.RLock()
	trackers := make([]*Tracker, 0, len(s.live))
	for _, t := range s.live {
		trackers = append(trackers, t)
	}
	s.mu.RUnlock()
	for _, t := range trackers {
		t.cancel()
	}
}

func (s *Service) archiveRun(t *Tracker) {
	if s.archive == nil {
		return
	}
	snap := t.Snapshot()
	rec := snap.Record()
	if err := s.archive.Archive(rec); err != nil {
		s.log.Error("failed to archive run", zap.String("run_id", rec.ID), zap.Error(err))
	}
}
