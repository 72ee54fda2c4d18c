package updater

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/plannerstack/graphupdater/internal/observability"
	"github.com/rs/zerolog"
)

// WorkerState describes where a feed updater is in its lifecycle.
type WorkerState string

const (
	StateStarting    WorkerState = "starting"
	StateRunning     WorkerState = "running"
	StateSetupFailed WorkerState = "setup_failed"
	StateRunFailed   WorkerState = "run_failed"
	StateDone        WorkerState = "done"
	StateAbandoned   WorkerState = "abandoned"
	StateStopped     WorkerState = "stopped"
)

// WorkerInfo is the read-only view of one supervised updater.
type WorkerInfo struct {
	ID          int         `json:"id"`
	Description string      `json:"description"`
	Type        string      `json:"type"`
	State       WorkerState `json:"state"`
}

type workerState struct {
	id      int
	updater GraphUpdater
	cancel  context.CancelFunc
	done    chan struct{}
	state   WorkerState
}

// ErrSupervisorStopped reports a Start attempt after StopAll has begun.
var ErrSupervisorStopped = errors.New("updater: supervisor stopped")

// Supervisor runs each registered updater on its own goroutine through
// the setup/run/teardown lifecycle. Failures are logged and isolated;
// one broken updater never affects its siblings.
type Supervisor struct {
	router string
	log    zerolog.Logger

	mu      sync.RWMutex
	workers []*workerState
	stopped bool
}

func NewSupervisor(router string, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		router: router,
		log:    logger.With().Str("component", "supervisor").Logger(),
	}
}

// Start assigns the updater a handle and launches its lifecycle on a
// dedicated goroutine. The handle is stable for the process lifetime.
// The stopped check shares the lock with StopAll's worker snapshot, so
// no worker can slip in after the snapshot and escape cancellation.
func (s *Supervisor) Start(u GraphUpdater) (int, error) {
	ctx, cancel := context.WithCancel(context.Background())
	w := &workerState{
		updater: u,
		cancel:  cancel,
		done:    make(chan struct{}),
		state:   StateStarting,
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		return 0, ErrSupervisorStopped
	}
	w.id = len(s.workers)
	s.workers = append(s.workers, w)
	s.mu.Unlock()

	go s.runWorker(ctx, w)
	return w.id, nil
}

func (s *Supervisor) runWorker(ctx context.Context, w *workerState) {
	defer close(w.done)
	logger := s.log.With().Int("updater_id", w.id).Str("updater", w.updater.Describe()).Logger()

	err := s.runPhase(observability.PhaseSetup, func() error { return w.updater.Setup(ctx) })
	if err != nil {
		logger.Error().Err(err).Msg("updater setup failed")
		s.setState(w, StateSetupFailed)
		return
	}

	s.setState(w, StateRunning)
	logger.Info().Msg("updater running")
	if err := s.runPhase(observability.PhaseRun, func() error { return w.updater.Run(ctx) }); err != nil {
		logger.Error().Err(err).Msg("updater run failed")
		s.setState(w, StateRunFailed)
		return
	}
	s.setState(w, StateDone)
}

// runPhase executes one lifecycle phase, converting panics to errors so
// a misbehaving updater cannot take the supervisor down.
func (s *Supervisor) runPhase(phase string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("updater: %s panicked: %v", phase, r)
			s.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Str("phase", phase).
				Msg("updater phase panicked")
		}
		observability.RecordUpdaterEvent(s.router, phase, err == nil)
	}()
	return fn()
}

// StopAll cancels every worker context, waits up to timeout for them to
// unwind, then tears every registered updater down in registration
// order. Teardown runs exactly once per updater, including those whose
// setup or run never finished. Returns the number of workers abandoned.
func (s *Supervisor) StopAll(timeout time.Duration) int {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0
	}
	s.stopped = true
	workers := append([]*workerState(nil), s.workers...)
	s.mu.Unlock()

	for _, w := range workers {
		w.cancel()
	}

	deadline := time.Now().Add(timeout)
	abandoned := 0
	for _, w := range workers {
		// A worker that already unwound must never count as abandoned,
		// even once the budget is spent.
		select {
		case <-w.done:
			s.markStopped(w)
			continue
		default:
		}
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		timer := time.NewTimer(remaining)
		select {
		case <-w.done:
			timer.Stop()
			s.markStopped(w)
		case <-timer.C:
			// Best effort only: the goroutine keeps running if its Run
			// ignores cancellation.
			abandoned++
			s.setState(w, StateAbandoned)
			s.log.Warn().
				Int("updater_id", w.id).
				Str("updater", w.updater.Describe()).
				Msg("updater did not stop within budget, abandoned")
		}
	}

	for _, w := range workers {
		if err := s.runPhase(observability.PhaseTeardown, w.updater.Teardown); err != nil {
			s.log.Error().
				Err(err).
				Int("updater_id", w.id).
				Str("updater", w.updater.Describe()).
				Msg("updater teardown failed")
		}
	}
	return abandoned
}

// Count returns the number of registered updaters.
func (s *Supervisor) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workers)
}

// List enumerates registered updaters in handle order.
func (s *Supervisor) List() []WorkerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WorkerInfo, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, s.infoLocked(w))
	}
	return out
}

// Info returns the view for one handle; false for unknown handles.
func (s *Supervisor) Info(id int) (WorkerInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || id >= len(s.workers) {
		return WorkerInfo{}, false
	}
	return s.infoLocked(s.workers[id]), true
}

func (s *Supervisor) infoLocked(w *workerState) WorkerInfo {
	return WorkerInfo{
		ID:          w.id,
		Description: w.updater.Describe(),
		Type:        fmt.Sprintf("%T", w.updater),
		State:       w.state,
	}
}

func (s *Supervisor) setState(w *workerState, state WorkerState) {
	s.mu.Lock()
	w.state = state
	s.mu.Unlock()
}

// markStopped records a clean stop without clobbering a terminal
// failure state the worker reached on its own.
func (s *Supervisor) markStopped(w *workerState) {
	s.mu.Lock()
	if w.state == StateStarting || w.state == StateRunning {
		w.state = StateStopped
	}
	s.mu.Unlock()
}
