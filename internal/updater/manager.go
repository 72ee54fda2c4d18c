package updater

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/plannerstack/graphupdater/internal/graph"
	"github.com/rs/zerolog"
)

var ErrManagerStopped = errors.New("updater: manager stopped")

// Config bounds the two shutdown phases.
type Config struct {
	WorkerStopTimeout time.Duration
	QueueStopTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		WorkerStopTimeout: 30 * time.Second,
		QueueStopTimeout:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WorkerStopTimeout <= 0 {
		c.WorkerStopTimeout = d.WorkerStopTimeout
	}
	if c.QueueStopTimeout <= 0 {
		c.QueueStopTimeout = d.QueueStopTimeout
	}
	return c
}

// Manager is the single entry point feed updaters and the hosting
// application use: it registers updaters with the supervisor, funnels
// all graph writes through the writer queue, and owns ordered shutdown.
type Manager struct {
	graph *graph.Graph
	queue *WriterQueue
	sup   *Supervisor
	log   zerolog.Logger
	cfg   Config

	stopped  atomic.Bool
	stopOnce sync.Once
}

func NewManager(g *graph.Graph, cfg Config, logger zerolog.Logger) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		graph: g,
		queue: NewWriterQueue(g, logger),
		sup:   NewSupervisor(g.RouterID(), logger),
		log:   logger.With().Str("component", "manager").Logger(),
		cfg:   cfg,
	}
}

// Register adds an updater and starts it immediately on its own
// goroutine. Rejected once Stop has begun.
func (m *Manager) Register(u GraphUpdater) (int, error) {
	id, err := m.sup.Start(u)
	if err != nil {
		return 0, ErrManagerStopped
	}
	m.log.Info().Int("updater_id", id).Str("updater", u.Describe()).Msg("updater registered")
	return id, nil
}

// Execute submits a graph write without waiting for it. A rejection
// after shutdown is logged; per the facade contract it is not surfaced.
func (m *Manager) Execute(task WriteTask) {
	if _, err := m.queue.Submit(task); err != nil {
		m.log.Warn().Err(err).Msg("write task rejected")
	}
}

// ExecuteBlocking submits a graph write and waits until it has executed,
// returning the task's own failure if any. Useful from an updater's
// Setup, which must observe its seed mutation before polling starts.
func (m *Manager) ExecuteBlocking(ctx context.Context, task WriteTask) error {
	return m.queue.SubmitBlocking(ctx, task)
}

// Stop shuts down in fixed order: updaters first, so no new writes are
// produced, then the writer queue, which by then has received everything
// the updaters will ever submit. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.stopped.Store(true)
		m.log.Info().Msg("stopping updaters")
		if abandoned := m.sup.StopAll(m.cfg.WorkerStopTimeout); abandoned > 0 {
			m.log.Warn().Int("abandoned", abandoned).Msg("timeout waiting for updaters to finish")
		}
		m.log.Info().Msg("stopping writer queue")
		if err := m.queue.Shutdown(m.cfg.QueueStopTimeout); err != nil {
			m.log.Warn().Err(err).Msg("timeout waiting for writer queue to drain")
		}
	})
}

// Stopped reports whether Stop has begun.
func (m *Manager) Stopped() bool {
	return m.stopped.Load()
}

// Drained reports whether the writer queue shut down with every
// submitted task executed.
func (m *Manager) Drained() bool {
	return m.queue.Drained()
}

// Size returns the number of registered updaters.
func (m *Manager) Size() int {
	return m.sup.Count()
}

// Graph returns the shared graph this manager writes to.
func (m *Manager) Graph() *graph.Graph {
	return m.graph
}
