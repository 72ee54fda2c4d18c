package updater

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/plannerstack/graphupdater/internal/graph"
	"github.com/plannerstack/graphupdater/internal/observability"
	"github.com/rs/zerolog"
)

var (
	ErrQueueClosed = errors.New("updater: writer queue closed")
	ErrTaskPanic   = errors.New("updater: write task panicked")
	// ErrShutdownTimeout reports that queued tasks did not drain within
	// the shutdown budget and were abandoned.
	ErrShutdownTimeout = errors.New("updater: writer queue shutdown timed out")
)

// Handle resolves to the outcome of one submitted write task.
type Handle struct {
	done chan struct{}
	err  error
}

// Done is closed once the task has executed or been abandoned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the task outcome; only valid after Done is closed.
func (h *Handle) Err() error {
	return h.err
}

// Wait blocks until the task has executed or ctx is cancelled. A
// cancelled wait returns ctx.Err(), distinct from the task's own failure.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return h.err
	}
}

func (h *Handle) resolve(err error) {
	h.err = err
	close(h.done)
}

type submission struct {
	task   WriteTask
	handle *Handle
}

// WriterQueue executes all graph write tasks on one dedicated goroutine,
// strictly in submission order. The single goroutine is the entire
// exclusion mechanism for graph writes.
type WriterQueue struct {
	graph *graph.Graph
	log   zerolog.Logger

	mu      sync.Mutex
	pending []submission
	closed  bool
	abandon bool

	wake    chan struct{}
	done    chan struct{}
	drained bool // valid once done is closed
}

func NewWriterQueue(g *graph.Graph, logger zerolog.Logger) *WriterQueue {
	q := &WriterQueue{
		graph: g,
		log:   logger.With().Str("component", "writer_queue").Logger(),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go q.loop()
	return q
}

// Submit enqueues a task for the writer goroutine and returns without
// blocking. After shutdown has begun it rejects with ErrQueueClosed.
func (q *WriterQueue) Submit(task WriteTask) (*Handle, error) {
	h := &Handle{done: make(chan struct{})}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		observability.RecordWriteRejection(q.graph.RouterID(), observability.WriteResultRejected)
		return nil, ErrQueueClosed
	}
	q.pending = append(q.pending, submission{task: task, handle: h})
	q.mu.Unlock()
	q.signal()
	return h, nil
}

// SubmitBlocking submits a task and waits for its outcome.
func (q *WriterQueue) SubmitBlocking(ctx context.Context, task WriteTask) error {
	h, err := q.Submit(task)
	if err != nil {
		return err
	}
	return h.Wait(ctx)
}

// Shutdown stops intake and waits up to timeout for queued tasks to
// drain. On timeout the remaining queue is abandoned (each pending
// handle resolves with ErrQueueClosed) and ErrShutdownTimeout is
// returned; an in-flight task cannot be interrupted and is left to
// finish on its own.
func (q *WriterQueue) Shutdown(timeout time.Duration) error {
	q.mu.Lock()
	alreadyClosed := q.closed
	q.closed = true
	q.mu.Unlock()
	if alreadyClosed {
		return nil
	}
	q.signal()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-q.done:
		return nil
	case <-timer.C:
		// The loop goroutine may be stuck inside an uninterruptible task,
		// so the queued handles are resolved here, not by the loop. The
		// abandon flag makes the loop exit instead of running whatever a
		// late Submit raced in.
		q.mu.Lock()
		q.abandon = true
		rest := q.pending
		q.pending = nil
		q.mu.Unlock()
		q.signal()
		for _, s := range rest {
			observability.RecordWriteRejection(q.graph.RouterID(), observability.WriteResultAbandoned)
			s.handle.resolve(ErrQueueClosed)
		}
		q.log.Warn().
			Int("abandoned", len(rest)).
			Dur("timeout", timeout).
			Msg("writer queue shutdown timed out")
		return ErrShutdownTimeout
	}
}

// Drained reports whether shutdown completed with every submitted task
// executed. False while running or after a timed-out shutdown.
func (q *WriterQueue) Drained() bool {
	select {
	case <-q.done:
		return q.drained
	default:
		return false
	}
}

func (q *WriterQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *WriterQueue) loop() {
	defer close(q.done)
	for {
		q.mu.Lock()
		if q.abandon {
			rest := q.pending
			q.pending = nil
			q.mu.Unlock()
			for _, s := range rest {
				observability.RecordWriteRejection(q.graph.RouterID(), observability.WriteResultAbandoned)
				s.handle.resolve(ErrQueueClosed)
			}
			return
		}
		if len(q.pending) == 0 {
			if q.closed {
				q.drained = true
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			<-q.wake
			continue
		}
		s := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()
		s.handle.resolve(q.runTask(s.task))
	}
}

// runTask executes one task, converting panics into errors so a bad
// task never kills the writer goroutine.
func (q *WriterQueue) runTask(task WriteTask) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
			q.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("write task panicked")
		}
		result := observability.WriteResultExecuted
		if err != nil {
			result = observability.WriteResultFailed
		}
		observability.RecordWriteTask(q.graph.RouterID(), result, time.Since(start))
	}()

	if err = task(q.graph); err != nil {
		q.log.Error().Err(err).Msg("write task failed")
	}
	return err
}
