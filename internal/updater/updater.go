// Package updater coordinates concurrent mutation of the shared graph.
//
// Feed updaters run on their own goroutines and never touch the graph
// directly: every mutation goes through the manager, which funnels it to
// a single writer goroutine. Simultaneous reads are allowed; writes are
// serialized, so the graph mutation path needs no lock of its own.
package updater

import (
	"context"

	"github.com/plannerstack/graphupdater/internal/graph"
)

// GraphUpdater is the lifecycle contract every feed updater implements.
//
// Setup and Run are invoked exactly once, in order, on the updater's
// dedicated goroutine; Teardown exactly once during shutdown, regardless
// of how Setup or Run ended. Blocking graph writes via
// Manager.ExecuteBlocking are safe from Setup.
type GraphUpdater interface {
	Setup(ctx context.Context) error
	// Run watches the feed until its context is cancelled. Returning an
	// error marks the run as failed; it never affects other updaters.
	Run(ctx context.Context) error
	Teardown() error
	// Describe returns a short human-readable identity, e.g. the stream
	// address being watched.
	Describe() string
}

// WriteTask is a single mutation destined for the shared graph. It runs
// alone with respect to all other write tasks, on the writer goroutine.
type WriteTask func(g *graph.Graph) error
