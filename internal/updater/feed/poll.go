// Package feed contains concrete graph updaters that watch realtime
// data sources and feed mutations through the updater manager.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/plannerstack/graphupdater/internal/graph"
	"github.com/plannerstack/graphupdater/internal/updater"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidInterval = errors.New("feed: invalid poll interval")
	ErrMissingFeedID   = errors.New("feed: missing feed id")
)

// Source yields one batch of vehicle positions per fetch. Implementations
// wrap a protocol client (GTFS-Realtime poll, message-queue drain); the
// poller does not care which.
type Source interface {
	Fetch(ctx context.Context) ([]graph.VehiclePosition, error)
}

// PollerConfig configures one vehicle-position poller.
type PollerConfig struct {
	FeedID   string
	Interval time.Duration
	// Agencies is seeded into the graph during Setup via a blocking
	// write, so status queries see feed metadata before the first poll.
	Agencies []graph.Agency
}

func (c PollerConfig) validate() error {
	if c.FeedID == "" {
		return ErrMissingFeedID
	}
	if c.Interval <= 0 {
		return ErrInvalidInterval
	}
	return nil
}

// Poller periodically fetches vehicle positions from a source and
// applies them to the graph through the manager's writer queue.
type Poller struct {
	cfg    PollerConfig
	source Source
	mgr    *updater.Manager
}

func NewPoller(mgr *updater.Manager, source Source, cfg PollerConfig) (*Poller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Poller{cfg: cfg, source: source, mgr: mgr}, nil
}

// Setup seeds agency metadata with a blocking write so the mutation is
// observed before Run starts polling.
func (p *Poller) Setup(ctx context.Context) error {
	return p.mgr.ExecuteBlocking(ctx, func(g *graph.Graph) error {
		g.SetAgencies(p.cfg.FeedID, p.cfg.Agencies)
		return nil
	})
}

// Run polls until the context is cancelled. Fetch failures are recorded
// in the history and retried on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	history := p.mgr.Graph().History()
	history.MarkBlock()

	positions, err := p.source.Fetch(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		history.RecordError(p.cfg.FeedID, "", graph.TypeVehiclePosition, err)
		log.Warn().Err(err).Str("feed", p.cfg.FeedID).Msg("feed fetch failed")
		return
	}

	for _, pos := range positions {
		pos := pos
		history.RecordReceived(pos.FeedID, pos.TripID, graph.TypeVehiclePosition)
		p.mgr.Execute(func(g *graph.Graph) error {
			if err := applyPosition(g, pos); err != nil {
				history.RecordError(pos.FeedID, pos.TripID, graph.TypeVehiclePosition, err)
				return err
			}
			history.RecordApplied(pos.FeedID, pos.TripID, graph.TypeVehiclePosition)
			return nil
		})
	}
}

// applyPosition validates and writes one position; runs on the writer
// goroutine.
func applyPosition(g *graph.Graph, pos graph.VehiclePosition) error {
	if pos.TripID == "" {
		return errors.New("feed: position without trip id")
	}
	if prev, ok := g.VehiclePosition(pos.FeedID, pos.TripID); ok && pos.Timestamp.Before(prev.Timestamp) {
		return fmt.Errorf("feed: stale position for trip %s", pos.TripID)
	}
	g.SetVehiclePosition(pos)
	return nil
}

func (p *Poller) Teardown() error {
	log.Info().Str("feed", p.cfg.FeedID).Msg("feed poller torn down")
	return nil
}

func (p *Poller) Describe() string {
	return fmt.Sprintf("vehicle-position poller feed=%s interval=%s", p.cfg.FeedID, p.cfg.Interval)
}
