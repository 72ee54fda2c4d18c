package feed

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/plannerstack/graphupdater/internal/graph"
)

// StaticSource is a deterministic source used for local verification:
// it walks a fixed set of trips along a line, one step per fetch.
type StaticSource struct {
	FeedID string
	Trips  []string
	step   atomic.Int64
}

func (s *StaticSource) Fetch(ctx context.Context) ([]graph.VehiclePosition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step := s.step.Add(1)
	now := time.Now()
	out := make([]graph.VehiclePosition, 0, len(s.Trips))
	for i, trip := range s.Trips {
		out = append(out, graph.VehiclePosition{
			FeedID:    s.FeedID,
			TripID:    trip,
			Latitude:  52.0 + float64(i)*0.01,
			Longitude: 4.0 + float64(step)*0.001,
			Timestamp: now,
		})
	}
	return out, nil
}
