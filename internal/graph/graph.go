// Package graph holds the shared routing graph boundary: agency metadata,
// realtime vehicle state, and the update history attached to the graph.
//
// The graph is mutated only from the writer queue's single goroutine; the
// internal lock exists so readers can take consistent views while a write
// is in progress, not to coordinate writers.
package graph

import (
	"sync"
	"time"
)

const DefaultRouterID = "(default)"

// Agency is feed-level operator metadata, queryable by feed id.
type Agency struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// VehiclePosition is the realtime state of one vehicle on one trip.
type VehiclePosition struct {
	FeedID       string    `json:"feedId"`
	TripID       string    `json:"tripId"`
	Latitude     float64   `json:"lat"`
	Longitude    float64   `json:"lon"`
	DelaySeconds int       `json:"delaySeconds"`
	Timestamp    time.Time `json:"timestamp"`
}

// Graph is the shared in-memory graph value, alive for the whole process.
type Graph struct {
	routerID string
	history  *UpdateHistory

	mu        sync.RWMutex
	agencies  map[string][]Agency
	positions map[string]VehiclePosition
}

func New(routerID string) *Graph {
	if routerID == "" {
		routerID = DefaultRouterID
	}
	return &Graph{
		routerID:  routerID,
		history:   NewUpdateHistory(),
		agencies:  make(map[string][]Agency),
		positions: make(map[string]VehiclePosition),
	}
}

func (g *Graph) RouterID() string {
	return g.routerID
}

// History returns the update-history object attached to this graph.
func (g *Graph) History() *UpdateHistory {
	return g.history
}

// SetAgencies replaces the agency metadata for a feed.
func (g *Graph) SetAgencies(feedID string, agencies []Agency) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.agencies[feedID] = append([]Agency(nil), agencies...)
}

// Agencies returns agency metadata for a feed; empty for unknown feeds.
func (g *Graph) Agencies(feedID string) []Agency {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Agency(nil), g.agencies[feedID]...)
}

// SetVehiclePosition applies one realtime position to the graph.
func (g *Graph) SetVehiclePosition(p VehiclePosition) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.positions[positionKey(p.FeedID, p.TripID)] = p
}

// VehiclePosition reads the current position for a feed/trip pair.
func (g *Graph) VehiclePosition(feedID, tripID string) (VehiclePosition, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.positions[positionKey(feedID, tripID)]
	return p, ok
}

// VehiclePositions returns a snapshot of all known positions.
func (g *Graph) VehiclePositions() []VehiclePosition {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]VehiclePosition, 0, len(g.positions))
	for _, p := range g.positions {
		out = append(out, p)
	}
	return out
}

func positionKey(feedID, tripID string) string {
	return feedID + "\x00" + tripID
}
