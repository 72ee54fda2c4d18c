package updater

import (
	"fmt"
	"time"

	"github.com/plannerstack/graphupdater/internal/graph"
)

// Status projection: read-only, serializable views over the manager and
// the graph's update history. Unknown identifiers degrade to empty
// results, never errors.

// Summary is the aggregate view served at the top of the status surface.
type Summary struct {
	RouterID string       `json:"routerId"`
	Updaters []WorkerInfo `json:"updaters"`
	Totals   graph.Totals `json:"totals"`
	Ratio    float64      `json:"ratio"`
	Last     graph.Latest `json:"last"`
	Drained  bool         `json:"drained"`
	Stopped  bool         `json:"stopped"`
}

// RatioView pairs lifetime counters with their applied:received ratio.
type RatioView struct {
	Received uint64  `json:"received"`
	Applied  uint64  `json:"applied"`
	Ratio    float64 `json:"ratio"`
}

func (m *Manager) Summary() Summary {
	h := m.graph.History()
	return Summary{
		RouterID: m.graph.RouterID(),
		Updaters: m.sup.List(),
		Totals:   h.CurrentTotals(),
		Ratio:    h.Ratio(),
		Last:     h.LastAppliedReceived(),
		Drained:  m.queue.Drained(),
		Stopped:  m.stopped.Load(),
	}
}

// Updaters enumerates registered updaters in handle order.
func (m *Manager) Updaters() []WorkerInfo {
	return m.sup.List()
}

// Updater returns the view for one handle; false for unknown handles.
func (m *Manager) Updater(id int) (WorkerInfo, bool) {
	return m.sup.Info(id)
}

// Descriptors maps each handle to its human-readable descriptor.
func (m *Manager) Descriptors() map[int]string {
	out := make(map[int]string)
	for _, w := range m.sup.List() {
		out[w.ID] = w.Description
	}
	return out
}

// Types maps each handle to its concrete updater type.
func (m *Manager) Types() map[int]string {
	out := make(map[int]string)
	for _, w := range m.sup.List() {
		out[w.ID] = w.Type
	}
	return out
}

// TypeOf returns the concrete type for one handle.
func (m *Manager) TypeOf(id int) (string, bool) {
	w, ok := m.sup.Info(id)
	if !ok {
		return "", false
	}
	return w.Type, true
}

// Received counts retained received updates per trip id.
func (m *Manager) Received() map[string]int {
	return m.graph.History().ReceivedByTrip()
}

// Applied counts retained applied updates per trip id.
func (m *Manager) Applied() map[string]int {
	return m.graph.History().AppliedByTrip()
}

// UpdateTypes counts retained updates per update type.
func (m *Manager) UpdateTypes() map[graph.UpdateType]int {
	return m.graph.History().CountsByType()
}

// Errors groups retained update errors by message.
func (m *Manager) Errors() map[string]int {
	return m.graph.History().Errors()
}

// LastErrors returns the errors of the most recent update block.
func (m *Manager) LastErrors() []graph.ErrorRecord {
	return m.graph.History().LastErrors()
}

// LastAppliedReceived returns timestamps and trip ids of the most
// recent received and applied updates.
func (m *Manager) LastAppliedReceived() graph.Latest {
	return m.graph.History().LastAppliedReceived()
}

// ReceivedApplied returns lifetime counters with their ratio.
func (m *Manager) ReceivedApplied() RatioView {
	h := m.graph.History()
	totals := h.CurrentTotals()
	return RatioView{
		Received: totals.Received,
		Applied:  totals.Applied,
		Ratio:    h.Ratio(),
	}
}

// AppliedPerFeed counts retained applied updates for one feed.
func (m *Manager) AppliedPerFeed(feedID string) int {
	return m.graph.History().AppliedPerFeed(feedID)
}

// AppliedPerFeedPerTrip counts retained applied updates for one
// feed/trip pair, grouped by type.
func (m *Manager) AppliedPerFeedPerTrip(feedID, tripID string) map[graph.UpdateType]int {
	return m.graph.History().AppliedTypesPerFeedPerTrip(feedID, tripID)
}

// AppliedLastMinutes returns applied records from the last n minutes,
// clamped to the history retention window.
func (m *Manager) AppliedLastMinutes(minutes int) []graph.Record {
	return m.graph.History().AppliedWithin(time.Duration(minutes) * time.Minute)
}

// Agencies returns agency metadata for a feed; empty for unknown feeds.
func (m *Manager) Agencies(feedID string) []graph.Agency {
	return m.graph.Agencies(feedID)
}

// String implements a compact operator-facing description.
func (m *Manager) String() string {
	return fmt.Sprintf("updater manager router=%s updaters=%d", m.graph.RouterID(), m.Size())
}
