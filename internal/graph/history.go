package graph

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RetentionWindow bounds how far back windowed history queries reach.
// Older records are pruned; aggregate totals are kept forever.
const RetentionWindow = 60 * time.Minute

// UpdateType classifies realtime updates by their payload kind.
type UpdateType string

const (
	TypeVehiclePosition UpdateType = "vehicle_position"
	TypeTripUpdate      UpdateType = "trip_update"
	TypeAlert           UpdateType = "alert"
)

// Record describes one received or applied update.
type Record struct {
	ID     string     `json:"id"`
	FeedID string     `json:"feedId"`
	TripID string     `json:"tripId"`
	Type   UpdateType `json:"type"`
	At     time.Time  `json:"at"`
}

// ErrorRecord describes one update that could not be applied.
type ErrorRecord struct {
	Record
	Message string `json:"message"`
}

// Totals are monotonic counters over the full process lifetime.
type Totals struct {
	Received uint64 `json:"received"`
	Applied  uint64 `json:"applied"`
	Errored  uint64 `json:"errored"`
}

// Latest pairs the most recent received and applied records.
type Latest struct {
	Received *Record `json:"received,omitempty"`
	Applied  *Record `json:"applied,omitempty"`
}

// UpdateHistory records receipt, application, and failure of realtime
// updates against the graph. Recording happens on the writer goroutine
// and on feed goroutines; reads come from the status surface, so every
// access is guarded.
type UpdateHistory struct {
	mu sync.RWMutex

	received []Record
	applied  []Record
	errors   []ErrorRecord

	// blockErrors collects errors since the last MarkBlock, mirroring
	// the per-fetch-batch error view feeds report on.
	blockErrors []ErrorRecord

	totals       Totals
	lastReceived *Record
	lastApplied  *Record

	now func() time.Time
}

func NewUpdateHistory() *UpdateHistory {
	return &UpdateHistory{now: time.Now}
}

// RecordReceived notes one update arriving from a feed.
func (h *UpdateHistory) RecordReceived(feedID, tripID string, typ UpdateType) Record {
	rec := h.newRecord(feedID, tripID, typ)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prune(rec.At)
	h.received = append(h.received, rec)
	h.totals.Received++
	h.lastReceived = &rec
	return rec
}

// RecordApplied notes one update successfully applied to the graph.
func (h *UpdateHistory) RecordApplied(feedID, tripID string, typ UpdateType) Record {
	rec := h.newRecord(feedID, tripID, typ)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prune(rec.At)
	h.applied = append(h.applied, rec)
	h.totals.Applied++
	h.lastApplied = &rec
	return rec
}

// RecordError notes one update that failed to apply.
func (h *UpdateHistory) RecordError(feedID, tripID string, typ UpdateType, err error) ErrorRecord {
	rec := ErrorRecord{Record: h.newRecord(feedID, tripID, typ)}
	if err != nil {
		rec.Message = err.Error()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prune(rec.At)
	h.errors = append(h.errors, rec)
	h.blockErrors = append(h.blockErrors, rec)
	h.totals.Errored++
	return rec
}

// MarkBlock starts a new error block; feeds call it once per fetch batch
// so LastErrors reports only the most recent batch.
func (h *UpdateHistory) MarkBlock() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blockErrors = nil
}

// ReceivedByTrip counts retained received updates per trip id.
func (h *UpdateHistory) ReceivedByTrip() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return countByTrip(h.received)
}

// AppliedByTrip counts retained applied updates per trip id.
func (h *UpdateHistory) AppliedByTrip() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return countByTrip(h.applied)
}

// CountsByType counts retained received updates per update type.
func (h *UpdateHistory) CountsByType() map[UpdateType]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[UpdateType]int)
	for _, r := range h.received {
		out[r.Type]++
	}
	return out
}

// Errors groups retained errors by message with occurrence counts.
func (h *UpdateHistory) Errors() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int)
	for _, e := range h.errors {
		out[e.Message]++
	}
	return out
}

// LastErrors returns the errors recorded since the last MarkBlock.
func (h *UpdateHistory) LastErrors() []ErrorRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]ErrorRecord(nil), h.blockErrors...)
}

// LastAppliedReceived returns the most recent received and applied
// records; nil fields mean no such update has happened yet.
func (h *UpdateHistory) LastAppliedReceived() Latest {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := Latest{}
	if h.lastReceived != nil {
		rec := *h.lastReceived
		out.Received = &rec
	}
	if h.lastApplied != nil {
		rec := *h.lastApplied
		out.Applied = &rec
	}
	return out
}

// Ratio is applied-to-received over the whole process lifetime; zero
// when nothing has been received.
func (h *UpdateHistory) Ratio() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.totals.Received == 0 {
		return 0
	}
	return float64(h.totals.Applied) / float64(h.totals.Received)
}

// CurrentTotals returns lifetime counters.
func (h *UpdateHistory) CurrentTotals() Totals {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totals
}

// AppliedPerFeed counts retained applied updates for one feed.
func (h *UpdateHistory) AppliedPerFeed(feedID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, r := range h.applied {
		if r.FeedID == feedID {
			n++
		}
	}
	return n
}

// AppliedTypesPerFeedPerTrip counts retained applied updates for one
// feed/trip pair, grouped by type. Empty for unknown identifiers.
func (h *UpdateHistory) AppliedTypesPerFeedPerTrip(feedID, tripID string) map[UpdateType]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[UpdateType]int)
	for _, r := range h.applied {
		if r.FeedID == feedID && r.TripID == tripID {
			out[r.Type]++
		}
	}
	return out
}

// AppliedWithin returns applied records no older than d, clamped to the
// retention window.
func (h *UpdateHistory) AppliedWithin(d time.Duration) []Record {
	if d <= 0 || d > RetentionWindow {
		d = RetentionWindow
	}
	cutoff := h.now().Add(-d)
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Record, 0)
	for _, r := range h.applied {
		if !r.At.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

func (h *UpdateHistory) newRecord(feedID, tripID string, typ UpdateType) Record {
	return Record{
		ID:     uuid.NewString(),
		FeedID: feedID,
		TripID: tripID,
		Type:   typ,
		At:     h.now(),
	}
}

// prune drops retained records older than the retention window. Caller
// holds the write lock.
func (h *UpdateHistory) prune(now time.Time) {
	cutoff := now.Add(-RetentionWindow)
	h.received = pruneRecords(h.received, cutoff)
	h.applied = pruneRecords(h.applied, cutoff)

	kept := h.errors[:0]
	for _, e := range h.errors {
		if !e.At.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	h.errors = kept
}

func pruneRecords(recs []Record, cutoff time.Time) []Record {
	kept := recs[:0]
	for _, r := range recs {
		if !r.At.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	return kept
}

func countByTrip(recs []Record) map[string]int {
	out := make(map[string]int)
	for _, r := range recs {
		out[r.TripID]++
	}
	return out
}
