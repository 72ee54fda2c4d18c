package graph

import (
	"errors"
	"testing"
	"time"

	"github.com/plannerstack/graphupdater/internal/testutil/testlog"
)

func TestHistoryCountsAndRatio(t *testing.T) {
	testlog.Start(t)

	h := NewUpdateHistory()
	h.RecordReceived("feed.a", "trip.1", TypeVehiclePosition)
	h.RecordReceived("feed.a", "trip.1", TypeVehiclePosition)
	h.RecordReceived("feed.a", "trip.2", TypeTripUpdate)
	h.RecordApplied("feed.a", "trip.1", TypeVehiclePosition)
	h.RecordError("feed.a", "trip.2", TypeTripUpdate, errors.New("stale timestamp"))

	byTrip := h.ReceivedByTrip()
	if byTrip["trip.1"] != 2 || byTrip["trip.2"] != 1 {
		t.Fatalf("unexpected received counts: %+v", byTrip)
	}
	if got := h.AppliedByTrip()["trip.1"]; got != 1 {
		t.Fatalf("unexpected applied count: %d", got)
	}
	if got := h.CountsByType()[TypeVehiclePosition]; got != 2 {
		t.Fatalf("unexpected type count: %d", got)
	}
	if got := h.Errors()["stale timestamp"]; got != 1 {
		t.Fatalf("unexpected error grouping: %+v", h.Errors())
	}

	totals := h.CurrentTotals()
	if totals.Received != 3 || totals.Applied != 1 || totals.Errored != 1 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
	if ratio := h.Ratio(); ratio < 0.333 || ratio > 0.334 {
		t.Fatalf("unexpected ratio: %f", ratio)
	}
}

func TestHistoryRatioZeroWhenEmpty(t *testing.T) {
	testlog.Start(t)

	h := NewUpdateHistory()
	if got := h.Ratio(); got != 0 {
		t.Fatalf("expected zero ratio, got %f", got)
	}
	latest := h.LastAppliedReceived()
	if latest.Received != nil || latest.Applied != nil {
		t.Fatalf("expected empty latest view: %+v", latest)
	}
}

func TestHistoryLastErrorsResetPerBlock(t *testing.T) {
	testlog.Start(t)

	h := NewUpdateHistory()
	h.RecordError("feed.a", "trip.1", TypeTripUpdate, errors.New("first batch"))
	h.MarkBlock()
	h.RecordError("feed.a", "trip.2", TypeTripUpdate, errors.New("second batch"))

	last := h.LastErrors()
	if len(last) != 1 {
		t.Fatalf("expected one block error, got %d", len(last))
	}
	if last[0].Message != "second batch" {
		t.Fatalf("unexpected block error: %q", last[0].Message)
	}
	if len(h.Errors()) != 2 {
		t.Fatalf("expected both errors retained overall: %+v", h.Errors())
	}
}

func TestHistoryRetentionPrunesWindowedViews(t *testing.T) {
	testlog.Start(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	h := NewUpdateHistory()
	h.now = func() time.Time { return current }

	h.RecordApplied("feed.a", "trip.1", TypeVehiclePosition)
	current = base.Add(RetentionWindow + time.Minute)
	h.RecordApplied("feed.a", "trip.2", TypeVehiclePosition)

	if got := h.AppliedPerFeed("feed.a"); got != 1 {
		t.Fatalf("expected pruned per-feed count, got %d", got)
	}
	within := h.AppliedWithin(10 * time.Minute)
	if len(within) != 1 || within[0].TripID != "trip.2" {
		t.Fatalf("unexpected windowed records: %+v", within)
	}
	if totals := h.CurrentTotals(); totals.Applied != 2 {
		t.Fatalf("totals must survive pruning: %+v", totals)
	}
}

func TestHistoryUnknownIdentifiersDegrade(t *testing.T) {
	testlog.Start(t)

	h := NewUpdateHistory()
	if got := h.AppliedPerFeed("feed.unknown"); got != 0 {
		t.Fatalf("expected zero for unknown feed, got %d", got)
	}
	if got := h.AppliedTypesPerFeedPerTrip("feed.unknown", "trip.unknown"); len(got) != 0 {
		t.Fatalf("expected empty map for unknown pair: %+v", got)
	}
}
