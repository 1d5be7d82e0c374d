package market

import (
	"testing"
	"time"
)

func tick(base time.Time, offset time.Duration, last float64) Raw {
	return Raw{
		Time: base.Add(offset),
		Last: last,
		High: 620,
		Low:  580,
	}
}

func TestUpdateComputesThresholdAndSpan(t *testing.T) {
	tracker := NewTracker(5 * time.Minute)
	snapshot, err := tracker.Update(Raw{Last: 600, High: 620, Low: 580}, 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.Middle != 600 {
		t.Fatalf("expected middle 600, got %v", snapshot.Middle)
	}
	// threshold = 0.1*(620-600)+600
	if snapshot.Threshold != 602 {
		t.Fatalf("expected threshold 602, got %v", snapshot.Threshold)
	}
	want := (620.0 - 580.0) / 600.0
	if snapshot.ShiftSpan != want {
		t.Fatalf("expected shift span %v, got %v", want, snapshot.ShiftSpan)
	}
}

func TestUpdateKeepsPriorSnapshotOnMalformedTicker(t *testing.T) {
	tracker := NewTracker(5 * time.Minute)
	good, err := tracker.Update(Raw{Last: 600, High: 620, Low: 580}, 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []Raw{
		{Last: 0, High: 620, Low: 580},
		{Last: 600, High: 0, Low: 580},
		{Last: 600, High: 580, Low: 620},
	}
	for _, raw := range cases {
		snapshot, err := tracker.Update(raw, 0.1)
		if err == nil {
			t.Fatalf("expected error for raw %+v", raw)
		}
		if snapshot != good {
			t.Fatalf("prior snapshot not retained: %+v", snapshot)
		}
	}
	if tracker.Current() != good {
		t.Fatalf("tracker current changed after bad payloads")
	}
}

func TestMomentumHealthyAfterWindowFills(t *testing.T) {
	span := 4 * time.Minute
	tracker := NewTracker(span)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	snapshot, _ := tracker.Update(tick(base, 0, 600), 0.1)
	if snapshot.MomentumHealthy {
		t.Fatalf("momentum healthy with no deltas")
	}

	snapshot, _ = tracker.Update(tick(base, time.Minute, 602), 0.1)
	if snapshot.MomentumHealthy {
		t.Fatalf("momentum healthy too early")
	}

	tracker.Update(tick(base, 2*time.Minute, 604), 0.1)
	snapshot, _ = tracker.Update(tick(base, 3*time.Minute, 606), 0.1)
	if !snapshot.MomentumHealthy {
		t.Fatalf("expected healthy momentum record")
	}
	if snapshot.MomentumAverage != 2 {
		t.Fatalf("expected momentum average 2, got %v", snapshot.MomentumAverage)
	}
	if snapshot.MomentumIndicator != 2 {
		t.Fatalf("expected indicator 2, got %v", snapshot.MomentumIndicator)
	}
}

func TestMomentumWindowEviction(t *testing.T) {
	span := 2 * time.Minute
	tracker := NewTracker(span)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tracker.Update(tick(base, 0, 600), 0.1)
	tracker.Update(tick(base, time.Minute, 610), 0.1)
	// Jump far ahead; the old +10 delta must fall out of the window.
	snapshot, _ := tracker.Update(tick(base, 10*time.Minute, 608), 0.1)
	if snapshot.MomentumAverage != -2 {
		t.Fatalf("expected only the fresh delta, average -2, got %v", snapshot.MomentumAverage)
	}
}

func TestSnapshotReady(t *testing.T) {
	var zero Snapshot
	if zero.Ready() {
		t.Fatalf("zero snapshot must not be ready")
	}
	if !(Snapshot{Last: 600}).Ready() {
		t.Fatalf("expected snapshot with real price to be ready")
	}
}
