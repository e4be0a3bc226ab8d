package performance

import (
	"math"
	"testing"

	"gmo-trading-bot/internal/gmo"
)

// TestTrackerStats tests win rate and P/L aggregation
func TestTrackerStats(t *testing.T) {
	tracker := NewTracker()

	tracker.Record(gmo.SideBuy, 30.0, 30.6, 0.02, "take profit")
	tracker.Record(gmo.SideSell, 30.6, 30.9, -0.01, "stop loss")
	tracker.Record(gmo.SideBuy, 30.9, 31.8, 0.03, "reversal signal")

	s := tracker.Stats()
	if s.TotalTrades != 3 {
		t.Errorf("Expected 3 trades, got %d", s.TotalTrades)
	}
	if s.Wins != 2 || s.Losses != 1 {
		t.Errorf("Expected 2 wins / 1 loss, got %d / %d", s.Wins, s.Losses)
	}
	if math.Abs(s.WinRate-2.0/3.0) > 1e-9 {
		t.Errorf("Expected win rate 0.667, got %f", s.WinRate)
	}
	if math.Abs(s.TotalPnL-0.04) > 1e-9 {
		t.Errorf("Expected total P/L 0.04, got %f", s.TotalPnL)
	}
	if math.Abs(s.AvgPnL-0.04/3.0) > 1e-9 {
		t.Errorf("Expected avg P/L 0.0133, got %f", s.AvgPnL)
	}
}

// TestTrackerEmptyStats tests the zero-trade edge without division by zero
func TestTrackerEmptyStats(t *testing.T) {
	s := NewTracker().Stats()

	if s.TotalTrades != 0 || s.WinRate != 0 || s.AvgPnL != 0 {
		t.Errorf("Empty tracker should report zeros, got %+v", s)
	}
}

// TestTrackerRecent tests newest-first ordering and bounds
func TestTrackerRecent(t *testing.T) {
	tracker := NewTracker()
	tracker.Record(gmo.SideBuy, 30.0, 30.3, 0.01, "take profit")
	tracker.Record(gmo.SideSell, 30.3, 30.0, 0.01, "take profit")
	tracker.Record(gmo.SideBuy, 30.0, 29.4, -0.02, "stop loss")

	recent := tracker.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recent))
	}
	if recent[0].PLRatio != -0.02 {
		t.Error("Newest record should come first")
	}

	all := tracker.Recent(0)
	if len(all) != 3 {
		t.Errorf("Non-positive n should return everything, got %d", len(all))
	}
	if len(tracker.Recent(10)) != 3 {
		t.Error("Oversized n should clamp to the record count")
	}
}

// TestTrackerRecordsAreAppendOnly tests that records accumulate and keep their IDs
func TestTrackerRecordsAreAppendOnly(t *testing.T) {
	tracker := NewTracker()

	first := tracker.Record(gmo.SideBuy, 30.0, 30.3, 0.01, "take profit")
	second := tracker.Record(gmo.SideBuy, 30.3, 30.6, 0.01, "take profit")

	if first.ID == "" || second.ID == "" || first.ID == second.ID {
		t.Error("Each record should carry its own identifier")
	}
	if tracker.Stats().TotalTrades != 2 {
		t.Error("Records should accumulate")
	}
}
