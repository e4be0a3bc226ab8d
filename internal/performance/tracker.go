package performance

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"gmo-trading-bot/internal/gmo"
)

// Record is one closed trade. Records are append-only.
type Record struct {
	ID         string    `json:"id"`
	Side       gmo.Side  `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	PLRatio    float64   `json:"pl_ratio"`
	Reason     string    `json:"reason"`
	ClosedAt   time.Time `json:"closed_at"`
}

// Stats summarizes the realized trade history.
type Stats struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`
	TotalPnL    float64 `json:"total_pnl"`
	AvgPnL      float64 `json:"avg_pnl"`
}

// Tracker keeps the in-memory realized trade history. The decision
// loop appends; the HTTP layer reads concurrently.
type Tracker struct {
	mu      sync.RWMutex
	records []Record
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record appends a closed trade and returns the stored record.
func (t *Tracker) Record(side gmo.Side, entryPrice, exitPrice, plRatio float64, reason string) Record {
	rec := Record{
		ID:         uuid.New().String(),
		Side:       side,
		EntryPrice: entryPrice,
		ExitPrice:  exitPrice,
		PLRatio:    plRatio,
		Reason:     reason,
		ClosedAt:   time.Now(),
	}

	t.mu.Lock()
	t.records = append(t.records, rec)
	t.mu.Unlock()

	return rec
}

// Stats computes the aggregate view over all records.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Stats{TotalTrades: len(t.records)}
	if s.TotalTrades == 0 {
		return s
	}

	for _, r := range t.records {
		s.TotalPnL += r.PLRatio
		if r.PLRatio > 0 {
			s.Wins++
		} else if r.PLRatio < 0 {
			s.Losses++
		}
	}

	s.WinRate = float64(s.Wins) / float64(s.TotalTrades)
	s.AvgPnL = s.TotalPnL / float64(s.TotalTrades)
	return s
}

// Recent returns up to n records, newest first.
func (t *Tracker) Recent(n int) []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if n <= 0 || n > len(t.records) {
		n = len(t.records)
	}

	out := make([]Record, 0, n)
	for i := len(t.records) - 1; i >= len(t.records)-n; i-- {
		out = append(out, t.records[i])
	}
	return out
}
