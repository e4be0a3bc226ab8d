package bot

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// LastTradeMemory records the most recent executed entry. It advances
// exactly once per executed entry; close-only cycles never touch it.
type LastTradeMemory struct {
	LastTradeTime  time.Time `json:"last_trade_time"`
	LastTradePrice float64   `json:"last_trade_price"`
}

// MemoryStore persists the gatekeeper memory across restarts.
type MemoryStore interface {
	SaveLastTrade(mem LastTradeMemory) error
	LoadLastTrade() (LastTradeMemory, bool, error)
}

// GatekeeperConfig holds the entry filter settings.
type GatekeeperConfig struct {
	MinInterval     time.Duration
	MinMoveFraction float64
}

// Gatekeeper applies the timing and minimum-move filters to candidate
// entries. An explicit bypass skips both filters.
type Gatekeeper struct {
	cfg   GatekeeperConfig
	mem   LastTradeMemory
	store MemoryStore
	log   zerolog.Logger
}

// NewGatekeeper creates a gatekeeper, restoring persisted memory from
// the store when one is supplied.
func NewGatekeeper(cfg GatekeeperConfig, store MemoryStore, log zerolog.Logger) *Gatekeeper {
	g := &Gatekeeper{
		cfg:   cfg,
		store: store,
		log:   log.With().Str("component", "gatekeeper").Logger(),
	}

	if store != nil {
		mem, ok, err := store.LoadLastTrade()
		if err != nil {
			g.log.Warn().Err(err).Msg("could not restore last trade memory")
		} else if ok {
			g.mem = mem
			g.log.Info().Time("last_trade_time", mem.LastTradeTime).
				Float64("last_trade_price", mem.LastTradePrice).
				Msg("restored last trade memory")
		}
	}

	return g
}

// Allow checks whether a new entry at price may proceed. With
// skipPriceFilter set neither filter is evaluated.
func (g *Gatekeeper) Allow(price float64, now time.Time, skipPriceFilter bool) (bool, string) {
	if skipPriceFilter {
		return true, ""
	}
	if g.mem.LastTradeTime.IsZero() {
		return true, ""
	}

	if elapsed := now.Sub(g.mem.LastTradeTime); elapsed < g.cfg.MinInterval {
		return false, fmt.Sprintf("trade interval too short: %v since last entry, need %v",
			elapsed.Round(time.Second), g.cfg.MinInterval)
	}

	if g.mem.LastTradePrice > 0 {
		move := math.Abs(price-g.mem.LastTradePrice) / g.mem.LastTradePrice
		if move < g.cfg.MinMoveFraction {
			return false, fmt.Sprintf("price move too small: %.4f%% since last entry, need %.4f%%",
				move*100, g.cfg.MinMoveFraction*100)
		}
	}

	return true, ""
}

// RecordEntry notes an executed entry. Called only after the exchange
// confirmed the open.
func (g *Gatekeeper) RecordEntry(price float64, now time.Time) {
	g.mem = LastTradeMemory{LastTradeTime: now, LastTradePrice: price}

	if g.store != nil {
		if err := g.store.SaveLastTrade(g.mem); err != nil {
			g.log.Warn().Err(err).Msg("could not persist last trade memory")
		}
	}
}

// Memory returns the current last-trade memory.
func (g *Gatekeeper) Memory() LastTradeMemory {
	return g.mem
}
