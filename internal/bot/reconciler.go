package bot

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"gmo-trading-bot/internal/gmo"
	"gmo-trading-bot/internal/risk"
	"gmo-trading-bot/internal/strategy"
)

// Verdict is the outcome for one open position in a cycle.
type Verdict string

const (
	VerdictHold  Verdict = "HOLD"
	VerdictClose Verdict = "CLOSE"
)

// CloseReason names why a position should close.
type CloseReason string

const (
	CloseStopLoss   CloseReason = "stop loss"
	CloseTakeProfit CloseReason = "take profit"
	CloseReversal   CloseReason = "reversal signal"
)

// PositionAssessment is the per-position result of reconciliation.
type PositionAssessment struct {
	Position    gmo.Position
	Verdict     Verdict
	CloseReason CloseReason
	Reason      string
	PLRatio     float64
	Decision    *strategy.TradeDecision
}

// LevelReader reads persisted protective levels for a position.
type LevelReader interface {
	LoadLevels(positionID int64) (risk.Levels, bool)
}

// ReconcilerConfig holds the hold/close thresholds.
type ReconcilerConfig struct {
	MinMoveFraction        float64
	DefaultStopLossRatio   float64
	DefaultTakeProfitRatio float64
}

// Reconciler decides HOLD or CLOSE for every open position. Each
// position is assessed independently; one close never short-circuits
// the rest.
type Reconciler struct {
	cfg    ReconcilerConfig
	agg    *strategy.Aggregator
	levels LevelReader
	log    zerolog.Logger
}

// NewReconciler creates a reconciler. levels may be nil, in which case
// protective prices fall back to the configured default ratios.
func NewReconciler(cfg ReconcilerConfig, agg *strategy.Aggregator, levels LevelReader, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		cfg:    cfg,
		agg:    agg,
		levels: levels,
		log:    log.With().Str("component", "reconciler").Logger(),
	}
}

// Assess evaluates all open positions against the snapshot. The bypass
// evaluation is pure in the snapshot, so it runs at most once and is
// shared across positions.
func (r *Reconciler) Assess(snap *strategy.IndicatorSnapshot, positions []gmo.Position) []PositionAssessment {
	var bypass *strategy.TradeDecision
	bypassDecision := func() *strategy.TradeDecision {
		if bypass == nil {
			bypass = r.agg.Evaluate(snap, true)
		}
		return bypass
	}

	out := make([]PositionAssessment, 0, len(positions))
	for _, pos := range positions {
		a := r.assessOne(snap, pos, bypassDecision)
		r.log.Debug().
			Int64("position_id", pos.ID).
			Str("side", string(pos.Side)).
			Str("verdict", string(a.Verdict)).
			Str("reason", a.Reason).
			Float64("pl_ratio", a.PLRatio).
			Msg("assessed position")
		out = append(out, a)
	}
	return out
}

func (r *Reconciler) assessOne(snap *strategy.IndicatorSnapshot, pos gmo.Position, bypassDecision func() *strategy.TradeDecision) PositionAssessment {
	a := PositionAssessment{Position: pos, Verdict: VerdictHold}
	price := snap.Price

	if pos.Price <= 0 {
		a.Reason = "entry price missing"
		return a
	}
	a.PLRatio = UnrealizedRatio(pos, price)

	// 1. Hard protective breach wins over everything.
	stop, target := r.levelsFor(pos)
	if pos.Side == gmo.SideBuy {
		if price <= stop {
			a.Verdict = VerdictClose
			a.CloseReason = CloseStopLoss
			a.Reason = fmt.Sprintf("stop loss breached: price %.4f vs stop %.4f", price, stop)
			return a
		}
		if price >= target {
			a.Verdict = VerdictClose
			a.CloseReason = CloseTakeProfit
			a.Reason = fmt.Sprintf("take profit reached: price %.4f vs target %.4f", price, target)
			return a
		}
	} else {
		if price >= stop {
			a.Verdict = VerdictClose
			a.CloseReason = CloseStopLoss
			a.Reason = fmt.Sprintf("stop loss breached: price %.4f vs stop %.4f", price, stop)
			return a
		}
		if price <= target {
			a.Verdict = VerdictClose
			a.CloseReason = CloseTakeProfit
			a.Reason = fmt.Sprintf("take profit reached: price %.4f vs target %.4f", price, target)
			return a
		}
	}

	// 2. Tiny moves hold no matter what the signal says.
	move := math.Abs(price-pos.Price) / pos.Price
	if move < r.cfg.MinMoveFraction {
		a.Reason = fmt.Sprintf("move too small: %.4f%% < %.4f%%", move*100, r.cfg.MinMoveFraction*100)
		return a
	}

	// 3. Opposite signal at reversal confidence closes the position.
	d := bypassDecision()
	a.Decision = d
	if d.ShouldTrade && d.Direction == pos.Side.Opposite() {
		a.Verdict = VerdictClose
		a.CloseReason = CloseReversal
		a.Reason = fmt.Sprintf("reversal signal: %s", d.Reason)
		return a
	}

	// 4. Nothing to do.
	a.Reason = "no close condition"
	return a
}

// levelsFor returns the protective prices for a position, preferring
// persisted levels and falling back to the default ratios.
func (r *Reconciler) levelsFor(pos gmo.Position) (stop, target float64) {
	if r.levels != nil {
		if lv, ok := r.levels.LoadLevels(pos.ID); ok {
			return lv.StopLoss, lv.TakeProfit
		}
	}

	slPct := 1 - r.cfg.DefaultStopLossRatio
	tpPct := r.cfg.DefaultTakeProfitRatio - 1
	if pos.Side == gmo.SideBuy {
		return pos.Price * (1 - slPct), pos.Price * (1 + tpPct)
	}
	return pos.Price * (1 + slPct), pos.Price * (1 - tpPct)
}

// UnrealizedRatio is the signed P/L ratio of a position at price.
func UnrealizedRatio(pos gmo.Position, price float64) float64 {
	if pos.Price <= 0 {
		return 0
	}
	if pos.Side == gmo.SideBuy {
		return (price - pos.Price) / pos.Price
	}
	return (pos.Price - price) / pos.Price
}
