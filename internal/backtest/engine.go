package backtest

import (
	"fmt"
	"math"
	"time"

	"gmo-trading-bot/internal/gmo"
	"gmo-trading-bot/internal/risk"
	"gmo-trading-bot/internal/strategy"
)

// Exit reasons attached to simulated trades.
const (
	ExitStopLoss   = "stop loss"
	ExitTakeProfit = "take profit"
	ExitReversal   = "reversal"
	ExitWindowEnd  = "window end"
)

// Runner drives one simulation over a candle window. The same
// aggregator and calculator types run live, so a backtest exercises
// the exact decision code the bot trades with.
type Runner struct {
	cfg  Config
	agg  *strategy.Aggregator
	calc *risk.Calculator
}

// NewRunner creates a runner from the simulation config and the
// decision pipeline under test.
func NewRunner(cfg Config, agg *strategy.Aggregator, calc *risk.Calculator) *Runner {
	return &Runner{cfg: cfg, agg: agg, calc: calc}
}

// Run replays the candles oldest-first. Position management mirrors the
// live loop: breached levels close first, tiny moves hold, and a
// reversal close re-enters the opposite side on the same bar.
func (r *Runner) Run(klines []gmo.Kline) (*Result, error) {
	warmup := r.cfg.WarmupBars
	if warmup <= 0 {
		warmup = DefaultWarmupBars
	}
	if len(klines) <= warmup {
		return nil, fmt.Errorf("need more than %d candles, have %d", warmup, len(klines))
	}

	result := &Result{ByRegime: make(map[strategy.Regime]*RegimeStats)}
	equity := r.cfg.InitialCapital
	var open *Trade

	for i := warmup; i < len(klines); i++ {
		price := klines[i].Close
		barTime := time.UnixMilli(klines[i].OpenTime)

		snap, err := strategy.BuildSnapshot(klines[:i+1], price)
		if err != nil {
			continue
		}

		if open != nil {
			reason, exitPrice, reversal := r.assess(open, price, snap)
			if reason != "" {
				equity = r.closeTrade(result, open, exitPrice, barTime, reason, equity)
				open = nil
				if reversal != nil {
					open = r.openTrade(reversal, snap, price, barTime, equity)
				}
			}
		}

		if open == nil {
			decision := r.agg.Evaluate(snap, false)
			if decision.ShouldTrade {
				open = r.openTrade(decision, snap, price, barTime, equity)
			}
		}
	}

	if open != nil {
		last := klines[len(klines)-1]
		equity = r.closeTrade(result, open, last.Close, time.UnixMilli(last.OpenTime), ExitWindowEnd, equity)
	}

	result.finalize(r.cfg.InitialCapital, equity)
	return result, nil
}

// assess decides whether the open trade exits on this bar. A non-empty
// reason means close at the returned price; a non-nil decision means
// the close was a reversal and the opposite side re-enters immediately.
func (r *Runner) assess(open *Trade, price float64, snap *strategy.IndicatorSnapshot) (string, float64, *strategy.TradeDecision) {
	if open.Side == gmo.SideBuy {
		if price <= open.StopLoss {
			return ExitStopLoss, open.StopLoss, nil
		}
		if price >= open.TakeProfit {
			return ExitTakeProfit, open.TakeProfit, nil
		}
	} else {
		if price >= open.StopLoss {
			return ExitStopLoss, open.StopLoss, nil
		}
		if price <= open.TakeProfit {
			return ExitTakeProfit, open.TakeProfit, nil
		}
	}

	// Inside the minimum move band the position holds no matter what
	// the aggregator says.
	move := (price - open.EntryPrice) / open.EntryPrice
	if math.Abs(move) < r.cfg.MinMoveFraction {
		return "", 0, nil
	}

	decision := r.agg.Evaluate(snap, true)
	if decision.ShouldTrade && decision.Direction != open.Side {
		return ExitReversal, price, decision
	}

	return "", 0, nil
}

func (r *Runner) openTrade(decision *strategy.TradeDecision, snap *strategy.IndicatorSnapshot, price float64, barTime time.Time, equity float64) *Trade {
	size := equity * r.cfg.PositionFraction / price
	levels := r.calc.Compute(decision.Direction, price, snap.ATR, decision.Regime)

	return &Trade{
		Side:       decision.Direction,
		EntryTime:  barTime,
		EntryPrice: price,
		Size:       size,
		StopLoss:   levels.StopLoss,
		TakeProfit: levels.TakeProfit,
		Regime:     decision.Regime,
	}
}

func (r *Runner) closeTrade(result *Result, open *Trade, exitPrice float64, barTime time.Time, reason string, equity float64) float64 {
	open.ExitTime = barTime
	open.ExitPrice = exitPrice
	open.ExitReason = reason

	diff := exitPrice - open.EntryPrice
	if open.Side == gmo.SideSell {
		diff = open.EntryPrice - exitPrice
	}

	gross := diff * open.Size
	commission := (open.EntryPrice + exitPrice) * open.Size * r.cfg.CommissionRate
	open.ProfitLoss = gross - commission
	open.PLPercent = diff / open.EntryPrice * 100

	equity += open.ProfitLoss
	result.recordTrade(*open)
	result.EquityCurve = append(result.EquityCurve, EquityPoint{Time: barTime, Equity: equity})

	return equity
}
