// Package backtest replays historical candles through the decision
// pipeline and reports how the configured strategy would have traded.
// Fills are idealized: breached levels fill at the level price and
// reversal closes fill at the bar close.
package backtest

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"gmo-trading-bot/internal/gmo"
	"gmo-trading-bot/internal/strategy"
)

// DefaultWarmupBars is how many candles are consumed before the first
// evaluation. Matches the slowest indicator window.
const DefaultWarmupBars = 50

// Config holds the simulation parameters.
type Config struct {
	InitialCapital   float64
	CommissionRate   float64 // per fill, as a fraction of notional
	PositionFraction float64 // equity fraction committed per trade
	MinMoveFraction  float64 // reversal closes require at least this move
	WarmupBars       int
}

// DefaultConfig returns the simulation defaults.
func DefaultConfig() Config {
	return Config{
		InitialCapital:   100000,
		CommissionRate:   0.0005,
		PositionFraction: 0.10,
		MinMoveFraction:  0.005,
		WarmupBars:       DefaultWarmupBars,
	}
}

// Trade is one simulated round trip.
type Trade struct {
	Side       gmo.Side        `json:"side"`
	EntryTime  time.Time       `json:"entry_time"`
	ExitTime   time.Time       `json:"exit_time"`
	EntryPrice float64         `json:"entry_price"`
	ExitPrice  float64         `json:"exit_price"`
	Size       float64         `json:"size"`
	StopLoss   float64         `json:"stop_loss"`
	TakeProfit float64         `json:"take_profit"`
	ProfitLoss float64         `json:"profit_loss"`
	PLPercent  float64         `json:"pl_percent"`
	Regime     strategy.Regime `json:"regime"`
	ExitReason string          `json:"exit_reason"`
}

// EquityPoint is the account balance after a closed trade.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

// RegimeStats aggregates trade outcomes per market regime at entry.
type RegimeStats struct {
	Regime    strategy.Regime `json:"regime"`
	Trades    int             `json:"trades"`
	Wins      int             `json:"wins"`
	WinRate   float64         `json:"win_rate"`
	NetProfit float64         `json:"net_profit"`
}

// Result holds the full simulation outcome.
type Result struct {
	TotalTrades   int                              `json:"total_trades"`
	WinningTrades int                              `json:"winning_trades"`
	LosingTrades  int                              `json:"losing_trades"`
	WinRate       float64                          `json:"win_rate"`
	GrossProfit   float64                          `json:"gross_profit"`
	GrossLoss     float64                          `json:"gross_loss"`
	NetProfit     float64                          `json:"net_profit"`
	ROI           float64                          `json:"roi"`
	ProfitFactor  float64                          `json:"profit_factor"`
	MaxDrawdown   float64                          `json:"max_drawdown"`
	AverageWin    float64                          `json:"average_win"`
	AverageLoss   float64                          `json:"average_loss"`
	SharpeRatio   float64                          `json:"sharpe_ratio"`
	Trades        []Trade                          `json:"trades"`
	EquityCurve   []EquityPoint                    `json:"equity_curve"`
	ByRegime      map[strategy.Regime]*RegimeStats `json:"by_regime"`
}

func (r *Result) recordTrade(t Trade) {
	r.Trades = append(r.Trades, t)

	stats, ok := r.ByRegime[t.Regime]
	if !ok {
		stats = &RegimeStats{Regime: t.Regime}
		r.ByRegime[t.Regime] = stats
	}
	stats.Trades++
	if t.ProfitLoss > 0 {
		stats.Wins++
	}
	stats.NetProfit += t.ProfitLoss
	stats.WinRate = float64(stats.Wins) / float64(stats.Trades) * 100
}

func (r *Result) finalize(initialCapital, finalEquity float64) {
	r.TotalTrades = len(r.Trades)

	for _, t := range r.Trades {
		if t.ProfitLoss > 0 {
			r.WinningTrades++
			r.GrossProfit += t.ProfitLoss
		} else {
			r.LosingTrades++
			r.GrossLoss += -t.ProfitLoss
		}
	}

	if r.TotalTrades > 0 {
		r.WinRate = float64(r.WinningTrades) / float64(r.TotalTrades) * 100
	}
	if r.WinningTrades > 0 {
		r.AverageWin = r.GrossProfit / float64(r.WinningTrades)
	}
	if r.LosingTrades > 0 {
		r.AverageLoss = r.GrossLoss / float64(r.LosingTrades)
	}

	r.NetProfit = finalEquity - initialCapital
	if initialCapital > 0 {
		r.ROI = r.NetProfit / initialCapital * 100
	}
	if r.GrossLoss > 0 {
		r.ProfitFactor = r.GrossProfit / r.GrossLoss
	}

	r.MaxDrawdown = maxDrawdown(r.EquityCurve)
	r.SharpeRatio = sharpeRatio(r.Trades)
}

func maxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}

	worst := 0.0
	peak := curve[0].Equity
	for _, point := range curve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak <= 0 {
			continue
		}
		drawdown := (peak - point.Equity) / peak * 100
		if drawdown > worst {
			worst = drawdown
		}
	}
	return worst
}

// sharpeRatio is the mean per-trade return over its standard deviation,
// with a zero risk-free rate.
func sharpeRatio(trades []Trade) float64 {
	if len(trades) < 2 {
		return 0
	}

	returns := make([]float64, len(trades))
	for i, t := range trades {
		returns[i] = t.PLPercent
	}

	mean := stat.Mean(returns, nil)
	stddev := stat.StdDev(returns, nil)
	if stddev == 0 {
		return 0
	}
	return mean / stddev
}

// PrintResults writes a human-readable report to stdout.
func (r *Result) PrintResults() {
	fmt.Println("\n=== BACKTEST RESULTS ===")
	fmt.Printf("Total Trades: %d\n", r.TotalTrades)
	fmt.Printf("Winning Trades: %d (%.1f%%)\n", r.WinningTrades, r.WinRate)
	fmt.Printf("Losing Trades: %d\n", r.LosingTrades)
	fmt.Printf("Net Profit: %.2f\n", r.NetProfit)
	fmt.Printf("ROI: %.2f%%\n", r.ROI)
	fmt.Printf("Profit Factor: %.2f\n", r.ProfitFactor)
	fmt.Printf("Max Drawdown: %.2f%%\n", r.MaxDrawdown)
	fmt.Printf("Average Win: %.2f\n", r.AverageWin)
	fmt.Printf("Average Loss: %.2f\n", r.AverageLoss)
	fmt.Printf("Sharpe Ratio: %.2f\n", r.SharpeRatio)

	fmt.Println("\n=== REGIME PERFORMANCE ===")
	for regime, stats := range r.ByRegime {
		fmt.Printf("%s: %d trades, %.1f%% win rate, net %.2f\n",
			regime, stats.Trades, stats.WinRate, stats.NetProfit)
	}
}
