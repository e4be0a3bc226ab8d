package backtest

import (
	"testing"

	"github.com/rs/zerolog"

	"gmo-trading-bot/internal/gmo"
	"gmo-trading-bot/internal/risk"
	"gmo-trading-bot/internal/strategy"
)

// rampKlines builds a linear price series with constant true range so
// the regime and every EMA sit at exact steady-state values.
func rampKlines(n int, start, step float64) []gmo.Kline {
	klines := make([]gmo.Kline, n)
	for i := 0; i < n; i++ {
		c := start + step*float64(i)
		klines[i] = gmo.Kline{
			OpenTime: int64(i) * 300000,
			Open:     c - step,
			High:     c + 0.75,
			Low:      c - 0.75,
			Close:    c,
			Volume:   50000,
		}
	}
	return klines
}

func flatKlines(n int) []gmo.Kline {
	klines := make([]gmo.Kline, n)
	for i := 0; i < n; i++ {
		klines[i] = gmo.Kline{
			OpenTime: int64(i) * 300000,
			Open:     30.0,
			High:     30.1,
			Low:      29.9,
			Close:    30.0,
			Volume:   50000,
		}
	}
	return klines
}

// testRunner builds a runner whose VOLATILE standard threshold is
// lowered so single-indicator scores can open positions.
func testRunner(volatileStandard float64) *Runner {
	cfg := strategy.DefaultAggregatorConfig()
	params := strategy.DefaultRegimeParams()
	p := params[strategy.RegimeVolatile]
	p.StandardThreshold = volatileStandard
	params[strategy.RegimeVolatile] = p
	cfg.Params = params

	agg := strategy.NewAggregator(cfg, zerolog.Nop())
	calc := risk.NewCalculator(params, 0)

	return NewRunner(Config{
		InitialCapital:   10000,
		CommissionRate:   0,
		PositionFraction: 0.10,
		MinMoveFraction:  0.005,
		WarmupBars:       50,
	}, agg, calc)
}

// TestBacktestShortWindowRejected tests that too little data is an error
func TestBacktestShortWindowRejected(t *testing.T) {
	runner := testRunner(0.5)

	if _, err := runner.Run(flatKlines(30)); err == nil {
		t.Error("Should reject a window shorter than the warmup")
	}
}

// TestBacktestFlatMarketNoTrades tests that a flat market produces nothing
func TestBacktestFlatMarketNoTrades(t *testing.T) {
	runner := testRunner(2.0)

	result, err := runner.Run(flatKlines(240))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.TotalTrades != 0 {
		t.Errorf("Should open no trades in a flat market, got %d", result.TotalTrades)
	}
	if result.NetProfit != 0 {
		t.Errorf("Should have zero net profit, got %f", result.NetProfit)
	}
	if result.MaxDrawdown != 0 {
		t.Errorf("Should have zero drawdown, got %f", result.MaxDrawdown)
	}
}

// TestBacktestDowntrendShortsAndWins tests a falling market: the runner
// should open short positions, ride them to take profit, and finish
// ahead of the initial capital
func TestBacktestDowntrendShortsAndWins(t *testing.T) {
	runner := testRunner(0.5)

	result, err := runner.Run(rampKlines(240, 42.0, -0.075))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.TotalTrades != 2 {
		t.Fatalf("Should close exactly 2 trades, got %d", result.TotalTrades)
	}
	for i, trade := range result.Trades {
		if trade.Side != gmo.SideSell {
			t.Errorf("Trade %d should be a sell in a falling market, got %s", i, trade.Side)
		}
		if trade.ProfitLoss <= 0 {
			t.Errorf("Trade %d should be profitable, got %f", i, trade.ProfitLoss)
		}
		if trade.Regime != strategy.RegimeVolatile {
			t.Errorf("Trade %d should enter in VOLATILE, got %s", i, trade.Regime)
		}
	}

	if result.Trades[0].ExitReason != ExitTakeProfit {
		t.Errorf("First trade should exit at take profit, got %s", result.Trades[0].ExitReason)
	}
	if result.Trades[0].TakeProfit >= result.Trades[0].EntryPrice {
		t.Error("Should place the short take profit below the entry")
	}
	if result.Trades[0].StopLoss <= result.Trades[0].EntryPrice {
		t.Error("Should place the short stop above the entry")
	}
	if result.Trades[1].ExitReason != ExitWindowEnd {
		t.Errorf("Second trade should run out the window, got %s", result.Trades[1].ExitReason)
	}

	if result.WinRate != 100 {
		t.Errorf("Should win both trades, got win rate %f", result.WinRate)
	}
	if result.NetProfit <= 0 {
		t.Errorf("Should finish ahead, got net %f", result.NetProfit)
	}
	if result.ROI <= 0 {
		t.Errorf("Should have positive ROI, got %f", result.ROI)
	}
	if result.MaxDrawdown != 0 {
		t.Errorf("Should have no drawdown with only winners, got %f", result.MaxDrawdown)
	}

	stats := result.ByRegime[strategy.RegimeVolatile]
	if stats == nil || stats.Trades != 2 {
		t.Error("Should attribute both trades to the VOLATILE regime")
	}
}

// TestBacktestUptrendLongsAndWins tests the mirrored rising market
func TestBacktestUptrendLongsAndWins(t *testing.T) {
	runner := testRunner(0.5)

	result, err := runner.Run(rampKlines(240, 24.0, 0.075))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.TotalTrades != 2 {
		t.Fatalf("Should close exactly 2 trades, got %d", result.TotalTrades)
	}
	for i, trade := range result.Trades {
		if trade.Side != gmo.SideBuy {
			t.Errorf("Trade %d should be a buy in a rising market, got %s", i, trade.Side)
		}
		if trade.ProfitLoss <= 0 {
			t.Errorf("Trade %d should be profitable, got %f", i, trade.ProfitLoss)
		}
	}

	if result.Trades[0].ExitReason != ExitTakeProfit {
		t.Errorf("First trade should exit at take profit, got %s", result.Trades[0].ExitReason)
	}
	if result.NetProfit <= 0 {
		t.Errorf("Should finish ahead, got net %f", result.NetProfit)
	}
}

// TestBacktestEquityCurveGrowth tests that winning trades compound the
// equity curve upward
func TestBacktestEquityCurveGrowth(t *testing.T) {
	runner := testRunner(0.5)

	result, err := runner.Run(rampKlines(240, 42.0, -0.075))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.EquityCurve) != 2 {
		t.Fatalf("Should record one equity point per closed trade, got %d", len(result.EquityCurve))
	}
	if result.EquityCurve[0].Equity <= 10000 {
		t.Errorf("First close should lift equity above initial, got %f", result.EquityCurve[0].Equity)
	}
	if result.EquityCurve[1].Equity <= result.EquityCurve[0].Equity {
		t.Error("Second close should lift equity further")
	}
}
