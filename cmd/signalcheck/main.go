// signalcheck runs one decision cycle against live market data and prints
// the full breakdown: regime, trend quality, per-indicator entries, and
// the final verdict. No orders are placed.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"gmo-trading-bot/config"
	"gmo-trading-bot/internal/gmo"
	"gmo-trading-bot/internal/risk"
	"gmo-trading-bot/internal/strategy"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	symbol := cfg.TradingConfig.Symbol
	interval := cfg.TradingConfig.Interval

	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("📊 SIGNAL CHECK: %s @ %s\n", symbol, interval)
	fmt.Println(strings.Repeat("=", 60))

	client := gmo.NewClient(cfg.ExchangeConfig.APIKey, cfg.ExchangeConfig.APISecret,
		cfg.ExchangeConfig.PublicBaseURL, cfg.ExchangeConfig.PrivateBaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ticker, err := client.GetTicker(ctx, symbol)
	if err != nil {
		fmt.Printf("❌ Failed to fetch ticker: %v\n", err)
		os.Exit(1)
	}

	klines, err := client.RecentKlines(ctx, symbol, interval, cfg.TradingConfig.HistoryBars)
	if err != nil {
		fmt.Printf("❌ Failed to fetch candles: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nPrice: %.4f  (candles: %d)\n", ticker.Last, len(klines))

	snap, err := strategy.BuildSnapshot(klines, ticker.Last)
	if err != nil {
		fmt.Printf("❌ Failed to build indicators: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n📐 INDICATORS")
	fmt.Printf("   RSI:       %7.2f\n", snap.RSI)
	fmt.Printf("   MACD:      %7.4f (signal %.4f, histogram %.4f)\n",
		snap.MACDLine, snap.MACDSignal, snap.MACDHistogram)
	fmt.Printf("   Bollinger: %7.4f / %.4f / %.4f\n", snap.BBLower, snap.BBMiddle, snap.BBUpper)
	fmt.Printf("   EMA:       %7.4f fast, %.4f slow\n", snap.EMAFast, snap.EMASlow)
	fmt.Printf("   ATR:       %7.4f (%.2f%% of price)\n", snap.ATR, snap.ATR/ticker.Last*100)

	aggregator := strategy.NewAggregator(cfg.StrategyConfig, zerolog.Nop())
	decision := aggregator.Evaluate(snap, false)

	fmt.Println("\n🧭 CLASSIFICATION")
	fmt.Printf("   Regime: %s\n", decision.Regime)
	fmt.Printf("   Trend:  %s (slope %.5f, r² %.3f)\n",
		decision.Trend, decision.Quality.SlopeNormalized, decision.Quality.RSquared)

	fmt.Println("\n🔍 SIGNAL ENTRIES")
	if len(decision.Entries) == 0 {
		fmt.Println("   (none fired)")
	}
	for _, entry := range decision.Entries {
		fmt.Printf("   %-4s %-28s %+.2f\n", entry.Direction, entry.Label, entry.Weight)
	}

	fmt.Println("\n⚖️  SCORES")
	fmt.Printf("   BUY  %.2f\n", decision.BuyScore)
	fmt.Printf("   SELL %.2f\n", decision.SellScore)
	fmt.Printf("   Threshold %.2f\n", decision.Threshold)

	fmt.Println("\n" + strings.Repeat("=", 60))
	if decision.ShouldTrade {
		calc := risk.NewCalculator(cfg.StrategyConfig.Params, cfg.TradingConfig.ATRFallbackFraction)
		levels := calc.Compute(decision.Direction, ticker.Last, snap.ATR, decision.Regime)
		fmt.Printf("✅ VERDICT: %s (confidence %.2f)\n", decision.Direction, decision.Confidence)
		fmt.Printf("   Stop loss:   %.4f\n", levels.StopLoss)
		fmt.Printf("   Take profit: %.4f\n", levels.TakeProfit)
	} else {
		fmt.Printf("⏸️  VERDICT: no trade (%s)\n", decision.Reason)
	}
	fmt.Println(strings.Repeat("=", 60))
}
