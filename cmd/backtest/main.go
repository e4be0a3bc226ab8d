// backtest replays recent market history through the live decision
// pipeline and prints the simulated performance report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"gmo-trading-bot/config"
	"gmo-trading-bot/internal/backtest"
	"gmo-trading-bot/internal/gmo"
	"gmo-trading-bot/internal/risk"
	"gmo-trading-bot/internal/strategy"
)

func main() {
	bars := flag.Int("bars", 500, "number of candles to replay")
	capital := flag.Float64("capital", 100000, "starting capital")
	commission := flag.Float64("commission", 0.0005, "commission per fill as a fraction of notional")
	flag.Parse()

	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	symbol := cfg.TradingConfig.Symbol
	interval := cfg.TradingConfig.Interval

	fmt.Printf("📈 Backtesting %s @ %s over %d candles\n", symbol, interval, *bars)

	client := gmo.NewClient(cfg.ExchangeConfig.APIKey, cfg.ExchangeConfig.APISecret,
		cfg.ExchangeConfig.PublicBaseURL, cfg.ExchangeConfig.PrivateBaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	klines, err := client.RecentKlines(ctx, symbol, interval, *bars)
	if err != nil {
		fmt.Printf("❌ Failed to fetch candles: %v\n", err)
		os.Exit(1)
	}
	if len(klines) > *bars {
		klines = klines[len(klines)-*bars:]
	}

	runnerCfg := backtest.DefaultConfig()
	runnerCfg.InitialCapital = *capital
	runnerCfg.CommissionRate = *commission
	runnerCfg.MinMoveFraction = cfg.GatekeeperConfig.MinMoveFraction

	aggregator := strategy.NewAggregator(cfg.StrategyConfig, zerolog.Nop())
	calculator := risk.NewCalculator(cfg.StrategyConfig.Params, cfg.TradingConfig.ATRFallbackFraction)

	runner := backtest.NewRunner(runnerCfg, aggregator, calculator)
	result, err := runner.Run(klines)
	if err != nil {
		fmt.Printf("❌ Backtest failed: %v\n", err)
		os.Exit(1)
	}

	result.PrintResults()
}
