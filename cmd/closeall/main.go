// closeall lists every open position for the configured symbol and closes
// them at market. Requires the -yes flag to actually place orders.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"gmo-trading-bot/config"
	"gmo-trading-bot/internal/gmo"
)

func main() {
	yes := flag.Bool("yes", false, "actually close positions instead of listing them")
	flag.Parse()

	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if cfg.ExchangeConfig.APIKey == "" || cfg.ExchangeConfig.APISecret == "" {
		fmt.Println("❌ GMO_API_KEY and GMO_API_SECRET are required")
		os.Exit(1)
	}

	symbol := cfg.TradingConfig.Symbol
	client := gmo.NewClient(cfg.ExchangeConfig.APIKey, cfg.ExchangeConfig.APISecret,
		cfg.ExchangeConfig.PublicBaseURL, cfg.ExchangeConfig.PrivateBaseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	positions, err := client.OpenPositions(ctx, symbol)
	if err != nil {
		fmt.Printf("❌ Failed to fetch positions: %v\n", err)
		os.Exit(1)
	}

	if len(positions) == 0 {
		fmt.Printf("✅ No open positions for %s\n", symbol)
		return
	}

	fmt.Printf("📋 Open positions for %s:\n", symbol)
	for _, pos := range positions {
		fmt.Printf("   #%d %s size %.4f @ %.4f\n", pos.ID, pos.Side, pos.Size, pos.Price)
	}

	if !*yes {
		fmt.Println("\nDry run. Re-run with -yes to close them.")
		return
	}

	failed := 0
	for _, pos := range positions {
		result, err := client.ClosePosition(ctx, pos, cfg.TradingConfig.SizeStep)
		if err != nil {
			fmt.Printf("❌ Failed to close #%d: %v\n", pos.ID, err)
			failed++
			continue
		}
		fmt.Printf("✅ Closed #%d (order %s)\n", pos.ID, result.OrderID)
	}

	if failed > 0 {
		fmt.Printf("\n⚠️  %d of %d positions failed to close\n", failed, len(positions))
		os.Exit(1)
	}
	fmt.Printf("\n✅ Closed all %d positions\n", len(positions))
}
