package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gmo-trading-bot/internal/strategy"
)

// TestLoadDefaults tests that a missing config file still yields a runnable config
func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.TradingConfig.Symbol != "DOGE_JPY" {
		t.Errorf("Expected default symbol, got %s", cfg.TradingConfig.Symbol)
	}
	if cfg.TradingConfig.HistoryBars != 100 {
		t.Errorf("Expected 100 history bars, got %d", cfg.TradingConfig.HistoryBars)
	}
	if len(cfg.StrategyConfig.Params) != 3 {
		t.Errorf("Expected regime params for all three regimes, got %d", len(cfg.StrategyConfig.Params))
	}
	if !cfg.GuardConfig.Enabled {
		t.Error("Loss guard should default to enabled")
	}
	if cfg.TradingConfig.LoopInterval() != 60*time.Second {
		t.Errorf("Expected 60s loop interval, got %v", cfg.TradingConfig.LoopInterval())
	}
	if cfg.TradingConfig.ATRFallbackFraction != 0.01 {
		t.Errorf("Expected 1%% ATR fallback, got %f", cfg.TradingConfig.ATRFallbackFraction)
	}
	if cfg.GatekeeperConfig.MinTradeInterval() != 180*time.Second {
		t.Errorf("Expected 180s trade interval, got %v", cfg.GatekeeperConfig.MinTradeInterval())
	}
}

// TestLoadFromFile tests that file values survive the default pass
func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"trading": {"symbol": "XRP_JPY", "order_size": 50},
		"strategy": {"regime_params": {"TRENDING": {"standard_threshold": 1.4, "reversal_threshold": 1.1}}}
	}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.TradingConfig.Symbol != "XRP_JPY" {
		t.Errorf("File symbol should win, got %s", cfg.TradingConfig.Symbol)
	}
	if cfg.TradingConfig.OrderSize != 50 {
		t.Errorf("File order size should win, got %f", cfg.TradingConfig.OrderSize)
	}
	// Unset fields still pick up defaults.
	if cfg.TradingConfig.Interval != "5min" {
		t.Errorf("Expected default interval, got %s", cfg.TradingConfig.Interval)
	}
	p := cfg.StrategyConfig.Params[strategy.RegimeTrending]
	if p.StandardThreshold != 1.4 || p.ReversalThreshold != 1.1 {
		t.Errorf("File thresholds should win, got %+v", p)
	}
}

// TestEnvOverrides tests that environment variables take precedence
func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRADING_SYMBOL", "BTC_JPY")
	t.Setenv("GMO_API_KEY", "env-key")
	t.Setenv("TRADING_MIN_MOVE_FRACTION", "0.01")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.TradingConfig.Symbol != "BTC_JPY" {
		t.Errorf("Env symbol should win, got %s", cfg.TradingConfig.Symbol)
	}
	if cfg.ExchangeConfig.APIKey != "env-key" {
		t.Errorf("Env API key should win, got %s", cfg.ExchangeConfig.APIKey)
	}
	if cfg.GatekeeperConfig.MinMoveFraction != 0.01 {
		t.Errorf("Env move fraction should win, got %f", cfg.GatekeeperConfig.MinMoveFraction)
	}
}
