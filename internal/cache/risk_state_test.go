package cache

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gmo-trading-bot/internal/bot"
	"gmo-trading-bot/internal/risk"
)

// TestRiskStateMemoryFallback tests memory-only operation without Redis
func TestRiskStateMemoryFallback(t *testing.T) {
	store := NewRiskStateStore(nil, zerolog.Nop())

	if _, ok := store.LoadLevels(42); ok {
		t.Fatal("Empty store should hold no levels")
	}

	lv := risk.Levels{StopLoss: 29.0, TakeProfit: 32.0}
	if err := store.SaveLevels(42, lv); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, ok := store.LoadLevels(42)
	if !ok || got != lv {
		t.Errorf("Expected %+v, got %+v (ok=%v)", lv, got, ok)
	}

	if err := store.DeleteLevels(42); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := store.LoadLevels(42); ok {
		t.Error("Deleted levels should be gone")
	}
}

// TestRiskStateLastTradeRoundTrip tests the gatekeeper memory persistence
func TestRiskStateLastTradeRoundTrip(t *testing.T) {
	store := NewRiskStateStore(nil, zerolog.Nop())

	if _, ok, err := store.LoadLastTrade(); err != nil || ok {
		t.Fatalf("Empty store should report no memory, got ok=%v err=%v", ok, err)
	}

	mem := bot.LastTradeMemory{LastTradeTime: time.Now().Truncate(time.Second), LastTradePrice: 30.5}
	if err := store.SaveLastTrade(mem); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, ok, err := store.LoadLastTrade()
	if err != nil || !ok {
		t.Fatalf("Load failed: ok=%v err=%v", ok, err)
	}
	if got.LastTradePrice != 30.5 || !got.LastTradeTime.Equal(mem.LastTradeTime) {
		t.Errorf("Expected %+v, got %+v", mem, got)
	}
}
