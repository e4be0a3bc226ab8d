package patterns

import (
	"gmo-trading-bot/internal/gmo"
	"testing"
)

// TestBullishEngulfing tests bullish engulfing detection on the last two bars
func TestBullishEngulfing(t *testing.T) {
	klines := []gmo.Kline{
		{Open: 30.5, High: 30.6, Low: 30.0, Close: 30.1}, // Bearish
		{Open: 30.0, High: 30.9, Low: 29.9, Close: 30.7}, // Bullish engulfing
	}

	p := DetectEngulfing(klines)
	if p == nil {
		t.Fatal("Should detect bullish engulfing")
	}
	if p.Type != PatternBullishEngulfing {
		t.Errorf("Expected bullish engulfing, got %s", p.Type)
	}
	if p.Direction != gmo.SideBuy {
		t.Errorf("Expected BUY direction, got %s", p.Direction)
	}
}

// TestBearishEngulfing tests bearish engulfing detection on the last two bars
func TestBearishEngulfing(t *testing.T) {
	klines := []gmo.Kline{
		{Open: 30.1, High: 30.6, Low: 30.0, Close: 30.5}, // Bullish
		{Open: 30.6, High: 30.7, Low: 29.8, Close: 30.0}, // Bearish engulfing
	}

	p := DetectEngulfing(klines)
	if p == nil {
		t.Fatal("Should detect bearish engulfing")
	}
	if p.Type != PatternBearishEngulfing {
		t.Errorf("Expected bearish engulfing, got %s", p.Type)
	}
	if p.Direction != gmo.SideSell {
		t.Errorf("Expected SELL direction, got %s", p.Direction)
	}
}

// TestNoEngulfingOnPartialCover tests that a body inside the previous body is not engulfing
func TestNoEngulfingOnPartialCover(t *testing.T) {
	klines := []gmo.Kline{
		{Open: 30.5, High: 30.6, Low: 30.0, Close: 30.1}, // Bearish
		{Open: 30.2, High: 30.5, Low: 30.1, Close: 30.4}, // Bullish but inside
	}

	if p := DetectEngulfing(klines); p != nil {
		t.Errorf("Should NOT detect pattern when current body does not engulf, got %s", p.Type)
	}
}

// TestNoEngulfingSameDirection tests that two bars in the same direction never match
func TestNoEngulfingSameDirection(t *testing.T) {
	klines := []gmo.Kline{
		{Open: 30.0, High: 30.6, Low: 29.9, Close: 30.5}, // Bullish
		{Open: 29.9, High: 30.9, Low: 29.8, Close: 30.8}, // Bullish again
	}

	if p := DetectEngulfing(klines); p != nil {
		t.Errorf("Should NOT detect pattern for same-direction bars, got %s", p.Type)
	}
}

// TestEngulfingOnlyUsesLastTwoBars tests that earlier bars do not influence detection
func TestEngulfingOnlyUsesLastTwoBars(t *testing.T) {
	klines := []gmo.Kline{
		{Open: 30.5, High: 30.6, Low: 30.0, Close: 30.1}, // Older engulfing setup, ignored
		{Open: 30.0, High: 30.9, Low: 29.9, Close: 30.7},
		{Open: 30.7, High: 30.8, Low: 30.5, Close: 30.6}, // Bearish
		{Open: 30.6, High: 30.65, Low: 30.5, Close: 30.62},
	}

	if p := DetectEngulfing(klines); p != nil {
		t.Errorf("Should only inspect the last two bars, got %s", p.Type)
	}
}

// TestEngulfingInsufficientBars tests that fewer than two bars yields no pattern
func TestEngulfingInsufficientBars(t *testing.T) {
	if p := DetectEngulfing([]gmo.Kline{{Open: 30, Close: 31}}); p != nil {
		t.Error("Should return nil with a single bar")
	}
	if p := DetectEngulfing(nil); p != nil {
		t.Error("Should return nil with no bars")
	}
}
