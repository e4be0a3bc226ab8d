package patterns

import (
	"gmo-trading-bot/internal/gmo"
)

// PatternType identifies a detected candlestick pattern.
type PatternType string

const (
	PatternBullishEngulfing PatternType = "BULLISH_ENGULFING"
	PatternBearishEngulfing PatternType = "BEARISH_ENGULFING"
)

// Pattern is a detected candlestick formation on the most recent bars.
type Pattern struct {
	Type      PatternType `json:"type"`
	Direction gmo.Side    `json:"direction"`
}

// DetectEngulfing inspects the last two bars for an engulfing
// formation. Returns nil when none is present or fewer than two bars
// are available.
func DetectEngulfing(klines []gmo.Kline) *Pattern {
	if len(klines) < 2 {
		return nil
	}

	prev := klines[len(klines)-2]
	curr := klines[len(klines)-1]

	if isBullishEngulfing(prev, curr) {
		return &Pattern{Type: PatternBullishEngulfing, Direction: gmo.SideBuy}
	}
	if isBearishEngulfing(prev, curr) {
		return &Pattern{Type: PatternBearishEngulfing, Direction: gmo.SideSell}
	}

	return nil
}

// isBullishEngulfing reports whether curr is a bullish bar whose body
// engulfs the body of a preceding bearish bar.
func isBullishEngulfing(prev, curr gmo.Kline) bool {
	prevBearish := prev.Close < prev.Open
	currBullish := curr.Close > curr.Open

	return prevBearish && currBullish &&
		curr.Open < prev.Close &&
		curr.Close > prev.Open
}

// isBearishEngulfing reports whether curr is a bearish bar whose body
// engulfs the body of a preceding bullish bar.
func isBearishEngulfing(prev, curr gmo.Kline) bool {
	prevBullish := prev.Close > prev.Open
	currBearish := curr.Close < curr.Open

	return prevBullish && currBearish &&
		curr.Open > prev.Close &&
		curr.Close < prev.Open
}
