package strategy

import (
	"errors"
	"fmt"

	"gmo-trading-bot/internal/gmo"
)

// MinHistoryBars is the contract minimum for snapshot construction. The
// regression window and the regime classifier both need this much.
const MinHistoryBars = 20

// Indicator periods match the fixed snapshot shape the decision engine
// consumes. Thresholds and multipliers are configuration; periods are not.
const (
	emaFastPeriod = 20
	emaSlowPeriod = 50
	rsiPeriod     = 14
	atrPeriod     = 14
	bbPeriod      = 20
	bbStdDev      = 2.0
	macdFast      = 12
	macdSlow      = 26
	macdSignal    = 9
)

// ErrInsufficientHistory signals an input-contract violation: fewer than
// MinHistoryBars candles were supplied. The cycle is skipped, not failed.
var ErrInsufficientHistory = errors.New("insufficient history for snapshot")

// IndicatorSnapshot is the fixed-shape indicator vector for one cycle.
// Immutable once built.
type IndicatorSnapshot struct {
	Price         float64
	RSI           float64
	MACDLine      float64
	MACDSignal    float64
	MACDHistogram float64
	BBUpper       float64
	BBMiddle      float64
	BBLower       float64
	EMAFast       float64
	EMASlow       float64
	ATR           float64
	Closes        []float64
	Klines        []gmo.Kline
}

// BuildSnapshot derives the indicator vector from a candle window and the
// current price. Price zero or negative is a malformed input.
func BuildSnapshot(klines []gmo.Kline, price float64) (*IndicatorSnapshot, error) {
	if len(klines) < MinHistoryBars {
		return nil, fmt.Errorf("%w: have %d bars, need %d", ErrInsufficientHistory, len(klines), MinHistoryBars)
	}
	if price <= 0 {
		return nil, fmt.Errorf("invalid current price %f", price)
	}

	closes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.Close
	}

	macd := CalculateMACD(klines, macdFast, macdSlow, macdSignal)
	bb := CalculateBollingerBands(klines, bbPeriod, bbStdDev)

	return &IndicatorSnapshot{
		Price:         price,
		RSI:           CalculateRSI(klines, rsiPeriod),
		MACDLine:      macd.MACD,
		MACDSignal:    macd.Signal,
		MACDHistogram: macd.Histogram,
		BBUpper:       bb.Upper,
		BBMiddle:      bb.Middle,
		BBLower:       bb.Lower,
		EMAFast:       CalculateEMA(klines, emaFastPeriod),
		EMASlow:       CalculateEMA(klines, emaSlowPeriod),
		ATR:           CalculateATR(klines, atrPeriod),
		Closes:        closes,
		Klines:        klines,
	}, nil
}
