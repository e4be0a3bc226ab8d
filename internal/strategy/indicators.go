package strategy

import (
	"math"

	"gmo-trading-bot/internal/gmo"
)

// CalculateSMA calculates Simple Moving Average
func CalculateSMA(klines []gmo.Kline, period int) float64 {
	if len(klines) < period {
		return 0
	}

	sum := 0.0
	startIdx := len(klines) - period

	for i := startIdx; i < len(klines); i++ {
		sum += klines[i].Close
	}

	return sum / float64(period)
}

// CalculateEMA calculates Exponential Moving Average
func CalculateEMA(klines []gmo.Kline, period int) float64 {
	if len(klines) < period {
		return 0
	}

	// Seed with the SMA of the first period
	ema := CalculateSMA(klines[:period], period)
	multiplier := 2.0 / float64(period+1)

	for i := period; i < len(klines); i++ {
		ema = (klines[i].Close * multiplier) + (ema * (1 - multiplier))
	}

	return ema
}

// CalculateRSI calculates the Relative Strength Index
func CalculateRSI(klines []gmo.Kline, period int) float64 {
	if len(klines) < period+1 {
		return 50.0 // Neutral RSI
	}

	gains := 0.0
	losses := 0.0

	for i := len(klines) - period; i < len(klines); i++ {
		change := klines[i].Close - klines[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// MACDResult holds MACD indicator values
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// CalculateMACD calculates MACD, signal line and histogram. The signal
// line is the EMA of the MACD series over the trailing window, not an
// approximation, so crossovers are usable as entry triggers.
func CalculateMACD(klines []gmo.Kline, fastPeriod, slowPeriod, signalPeriod int) *MACDResult {
	if len(klines) < slowPeriod+signalPeriod {
		return &MACDResult{}
	}

	// MACD value at each of the last signalPeriod+1 bars
	macdSeries := make([]float64, 0, signalPeriod+1)
	for i := len(klines) - signalPeriod; i <= len(klines); i++ {
		window := klines[:i]
		macdSeries = append(macdSeries, CalculateEMA(window, fastPeriod)-CalculateEMA(window, slowPeriod))
	}

	macdLine := macdSeries[len(macdSeries)-1]

	// EMA of the MACD series seeded from its first value
	multiplier := 2.0 / float64(signalPeriod+1)
	signal := macdSeries[0]
	for _, v := range macdSeries[1:] {
		signal = (v * multiplier) + (signal * (1 - multiplier))
	}

	return &MACDResult{
		MACD:      macdLine,
		Signal:    signal,
		Histogram: macdLine - signal,
	}
}

// BollingerBandsResult holds Bollinger Bands values
type BollingerBandsResult struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// CalculateBollingerBands calculates Bollinger Bands
func CalculateBollingerBands(klines []gmo.Kline, period int, stdDevMultiplier float64) *BollingerBandsResult {
	if len(klines) < period {
		return &BollingerBandsResult{}
	}

	middle := CalculateSMA(klines, period)

	variance := 0.0
	startIdx := len(klines) - period
	for i := startIdx; i < len(klines); i++ {
		diff := klines[i].Close - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return &BollingerBandsResult{
		Upper:  middle + (stdDev * stdDevMultiplier),
		Middle: middle,
		Lower:  middle - (stdDev * stdDevMultiplier),
	}
}

// CalculateATR calculates Average True Range
func CalculateATR(klines []gmo.Kline, period int) float64 {
	if len(klines) < period+1 {
		return 0
	}

	trSum := 0.0
	startIdx := len(klines) - period

	for i := startIdx; i < len(klines); i++ {
		high := klines[i].High
		low := klines[i].Low
		prevClose := klines[i-1].Close

		tr := math.Max(
			high-low,
			math.Max(
				math.Abs(high-prevClose),
				math.Abs(low-prevClose),
			),
		)

		trSum += tr
	}

	return trSum / float64(period)
}
