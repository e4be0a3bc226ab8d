package strategy

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// fitWindow is the regression window over the most recent closes.
const fitWindow = 20

// RegimeThresholds are the classification boundaries. Externally
// configurable; defaults reflect the live system.
type RegimeThresholds struct {
	VolatileATRPct  float64 `json:"volatile_atr_pct"`
	TrendSlope      float64 `json:"trend_slope"`
	TrendEMADiffPct float64 `json:"trend_ema_diff_pct"`
}

// DefaultRegimeThresholds returns the classification defaults.
func DefaultRegimeThresholds() RegimeThresholds {
	return RegimeThresholds{
		VolatileATRPct:  4.0,
		TrendSlope:      0.01,
		TrendEMADiffPct: 1.0,
	}
}

// ClassifyRegime maps a snapshot to a market regime. Pure function;
// evaluation order is fixed: volatility first, then trend, else ranging.
func ClassifyRegime(snap *IndicatorSnapshot, th RegimeThresholds) Regime {
	atrPct := snap.ATR / snap.Price * 100
	if atrPct > th.VolatileATRPct {
		return RegimeVolatile
	}

	_, slope := linearFit(snap.Closes)
	normalizedSlope := slope / snap.Price

	emaDiffPct := 0.0
	if snap.EMASlow > 0 {
		emaDiffPct = math.Abs(snap.EMAFast-snap.EMASlow) / snap.EMASlow * 100
	}

	if math.Abs(normalizedSlope) > th.TrendSlope && emaDiffPct > th.TrendEMADiffPct {
		return RegimeTrending
	}

	return RegimeRanging
}

// linearFit fits a degree-1 least-squares line over the last fitWindow
// closes and returns its intercept and slope.
func linearFit(closes []float64) (alpha, beta float64) {
	window := closes
	if len(window) > fitWindow {
		window = window[len(window)-fitWindow:]
	}

	xs := make([]float64, len(window))
	for i := range xs {
		xs[i] = float64(i)
	}

	return stat.LinearRegression(xs, window, nil, false)
}
