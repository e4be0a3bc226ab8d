package strategy

import (
	"gonum.org/v1/gonum/stat"
)

// Trend strength bands for direction classification.
const (
	trendStrengthMild   = 0.01
	trendStrengthStrong = 0.03
)

// EstimateTrendQuality fits a line over the recent closes and measures
// how well it explains them. The slope is normalized by the current
// price so quality is comparable across price levels.
func EstimateTrendQuality(snap *IndicatorSnapshot) TrendQuality {
	window := snap.Closes
	if len(window) > fitWindow {
		window = window[len(window)-fitWindow:]
	}

	alpha, beta := linearFit(window)
	mean := stat.Mean(window, nil)

	var ssTot, ssRes float64
	for i, y := range window {
		d := y - mean
		ssTot += d * d
		r := y - (alpha + beta*float64(i))
		ssRes += r * r
	}

	// A perfectly flat window carries no trend information.
	rSquared := 0.0
	if ssTot > 0 {
		rSquared = 1 - ssRes/ssTot
		if rSquared < 0 {
			rSquared = 0
		} else if rSquared > 1 {
			rSquared = 1
		}
	}

	slopeNormalized := 0.0
	if snap.Price > 0 {
		slopeNormalized = beta / snap.Price
	}

	return TrendQuality{
		SlopeNormalized: slopeNormalized,
		RSquared:        rSquared,
	}
}

// TrendStrength blends the fitted slope with the price/EMA geometry
// into a single signed score. Positive is bullish.
func TrendStrength(snap *IndicatorSnapshot, quality TrendQuality) float64 {
	priceGap := 0.0
	if snap.EMAFast > 0 {
		priceGap = (snap.Price - snap.EMAFast) / snap.EMAFast
	}

	emaGap := 0.0
	if snap.EMASlow > 0 {
		emaGap = (snap.EMAFast - snap.EMASlow) / snap.EMASlow
	}

	return (quality.SlopeNormalized*2 + priceGap + emaGap) / 4
}

// DetectTrendDirection buckets the strength score into a direction.
func DetectTrendDirection(snap *IndicatorSnapshot, quality TrendQuality) TrendDirection {
	strength := TrendStrength(snap, quality)

	switch {
	case strength > trendStrengthStrong:
		return TrendStrongUp
	case strength > trendStrengthMild:
		return TrendUp
	case strength < -trendStrengthStrong:
		return TrendStrongDown
	case strength < -trendStrengthMild:
		return TrendDown
	default:
		return TrendNeutral
	}
}
