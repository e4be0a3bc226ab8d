package strategy

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"gmo-trading-bot/internal/gmo"
	"gmo-trading-bot/internal/patterns"
)

// MACD cross weights.
const (
	macdCrossWeight       = 1.0
	macdStrongCrossWeight = 1.5
)

// Bollinger band position cutoffs and weights per regime.
const (
	bbTrendLowerEntry = 0.2
	bbTrendUpperEntry = 0.8
	bbTrendWeight     = 0.7
	bbRangeLowerEntry = 0.1
	bbRangeUpperEntry = 0.9
	bbRangeWeight     = 0.8
)

// EMA alignment ratios. The fast EMA must clear the slow EMA, and
// price must clear the fast EMA, before an alignment entry fires.
const (
	emaAlignRatio      = 0.01
	emaPriceClearRatio = 0.005
)

// AggregatorConfig carries every tunable of the decision pipeline.
type AggregatorConfig struct {
	Thresholds             RegimeThresholds `json:"thresholds"`
	Params                 RegimeParamMap   `json:"regime_params"`
	QualityBonusThreshold  float64          `json:"quality_bonus_threshold"`
	QualityBonusMultiplier float64          `json:"quality_bonus_multiplier"`
	PatternWeight          float64          `json:"pattern_weight"`
	MACDHistogramMin       float64          `json:"macd_histogram_min"`
	MACDHistogramStrong    float64          `json:"macd_histogram_strong"`
}

// DefaultAggregatorConfig returns the tuned defaults.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		Thresholds:             DefaultRegimeThresholds(),
		Params:                 DefaultRegimeParams(),
		QualityBonusThreshold:  0.7,
		QualityBonusMultiplier: 1.3,
		PatternWeight:          0.6,
		MACDHistogramMin:       0.3,
		MACDHistogramStrong:    1.0,
	}
}

// Aggregator turns an indicator snapshot into a trade decision by
// collecting weighted directional entries from each indicator and
// comparing the summed scores against the regime threshold.
type Aggregator struct {
	cfg AggregatorConfig
	log zerolog.Logger
}

// NewAggregator creates an aggregator with the given configuration.
func NewAggregator(cfg AggregatorConfig, log zerolog.Logger) *Aggregator {
	return &Aggregator{cfg: cfg, log: log.With().Str("component", "aggregator").Logger()}
}

// Evaluate produces a decision for the snapshot. When reversal is set
// the lower per-regime reversal threshold applies; entry filters are
// never part of this evaluation and belong to the gatekeeper.
func (a *Aggregator) Evaluate(snap *IndicatorSnapshot, reversal bool) *TradeDecision {
	regime := ClassifyRegime(snap, a.cfg.Thresholds)
	quality := EstimateTrendQuality(snap)
	strength := TrendStrength(snap, quality)
	trend := DetectTrendDirection(snap, quality)

	params, ok := a.cfg.Params[regime]
	if !ok {
		params = DefaultRegimeParams()[regime]
	}

	// Oscillator entries are kept apart so the trend-follow gate can
	// drop counter-trend ones without touching alignment or pattern
	// entries.
	var oscillators, others []SignalEntry

	if e := a.collectRSI(snap, regime, trend, params); e != nil {
		oscillators = append(oscillators, *e)
	}
	if e := a.collectMACD(snap, trend); e != nil {
		oscillators = append(oscillators, *e)
	}
	if e := collectBollinger(snap, regime, trend); e != nil {
		oscillators = append(oscillators, *e)
	}
	if e := collectEMAAlignment(snap, strength); e != nil {
		others = append(others, *e)
	}
	if p := patterns.DetectEngulfing(snap.Klines); p != nil {
		others = append(others, SignalEntry{
			Direction: p.Direction,
			Label:     patternLabel(p.Type),
			Weight:    a.cfg.PatternWeight,
		})
	}

	// Trend-follow gate: outside VOLATILE, oscillators never fire
	// against a detected trend direction.
	entries := others
	for _, e := range oscillators {
		if regime != RegimeVolatile && counterTrend(e.Direction, trend) {
			a.log.Debug().Str("label", e.Label).Str("trend", string(trend)).Msg("suppressed counter-trend entry")
			continue
		}
		entries = append(entries, e)
	}

	var buyScore, sellScore float64
	var buyLabels, sellLabels []string
	for _, e := range entries {
		if e.Direction == gmo.SideBuy {
			buyScore += e.Weight
			buyLabels = append(buyLabels, e.Label)
		} else {
			sellScore += e.Weight
			sellLabels = append(sellLabels, e.Label)
		}
	}

	// High-quality trends raise confidence on the trend side only.
	if quality.RSquared > a.cfg.QualityBonusThreshold {
		if trend.Bullish() {
			buyScore *= a.cfg.QualityBonusMultiplier
		} else if trend.Bearish() {
			sellScore *= a.cfg.QualityBonusMultiplier
		}
	}

	threshold := params.StandardThreshold
	if reversal {
		threshold = params.ReversalThreshold
	}

	d := &TradeDecision{
		Regime:    regime,
		Trend:     trend,
		Quality:   quality,
		BuyScore:  buyScore,
		SellScore: sellScore,
		Threshold: threshold,
		Entries:   entries,
	}

	switch {
	case buyScore >= threshold && buyScore > sellScore && buyScore > 0:
		d.ShouldTrade = true
		d.Direction = gmo.SideBuy
		d.Confidence = buyScore
		d.Reason = fmt.Sprintf("buy (%s): %s", regime, strings.Join(buyLabels, ", "))
	case sellScore >= threshold && sellScore > buyScore && sellScore > 0:
		d.ShouldTrade = true
		d.Direction = gmo.SideSell
		d.Confidence = sellScore
		d.Reason = fmt.Sprintf("sell (%s): %s", regime, strings.Join(sellLabels, ", "))
	default:
		d.Confidence = math.Max(buyScore, sellScore)
		d.Reason = fmt.Sprintf("weak signals (%s)", regime)
	}

	a.log.Debug().
		Str("regime", string(regime)).
		Str("trend", string(trend)).
		Float64("r_squared", quality.RSquared).
		Float64("buy_score", buyScore).
		Float64("sell_score", sellScore).
		Float64("threshold", threshold).
		Bool("should_trade", d.ShouldTrade).
		Msg("evaluated snapshot")

	return d
}

// ParamsFor returns the regime parameters used for the given regime.
func (a *Aggregator) ParamsFor(regime Regime) RegimeParams {
	if p, ok := a.cfg.Params[regime]; ok {
		return p
	}
	return DefaultRegimeParams()[regime]
}

func (a *Aggregator) collectRSI(snap *IndicatorSnapshot, regime Regime, trend TrendDirection, params RegimeParams) *SignalEntry {
	switch regime {
	case RegimeTrending:
		// Pullback entries only, in the direction of the trend.
		if trend.Bearish() && snap.RSI > params.RSIOverbought {
			return &SignalEntry{Direction: gmo.SideSell, Label: "RSI Pullback Downtrend", Weight: params.RSIWeight}
		}
		if trend.Bullish() && snap.RSI < params.RSIOversold {
			return &SignalEntry{Direction: gmo.SideBuy, Label: "RSI Dip Uptrend", Weight: params.RSIWeight}
		}
	case RegimeRanging:
		if snap.RSI < params.RSIOversold {
			return &SignalEntry{Direction: gmo.SideBuy, Label: "RSI Oversold Range", Weight: params.RSIWeight}
		}
		if snap.RSI > params.RSIOverbought {
			return &SignalEntry{Direction: gmo.SideSell, Label: "RSI Overbought Range", Weight: params.RSIWeight}
		}
	case RegimeVolatile:
		if snap.RSI < params.RSIOversold {
			return &SignalEntry{Direction: gmo.SideBuy, Label: "RSI Extreme Oversold", Weight: params.RSIWeight}
		}
		if snap.RSI > params.RSIOverbought {
			return &SignalEntry{Direction: gmo.SideSell, Label: "RSI Extreme Overbought", Weight: params.RSIWeight}
		}
	}
	return nil
}

func (a *Aggregator) collectMACD(snap *IndicatorSnapshot, trend TrendDirection) *SignalEntry {
	bullishCross := snap.MACDLine > snap.MACDSignal && snap.MACDHistogram > 0
	bearishCross := snap.MACDLine < snap.MACDSignal && snap.MACDHistogram < 0
	magnitude := math.Abs(snap.MACDHistogram)

	if bullishCross && !trend.Bearish() {
		if magnitude > a.cfg.MACDHistogramStrong {
			return &SignalEntry{Direction: gmo.SideBuy, Label: "MACD Strong Bullish", Weight: macdStrongCrossWeight}
		}
		if magnitude > a.cfg.MACDHistogramMin {
			return &SignalEntry{Direction: gmo.SideBuy, Label: "MACD Bullish", Weight: macdCrossWeight}
		}
	}
	if bearishCross && !trend.Bullish() {
		if magnitude > a.cfg.MACDHistogramStrong {
			return &SignalEntry{Direction: gmo.SideSell, Label: "MACD Strong Bearish", Weight: macdStrongCrossWeight}
		}
		if magnitude > a.cfg.MACDHistogramMin {
			return &SignalEntry{Direction: gmo.SideSell, Label: "MACD Bearish", Weight: macdCrossWeight}
		}
	}
	return nil
}

func collectBollinger(snap *IndicatorSnapshot, regime Regime, trend TrendDirection) *SignalEntry {
	width := snap.BBUpper - snap.BBLower
	if width <= 0 {
		return nil
	}
	position := (snap.Price - snap.BBLower) / width

	switch regime {
	case RegimeTrending:
		if trend.Bullish() && position < bbTrendLowerEntry {
			return &SignalEntry{Direction: gmo.SideBuy, Label: "BB Lower Uptrend", Weight: bbTrendWeight}
		}
		if trend.Bearish() && position > bbTrendUpperEntry {
			return &SignalEntry{Direction: gmo.SideSell, Label: "BB Upper Downtrend", Weight: bbTrendWeight}
		}
	case RegimeRanging:
		if position < bbRangeLowerEntry {
			return &SignalEntry{Direction: gmo.SideBuy, Label: "BB Bounce Range", Weight: bbRangeWeight}
		}
		if position > bbRangeUpperEntry {
			return &SignalEntry{Direction: gmo.SideSell, Label: "BB Rejection Range", Weight: bbRangeWeight}
		}
	}
	return nil
}

func collectEMAAlignment(snap *IndicatorSnapshot, strength float64) *SignalEntry {
	// Both EMAs must be computable; a short history zeroes the slow one.
	if snap.EMAFast <= 0 || snap.EMASlow <= 0 {
		return nil
	}

	weight := 0.5 + math.Min(0.5, math.Abs(strength)*10)

	if snap.EMAFast > snap.EMASlow*(1+emaAlignRatio) && snap.Price > snap.EMAFast*(1+emaPriceClearRatio) {
		return &SignalEntry{Direction: gmo.SideBuy, Label: "EMA Bullish Align", Weight: weight}
	}
	if snap.EMAFast < snap.EMASlow*(1-emaAlignRatio) && snap.Price < snap.EMAFast*(1-emaPriceClearRatio) {
		return &SignalEntry{Direction: gmo.SideSell, Label: "EMA Bearish Align", Weight: weight}
	}
	return nil
}

// counterTrend reports whether the entry direction runs against the
// detected trend direction.
func counterTrend(dir gmo.Side, trend TrendDirection) bool {
	return (trend.Bullish() && dir == gmo.SideSell) || (trend.Bearish() && dir == gmo.SideBuy)
}

func patternLabel(t patterns.PatternType) string {
	switch t {
	case patterns.PatternBullishEngulfing:
		return "Bullish Engulfing"
	case patterns.PatternBearishEngulfing:
		return "Bearish Engulfing"
	}
	return string(t)
}
