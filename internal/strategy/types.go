package strategy

import (
	"gmo-trading-bot/internal/gmo"
)

// Regime is the coarse classification of current market behavior. It is
// derived fresh every cycle and never persisted as authoritative state.
type Regime string

const (
	RegimeTrending Regime = "TRENDING"
	RegimeRanging  Regime = "RANGING"
	RegimeVolatile Regime = "VOLATILE"
)

// TrendDirection is the detected EMA-trend direction used to gate
// counter-trend oscillator signals.
type TrendDirection string

const (
	TrendStrongUp   TrendDirection = "STRONG_UP"
	TrendUp         TrendDirection = "UP"
	TrendNeutral    TrendDirection = "NEUTRAL"
	TrendDown       TrendDirection = "DOWN"
	TrendStrongDown TrendDirection = "STRONG_DOWN"
)

// Bullish reports whether the direction points up.
func (d TrendDirection) Bullish() bool {
	return d == TrendUp || d == TrendStrongUp
}

// Bearish reports whether the direction points down.
func (d TrendDirection) Bearish() bool {
	return d == TrendDown || d == TrendStrongDown
}

// SignalEntry is one directional vote from an indicator or pattern.
// Entries combine additively per direction.
type SignalEntry struct {
	Direction gmo.Side `json:"direction"`
	Label     string   `json:"label"`
	Weight    float64  `json:"weight"`
}

// TradeDecision is the aggregator's verdict for one invocation. Immutable
// once produced; SL/TP are attached by the risk calculator before an
// entry is executed.
type TradeDecision struct {
	ShouldTrade bool           `json:"should_trade"`
	Direction   gmo.Side       `json:"direction,omitempty"`
	Confidence  float64        `json:"confidence"`
	Threshold   float64        `json:"threshold"`
	Reason      string         `json:"reason"`
	Regime      Regime         `json:"regime"`
	Trend       TrendDirection `json:"trend"`
	Quality     TrendQuality   `json:"quality"`
	BuyScore    float64        `json:"buy_score"`
	SellScore   float64        `json:"sell_score"`
	Entries     []SignalEntry  `json:"entries,omitempty"`
	StopLoss    float64        `json:"stop_loss,omitempty"`
	TakeProfit  float64        `json:"take_profit,omitempty"`
}

// TrendQuality reports how well a straight line explains the recent
// closes. RSquared is always within [0, 1].
type TrendQuality struct {
	SlopeNormalized float64 `json:"slope_normalized"`
	RSquared        float64 `json:"r_squared"`
}

// RegimeParams is the per-regime parameter record. The standard threshold
// guards ordinary entries; the lower reversal threshold applies when
// evaluating a close or the immediately-following opposite entry.
type RegimeParams struct {
	StandardThreshold float64 `json:"standard_threshold"`
	ReversalThreshold float64 `json:"reversal_threshold"`
	StopMult          float64 `json:"stop_mult"`
	TPMult            float64 `json:"tp_mult"`
	RSIOversold       float64 `json:"rsi_oversold"`
	RSIOverbought     float64 `json:"rsi_overbought"`
	RSIWeight         float64 `json:"rsi_weight"`
}

// RegimeParamMap keys parameter records by regime.
type RegimeParamMap map[Regime]RegimeParams

// DefaultRegimeParams returns the parameter map the live system last ran
// with. Every value is overridable through configuration.
func DefaultRegimeParams() RegimeParamMap {
	return RegimeParamMap{
		RegimeTrending: {
			StandardThreshold: 1.0,
			ReversalThreshold: 0.8,
			StopMult:          2.0,
			TPMult:            4.0,
			RSIOversold:       40,
			RSIOverbought:     60,
			RSIWeight:         0.8,
		},
		RegimeRanging: {
			StandardThreshold: 1.2,
			ReversalThreshold: 1.0,
			StopMult:          1.5,
			TPMult:            2.5,
			RSIOversold:       30,
			RSIOverbought:     70,
			RSIWeight:         0.7,
		},
		RegimeVolatile: {
			StandardThreshold: 2.0,
			ReversalThreshold: 1.5,
			StopMult:          3.0,
			TPMult:            5.0,
			RSIOversold:       25,
			RSIOverbought:     75,
			RSIWeight:         0.6,
		},
	}
}
