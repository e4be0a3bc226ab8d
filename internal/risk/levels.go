package risk

import (
	"gmo-trading-bot/internal/gmo"
	"gmo-trading-bot/internal/strategy"
)

// DefaultATRFallbackFraction substitutes for the ATR, as a fraction of
// price, when the history is too short to compute one.
const DefaultATRFallbackFraction = 0.01

// Levels are the protective prices attached to a new entry.
type Levels struct {
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
}

// Calculator derives stop and target prices from the ATR and the
// per-regime multipliers.
type Calculator struct {
	params           strategy.RegimeParamMap
	fallbackFraction float64
}

// NewCalculator creates a calculator over the given multiplier map.
// A fallbackFraction <= 0 selects DefaultATRFallbackFraction.
func NewCalculator(params strategy.RegimeParamMap, fallbackFraction float64) *Calculator {
	if fallbackFraction <= 0 {
		fallbackFraction = DefaultATRFallbackFraction
	}
	return &Calculator{params: params, fallbackFraction: fallbackFraction}
}

// Compute returns the stop and target for an entry at price under the
// given regime. BUY stops below and targets above; SELL is mirrored.
func (c *Calculator) Compute(side gmo.Side, price, atr float64, regime strategy.Regime) Levels {
	p, ok := c.params[regime]
	if !ok {
		p = strategy.DefaultRegimeParams()[regime]
	}
	if atr <= 0 {
		atr = price * c.fallbackFraction
	}

	if side == gmo.SideBuy {
		return Levels{
			StopLoss:   price - atr*p.StopMult,
			TakeProfit: price + atr*p.TPMult,
		}
	}
	return Levels{
		StopLoss:   price + atr*p.StopMult,
		TakeProfit: price - atr*p.TPMult,
	}
}
