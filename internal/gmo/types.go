package gmo

import "time"

// Side is an order/position direction as GMO Coin encodes it.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing side for a position side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Kline represents a candlestick from the public klines endpoint.
type Kline struct {
	OpenTime int64   `json:"openTime,string"`
	Open     float64 `json:"open,string"`
	High     float64 `json:"high,string"`
	Low      float64 `json:"low,string"`
	Close    float64 `json:"close,string"`
	Volume   float64 `json:"volume,string"`
}

// Ticker represents the current market snapshot for a symbol.
type Ticker struct {
	Symbol    string    `json:"symbol"`
	Ask       float64   `json:"ask,string"`
	Bid       float64   `json:"bid,string"`
	High      float64   `json:"high,string"`
	Low       float64   `json:"low,string"`
	Last      float64   `json:"last,string"`
	Volume    float64   `json:"volume,string"`
	Timestamp time.Time `json:"timestamp"`
}

// Position is an open leverage position. The exchange owns this record;
// callers must refetch rather than cache it across cycles.
type Position struct {
	ID     int64   `json:"positionId"`
	Symbol string  `json:"symbol"`
	Side   Side    `json:"side"`
	Size   float64 `json:"size,string"`
	// The exchange really does spell the field "orderdSize".
	OrderedSize float64   `json:"orderdSize,string"`
	Price       float64   `json:"price,string"`
	LossGain    float64   `json:"lossGain,string"`
	Leverage    float64   `json:"leverage,string"`
	Timestamp   time.Time `json:"timestamp"`
}

// Asset is one entry of the account assets response.
type Asset struct {
	Symbol    string  `json:"symbol"`
	Amount    float64 `json:"amount,string"`
	Available float64 `json:"available,string"`
}

// MarginAccount summarizes the leverage account.
type MarginAccount struct {
	ActualProfitLoss float64 `json:"actualProfitLoss,string"`
	AvailableAmount  float64 `json:"availableAmount,string"`
	Margin           float64 `json:"margin,string"`
	MarginRatio      float64 `json:"marginRatio,string"`
	ProfitLoss       float64 `json:"profitLoss,string"`
}

// OrderResult is the acknowledgement returned by order endpoints.
// GMO returns just the accepted order ID; fills are confirmed by
// re-fetching positions.
type OrderResult struct {
	OrderID string
}
