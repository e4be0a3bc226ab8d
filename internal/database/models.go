package database

import "time"

// TradeRow is one settled trade as stored in the trades table.
type TradeRow struct {
	ID         int64     `json:"id"`
	TradeID    string    `json:"trade_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	PLRatio    float64   `json:"pl_ratio"`
	Reason     string    `json:"reason"`
	ClosedAt   time.Time `json:"closed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// TradeSummary aggregates the stored history.
type TradeSummary struct {
	TotalTrades  int64   `json:"total_trades"`
	Wins         int64   `json:"wins"`
	TotalPLRatio float64 `json:"total_pl_ratio"`
}
