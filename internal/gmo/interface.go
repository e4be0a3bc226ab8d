package gmo

import "context"

// ExchangeClient defines the exchange operations the trading engine needs.
type ExchangeClient interface {
	GetTicker(ctx context.Context, symbol string) (*Ticker, error)
	RecentKlines(ctx context.Context, symbol, interval string, minBars int) ([]Kline, error)
	GetMarginAccount(ctx context.Context) (*MarginAccount, error)
	OpenPositions(ctx context.Context, symbol string) ([]Position, error)
	OpenPosition(ctx context.Context, symbol string, side Side, size, sizeStep float64) (*OrderResult, error)
	ClosePosition(ctx context.Context, pos Position, sizeStep float64) (*OrderResult, error)
	CloseBulk(ctx context.Context, symbol string, side Side, size, sizeStep float64) (*OrderResult, error)
}

// Ensure both implementations satisfy the interface.
var _ ExchangeClient = (*Client)(nil)
var _ ExchangeClient = (*MockClient)(nil)
