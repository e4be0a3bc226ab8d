package gmo

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a scripted exchange double for tests and dry runs. Tests
// set the market fields and inspect the recorded calls.
type MockClient struct {
	mu sync.Mutex

	Klines    []Kline
	TickerVal *Ticker
	Margin    *MarginAccount
	Positions []Position

	// Errors returned by the corresponding calls when non-nil.
	KlinesErr    error
	TickerErr    error
	PositionsErr error
	OpenErr      error
	CloseErr     error

	OpenCalls  []MockOpenCall
	CloseCalls []MockCloseCall

	nextPositionID int64
}

// MockOpenCall records one OpenPosition invocation.
type MockOpenCall struct {
	Symbol string
	Side   Side
	Size   float64
}

// MockCloseCall records one ClosePosition invocation.
type MockCloseCall struct {
	PositionID int64
	Side       Side
}

// NewMockClient creates an empty scripted client.
func NewMockClient() *MockClient {
	return &MockClient{nextPositionID: 1000}
}

func (m *MockClient) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TickerErr != nil {
		return nil, m.TickerErr
	}
	if m.TickerVal == nil {
		return nil, fmt.Errorf("mock: no ticker configured")
	}
	t := *m.TickerVal
	return &t, nil
}

func (m *MockClient) RecentKlines(ctx context.Context, symbol, interval string, minBars int) ([]Kline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.KlinesErr != nil {
		return nil, m.KlinesErr
	}
	out := make([]Kline, len(m.Klines))
	copy(out, m.Klines)
	return out, nil
}

func (m *MockClient) GetMarginAccount(ctx context.Context) (*MarginAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Margin == nil {
		return &MarginAccount{}, nil
	}
	acct := *m.Margin
	return &acct, nil
}

func (m *MockClient) OpenPositions(ctx context.Context, symbol string) ([]Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PositionsErr != nil {
		return nil, m.PositionsErr
	}
	out := make([]Position, len(m.Positions))
	copy(out, m.Positions)
	return out, nil
}

func (m *MockClient) OpenPosition(ctx context.Context, symbol string, side Side, size, sizeStep float64) (*OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	m.OpenCalls = append(m.OpenCalls, MockOpenCall{Symbol: symbol, Side: side, Size: size})
	m.nextPositionID++
	return &OrderResult{OrderID: fmt.Sprintf("%d", m.nextPositionID)}, nil
}

func (m *MockClient) ClosePosition(ctx context.Context, pos Position, sizeStep float64) (*OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CloseErr != nil {
		return nil, m.CloseErr
	}
	m.CloseCalls = append(m.CloseCalls, MockCloseCall{PositionID: pos.ID, Side: pos.Side})
	return &OrderResult{OrderID: fmt.Sprintf("close-%d", pos.ID)}, nil
}

func (m *MockClient) CloseBulk(ctx context.Context, symbol string, side Side, size, sizeStep float64) (*OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CloseErr != nil {
		return nil, m.CloseErr
	}
	m.CloseCalls = append(m.CloseCalls, MockCloseCall{PositionID: 0, Side: side})
	return &OrderResult{OrderID: "bulk"}, nil
}
