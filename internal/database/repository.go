package database

import (
	"context"

	"gmo-trading-bot/internal/bot"
	"gmo-trading-bot/internal/performance"
)

// Repository provides data access methods. The bot trades a single
// configured instrument, so the repository stamps that symbol on every
// row it writes.
type Repository struct {
	db     *DB
	symbol string
}

var _ bot.TradeRepository = (*Repository)(nil)

// NewRepository creates a new repository
func NewRepository(db *DB, symbol string) *Repository {
	return &Repository{db: db, symbol: symbol}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// SaveTrade inserts a settled trade
func (r *Repository) SaveTrade(ctx context.Context, rec performance.Record) error {
	query := `
		INSERT INTO trades (trade_id, symbol, side, entry_price, exit_price, pl_ratio, reason, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (trade_id) DO NOTHING
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		rec.ID, r.symbol, string(rec.Side), rec.EntryPrice, rec.ExitPrice,
		rec.PLRatio, rec.Reason, rec.ClosedAt,
	)
	return err
}

// RecentTrades retrieves the newest settled trades
func (r *Repository) RecentTrades(ctx context.Context, limit int) ([]TradeRow, error) {
	query := `
		SELECT id, trade_id, symbol, side, entry_price, exit_price, pl_ratio, reason, closed_at, created_at
		FROM trades
		WHERE symbol = $1
		ORDER BY closed_at DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, r.symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []TradeRow
	for rows.Next() {
		var t TradeRow
		err := rows.Scan(
			&t.ID, &t.TradeID, &t.Symbol, &t.Side, &t.EntryPrice, &t.ExitPrice,
			&t.PLRatio, &t.Reason, &t.ClosedAt, &t.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Summary aggregates the stored trade history
func (r *Repository) Summary(ctx context.Context) (*TradeSummary, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE pl_ratio > 0),
		       COALESCE(SUM(pl_ratio), 0)
		FROM trades
		WHERE symbol = $1
	`
	s := &TradeSummary{}
	err := r.db.Pool.QueryRow(ctx, query, r.symbol).Scan(&s.TotalTrades, &s.Wins, &s.TotalPLRatio)
	if err != nil {
		return nil, err
	}
	return s, nil
}
