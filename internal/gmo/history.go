package gmo

import (
	"context"
	"time"
)

// jst is the exchange's trading-day timezone; kline dates are keyed to it.
var jst = time.FixedZone("JST", 9*60*60)

// RecentKlines assembles at least minBars candles by walking trading days
// backwards from today, oldest first. Days the exchange has no data for
// are skipped; transport failures abort. Fewer than minBars may be
// returned when history is genuinely short; the caller owns that check.
func (c *Client) RecentKlines(ctx context.Context, symbol, interval string, minBars int) ([]Kline, error) {
	const maxLookbackDays = 7

	var out []Kline
	var lastErr error
	day := time.Now().In(jst)

	for i := 0; i < maxLookbackDays && len(out) < minBars; i++ {
		date := day.AddDate(0, 0, -i).Format("20060102")
		klines, err := c.GetKlines(ctx, symbol, interval, date)
		if err != nil {
			if IsRejection(err) {
				// No data published for this day yet.
				lastErr = err
				continue
			}
			return nil, err
		}
		out = append(klines, out...)
	}

	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}

	return out, nil
}
