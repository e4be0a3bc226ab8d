package gmo

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

const (
	DefaultPublicBaseURL  = "https://api.coin.z.com/public"
	DefaultPrivateBaseURL = "https://api.coin.z.com/private"
)

// Client talks to the GMO Coin REST API.
type Client struct {
	apiKey         string
	secretKey      string
	publicBaseURL  string
	privateBaseURL string
	httpClient     *http.Client
	breaker        *gobreaker.CircuitBreaker
}

// NewClient creates a GMO Coin client. Empty base URLs fall back to the
// production endpoints. Private calls run behind a circuit breaker so a
// failing exchange is not hammered every cycle.
func NewClient(apiKey, secretKey, publicBaseURL, privateBaseURL string) *Client {
	if publicBaseURL == "" {
		publicBaseURL = DefaultPublicBaseURL
	}
	if privateBaseURL == "" {
		privateBaseURL = DefaultPrivateBaseURL
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gmo-private",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		apiKey:         apiKey,
		secretKey:      secretKey,
		publicBaseURL:  publicBaseURL,
		privateBaseURL: privateBaseURL,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		breaker:        breaker,
	}
}

type apiEnvelope struct {
	Status   int             `json:"status"`
	Data     json.RawMessage `json:"data"`
	Messages []apiMessage    `json:"messages"`
}

type apiMessage struct {
	Code   string `json:"message_code"`
	String string `json:"message_string"`
}

// GetTicker fetches the current ticker for a symbol.
func (c *Client) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	data, err := c.publicRequest(ctx, "/v1/ticker", params)
	if err != nil {
		return nil, fmt.Errorf("error fetching ticker: %w", err)
	}

	var tickers []Ticker
	if err := json.Unmarshal(data, &tickers); err != nil {
		return nil, fmt.Errorf("error parsing ticker: %w", err)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("empty ticker response for %s", symbol)
	}

	return &tickers[0], nil
}

// GetKlines fetches candlestick data for one trading day. GMO keys the
// klines endpoint by date (YYYYMMDD), so callers needing a minimum bar
// count should use RecentKlines.
func (c *Client) GetKlines(ctx context.Context, symbol, interval, date string) ([]Kline, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("date", date)

	data, err := c.publicRequest(ctx, "/v1/klines", params)
	if err != nil {
		return nil, fmt.Errorf("error fetching klines: %w", err)
	}

	var klines []Kline
	if err := json.Unmarshal(data, &klines); err != nil {
		return nil, fmt.Errorf("error parsing klines: %w", err)
	}

	return klines, nil
}

// GetAssets fetches spot account balances.
func (c *Client) GetAssets(ctx context.Context) ([]Asset, error) {
	data, err := c.privateRequest(ctx, http.MethodGet, "/v1/account/assets", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching assets: %w", err)
	}

	var assets []Asset
	if err := json.Unmarshal(data, &assets); err != nil {
		return nil, fmt.Errorf("error parsing assets: %w", err)
	}

	return assets, nil
}

// GetMarginAccount fetches the leverage account summary.
func (c *Client) GetMarginAccount(ctx context.Context) (*MarginAccount, error) {
	data, err := c.privateRequest(ctx, http.MethodGet, "/v1/account/margin", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching margin account: %w", err)
	}

	var account MarginAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("error parsing margin account: %w", err)
	}

	return &account, nil
}

// OpenPositions lists open leverage positions for a symbol. The returned
// list is the source of truth for reconciliation each cycle.
func (c *Client) OpenPositions(ctx context.Context, symbol string) ([]Position, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("page", "1")
	params.Set("count", "100")

	data, err := c.privateRequest(ctx, http.MethodGet, "/v1/openPositions", params, nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching positions: %w", err)
	}

	var payload struct {
		List []Position `json:"list"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("error parsing positions: %w", err)
		}
	}

	return payload.List, nil
}

// OpenPosition places a market order opening a leverage position.
// Success means the order was accepted, not filled; callers confirm the
// resulting position by re-fetching OpenPositions.
func (c *Client) OpenPosition(ctx context.Context, symbol string, side Side, size, sizeStep float64) (*OrderResult, error) {
	body := map[string]interface{}{
		"symbol":        symbol,
		"side":          string(side),
		"executionType": "MARKET",
		"size":          FormatSize(size, sizeStep),
	}

	data, err := c.privateRequest(ctx, http.MethodPost, "/v1/order", nil, body)
	if err != nil {
		return nil, fmt.Errorf("error placing order: %w", err)
	}

	return parseOrderResult(data)
}

// ClosePosition places a market settlement order against one position.
func (c *Client) ClosePosition(ctx context.Context, pos Position, sizeStep float64) (*OrderResult, error) {
	body := map[string]interface{}{
		"symbol":        pos.Symbol,
		"side":          string(pos.Side.Opposite()),
		"executionType": "MARKET",
		"settlePosition": []map[string]interface{}{
			{
				"positionId": pos.ID,
				"size":       FormatSize(pos.Size, sizeStep),
			},
		},
	}

	data, err := c.privateRequest(ctx, http.MethodPost, "/v1/closeOrder", nil, body)
	if err != nil {
		return nil, fmt.Errorf("error closing position %d: %w", pos.ID, err)
	}

	return parseOrderResult(data)
}

// CloseBulk settles all positions of one side with a single market order.
func (c *Client) CloseBulk(ctx context.Context, symbol string, side Side, size, sizeStep float64) (*OrderResult, error) {
	body := map[string]interface{}{
		"symbol":        symbol,
		"side":          string(side.Opposite()),
		"executionType": "MARKET",
		"size":          FormatSize(size, sizeStep),
	}

	data, err := c.privateRequest(ctx, http.MethodPost, "/v1/closeBulkOrder", nil, body)
	if err != nil {
		return nil, fmt.Errorf("error bulk closing %s: %w", side, err)
	}

	return parseOrderResult(data)
}

func parseOrderResult(data json.RawMessage) (*OrderResult, error) {
	// The order endpoints return the accepted order ID as a bare JSON
	// string or number.
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		return &OrderResult{OrderID: asString}, nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err == nil {
		return &OrderResult{OrderID: asNumber.String()}, nil
	}
	return &OrderResult{}, nil
}

// FormatSize renders an order size as the decimal string GMO expects,
// floored to the instrument's size step (whole units for DOGE_JPY).
func FormatSize(size, step float64) string {
	d := decimal.NewFromFloat(size)
	if step > 0 {
		s := decimal.NewFromFloat(step)
		d = d.Div(s).Floor().Mul(s)
	}
	return d.String()
}

// FormatPrice renders a price without binary float artifacts.
func FormatPrice(price float64) string {
	return decimal.NewFromFloat(price).String()
}

func (c *Client) publicRequest(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	endpoint := c.publicBaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	return c.do(req)
}

func (c *Client) privateRequest(ctx context.Context, method, path string, params url.Values, body map[string]interface{}) (json.RawMessage, error) {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error encoding request body: %w", err)
		}
	}

	endpoint := c.privateBaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}

	req.Header.Set("API-KEY", c.apiKey)
	req.Header.Set("API-TIMESTAMP", timestamp)
	// The exchange signs over timestamp+method+path+body; query
	// parameters stay out of the signature.
	req.Header.Set("API-SIGN", c.sign(timestamp, method, path, bodyBytes))
	if len(bodyBytes) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(req)
	})
	if err != nil {
		return nil, err
	}

	return result.(json.RawMessage), nil
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransient, err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrTransient, resp.StatusCode, string(raw))
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("error parsing response envelope: %w", err)
	}

	if envelope.Status != 0 {
		apiErr := &APIError{Status: envelope.Status}
		if len(envelope.Messages) > 0 {
			apiErr.Code = envelope.Messages[0].Code
			apiErr.Message = envelope.Messages[0].String
		}
		return nil, apiErr
	}

	return envelope.Data, nil
}

// sign builds the HMAC-SHA256 signature over timestamp+method+path+body.
func (c *Client) sign(timestamp, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
