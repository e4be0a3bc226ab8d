package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gmo-trading-bot/config"
	"gmo-trading-bot/internal/auth"
	"gmo-trading-bot/internal/bot"
	"gmo-trading-bot/internal/events"
	"gmo-trading-bot/internal/gmo"
	"gmo-trading-bot/internal/metrics"
	"gmo-trading-bot/internal/performance"
	"gmo-trading-bot/internal/strategy"
)

// stubEngine is a BotAPI stand-in for handler tests.
type stubEngine struct {
	running   bool
	startErr  error
	closeErr  error
	decision  *strategy.TradeDecision
	stopCalls int
}

func (e *stubEngine) Start() error {
	if e.startErr != nil {
		return e.startErr
	}
	e.running = true
	return nil
}

func (e *stubEngine) Stop() {
	e.stopCalls++
	e.running = false
}

func (e *stubEngine) IsRunning() bool { return e.running }

func (e *stubEngine) Status() bot.EngineStatus {
	return bot.EngineStatus{Running: e.running, Symbol: "DOGE_JPY"}
}

func (e *stubEngine) LastDecision() *strategy.TradeDecision { return e.decision }

func (e *stubEngine) CloseAll(ctx context.Context) error { return e.closeErr }

func testServer(t *testing.T, engine *stubEngine, authEnabled bool) *Server {
	t.Helper()

	hash, err := auth.HashPassword("test-password")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	serverCfg := config.ServerConfig{
		Port:         8080,
		Host:         "127.0.0.1",
		ReadTimeout:  15,
		WriteTimeout: 15,
	}
	authCfg := config.AuthConfig{
		Enabled:             authEnabled,
		JWTSecret:           "test-secret",
		Username:            "operator",
		PasswordHash:        hash,
		AccessTokenDuration: time.Hour,
	}

	fullCfg := &config.Config{
		ExchangeConfig: config.ExchangeConfig{APIKey: "live-key", APISecret: "live-secret"},
		TradingConfig:  config.TradingConfig{Symbol: "DOGE_JPY", OrderSize: 30},
		AuthConfig:     authCfg,
		NotificationConfig: config.NotificationConfig{
			WebhookURL: "https://hooks.example.com/t0k3n",
		},
	}

	return NewServer(serverCfg, authCfg, "DOGE_JPY", Deps{
		Engine:  engine,
		Client:  gmo.NewMockClient(),
		Tracker: performance.NewTracker(),
		Bus:     events.NewEventBus(),
		Metrics: metrics.New(),
		Config:  fullCfg,
		Logger:  zerolog.Nop(),
	})
}

// TestHealthEndpoint tests the public health probe
func TestHealthEndpoint(t *testing.T) {
	s := testServer(t, &stubEngine{}, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Should return 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("Should report healthy, got %v", resp["status"])
	}
}

// TestProtectedRouteRequiresToken tests that auth guards the control routes
func TestProtectedRouteRequiresToken(t *testing.T) {
	s := testServer(t, &stubEngine{}, true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Should return 401 without a token, got %d", w.Code)
	}
}

// TestLoginAndAccessProtectedRoute tests the full login flow
func TestLoginAndAccessProtectedRoute(t *testing.T) {
	s := testServer(t, &stubEngine{running: true}, true)

	body, _ := json.Marshal(map[string]string{
		"username": "operator",
		"password": "test-password",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Should log in with valid credentials, got %d: %s", w.Code, w.Body.String())
	}

	var loginResp struct {
		Token     string `json:"token"`
		ExpiresIn int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("Failed to decode login response: %v", err)
	}
	if loginResp.Token == "" {
		t.Fatal("Should return a token")
	}
	if loginResp.ExpiresIn != 3600 {
		t.Errorf("Should expire in 3600 seconds, got %d", loginResp.ExpiresIn)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", loginResp.Token))
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Should access status with a valid token, got %d", w.Code)
	}

	var status bot.EngineStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if !status.Running {
		t.Error("Should report the engine as running")
	}
}

// TestLoginRejectsBadPassword tests that wrong credentials are rejected
func TestLoginRejectsBadPassword(t *testing.T) {
	s := testServer(t, &stubEngine{}, true)

	body, _ := json.Marshal(map[string]string{
		"username": "operator",
		"password": "wrong",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Should return 401 for a wrong password, got %d", w.Code)
	}
}

// TestAuthDisabledAllowsAccess tests that the control routes open up
// when authentication is turned off
func TestAuthDisabledAllowsAccess(t *testing.T) {
	s := testServer(t, &stubEngine{}, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Should allow access without a token, got %d", w.Code)
	}
}

// TestBotStartConflict tests that a failed start maps to 409
func TestBotStartConflict(t *testing.T) {
	engine := &stubEngine{startErr: fmt.Errorf("already running")}
	s := testServer(t, engine, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bot/start", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("Should return 409 when start fails, got %d", w.Code)
	}
}

// TestBotStopAlwaysSucceeds tests the stop route
func TestBotStopAlwaysSucceeds(t *testing.T) {
	engine := &stubEngine{running: true}
	s := testServer(t, engine, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bot/stop", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Should return 200, got %d", w.Code)
	}
	if engine.stopCalls != 1 {
		t.Errorf("Should call Stop once, got %d", engine.stopCalls)
	}
}

// TestDecisionNotFound tests the decision route before any cycle ran
func TestDecisionNotFound(t *testing.T) {
	s := testServer(t, &stubEngine{}, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/decision", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Should return 404 before the first decision, got %d", w.Code)
	}
}

// TestConfigRedactsSecrets tests that the config route never returns
// credentials and never mutates the live configuration
func TestConfigRedactsSecrets(t *testing.T) {
	s := testServer(t, &stubEngine{}, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/config", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Should return 200, got %d", w.Code)
	}

	var resp config.Config
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode config: %v", err)
	}
	if resp.TradingConfig.Symbol != "DOGE_JPY" {
		t.Errorf("Should keep the trading symbol, got %q", resp.TradingConfig.Symbol)
	}
	if resp.ExchangeConfig.APIKey != "" || resp.ExchangeConfig.APISecret != "" {
		t.Error("Should blank the exchange credentials")
	}
	if resp.AuthConfig.JWTSecret != "" || resp.AuthConfig.PasswordHash != "" {
		t.Error("Should blank the JWT secret and password hash")
	}
	if resp.NotificationConfig.WebhookURL != "" {
		t.Error("Should blank the webhook URL")
	}

	if s.fullCfg.ExchangeConfig.APISecret != "live-secret" {
		t.Error("Should leave the live configuration untouched")
	}
}

// TestConfigNotAvailable tests the config route when no configuration
// was handed to the server
func TestConfigNotAvailable(t *testing.T) {
	s := testServer(t, &stubEngine{}, false)
	s.fullCfg = nil

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/config", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Should return 404 without a configuration, got %d", w.Code)
	}
}

// TestRateLimiter tests the sliding window limiter
func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("10.0.0.1") {
			t.Fatalf("Should allow request %d", i+1)
		}
	}
	if limiter.Allow("10.0.0.1") {
		t.Error("Should block the request over the limit")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Error("Should track keys independently")
	}
}
