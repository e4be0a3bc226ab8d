package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"gmo-trading-bot/internal/events"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifyTradeOpen  NotificationType = "trade_open"
	NotifyTradeClose NotificationType = "trade_close"
	NotifyGuard      NotificationType = "guard"
	NotifyError      NotificationType = "error"
)

// Notification represents a notification message
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Symbol    string
	Price     float64
	PLRatio   float64
	Timestamp time.Time
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager fans notifications out to all enabled providers and can feed
// itself from the event bus.
type Manager struct {
	notifiers []Notifier
	enabled   bool
	log       zerolog.Logger
}

// NewManager creates a new notification manager
func NewManager(enabled bool, log zerolog.Logger) *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   enabled,
		log:       log.With().Str("component", "notification").Logger(),
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(notification *Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(notification); err != nil {
				m.log.Warn().Err(err).Str("notifier", n.Name()).Msg("notification failed")
				lastErr = err
			}
		}
	}
	return lastErr
}

// BindBus subscribes the manager to the trading events worth telling a
// human about. Subscribers already run on their own goroutines, so slow
// webhooks never block the decision loop.
func (m *Manager) BindBus(bus *events.EventBus) {
	bus.Subscribe(events.EventPositionOpened, func(e events.Event) {
		m.Send(&Notification{
			Type:  NotifyTradeOpen,
			Title: fmt.Sprintf("📈 Position Opened: %v", e.Data["symbol"]),
			Message: fmt.Sprintf("%v %v @ %.4f\nSL: %.4f | TP: %.4f\nReason: %v",
				e.Data["side"], e.Data["symbol"], floatField(e, "price"),
				floatField(e, "stop_loss"), floatField(e, "take_profit"), e.Data["reason"]),
			Symbol:    stringField(e, "symbol"),
			Price:     floatField(e, "price"),
			Timestamp: e.Timestamp,
		})
	})

	bus.Subscribe(events.EventPositionClosed, func(e events.Event) {
		plRatio := floatField(e, "pl_ratio")
		emoji := "✅"
		if plRatio < 0 {
			emoji = "❌"
		}
		m.Send(&Notification{
			Type:  NotifyTradeClose,
			Title: fmt.Sprintf("%s Position Closed: %v", emoji, e.Data["symbol"]),
			Message: fmt.Sprintf("Entry: %.4f → Exit: %.4f\nP&L: %.2f%%\nReason: %v",
				floatField(e, "entry_price"), floatField(e, "exit_price"),
				plRatio*100, e.Data["reason"]),
			Symbol:    stringField(e, "symbol"),
			Price:     floatField(e, "exit_price"),
			PLRatio:   plRatio,
			Timestamp: e.Timestamp,
		})
	})

	bus.Subscribe(events.EventGuardTripped, func(e events.Event) {
		m.Send(&Notification{
			Type:      NotifyGuard,
			Title:     "🛑 Loss Guard Tripped",
			Message:   fmt.Sprintf("Trading halted: %v", e.Data["reason"]),
			Timestamp: e.Timestamp,
		})
	})

	bus.Subscribe(events.EventOrderRejected, func(e events.Event) {
		m.Send(&Notification{
			Type:      NotifyError,
			Title:     fmt.Sprintf("⚠️ Order Rejected: %v", e.Data["symbol"]),
			Message:   fmt.Sprintf("%v order rejected: %v", e.Data["side"], e.Data["message"]),
			Symbol:    stringField(e, "symbol"),
			Timestamp: e.Timestamp,
		})
	})
}

func stringField(e events.Event, key string) string {
	if v, ok := e.Data[key].(string); ok {
		return v
	}
	return ""
}

func floatField(e events.Event, key string) float64 {
	if v, ok := e.Data[key].(float64); ok {
		return v
	}
	return 0
}

// WebhookNotifier posts notifications to a generic JSON webhook. The
// payload uses the Discord embed shape, which most chat webhooks accept.
type WebhookNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// WebhookConfig holds webhook configuration
type WebhookConfig struct {
	URL     string
	Enabled bool
	Timeout time.Duration
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier(config WebhookConfig) *WebhookNotifier {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		webhookURL: config.URL,
		enabled:    config.Enabled && config.URL != "",
		client:     &http.Client{Timeout: timeout},
	}
}

func (w *WebhookNotifier) Name() string {
	return "webhook"
}

func (w *WebhookNotifier) IsEnabled() bool {
	return w.enabled
}

func (w *WebhookNotifier) Send(notification *Notification) error {
	if !w.enabled {
		return nil
	}

	color := 0x00FF00
	if notification.Type == NotifyError || notification.Type == NotifyGuard {
		color = 0xFF0000
	} else if notification.Type == NotifyTradeClose && notification.PLRatio < 0 {
		color = 0xFF0000
	}

	embed := map[string]interface{}{
		"title":       notification.Title,
		"description": notification.Message,
		"color":       color,
		"timestamp":   notification.Timestamp.Format(time.RFC3339),
	}

	if notification.Symbol != "" {
		fields := []map[string]interface{}{
			{"name": "Symbol", "value": notification.Symbol, "inline": true},
		}
		if notification.Price > 0 {
			fields = append(fields, map[string]interface{}{
				"name": "Price", "value": fmt.Sprintf("%.4f", notification.Price), "inline": true,
			})
		}
		if notification.PLRatio != 0 {
			fields = append(fields, map[string]interface{}{
				"name": "P&L", "value": fmt.Sprintf("%.2f%%", notification.PLRatio*100), "inline": true,
			})
		}
		embed["fields"] = fields
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	resp, err := w.client.Post(w.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send webhook message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
