package risk

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// GuardState represents the loss guard state
type GuardState string

const (
	GuardClosed   GuardState = "closed"    // Normal operation
	GuardOpen     GuardState = "open"      // Trading halted
	GuardHalfOpen GuardState = "half_open" // Testing recovery
)

// GuardConfig holds loss guard configuration
type GuardConfig struct {
	Enabled              bool    `json:"enabled"`
	MaxLossPerHour       float64 `json:"max_loss_per_hour"`      // Max loss % per hour
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"` // Max losing trades in a row
	CooldownMinutes      int     `json:"cooldown_minutes"`       // Cooldown after trip
	MaxDailyLoss         float64 `json:"max_daily_loss"`         // Max daily loss %
	MaxDailyTrades       int     `json:"max_daily_trades"`       // Max trades per day
}

// DefaultGuardConfig returns safe defaults
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Enabled:              true,
		MaxLossPerHour:       3.0,
		MaxConsecutiveLosses: 5,
		CooldownMinutes:      30,
		MaxDailyLoss:         5.0,
		MaxDailyTrades:       100,
	}
}

// LossGuard halts new entries after a losing streak or a loss-limit
// breach. Closes are never blocked, only entries.
type LossGuard struct {
	config            GuardConfig
	state             GuardState
	consecutiveLosses int
	hourlyLoss        float64
	dailyLoss         float64
	dailyTrades       int
	lastTripTime      time.Time
	hourlyResetTime   time.Time
	dailyResetTime    time.Time
	tripReason        string
	mu                sync.Mutex
	onTrip            func(reason string)
	onReset           func()
}

// NewLossGuard creates a loss guard with the given configuration.
func NewLossGuard(config GuardConfig) *LossGuard {
	now := time.Now()
	return &LossGuard{
		config:          config,
		state:           GuardClosed,
		hourlyResetTime: now.Add(time.Hour),
		dailyResetTime:  now.Truncate(24 * time.Hour).Add(24 * time.Hour),
	}
}

// OnTrip sets the callback invoked when the guard trips
func (g *LossGuard) OnTrip(handler func(reason string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onTrip = handler
}

// OnReset sets the callback invoked when the guard recovers
func (g *LossGuard) OnReset(handler func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onReset = handler
}

// Allow checks whether a new entry is permitted. The returned string
// carries the blocking reason when it is not.
func (g *LossGuard) Allow() (bool, string) {
	if !g.config.Enabled {
		return true, ""
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.resetCountersIfNeeded()

	if g.state == GuardOpen {
		elapsed := time.Since(g.lastTripTime)
		cooldown := time.Duration(g.config.CooldownMinutes) * time.Minute

		if elapsed < cooldown {
			remaining := cooldown - elapsed
			return false, fmt.Sprintf("loss guard open, cooldown remaining: %v (reason: %s)",
				remaining.Round(time.Second), g.tripReason)
		}

		// Cooldown passed, allow one probing trade
		g.state = GuardHalfOpen
	}

	if g.hourlyLoss >= g.config.MaxLossPerHour {
		return false, fmt.Sprintf("hourly loss limit reached: %.2f%% >= %.2f%%",
			g.hourlyLoss, g.config.MaxLossPerHour)
	}
	if g.dailyLoss >= g.config.MaxDailyLoss {
		return false, fmt.Sprintf("daily loss limit reached: %.2f%% >= %.2f%%",
			g.dailyLoss, g.config.MaxDailyLoss)
	}
	if g.consecutiveLosses >= g.config.MaxConsecutiveLosses {
		return false, fmt.Sprintf("max consecutive losses reached: %d",
			g.consecutiveLosses)
	}
	if g.dailyTrades >= g.config.MaxDailyTrades {
		return false, fmt.Sprintf("daily trade limit reached: %d trades",
			g.dailyTrades)
	}

	return true, ""
}

// RecordTrade records a closed trade result as a percent P/L.
func (g *LossGuard) RecordTrade(pnlPercent float64) {
	if !g.config.Enabled {
		return
	}
	// NaN/Inf must not poison the counters
	if math.IsNaN(pnlPercent) || math.IsInf(pnlPercent, 0) {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.resetCountersIfNeeded()
	g.dailyTrades++

	if pnlPercent < 0 {
		g.consecutiveLosses++
		g.hourlyLoss += -pnlPercent
		g.dailyLoss += -pnlPercent
	} else {
		g.consecutiveLosses = 0

		if g.state == GuardHalfOpen {
			g.state = GuardClosed
			g.tripReason = ""
			if g.onReset != nil {
				go g.onReset()
			}
		}
	}

	g.checkAndTrip()
}

// checkAndTrip trips the guard when a limit is breached. Caller holds the lock.
func (g *LossGuard) checkAndTrip() {
	if g.state == GuardOpen {
		return
	}

	var reason string
	switch {
	case g.consecutiveLosses >= g.config.MaxConsecutiveLosses:
		reason = fmt.Sprintf("consecutive losses: %d", g.consecutiveLosses)
	case g.hourlyLoss >= g.config.MaxLossPerHour:
		reason = fmt.Sprintf("hourly loss: %.2f%%", g.hourlyLoss)
	case g.dailyLoss >= g.config.MaxDailyLoss:
		reason = fmt.Sprintf("daily loss: %.2f%%", g.dailyLoss)
	}

	if reason != "" {
		g.state = GuardOpen
		g.lastTripTime = time.Now()
		g.tripReason = reason

		if g.onTrip != nil {
			go g.onTrip(reason)
		}
	}
}

// resetCountersIfNeeded resets time-based counters. Caller holds the lock.
func (g *LossGuard) resetCountersIfNeeded() {
	now := time.Now()

	if now.After(g.hourlyResetTime) {
		g.hourlyLoss = 0
		g.hourlyResetTime = now.Add(time.Hour)
	}
	if now.After(g.dailyResetTime) {
		g.dailyLoss = 0
		g.dailyTrades = 0
		g.dailyResetTime = now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	}
}

// ForceReset manually reopens trading
func (g *LossGuard) ForceReset() {
	g.mu.Lock()
	g.state = GuardClosed
	g.consecutiveLosses = 0
	g.tripReason = ""
	onReset := g.onReset
	g.mu.Unlock()

	if onReset != nil {
		go onReset()
	}
}

// State returns the current guard state
func (g *LossGuard) State() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Status returns current statistics
func (g *LossGuard) Status() map[string]interface{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	return map[string]interface{}{
		"enabled":            g.config.Enabled,
		"state":              string(g.state),
		"consecutive_losses": g.consecutiveLosses,
		"hourly_loss":        g.hourlyLoss,
		"daily_loss":         g.dailyLoss,
		"daily_trades":       g.dailyTrades,
		"trip_reason":        g.tripReason,
		"last_trip_time":     g.lastTripTime,
	}
}
