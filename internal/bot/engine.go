package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gmo-trading-bot/internal/events"
	"gmo-trading-bot/internal/gmo"
	"gmo-trading-bot/internal/metrics"
	"gmo-trading-bot/internal/performance"
	"gmo-trading-bot/internal/risk"
	"gmo-trading-bot/internal/strategy"
)

// LevelStore persists protective levels per position.
type LevelStore interface {
	LevelReader
	SaveLevels(positionID int64, lv risk.Levels) error
	DeleteLevels(positionID int64) error
}

// TradeRepository persists closed trades for later analysis.
type TradeRepository interface {
	SaveTrade(ctx context.Context, rec performance.Record) error
}

// EngineConfig holds the trading loop settings.
type EngineConfig struct {
	Symbol       string
	Interval     string
	OrderSize    float64
	SizeStep     float64
	HistoryBars  int
	LoopInterval time.Duration
	CycleTimeout time.Duration
}

// Deps carries the engine collaborators. Levels and Repo may be nil.
type Deps struct {
	Client     gmo.ExchangeClient
	Aggregator *strategy.Aggregator
	Risk       *risk.Calculator
	Guard      *risk.LossGuard
	Gatekeeper *Gatekeeper
	Reconciler *Reconciler
	Tracker    *performance.Tracker
	Levels     LevelStore
	Repo       TradeRepository
	Bus        *events.EventBus
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// EngineStatus is a point-in-time view for the API layer.
type EngineStatus struct {
	Running      bool                    `json:"running"`
	Symbol       string                  `json:"symbol"`
	LastCycleAt  time.Time               `json:"last_cycle_at"`
	LastError    string                  `json:"last_error,omitempty"`
	LastDecision *strategy.TradeDecision `json:"last_decision,omitempty"`
}

// Engine runs the decision loop: fetch, classify, reconcile open
// positions, then evaluate a new entry. One cycle always runs to
// completion; stopping takes effect between cycles.
type Engine struct {
	cfg     EngineConfig
	client  gmo.ExchangeClient
	agg     *strategy.Aggregator
	calc    *risk.Calculator
	guard   *risk.LossGuard
	gate    *Gatekeeper
	recon   *Reconciler
	tracker *performance.Tracker
	levels  LevelStore
	repo    TradeRepository
	bus     *events.EventBus
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu           sync.Mutex
	running      bool
	stopCh       chan struct{}
	doneCh       chan struct{}
	lastCycleAt  time.Time
	lastError    string
	lastDecision *strategy.TradeDecision
}

// NewEngine creates an engine from its configuration and collaborators.
func NewEngine(cfg EngineConfig, deps Deps) *Engine {
	return &Engine{
		cfg:     cfg,
		client:  deps.Client,
		agg:     deps.Aggregator,
		calc:    deps.Risk,
		guard:   deps.Guard,
		gate:    deps.Gatekeeper,
		recon:   deps.Reconciler,
		tracker: deps.Tracker,
		levels:  deps.Levels,
		repo:    deps.Repo,
		bus:     deps.Bus,
		metrics: deps.Metrics,
		log:     deps.Logger.With().Str("component", "engine").Logger(),
	}
}

// Start launches the decision loop.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("engine already running")
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.mu.Unlock()

	e.log.Info().Str("symbol", e.cfg.Symbol).Dur("interval", e.cfg.LoopInterval).Msg("engine started")
	e.bus.Publish(events.Event{Type: events.EventBotStarted, Data: map[string]interface{}{"symbol": e.cfg.Symbol}})

	go e.loop()
	return nil
}

// Stop halts the loop and waits for any in-flight cycle to finish, so
// a close-then-reopen sequence is never left half-applied.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	stopCh, doneCh := e.stopCh, e.doneCh
	e.mu.Unlock()

	close(stopCh)
	<-doneCh

	e.log.Info().Msg("engine stopped")
	e.bus.Publish(events.Event{Type: events.EventBotStopped, Data: map[string]interface{}{"symbol": e.cfg.Symbol}})
}

// IsRunning reports whether the loop is active.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EngineStatus{
		Running:      e.running,
		Symbol:       e.cfg.Symbol,
		LastCycleAt:  e.lastCycleAt,
		LastError:    e.lastError,
		LastDecision: e.lastDecision,
	}
}

// LastDecision returns the most recent evaluation, if any.
func (e *Engine) LastDecision() *strategy.TradeDecision {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastDecision
}

func (e *Engine) loop() {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.cfg.LoopInterval)
	defer ticker.Stop()

	e.cycle()
	for {
		select {
		case <-ticker.C:
			e.cycle()
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) cycle() {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.CycleTimeout)
	defer cancel()

	err := e.runCycle(ctx)

	e.mu.Lock()
	e.lastCycleAt = time.Now()
	if err != nil {
		e.lastError = err.Error()
	} else {
		e.lastError = ""
	}
	e.mu.Unlock()

	e.metrics.CyclesTotal.Inc()
}

// runCycle performs one full pass. Errors abort the remainder of the
// pass; the next cycle re-fetches everything and positions are the
// source of truth.
func (e *Engine) runCycle(ctx context.Context) error {
	klines, err := e.client.RecentKlines(ctx, e.cfg.Symbol, e.cfg.Interval, e.cfg.HistoryBars)
	if err != nil {
		return e.cycleError("klines", err)
	}

	ticker, err := e.client.GetTicker(ctx, e.cfg.Symbol)
	if err != nil {
		return e.cycleError("ticker", err)
	}

	snap, err := strategy.BuildSnapshot(klines, ticker.Last)
	if err != nil {
		// Input-contract violation: skip this cycle, retry next.
		e.log.Warn().Err(err).Msg("snapshot rejected, skipping cycle")
		e.metrics.DecisionsTotal.WithLabelValues("input_error").Inc()
		return err
	}

	positions, err := e.client.OpenPositions(ctx, e.cfg.Symbol)
	if err != nil {
		return e.cycleError("positions", err)
	}
	e.metrics.OpenPositions.Set(float64(len(positions)))

	if margin, err := e.client.GetMarginAccount(ctx); err == nil {
		e.metrics.AvailableMargin.Set(margin.AvailableAmount)
	}

	// Phase 1: every open position gets a verdict; executing a close
	// never skips the remaining positions.
	assessments := e.recon.Assess(snap, positions)
	closed := 0
	anyReversal := false
	for _, a := range assessments {
		if a.Verdict != VerdictClose {
			continue
		}
		if err := e.executeClose(ctx, a, snap); err != nil {
			continue
		}
		closed++
		if a.CloseReason == CloseReversal {
			anyReversal = true
		}
	}

	// Phase 2: reversal closes re-evaluate the opposite entry in this
	// same cycle with the filters bypassed; otherwise a standard entry
	// check runs only when the book is flat.
	switch {
	case anyReversal:
		e.evaluateEntry(ctx, snap, true)
	case len(positions)-closed == 0:
		e.evaluateEntry(ctx, snap, false)
	}

	return nil
}

func (e *Engine) cycleError(stage string, err error) error {
	kind := "transient"
	if gmo.IsRejection(err) {
		kind = "rejection"
	}
	e.metrics.ExchangeErrorsTotal.WithLabelValues(kind).Inc()
	e.bus.PublishCycleError(stage, err)
	e.log.Warn().Err(err).Str("stage", stage).Msg("cycle aborted")
	return fmt.Errorf("%s: %w", stage, err)
}

// executeClose settles one position and records the realized result.
// An errored close is never assumed successful; the next cycle's
// position fetch decides whether to retry.
func (e *Engine) executeClose(ctx context.Context, a PositionAssessment, snap *strategy.IndicatorSnapshot) error {
	pos := a.Position

	if _, err := e.client.ClosePosition(ctx, pos, e.cfg.SizeStep); err != nil {
		if gmo.IsRejection(err) {
			e.log.Error().Err(err).Int64("position_id", pos.ID).Msg("close rejected")
			e.bus.PublishOrderRejected(pos.Symbol, string(pos.Side.Opposite()), err.Error())
			e.metrics.ExchangeErrorsTotal.WithLabelValues("rejection").Inc()
		} else {
			e.log.Warn().Err(err).Int64("position_id", pos.ID).Msg("close failed, retrying next cycle")
			e.metrics.ExchangeErrorsTotal.WithLabelValues("transient").Inc()
		}
		return err
	}

	rec := e.tracker.Record(pos.Side, pos.Price, snap.Price, a.PLRatio, string(a.CloseReason))
	e.guard.RecordTrade(a.PLRatio * 100)

	if e.levels != nil {
		if err := e.levels.DeleteLevels(pos.ID); err != nil {
			e.log.Warn().Err(err).Int64("position_id", pos.ID).Msg("could not clear stored levels")
		}
	}
	if e.repo != nil {
		if err := e.repo.SaveTrade(ctx, rec); err != nil {
			e.log.Warn().Err(err).Msg("could not persist trade")
		}
	}

	e.bus.PublishPositionClosed(pos.Symbol, string(pos.Side), pos.ID, pos.Price, snap.Price, a.PLRatio, a.Reason)
	e.metrics.TradesTotal.WithLabelValues(string(pos.Side), "close").Inc()
	e.log.Info().
		Int64("position_id", pos.ID).
		Str("side", string(pos.Side)).
		Float64("entry", pos.Price).
		Float64("exit", snap.Price).
		Float64("pl_ratio", a.PLRatio).
		Str("reason", a.Reason).
		Msg("position closed")

	return nil
}

// evaluateEntry runs the entry pipeline: aggregator, loss guard,
// gatekeeper, risk levels, order. bypass selects the reversal
// threshold and skips the gatekeeper filters.
func (e *Engine) evaluateEntry(ctx context.Context, snap *strategy.IndicatorSnapshot, bypass bool) {
	d := e.agg.Evaluate(snap, bypass)

	e.mu.Lock()
	e.lastDecision = d
	e.mu.Unlock()

	e.metrics.LastConfidence.Set(d.Confidence)
	e.bus.PublishDecision(d.ShouldTrade, string(d.Direction), string(d.Regime), d.Reason, d.Confidence)

	if !d.ShouldTrade {
		e.metrics.DecisionsTotal.WithLabelValues("no_trade").Inc()
		e.log.Debug().Str("reason", d.Reason).Msg("no entry")
		return
	}

	if ok, reason := e.guard.Allow(); !ok {
		e.metrics.DecisionsTotal.WithLabelValues("guard_blocked").Inc()
		e.bus.PublishEntryBlocked("loss_guard", reason)
		e.log.Info().Str("reason", reason).Msg("entry blocked by loss guard")
		return
	}

	if ok, reason := e.gate.Allow(snap.Price, time.Now(), bypass); !ok {
		e.metrics.DecisionsTotal.WithLabelValues("gate_blocked").Inc()
		e.bus.PublishEntryBlocked("gatekeeper", reason)
		e.log.Info().Str("reason", reason).Msg("entry blocked by gatekeeper")
		return
	}

	lv := e.calc.Compute(d.Direction, snap.Price, snap.ATR, d.Regime)
	d.StopLoss = lv.StopLoss
	d.TakeProfit = lv.TakeProfit

	if _, err := e.client.OpenPosition(ctx, e.cfg.Symbol, d.Direction, e.cfg.OrderSize, e.cfg.SizeStep); err != nil {
		if gmo.IsRejection(err) {
			e.metrics.ExchangeErrorsTotal.WithLabelValues("rejection").Inc()
			e.bus.PublishOrderRejected(e.cfg.Symbol, string(d.Direction), err.Error())
			e.log.Error().Err(err).Str("side", string(d.Direction)).Msg("order rejected")
		} else {
			e.metrics.ExchangeErrorsTotal.WithLabelValues("transient").Inc()
			e.log.Warn().Err(err).Str("side", string(d.Direction)).Msg("order failed, retrying next cycle")
		}
		return
	}

	// The exchange confirmed the open: this is the single point where
	// the last-trade memory advances.
	e.gate.RecordEntry(snap.Price, time.Now())
	e.rememberLevels(ctx, d.Direction, lv)

	e.metrics.DecisionsTotal.WithLabelValues("entry").Inc()
	e.metrics.TradesTotal.WithLabelValues(string(d.Direction), "open").Inc()
	e.bus.PublishPositionOpened(e.cfg.Symbol, string(d.Direction), snap.Price, e.cfg.OrderSize, lv.StopLoss, lv.TakeProfit, d.Reason)
	e.log.Info().
		Str("side", string(d.Direction)).
		Float64("price", snap.Price).
		Float64("confidence", d.Confidence).
		Float64("stop_loss", lv.StopLoss).
		Float64("take_profit", lv.TakeProfit).
		Str("reason", d.Reason).
		Msg("position opened")
}

// rememberLevels attaches the computed protective levels to the newly
// created position ids. Best effort: on failure the reconciler falls
// back to the default ratios.
func (e *Engine) rememberLevels(ctx context.Context, side gmo.Side, lv risk.Levels) {
	if e.levels == nil {
		return
	}

	positions, err := e.client.OpenPositions(ctx, e.cfg.Symbol)
	if err != nil {
		e.log.Warn().Err(err).Msg("could not fetch positions to store levels")
		return
	}

	for _, pos := range positions {
		if pos.Side != side {
			continue
		}
		if _, ok := e.levels.LoadLevels(pos.ID); ok {
			continue
		}
		if err := e.levels.SaveLevels(pos.ID, lv); err != nil {
			e.log.Warn().Err(err).Int64("position_id", pos.ID).Msg("could not store levels")
		}
	}
}

// CloseAll settles every open position at market, outside the normal
// reconciliation flow. Used by the API and the shutdown tooling.
func (e *Engine) CloseAll(ctx context.Context) error {
	positions, err := e.client.OpenPositions(ctx, e.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("fetching positions: %w", err)
	}
	if len(positions) == 0 {
		return nil
	}

	ticker, err := e.client.GetTicker(ctx, e.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("fetching ticker: %w", err)
	}

	// The bulk close endpoint settles one side at a time.
	sizeBySide := map[gmo.Side]float64{}
	for _, pos := range positions {
		sizeBySide[pos.Side] += pos.Size
	}
	for side, size := range sizeBySide {
		if _, err := e.client.CloseBulk(ctx, e.cfg.Symbol, side, size, e.cfg.SizeStep); err != nil {
			return fmt.Errorf("bulk close %s: %w", side, err)
		}
	}

	for _, pos := range positions {
		plRatio := UnrealizedRatio(pos, ticker.Last)
		rec := e.tracker.Record(pos.Side, pos.Price, ticker.Last, plRatio, "manual close")
		e.guard.RecordTrade(plRatio * 100)
		if e.levels != nil {
			if err := e.levels.DeleteLevels(pos.ID); err != nil {
				e.log.Warn().Err(err).Int64("position_id", pos.ID).Msg("could not clear stored levels")
			}
		}
		if e.repo != nil {
			if err := e.repo.SaveTrade(ctx, rec); err != nil {
				e.log.Warn().Err(err).Msg("could not persist trade")
			}
		}
		e.bus.PublishPositionClosed(pos.Symbol, string(pos.Side), pos.ID, pos.Price, ticker.Last, plRatio, "manual close")
		e.metrics.TradesTotal.WithLabelValues(string(pos.Side), "close").Inc()
	}

	e.log.Info().Int("count", len(positions)).Msg("closed all positions")
	return nil
}
