// Package engine runs the trading control loop: it consolidates strategy signals,
// filters them on trade economics, gates them through risk and executes them.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-trading-bot/internal/config"
	boterrors "github.com/ducminhle1904/crypto-trading-bot/internal/errors"
	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-bot/internal/logger"
	"github.com/ducminhle1904/crypto-trading-bot/internal/monitoring"
	"github.com/ducminhle1904/crypto-trading-bot/internal/notifications"
	"github.com/ducminhle1904/crypto-trading-bot/internal/risk"
	"github.com/ducminhle1904/crypto-trading-bot/internal/safety"
	"github.com/ducminhle1904/crypto-trading-bot/internal/strategy"
	"github.com/ducminhle1904/crypto-trading-bot/pkg/types"
)

const (
	component = "engine"

	defaultInterval     = 60 * time.Second
	defaultErrorBackoff = 30 * time.Second
	defaultJournalSize  = 500
	notifyTimeout       = 10 * time.Second
)

// MarketDataProvider supplies the per-symbol snapshots for a cycle.
// Symbols without data may be omitted from the result.
type MarketDataProvider interface {
	GetLatestData(ctx context.Context, symbols []string, includeHistory bool) (map[string]types.Snapshot, error)
}

// RiskManager is the gatekeeper and sizer consulted for every non-forced trade
type RiskManager interface {
	ValidateSignal(sig *strategy.Signal) (bool, string)
	CalculatePositionSize(sig *strategy.Signal) float64
	RecordTrade(result exchange.TradeResult)
	CheckRiskLimits() (bool, string)
	GetRiskMetrics() risk.Metrics
}

// Config holds the static loop settings
type Config struct {
	Symbols       []string
	Interval      time.Duration
	ErrorBackoff  time.Duration
	JournalSize   int
	EventCapacity int
}

// Dependencies are the collaborators the engine drives
type Dependencies struct {
	Settings   *config.Runtime
	Provider   MarketDataProvider
	Gateway    exchange.Gateway
	Risk       RiskManager
	Strategies []strategy.Strategy
	Notifier   notifications.Notifier
	Logger     *logger.Logger
}

// Engine owns one control loop and its state machine
type Engine struct {
	cfg        Config
	settings   *config.Runtime
	provider   MarketDataProvider
	gateway    exchange.Gateway
	risk       RiskManager
	strategies []strategy.Strategy
	byName     map[string]strategy.Strategy
	notifier   notifications.Notifier
	logger     *logger.Logger

	events      *EventRing
	tradeWindow *safety.TradeWindow
	errorStats  *boterrors.ErrorStats
	now         func() time.Time

	mu             sync.RWMutex
	state          State
	cancel         context.CancelFunc
	done           chan struct{}
	lastHaltReason string
	lastCycle      time.Time
	lastError      string
	cycles         int64
	totalTrades    int
	lastTrade      map[string]time.Time
	journal        []exchange.TradeResult
}

// New creates a stopped engine
func New(cfg Config, deps Dependencies) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = defaultErrorBackoff
	}
	if cfg.JournalSize <= 0 {
		cfg.JournalSize = defaultJournalSize
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}

	byName := make(map[string]strategy.Strategy, len(deps.Strategies))
	for _, s := range deps.Strategies {
		byName[s.GetName()] = s
	}

	return &Engine{
		cfg:         cfg,
		settings:    deps.Settings,
		provider:    deps.Provider,
		gateway:     deps.Gateway,
		risk:        deps.Risk,
		strategies:  deps.Strategies,
		byName:      byName,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
		events:      NewEventRing(cfg.EventCapacity),
		tradeWindow: safety.NewHourlyTradeWindow(component),
		errorStats:  boterrors.NewErrorStats(),
		now:         time.Now,
		state:       StateStopped,
		lastTrade:   make(map[string]time.Time),
	}
}

// Start launches the control loop. It is a no-op unless the engine is STOPPED.
// A startup failure leaves the engine in ERROR.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateStopped {
		state := e.state
		e.mu.Unlock()
		e.logger.Warning("Start ignored: engine is %s", state)
		return nil
	}
	e.setStateLocked(StateStarting)
	e.mu.Unlock()

	if err := e.preflight(); err != nil {
		e.mu.Lock()
		e.setStateLocked(StateError)
		e.lastError = err.Error()
		e.mu.Unlock()
		e.logger.LogError("Engine start failed", err)
		e.addEvent(Event{Type: EventError, Message: err.Error()})
		return err
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	e.mu.Lock()
	e.cancel = cancel
	e.done = done
	e.setStateLocked(StateRunning)
	e.mu.Unlock()

	e.logger.Info("Trading engine started: %d strategies, symbols %v, interval %s",
		len(e.strategies), e.cfg.Symbols, e.cfg.Interval)
	e.notify(ctx, func(nctx context.Context) error {
		return e.notifier.SendAlert(nctx, "Trading engine started",
			fmt.Sprintf("Symbols: %v\nStrategies: %d", e.cfg.Symbols, len(e.strategies)))
	})

	go e.run(loopCtx, done)
	return nil
}

func (e *Engine) preflight() error {
	switch {
	case e.settings == nil:
		return boterrors.NewConfigurationError(component, "start", "runtime settings are required")
	case e.provider == nil:
		return boterrors.NewConfigurationError(component, "start", "market data provider is required")
	case e.gateway == nil:
		return boterrors.NewConfigurationError(component, "start", "execution gateway is required")
	case e.risk == nil:
		return boterrors.NewConfigurationError(component, "start", "risk manager is required")
	case len(e.strategies) == 0:
		return boterrors.NewConfigurationError(component, "start", "no strategies configured")
	case len(e.cfg.Symbols) == 0:
		return boterrors.NewConfigurationError(component, "start", "no symbols configured")
	}
	if err := e.settings.Snapshot().Validate(); err != nil {
		return boterrors.WrapError(err, boterrors.ErrorCategoryConfiguration, component, "start")
	}
	return nil
}

// Stop cancels the loop and waits for the in-flight cycle to finish.
// It is a no-op unless the engine is RUNNING.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateRunning {
		state := e.state
		e.mu.Unlock()
		e.logger.Warning("Stop ignored: engine is %s", state)
		return nil
	}
	e.setStateLocked(StateStopping)
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		// the loop moves itself to STOPPED when it returns
		return fmt.Errorf("waiting for trading loop to stop: %w", ctx.Err())
	}

	e.logger.Info("Trading engine stopped")
	e.notify(ctx, func(nctx context.Context) error {
		return e.notifier.SendAlert(nctx, "Trading engine stopped", "Stopped on request")
	})
	return nil
}

// IsRunning reports whether the loop is active
func (e *Engine) IsRunning() bool {
	return e.GetState() == StateRunning
}

// GetState returns the current lifecycle state
func (e *Engine) GetState() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// GetRecentEvents returns the recent events, most recent first
func (e *Engine) GetRecentEvents(limit int) []Event {
	return e.events.Recent(limit)
}

// setStateLocked must be called with e.mu held
func (e *Engine) setStateLocked(next State) {
	if e.state == next {
		return
	}
	prev := e.state
	e.state = next
	monitoring.SetEngineState(next.String())
	e.events.Add(Event{
		Type:      EventState,
		Message:   fmt.Sprintf("%s -> %s", prev, next),
		Timestamp: e.now(),
	})
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer func() {
		e.mu.Lock()
		if e.state == StateStopping {
			e.setStateLocked(StateStopped)
		}
		e.mu.Unlock()
		close(done)
	}()

	for {
		started := time.Now()
		err := e.runCycle(ctx)
		monitoring.ObserveCycle(time.Since(started))

		if ctx.Err() != nil {
			return
		}

		wait := e.cfg.Interval
		if err != nil {
			botErr := boterrors.CategorizeError(err, component, "cycle")
			e.recordError(botErr)

			switch botErr.GetRecoveryAction() {
			case boterrors.RecoveryActionStop:
				e.halt(ctx, botErr)
				return
			case boterrors.RecoveryActionSkip:
				e.logger.Warning("Cycle skipped: %v", botErr)
			default:
				e.logger.LogError("Cycle failed, backing off", botErr)
				wait = e.cfg.ErrorBackoff
			}
			e.recordCycle(botErr.Error())
		} else {
			e.recordCycle("")
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (e *Engine) recordCycle(errMsg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cycles++
	e.lastError = errMsg
	if errMsg == "" {
		e.lastCycle = e.now()
	}
}

// halt stops the loop from inside a cycle. A risk breach goes to STOPPED,
// any other unrecoverable failure to ERROR. Neither is retried.
func (e *Engine) halt(ctx context.Context, cause *boterrors.BotError) {
	reason := cause.Message
	if cause.Category != boterrors.ErrorCategoryRisk {
		reason = cause.Error()
	}

	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return
	}
	if cause.Category == boterrors.ErrorCategoryRisk {
		e.setStateLocked(StateStopped)
	} else {
		e.setStateLocked(StateError)
	}
	e.lastHaltReason = reason
	e.lastError = cause.Error()
	cancel := e.cancel
	e.mu.Unlock()

	e.logger.Error("TRADING HALTED: %s", reason)
	e.addEvent(Event{Type: EventHalt, Message: reason, Details: map[string]interface{}{"category": string(cause.Category)}})
	e.notify(ctx, func(nctx context.Context) error {
		return e.notifier.SendRiskAlert(nctx, "Trading halted", reason+"\nManual restart required.")
	})
	cancel()
}

// runCycle performs one full pass: signals, execution, exits, valuation, limits
func (e *Engine) runCycle(ctx context.Context) error {
	settings := e.settings.Snapshot()
	now := e.now()

	snapshots, err := e.provider.GetLatestData(ctx, e.cfg.Symbols, true)
	if err != nil {
		// market data faults are transient whatever the provider reports
		return boterrors.NewNetworkError(component, "getLatestData", err)
	}

	prices := make(map[string]float64, len(snapshots))
	closes := make(map[string][]float64, len(snapshots))
	for symbol, snap := range snapshots {
		if snap.Price > 0 {
			prices[symbol] = snap.Price
			monitoring.UpdatePrice(symbol, snap.Price)
		}
		if len(snap.History) > 0 {
			closes[symbol] = snap.Closes()
		}
	}

	signals := e.generateSignals(ctx, snapshots, closes, now)

	weights := e.strategyWeights()
	e.mu.RLock()
	lastTrade := make(map[string]time.Time, len(e.lastTrade))
	for k, v := range e.lastTrade {
		lastTrade[k] = v
	}
	e.mu.RUnlock()

	candidates, rejections := Consolidate(signals, ConsolidationInput{
		Settings:  settings.Signals,
		Positions: e.gateway.Positions(),
		LastTrade: lastTrade,
		Weight: func(name string) float64 {
			if w, ok := weights[name]; ok {
				return w
			}
			return 1.0
		},
		Now: now,
	})
	for _, rej := range rejections {
		e.reject(rej)
	}

	for _, cand := range candidates {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.executeCandidate(ctx, cand, settings)
	}

	e.sweepExits(ctx, prices)

	if err := e.gateway.RefreshValuation(ctx, prices); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.LogError("Portfolio valuation refresh failed", err)
		e.recordError(boterrors.CategorizeError(err, component, "refreshValuation"))
	}

	metrics := e.risk.GetRiskMetrics()
	monitoring.UpdateRisk(metrics.PortfolioValue, metrics.CurrentDrawdown, metrics.DailyPnL, metrics.VaR95)

	if ok, reason := e.risk.CheckRiskLimits(); !ok {
		return boterrors.NewRiskError(component, "checkRiskLimits", reason)
	}
	return nil
}

// generateSignals asks every strategy about every symbol with data.
// A failing strategy only loses its own signal.
func (e *Engine) generateSignals(ctx context.Context, snapshots map[string]types.Snapshot, closes map[string][]float64, now time.Time) []*strategy.Signal {
	var signals []*strategy.Signal
	for _, symbol := range e.cfg.Symbols {
		snap, ok := snapshots[symbol]
		if !ok {
			e.logger.Debug("No market data for %s this cycle", symbol)
			continue
		}

		for _, strat := range e.strategies {
			sig, err := strat.GenerateSignal(ctx, symbol, snap)
			if err != nil {
				e.recordError(boterrors.NewStrategyError(component, "generateSignal", err).WithContext("symbol", symbol))
				e.logger.Warning("Strategy %s failed on %s: %v", strat.GetName(), symbol, err)
				e.addEvent(Event{Type: EventError, Symbol: symbol, Strategy: strat.GetName(), Message: err.Error()})
				continue
			}
			if sig == nil || sig.Action == strategy.ActionHold {
				continue
			}

			if sig.Symbol == "" {
				sig.Symbol = symbol
			}
			if sig.Strategy == "" {
				sig.Strategy = strat.GetName()
			}
			if sig.Price <= 0 {
				sig.Price = snap.Price
			}
			if sig.Volume <= 0 {
				sig.Volume = snap.Volume
			}
			if sig.Timestamp.IsZero() {
				sig.Timestamp = now
			}
			sig.Extras.RecentCloses = closes

			monitoring.RecordSignal(sig.Strategy, sig.Action.String())
			e.logger.Debug("Signal %s %s from %s conf=%.3f: %s", sig.Action, symbol, sig.Strategy, sig.Confidence, sig.Reason)
			signals = append(signals, sig)
		}
	}
	return signals
}

// strategyWeights snapshots the performance weights and publishes them
func (e *Engine) strategyWeights() map[string]float64 {
	weights := make(map[string]float64, len(e.strategies))
	for _, s := range e.strategies {
		w := StrategyWeight(s.GetPerformanceMetrics())
		weights[s.GetName()] = w
		monitoring.UpdateStrategyWeight(s.GetName(), w)
	}
	return weights
}

// executeCandidate runs a consolidated winner through the rate limit,
// the edge filter and risk validation before execution.
func (e *Engine) executeCandidate(ctx context.Context, cand Candidate, settings config.Settings) {
	sig := cand.Signal
	if sig.IsRiskExit() {
		e.forceExit(ctx, sig)
		return
	}

	reject := func(stage, reason string) {
		e.reject(Rejection{Symbol: sig.Symbol, Strategy: sig.Strategy, Stage: stage, Reason: reason})
	}

	if now := e.now(); !e.tradeWindow.Allow(now, settings.Signals.MaxTradesPerHour) {
		reject(StageRateLimit, fmt.Sprintf("hourly trade limit %d reached, next slot at %s",
			settings.Signals.MaxTradesPerHour, e.tradeWindow.NextSlot(now).UTC().Format(time.RFC3339)))
		return
	}

	if decision := EvaluateEdge(sig, settings.Edge, settings.Account); !decision.Passed {
		reject(StageEdge, decision.Reason)
		return
	}

	if ok, reason := e.risk.ValidateSignal(sig); !ok {
		reject(StageRisk, reason)
		return
	}

	qty := e.risk.CalculatePositionSize(sig)
	if qty <= 0 {
		reject(StageRisk, "position size is zero")
		return
	}
	sig.Quantity = qty

	e.execute(ctx, sig, cand.Priority)
}

// sweepExits force-sells positions whose stop-loss or take-profit was crossed
func (e *Engine) sweepExits(ctx context.Context, prices map[string]float64) {
	for _, sig := range ExitSignals(e.gateway.Positions(), prices, e.now()) {
		if ctx.Err() != nil {
			return
		}
		e.forceExit(ctx, sig)
	}
}

// forceExit executes a risk exit straight away, skipping the rate limit,
// cooldown, hold time, edge filter and risk validation.
func (e *Engine) forceExit(ctx context.Context, sig *strategy.Signal) {
	if sig.Quantity <= 0 {
		if pos, ok := e.gateway.Positions()[sig.Symbol]; ok {
			sig.Quantity = pos.Quantity
		}
	}
	e.logger.Warning("Forced exit %s: %s", sig.Symbol, sig.Reason)
	e.addEvent(Event{Type: EventExit, Symbol: sig.Symbol, Strategy: sig.Strategy, Message: sig.Reason,
		Details: map[string]interface{}{"price": sig.Price, "quantity": sig.Quantity}})
	e.execute(ctx, sig, 0)
}

func (e *Engine) execute(ctx context.Context, sig *strategy.Signal, priority float64) {
	result, err := e.gateway.ExecuteTrade(ctx, exchange.TradeRequest{
		Symbol:     sig.Symbol,
		Side:       sig.Action.Side(),
		Quantity:   sig.Quantity,
		Price:      sig.Price,
		Strategy:   sig.Strategy,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Reason:     sig.Reason,
		Timestamp:  e.now(),
	})
	if err != nil || result == nil {
		reason := "trade not executed"
		if err != nil {
			reason = err.Error()
			e.recordError(boterrors.NewOrderError(component, "executeTrade", err).WithContext("symbol", sig.Symbol))
		}
		e.reject(Rejection{Symbol: sig.Symbol, Strategy: sig.Strategy, Stage: StageExecution, Reason: reason})
		return
	}
	e.onTradeExecuted(ctx, *result, priority)
}

// onTradeExecuted records a fill everywhere that tracks trades
func (e *Engine) onTradeExecuted(ctx context.Context, result exchange.TradeResult, priority float64) {
	now := e.now()
	e.tradeWindow.Record(now)
	e.risk.RecordTrade(result)

	e.mu.Lock()
	e.lastTrade[result.Symbol] = now
	e.totalTrades++
	e.journal = append(e.journal, result)
	if over := len(e.journal) - e.cfg.JournalSize; over > 0 {
		e.journal = append(e.journal[:0], e.journal[over:]...)
	}
	e.mu.Unlock()

	// Closing P&L belongs to the strategy that opened the position
	owner := result.Strategy
	if result.Side == exchange.SideSell && result.OpenedBy != "" {
		owner = result.OpenedBy
	}
	if s, ok := e.byName[owner]; ok {
		s.UpdatePerformance(result)
	}

	monitoring.RecordTrade(result.Symbol, string(result.Side), result.Strategy, result.Notional)
	e.logger.Trade("%s %.6f %s @ %.4f (%s) notional=%.2f fee=%.4f pnl=%.2f",
		result.Side, result.Quantity, result.Symbol, result.Price, result.Strategy, result.Notional, result.Fee, result.RealizedPnL)
	e.addEvent(Event{
		Type:     EventTrade,
		Symbol:   result.Symbol,
		Strategy: result.Strategy,
		Message:  fmt.Sprintf("%s %.6f @ %.4f", result.Side, result.Quantity, result.Price),
		Details: map[string]interface{}{
			"trade_id":     result.TradeID,
			"notional":     result.Notional,
			"realized_pnl": result.RealizedPnL,
			"priority":     priority,
		},
	})

	e.notify(ctx, func(nctx context.Context) error {
		return e.notifier.SendTradeNotification(nctx, result)
	})
}

func (e *Engine) reject(rej Rejection) {
	monitoring.RecordRejection(rej.Stage)

	evType := EventRejected
	if rej.Stage == StageConflict {
		evType = EventConflict
		e.logger.Warning("Signal conflict on %s: %s", rej.Symbol, rej.Reason)
	} else {
		e.logger.Info("Signal rejected [%s] %s %s: %s", rej.Stage, rej.Symbol, rej.Strategy, rej.Reason)
	}
	e.addEvent(Event{
		Type:     evType,
		Symbol:   rej.Symbol,
		Strategy: rej.Strategy,
		Message:  rej.Reason,
		Details:  map[string]interface{}{"stage": rej.Stage},
	})
}

// recordError counts a categorized failure in the error stats and metrics
func (e *Engine) recordError(botErr *boterrors.BotError) {
	if botErr == nil {
		return
	}
	e.errorStats.RecordError(botErr)
	monitoring.RecordError(string(botErr.Category))
}

func (e *Engine) addEvent(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	e.events.Add(ev)
}

// notify delivers best-effort; failures are logged and never abort the cycle
func (e *Engine) notify(ctx context.Context, send func(context.Context) error) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := send(nctx); err != nil {
		e.logger.Warning("Notification failed: %v", err)
	}
}

// sortedSymbols returns map keys in a stable order
func sortedSymbols[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
