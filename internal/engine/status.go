package engine

import (
	"time"

	"github.com/ducminhle1904/crypto-trading-bot/internal/config"
	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-bot/internal/risk"
	"github.com/ducminhle1904/crypto-trading-bot/internal/safety"
)

// breakerSource is implemented by notifiers that guard their sinks with circuit breakers
type breakerSource interface {
	BreakerStats() []safety.CircuitBreakerStats
}

// Status is a read-only snapshot for the status surface
type Status struct {
	State           State                        `json:"state"`
	Running         bool                         `json:"running"`
	Symbols         []string                     `json:"symbols"`
	Cycles          int64                        `json:"cycles"`
	LastCycle       time.Time                    `json:"last_cycle"`
	LastError       string                       `json:"last_error,omitempty"`
	LastHaltReason  string                       `json:"last_halt_reason,omitempty"`
	TradesLastHour  int                          `json:"trades_last_hour"`
	NextTradeSlot   *time.Time                   `json:"next_trade_slot,omitempty"`
	TotalTrades     int                          `json:"total_trades"`
	ErrorCount      int                          `json:"error_count"`
	Errors          map[string]int               `json:"errors_by_category"`
	Notifiers       []safety.CircuitBreakerStats `json:"notifiers,omitempty"`
	StrategyWeights map[string]float64           `json:"strategy_weights"`
	Positions       []exchange.Position          `json:"positions"`
	Risk            risk.Metrics                 `json:"risk"`
	Settings        config.Settings              `json:"settings"`
	RecentEvents    []Event                      `json:"recent_events"`
}

// Status collects the engine, portfolio and risk view
func (e *Engine) Status() Status {
	e.mu.RLock()
	st := Status{
		State:          e.state,
		Running:        e.state == StateRunning,
		Symbols:        append([]string(nil), e.cfg.Symbols...),
		Cycles:         e.cycles,
		LastCycle:      e.lastCycle,
		LastError:      e.lastError,
		LastHaltReason: e.lastHaltReason,
		TotalTrades:    e.totalTrades,
	}
	e.mu.RUnlock()

	window := e.tradeWindow.GetStats(e.now())
	st.TradesLastHour = window.Count
	if e.settings != nil {
		if limit := e.settings.Snapshot().Signals.MaxTradesPerHour; limit > 0 && window.Count >= limit {
			next := window.NextSlot()
			st.NextTradeSlot = &next
		}
	}

	st.ErrorCount = e.errorStats.Total()
	st.Errors = make(map[string]int)
	for category, n := range e.errorStats.ByCategory() {
		st.Errors[string(category)] = n
	}
	if src, ok := e.notifier.(breakerSource); ok {
		st.Notifiers = src.BreakerStats()
	}
	st.StrategyWeights = make(map[string]float64, len(e.strategies))
	for _, s := range e.strategies {
		st.StrategyWeights[s.GetName()] = StrategyWeight(s.GetPerformanceMetrics())
	}
	if e.gateway != nil {
		positions := e.gateway.Positions()
		for _, symbol := range sortedSymbols(positions) {
			st.Positions = append(st.Positions, positions[symbol])
		}
	}
	if e.risk != nil {
		st.Risk = e.risk.GetRiskMetrics()
	}
	if e.settings != nil {
		st.Settings = e.settings.Snapshot()
	}
	st.RecentEvents = e.events.Recent(0)
	return st
}

// Health implements monitoring.EngineProbe
func (e *Engine) Health() (string, time.Time, string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.String(), e.lastCycle, e.lastError
}

// LastHaltReason returns why the engine last halted itself, empty if it never did
func (e *Engine) LastHaltReason() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastHaltReason
}

// Trades returns a copy of the bounded trade journal, oldest first
func (e *Engine) Trades() []exchange.TradeResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]exchange.TradeResult(nil), e.journal...)
}
