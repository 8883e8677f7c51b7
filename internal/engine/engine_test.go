package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-trading-bot/internal/config"
	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange/paper"
	"github.com/ducminhle1904/crypto-trading-bot/internal/logger"
	"github.com/ducminhle1904/crypto-trading-bot/internal/notifications"
	"github.com/ducminhle1904/crypto-trading-bot/internal/risk"
	"github.com/ducminhle1904/crypto-trading-bot/internal/safety"
	"github.com/ducminhle1904/crypto-trading-bot/internal/strategy"
	"github.com/ducminhle1904/crypto-trading-bot/pkg/types"
)

const symbol = "BTCUSDT"

type harness struct {
	engine   *Engine
	runtime  *config.Runtime
	provider *fakeProvider
	gateway  *fakeGateway
	risk     *fakeRisk
	strat    *fakeStrategy
	other    *fakeStrategy
	notifier *recordingNotifier
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{now: testNow}
	clock := func() time.Time { return h.now }

	h.runtime = config.NewRuntime(config.Default().RuntimeSettings())
	h.provider = &fakeProvider{snapshots: map[string]types.Snapshot{
		symbol: {
			Ticker:  types.Ticker{Symbol: symbol, Price: 100, Volume: 1e6, Timestamp: testNow},
			History: risingHistory(89, 1, 12),
		},
	}}
	h.gateway = newFakeGateway(clock)
	h.risk = &fakeRisk{allow: true, size: 2}
	h.strat = &fakeStrategy{name: "momentum", signals: map[string]strategy.Signal{
		symbol: {Action: strategy.ActionBuy, Confidence: 0.8, Price: 100, StopLoss: 95, TakeProfit: 110, Reason: "breakout"},
	}}
	h.other = &fakeStrategy{name: "mean_reversion"}
	h.notifier = &recordingNotifier{}

	h.engine = New(Config{
		Symbols:      []string{symbol},
		Interval:     5 * time.Millisecond,
		ErrorBackoff: 5 * time.Millisecond,
	}, Dependencies{
		Settings:   h.runtime,
		Provider:   h.provider,
		Gateway:    h.gateway,
		Risk:       h.risk,
		Strategies: []strategy.Strategy{h.strat, h.other},
		Notifier:   h.notifier,
		Logger:     logger.Nop(),
	})
	h.engine.now = clock
	return h
}

func eventsOf(events []Event, typ EventType) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// TestRunCycle_ExecutesConsolidatedBuy tests the happy path through every gate
func TestRunCycle_ExecutesConsolidatedBuy(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.engine.runCycle(context.Background()))

	reqs := h.gateway.executed()
	require.Len(t, reqs, 1)
	assert.Equal(t, exchange.SideBuy, reqs[0].Side)
	assert.Equal(t, 2.0, reqs[0].Quantity)
	assert.Equal(t, "momentum", reqs[0].Strategy)
	assert.Equal(t, 95.0, reqs[0].StopLoss)

	assert.Equal(t, 1, h.risk.validateCalls)
	assert.Len(t, h.risk.recorded, 1)
	assert.Len(t, h.engine.Trades(), 1)
	assert.Equal(t, 1, h.engine.tradeWindow.GetStats(h.now).Count)
	assert.Equal(t, 1, h.strat.updateCount())

	// a failing trade notification does not abort the cycle
	assert.Equal(t, 1, h.notifier.trades)
	assert.Equal(t, EventTrade, h.engine.GetRecentEvents(1)[0].Type)
}

// TestRunCycle_MinHoldAndForcedExit tests a young position: strategy SELL dropped, stop-loss exit executed
func TestRunCycle_MinHoldAndForcedExit(t *testing.T) {
	h := newHarness(t)
	h.gateway.positions[symbol] = exchange.Position{
		Symbol:     symbol,
		Quantity:   3,
		AvgPrice:   100,
		StopLoss:   96,
		TakeProfit: 120,
		Strategy:   "mean_reversion",
		OpenedAt:   testNow.Add(-10 * time.Minute),
	}
	snap := h.provider.snapshots[symbol]
	snap.Price = 95
	h.provider.snapshots[symbol] = snap
	h.strat.signals[symbol] = strategy.Signal{Action: strategy.ActionSell, Confidence: 0.9, Price: 95, StopLoss: 99, TakeProfit: 85}

	require.NoError(t, h.engine.runCycle(context.Background()))

	reqs := h.gateway.executed()
	require.Len(t, reqs, 1)
	assert.Equal(t, strategy.RiskExitStrategy, reqs[0].Strategy)
	assert.Equal(t, exchange.SideSell, reqs[0].Side)
	assert.Equal(t, 3.0, reqs[0].Quantity)
	assert.Equal(t, 95.0, reqs[0].Price)

	assert.Zero(t, h.risk.validateCalls)
	assert.Len(t, h.risk.recorded, 1)
	assert.Equal(t, 1, h.other.updateCount())
	assert.Zero(t, h.strat.updateCount())

	events := h.engine.GetRecentEvents(0)
	rejected := eventsOf(events, EventRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, StageHold, rejected[0].Details["stage"])
	assert.Len(t, eventsOf(events, EventExit), 1)
}

// TestRunCycle_HourlyRateLimit tests capacity exhaustion, recovery and the exit bypass
func TestRunCycle_HourlyRateLimit(t *testing.T) {
	h := newHarness(t)
	limit := 2
	require.NoError(t, h.runtime.Update(config.RuntimeUpdate{MaxTradesPerHour: &limit}))

	h.engine.tradeWindow.Record(testNow.Add(-30 * time.Minute))
	h.engine.tradeWindow.Record(testNow.Add(-30 * time.Minute))

	require.NoError(t, h.engine.runCycle(context.Background()))
	assert.Empty(t, h.gateway.executed())
	rejected := eventsOf(h.engine.GetRecentEvents(0), EventRejected)
	require.NotEmpty(t, rejected)
	assert.Equal(t, StageRateLimit, rejected[0].Details["stage"])
	assert.Contains(t, rejected[0].Message, "next slot at "+testNow.Add(30*time.Minute).UTC().Format(time.RFC3339))
	status := h.engine.Status()
	require.NotNil(t, status.NextTradeSlot)
	assert.Equal(t, testNow.Add(30*time.Minute), *status.NextTradeSlot)

	h.now = testNow.Add(31 * time.Minute)
	require.NoError(t, h.engine.runCycle(context.Background()))
	require.Len(t, h.gateway.executed(), 1)

	// fill the window again; a stop-loss exit still goes through
	h.engine.tradeWindow.Record(h.now)
	snap := h.provider.snapshots[symbol]
	snap.Price = 90
	h.provider.snapshots[symbol] = snap

	require.NoError(t, h.engine.runCycle(context.Background()))
	reqs := h.gateway.executed()
	require.Len(t, reqs, 2)
	assert.Equal(t, strategy.RiskExitStrategy, reqs[1].Strategy)
	assert.Equal(t, 3, h.engine.tradeWindow.GetStats(h.now).Count)
}

// TestRunCycle_CooldownBlocksReentry tests the per-symbol cooldown after a trade
func TestRunCycle_CooldownBlocksReentry(t *testing.T) {
	h := newHarness(t)
	h.engine.cfg.JournalSize = 1
	require.NoError(t, h.engine.runCycle(context.Background()))
	require.Len(t, h.gateway.executed(), 1)

	h.gateway.mu.Lock()
	delete(h.gateway.positions, symbol)
	h.gateway.mu.Unlock()

	h.now = testNow.Add(5 * time.Minute)
	require.NoError(t, h.engine.runCycle(context.Background()))
	assert.Len(t, h.gateway.executed(), 1)
	assert.Equal(t, StageCooldown, eventsOf(h.engine.GetRecentEvents(0), EventRejected)[0].Details["stage"])

	h.now = testNow.Add(16 * time.Minute)
	require.NoError(t, h.engine.runCycle(context.Background()))
	assert.Len(t, h.gateway.executed(), 2)

	// the journal is bounded but the trade count is not
	assert.Len(t, h.engine.Trades(), 1)
	assert.Equal(t, 2, h.engine.Status().TotalTrades)
}

// TestRunCycle_RejectionsDoNotExecute tests risk and gateway rejections
func TestRunCycle_RejectionsDoNotExecute(t *testing.T) {
	h := newHarness(t)
	h.risk.allow = false
	h.risk.reason = "daily trade limit reached"

	require.NoError(t, h.engine.runCycle(context.Background()))
	assert.Empty(t, h.gateway.executed())
	assert.Equal(t, "daily trade limit reached", h.engine.GetRecentEvents(1)[0].Message)

	h.risk.allow = true
	h.gateway.rejectErr = exchange.ErrInsufficientBalance
	require.NoError(t, h.engine.runCycle(context.Background()))
	assert.Len(t, h.gateway.executed(), 1)
	assert.Empty(t, h.engine.Trades())
	assert.Equal(t, StageExecution, h.engine.GetRecentEvents(1)[0].Details["stage"])
	assert.Equal(t, 1, h.engine.Status().Errors["ORDER"])
}

// TestRunCycle_StrategyFailureIsolated tests that one failing strategy loses only its signal
func TestRunCycle_StrategyFailureIsolated(t *testing.T) {
	h := newHarness(t)
	h.other.err = errors.New("indicator blew up")

	require.NoError(t, h.engine.runCycle(context.Background()))
	assert.Len(t, h.gateway.executed(), 1)
	assert.Len(t, eventsOf(h.engine.GetRecentEvents(0), EventError), 1)

	status := h.engine.Status()
	assert.Equal(t, 1, status.ErrorCount)
	assert.Equal(t, 1, status.Errors["STRATEGY"])
}

// TestRunCycle_RiskBreachReturnsRiskError tests the cycle result on a hard limit breach
func TestRunCycle_RiskBreachReturnsRiskError(t *testing.T) {
	h := newHarness(t)
	h.risk.limitsReason = "max drawdown exceeded"

	err := h.engine.runCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RISK")
	assert.Contains(t, err.Error(), "max drawdown exceeded")
}

// TestEngine_Lifecycle tests the state machine and its no-op transitions
func TestEngine_Lifecycle(t *testing.T) {
	h := newHarness(t)
	e := h.engine
	e.cfg.Interval = time.Hour
	ctx := context.Background()

	assert.Equal(t, StateStopped, e.GetState())
	require.NoError(t, e.Stop(ctx))
	assert.Equal(t, StateStopped, e.GetState())

	require.NoError(t, e.Start(ctx))
	assert.True(t, e.IsRunning())
	require.NoError(t, e.Start(ctx))
	assert.Equal(t, StateRunning, e.GetState())

	require.NoError(t, e.Stop(ctx))
	assert.Equal(t, StateStopped, e.GetState())
	assert.False(t, e.IsRunning())

	var transitions []string
	for _, ev := range eventsOf(e.GetRecentEvents(0), EventState) {
		transitions = append([]string{ev.Message}, transitions...)
	}
	assert.Equal(t, []string{"STOPPED -> STARTING", "STARTING -> RUNNING", "RUNNING -> STOPPING", "STOPPING -> STOPPED"}, transitions)

	raw, err := json.Marshal(e.Status())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"state":"STOPPED"`)
}

// TestEngine_StartFailureSetsError tests that a misconfigured engine lands in ERROR and stays there
func TestEngine_StartFailureSetsError(t *testing.T) {
	e := New(Config{Symbols: []string{symbol}}, Dependencies{
		Settings: config.NewRuntime(config.Default().RuntimeSettings()),
		Provider: &fakeProvider{},
		Gateway:  newFakeGateway(time.Now),
		Risk:     &fakeRisk{},
	})

	err := e.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no strategies configured")
	assert.Equal(t, StateError, e.GetState())

	require.NoError(t, e.Start(context.Background()))
	assert.Equal(t, StateError, e.GetState())
}

// TestEngine_HaltsOnRiskBreach tests the self-halt to STOPPED with an alert
func TestEngine_HaltsOnRiskBreach(t *testing.T) {
	h := newHarness(t)
	h.risk.limitsReason = "daily loss limit exceeded"

	require.NoError(t, h.engine.Start(context.Background()))

	require.Eventually(t, func() bool { return h.notifier.riskAlertCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return h.engine.GetState() == StateStopped }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "daily loss limit exceeded", h.engine.LastHaltReason())
	assert.Len(t, eventsOf(h.engine.GetRecentEvents(0), EventHalt), 1)

	// halted engines are not retried; Stop is a no-op
	require.NoError(t, h.engine.Stop(context.Background()))
	assert.Equal(t, StateStopped, h.engine.GetState())
}

// TestEngine_TransientErrorsKeepRunning tests backoff on a failing data fetch
func TestEngine_TransientErrorsKeepRunning(t *testing.T) {
	h := newHarness(t)
	h.provider.err = errors.New("dial tcp: connection refused")

	require.NoError(t, h.engine.Start(context.Background()))
	require.Eventually(t, func() bool {
		h.provider.mu.Lock()
		defer h.provider.mu.Unlock()
		return h.provider.calls >= 3
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, StateRunning, h.engine.GetState())
	state, _, lastErr := h.engine.Health()
	assert.Equal(t, "RUNNING", state)
	assert.Contains(t, lastErr, "NETWORK")

	require.NoError(t, h.engine.Stop(context.Background()))
	assert.Equal(t, StateStopped, h.engine.GetState())
}

// TestEngine_AuthFailureOnFetchKeepsRunning tests that a credentials-looking fetch error backs off instead of halting
func TestEngine_AuthFailureOnFetchKeepsRunning(t *testing.T) {
	h := newHarness(t)
	h.provider.err = errors.New("Bybit API error 401: unauthorized")

	require.NoError(t, h.engine.Start(context.Background()))
	require.Eventually(t, func() bool { return h.provider.callCount() >= 3 }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, StateRunning, h.engine.GetState())
	assert.Empty(t, h.engine.LastHaltReason())
	assert.GreaterOrEqual(t, h.engine.Status().Errors["NETWORK"], 1)
	assert.Zero(t, h.notifier.riskAlertCount())

	require.NoError(t, h.engine.Stop(context.Background()))
	assert.Equal(t, StateStopped, h.engine.GetState())
}

// TestEngine_StopDeadlineStillReachesStopped tests that an expired Stop context does not wedge the engine
func TestEngine_StopDeadlineStillReachesStopped(t *testing.T) {
	h := newHarness(t)
	block := make(chan struct{})
	h.provider.block = block

	require.NoError(t, h.engine.Start(context.Background()))
	require.Eventually(t, func() bool { return h.provider.callCount() >= 1 }, 2*time.Second, 5*time.Millisecond)

	expired, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.engine.Stop(expired)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateStopping, h.engine.GetState())

	close(block)
	require.Eventually(t, func() bool { return h.engine.GetState() == StateStopped }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.engine.Start(context.Background()))
	assert.Equal(t, StateRunning, h.engine.GetState())
	require.NoError(t, h.engine.Stop(context.Background()))
	assert.Equal(t, StateStopped, h.engine.GetState())
}

// TestEngine_StatusReportsNotifierBreakers tests the breaker view of a fan-out notifier
func TestEngine_StatusReportsNotifierBreakers(t *testing.T) {
	h := newHarness(t)
	h.engine.notifier = notifications.NewMulti(nil).Add("chat", h.notifier)

	require.NoError(t, h.engine.runCycle(context.Background()))

	status := h.engine.Status()
	require.Len(t, status.Notifiers, 1)
	assert.Equal(t, "notify-chat", status.Notifiers[0].Name)
	assert.Equal(t, safety.StateClosed, status.Notifiers[0].State)

	raw, err := json.Marshal(status)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"state":"CLOSED"`)
}

// TestRunCycle_WithRiskManagerAndPaperGateway tests sizing and execution against the real collaborators
func TestRunCycle_WithRiskManagerAndPaperGateway(t *testing.T) {
	h := newHarness(t)
	gw := paper.NewGateway(paper.Config{InitialCapital: 10000, FeeRate: 0.001, MaxHistory: 100})
	rm := risk.NewManager(risk.DefaultLimits(), gw, logger.Nop())
	h.engine.gateway = gw
	h.engine.risk = rm

	require.NoError(t, h.engine.runCycle(context.Background()))

	pos, ok := gw.Positions()[symbol]
	require.True(t, ok)
	assert.InDelta(t, 10.0, pos.Quantity, 1e-9)
	assert.Equal(t, "momentum", pos.Strategy)
	assert.Equal(t, 1, rm.GetRiskMetrics().DailyTrades)
	assert.InDelta(t, 10000-1001.0, gw.CashBalance(), 1e-6)
}

// TestEventRing_Bounded tests eviction and most-recent-first order
func TestEventRing_Bounded(t *testing.T) {
	ring := NewEventRing(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		ring.Add(Event{Type: EventTrade, Message: msg})
	}

	recent := ring.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "e", recent[0].Message)
	assert.Equal(t, "c", recent[2].Message)
	assert.NotEmpty(t, recent[0].ID)
	assert.Equal(t, 3, ring.Len())
	assert.Len(t, ring.Recent(2), 2)
}
