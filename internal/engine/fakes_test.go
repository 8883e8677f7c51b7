package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-bot/internal/risk"
	"github.com/ducminhle1904/crypto-trading-bot/internal/strategy"
	"github.com/ducminhle1904/crypto-trading-bot/pkg/types"
)

type fakeProvider struct {
	mu        sync.Mutex
	snapshots map[string]types.Snapshot
	err       error
	calls     int
	// block, when set, holds every fetch until it is closed
	block chan struct{}
}

func (f *fakeProvider) GetLatestData(ctx context.Context, symbols []string, includeHistory bool) (map[string]types.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]types.Snapshot)
	for _, s := range symbols {
		if snap, ok := f.snapshots[s]; ok {
			out[s] = snap
		}
	}
	return out, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStrategy struct {
	name    string
	signals map[string]strategy.Signal
	err     error

	mu      sync.Mutex
	metrics strategy.PerformanceMetrics
	updates []exchange.TradeResult
}

func (f *fakeStrategy) GetName() string { return f.name }

func (f *fakeStrategy) GenerateSignal(ctx context.Context, symbol string, snapshot types.Snapshot) (*strategy.Signal, error) {
	if f.err != nil {
		return nil, f.err
	}
	sig, ok := f.signals[symbol]
	if !ok {
		return nil, nil
	}
	return &sig, nil
}

func (f *fakeStrategy) UpdatePerformance(result exchange.TradeResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, result)
}

func (f *fakeStrategy) GetPerformanceMetrics() strategy.PerformanceMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics
}

func (f *fakeStrategy) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type fakeGateway struct {
	mu        sync.Mutex
	positions map[string]exchange.Position
	requests  []exchange.TradeRequest
	value     float64
	rejectErr error
	now       func() time.Time
}

func newFakeGateway(now func() time.Time) *fakeGateway {
	return &fakeGateway{positions: make(map[string]exchange.Position), value: 10000, now: now}
}

func (g *fakeGateway) ExecuteTrade(ctx context.Context, req exchange.TradeRequest) (*exchange.TradeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.rejectErr != nil {
		return nil, g.rejectErr
	}

	result := &exchange.TradeResult{
		TradeID:    "t" + req.Symbol,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Notional:   req.Quantity * req.Price,
		Strategy:   req.Strategy,
		ExecutedAt: g.now(),
	}
	switch req.Side {
	case exchange.SideBuy:
		g.positions[req.Symbol] = exchange.Position{
			Symbol:     req.Symbol,
			Quantity:   req.Quantity,
			AvgPrice:   req.Price,
			StopLoss:   req.StopLoss,
			TakeProfit: req.TakeProfit,
			Strategy:   req.Strategy,
			OpenedAt:   g.now(),
		}
		result.OpenedBy = req.Strategy
	case exchange.SideSell:
		pos, ok := g.positions[req.Symbol]
		if !ok {
			return nil, exchange.ErrPositionNotFound
		}
		delete(g.positions, req.Symbol)
		result.RealizedPnL = (req.Price - pos.AvgPrice) * req.Quantity
		result.OpenedBy = pos.Strategy
	}
	return result, nil
}

func (g *fakeGateway) RefreshValuation(ctx context.Context, prices map[string]float64) error {
	return nil
}

func (g *fakeGateway) Positions() map[string]exchange.Position {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]exchange.Position, len(g.positions))
	for k, v := range g.positions {
		out[k] = v
	}
	return out
}

func (g *fakeGateway) TotalValue() float64     { return g.value }
func (g *fakeGateway) CashBalance() float64    { return g.value }
func (g *fakeGateway) ValueHistory() []float64 { return nil }

func (g *fakeGateway) executed() []exchange.TradeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]exchange.TradeRequest(nil), g.requests...)
}

type fakeRisk struct {
	mu            sync.Mutex
	allow         bool
	reason        string
	size          float64
	validateCalls int
	recorded      []exchange.TradeResult
	limitsReason  string
}

func (r *fakeRisk) ValidateSignal(sig *strategy.Signal) (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validateCalls++
	return r.allow, r.reason
}

func (r *fakeRisk) CalculatePositionSize(sig *strategy.Signal) float64 {
	return r.size
}

func (r *fakeRisk) RecordTrade(result exchange.TradeResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, result)
}

func (r *fakeRisk) CheckRiskLimits() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limitsReason == "", r.limitsReason
}

func (r *fakeRisk) GetRiskMetrics() risk.Metrics {
	return risk.Metrics{PortfolioValue: 10000}
}

type recordingNotifier struct {
	mu         sync.Mutex
	alerts     []string
	riskAlerts []string
	trades     int
}

func (n *recordingNotifier) SendAlert(ctx context.Context, title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, title)
	return nil
}

func (n *recordingNotifier) SendTradeNotification(ctx context.Context, trade exchange.TradeResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.trades++
	return errors.New("telegram down")
}

func (n *recordingNotifier) SendRiskAlert(ctx context.Context, title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.riskAlerts = append(n.riskAlerts, message)
	return nil
}

func (n *recordingNotifier) riskAlertCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.riskAlerts)
}

// risingHistory returns n candles closing at start, start+step, ...
func risingHistory(start, step float64, n int) []types.OHLCV {
	out := make([]types.OHLCV, n)
	for i := range out {
		c := start + step*float64(i)
		out[i] = types.OHLCV{Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return out
}
