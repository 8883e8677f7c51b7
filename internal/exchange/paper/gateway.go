// Package paper implements an in-memory execution gateway for paper trading.
package paper

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-bot/internal/safety"
)

const (
	DefaultFeeRate    = 0.001
	DefaultMaxHistory = 1000

	dustQuantity = 1e-12
)

// Config configures a paper gateway
type Config struct {
	InitialCapital float64
	FeeRate        float64
	MaxHistory     int
}

type holding struct {
	exchange.Position
	costBasis decimal.Decimal
}

// Gateway fills every valid order at the requested price, charging a flat fee
type Gateway struct {
	mu         sync.RWMutex
	cash       decimal.Decimal
	feeRate    decimal.Decimal
	holdings   map[string]*holding
	prices     map[string]float64
	history    []float64
	maxHistory int
	validator  *safety.Validator
	now        func() time.Time
}

// NewGateway creates a paper gateway funded with the initial capital
func NewGateway(cfg Config) *Gateway {
	if cfg.FeeRate < 0 {
		cfg.FeeRate = DefaultFeeRate
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}

	g := &Gateway{
		cash:       decimal.NewFromFloat(cfg.InitialCapital),
		feeRate:    decimal.NewFromFloat(cfg.FeeRate),
		holdings:   make(map[string]*holding),
		prices:     make(map[string]float64),
		maxHistory: cfg.MaxHistory,
		validator:  safety.NewValidator(),
		now:        time.Now,
	}
	g.history = append(g.history, cfg.InitialCapital)
	return g
}

// ExecuteTrade fills a BUY or SELL against the in-memory book
func (g *Gateway) ExecuteTrade(ctx context.Context, req exchange.TradeRequest) (*exchange.TradeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r := g.validator.ValidateOrder(req.Symbol, req.Price, req.Quantity); !r.Valid {
		if r.Code == safety.CodeInvalidSymbol {
			return nil, exchange.ErrInvalidSymbol.WithDetails("%s", r.Message)
		}
		return nil, exchange.ErrInvalidOrder.WithDetails("%s: %s", r.Code, r.Message)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	switch req.Side {
	case exchange.SideBuy:
		return g.buy(req)
	case exchange.SideSell:
		return g.sell(req)
	default:
		return nil, exchange.ErrInvalidOrder.WithDetails("unknown side %q", req.Side)
	}
}

func (g *Gateway) buy(req exchange.TradeRequest) (*exchange.TradeResult, error) {
	qty := decimal.NewFromFloat(req.Quantity)
	price := decimal.NewFromFloat(req.Price)
	notional := qty.Mul(price)
	fee := notional.Mul(g.feeRate)
	cost := notional.Add(fee)

	if cost.GreaterThan(g.cash) {
		return nil, exchange.ErrInsufficientBalance.WithDetails("need %s, have %s", cost.StringFixed(2), g.cash.StringFixed(2))
	}
	g.cash = g.cash.Sub(cost)

	now := g.now()
	h, ok := g.holdings[req.Symbol]
	if !ok {
		h = &holding{Position: exchange.Position{
			Symbol:   req.Symbol,
			Strategy: req.Strategy,
			OpenedAt: now,
		}}
		g.holdings[req.Symbol] = h
	}
	h.costBasis = h.costBasis.Add(cost)
	h.Quantity += req.Quantity
	h.AvgPrice = h.costBasis.Div(decimal.NewFromFloat(h.Quantity)).InexactFloat64()
	if req.StopLoss > 0 {
		h.StopLoss = req.StopLoss
	}
	if req.TakeProfit > 0 {
		h.TakeProfit = req.TakeProfit
	}
	g.prices[req.Symbol] = req.Price

	return &exchange.TradeResult{
		TradeID:    uuid.NewString(),
		Symbol:     req.Symbol,
		Side:       exchange.SideBuy,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Notional:   notional.InexactFloat64(),
		Fee:        fee.InexactFloat64(),
		Strategy:   req.Strategy,
		OpenedBy:   h.Strategy,
		Reason:     req.Reason,
		ExecutedAt: now,
	}, nil
}

func (g *Gateway) sell(req exchange.TradeRequest) (*exchange.TradeResult, error) {
	h, ok := g.holdings[req.Symbol]
	if !ok || h.Quantity <= 0 {
		return nil, exchange.ErrPositionNotFound.WithDetails("%s", req.Symbol)
	}

	sellQty := req.Quantity
	if sellQty > h.Quantity {
		sellQty = h.Quantity
	}

	qty := decimal.NewFromFloat(sellQty)
	notional := qty.Mul(decimal.NewFromFloat(req.Price))
	fee := notional.Mul(g.feeRate)
	proceeds := notional.Sub(fee)

	share := qty.Div(decimal.NewFromFloat(h.Quantity))
	releasedBasis := h.costBasis.Mul(share)
	pnl := proceeds.Sub(releasedBasis)

	g.cash = g.cash.Add(proceeds)
	h.costBasis = h.costBasis.Sub(releasedBasis)
	h.Quantity -= sellQty
	h.RealizedPnL += pnl.InexactFloat64()
	g.prices[req.Symbol] = req.Price

	openedBy := h.Strategy
	if h.Quantity <= dustQuantity {
		delete(g.holdings, req.Symbol)
	}

	return &exchange.TradeResult{
		TradeID:     uuid.NewString(),
		Symbol:      req.Symbol,
		Side:        exchange.SideSell,
		Quantity:    sellQty,
		Price:       req.Price,
		Notional:    notional.InexactFloat64(),
		Fee:         fee.InexactFloat64(),
		RealizedPnL: pnl.InexactFloat64(),
		Strategy:    req.Strategy,
		OpenedBy:    openedBy,
		Reason:      req.Reason,
		ExecutedAt:  g.now(),
	}, nil
}

// Positions returns a marked-to-market copy of the open positions
func (g *Gateway) Positions() map[string]exchange.Position {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[string]exchange.Position, len(g.holdings))
	for symbol, h := range g.holdings {
		out[symbol] = g.markLocked(h)
	}
	return out
}

func (g *Gateway) markLocked(h *holding) exchange.Position {
	p := h.Position
	if price, ok := g.prices[p.Symbol]; ok && price > 0 {
		p.CurrentPrice = price
	} else {
		p.CurrentPrice = p.AvgPrice
	}
	p.UnrealizedPnL = (p.CurrentPrice - p.AvgPrice) * p.Quantity
	return p
}

// TotalValue returns cash plus the marked value of every position
func (g *Gateway) TotalValue() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.totalValueLocked()
}

func (g *Gateway) totalValueLocked() float64 {
	total := g.cash
	for _, h := range g.holdings {
		total = total.Add(decimal.NewFromFloat(g.markLocked(h).MarketValue()))
	}
	return total.InexactFloat64()
}

// CashBalance returns the uninvested cash
func (g *Gateway) CashBalance() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cash.InexactFloat64()
}

// ValueHistory returns the recorded portfolio values, oldest first
func (g *Gateway) ValueHistory() []float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]float64(nil), g.history...)
}

// RefreshValuation applies the latest prices and appends the portfolio value to the history
func (g *Gateway) RefreshValuation(ctx context.Context, prices map[string]float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for symbol, price := range prices {
		if price > 0 {
			g.prices[symbol] = price
		}
	}

	g.history = append(g.history, g.totalValueLocked())
	if len(g.history) > g.maxHistory {
		g.history = g.history[len(g.history)-g.maxHistory:]
	}
	return nil
}
