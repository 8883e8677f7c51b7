package paper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange"
)

func newTestGateway(capital float64) *Gateway {
	g := NewGateway(Config{InitialCapital: capital, FeeRate: DefaultFeeRate})
	g.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	return g
}

// TestGateway_BuyAndSell tests a full round trip with fees
func TestGateway_BuyAndSell(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(10000)

	buy, err := g.ExecuteTrade(ctx, exchange.TradeRequest{
		Symbol: "BTC", Side: exchange.SideBuy, Quantity: 1, Price: 1000,
		Strategy: "momentum", StopLoss: 950, TakeProfit: 1150,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, buy.TradeID)
	assert.InDelta(t, 1.0, buy.Fee, 1e-9)
	assert.InDelta(t, 8999.0, g.CashBalance(), 1e-9)

	pos := g.Positions()["BTC"]
	assert.Equal(t, 1.0, pos.Quantity)
	assert.InDelta(t, 1001.0, pos.AvgPrice, 1e-9)
	assert.Equal(t, 950.0, pos.StopLoss)
	assert.Equal(t, "momentum", pos.Strategy)
	assert.False(t, pos.OpenedAt.IsZero())

	sell, err := g.ExecuteTrade(ctx, exchange.TradeRequest{
		Symbol: "BTC", Side: exchange.SideSell, Quantity: 1, Price: 1100, Strategy: "mean_reversion",
	})
	require.NoError(t, err)
	// proceeds 1100 - 1.1 fee, cost basis 1001
	assert.InDelta(t, 97.9, sell.RealizedPnL, 1e-9)
	assert.Equal(t, "momentum", sell.OpenedBy)
	assert.Empty(t, g.Positions())
	assert.InDelta(t, 10097.9, g.CashBalance(), 1e-9)
}

// TestGateway_Rejections tests insufficient cash and selling nothing
func TestGateway_Rejections(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(100)

	res, err := g.ExecuteTrade(ctx, exchange.TradeRequest{Symbol: "ETH", Side: exchange.SideBuy, Quantity: 1, Price: 100})
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, exchange.ErrInsufficientBalance))

	res, err = g.ExecuteTrade(ctx, exchange.TradeRequest{Symbol: "ETH", Side: exchange.SideSell, Quantity: 1, Price: 100})
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, exchange.ErrPositionNotFound))

	res, err = g.ExecuteTrade(ctx, exchange.TradeRequest{Symbol: "ETH", Side: exchange.SideBuy, Quantity: 0, Price: 100})
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, exchange.ErrInvalidOrder))

	_, err = g.ExecuteTrade(ctx, exchange.TradeRequest{Symbol: "eth-usd", Side: exchange.SideBuy, Quantity: 1, Price: 100})
	assert.True(t, errors.Is(err, exchange.ErrInvalidSymbol))

	_, err = g.ExecuteTrade(ctx, exchange.TradeRequest{Symbol: "ETH", Side: exchange.SideBuy, Quantity: 0.00001, Price: 100})
	assert.True(t, errors.Is(err, exchange.ErrInvalidOrder))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = g.ExecuteTrade(cancelled, exchange.TradeRequest{Symbol: "ETH", Side: exchange.SideBuy, Quantity: 0.1, Price: 100})
	assert.ErrorIs(t, err, context.Canceled)
}

// TestGateway_SellCappedAtHolding tests that oversized sells close exactly the position
func TestGateway_SellCappedAtHolding(t *testing.T) {
	ctx := context.Background()
	g := NewGateway(Config{InitialCapital: 1000, FeeRate: 0})

	_, err := g.ExecuteTrade(ctx, exchange.TradeRequest{Symbol: "SOL", Side: exchange.SideBuy, Quantity: 2, Price: 10})
	require.NoError(t, err)

	sell, err := g.ExecuteTrade(ctx, exchange.TradeRequest{Symbol: "SOL", Side: exchange.SideSell, Quantity: 5, Price: 12})
	require.NoError(t, err)
	assert.Equal(t, 2.0, sell.Quantity)
	assert.InDelta(t, 4.0, sell.RealizedPnL, 1e-9)
	assert.InDelta(t, 1004.0, g.TotalValue(), 1e-9)
}

// TestGateway_RefreshValuation tests mark-to-market and the bounded history
func TestGateway_RefreshValuation(t *testing.T) {
	ctx := context.Background()
	g := NewGateway(Config{InitialCapital: 1000, FeeRate: 0, MaxHistory: 3})

	_, err := g.ExecuteTrade(ctx, exchange.TradeRequest{Symbol: "SOL", Side: exchange.SideBuy, Quantity: 10, Price: 10})
	require.NoError(t, err)

	require.NoError(t, g.RefreshValuation(ctx, map[string]float64{"SOL": 12}))
	pos := g.Positions()["SOL"]
	assert.Equal(t, 12.0, pos.CurrentPrice)
	assert.InDelta(t, 20.0, pos.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 1020.0, g.TotalValue(), 1e-9)

	require.NoError(t, g.RefreshValuation(ctx, map[string]float64{"SOL": 11}))
	require.NoError(t, g.RefreshValuation(ctx, map[string]float64{"SOL": 9}))
	history := g.ValueHistory()
	require.Len(t, history, 3)
	assert.InDelta(t, 1020.0, history[0], 1e-9)
	assert.InDelta(t, 990.0, history[2], 1e-9)
}
