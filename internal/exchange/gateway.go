package exchange

import (
	"context"
	"time"
)

// Side is the execution side of a trade
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Position is an open long holding in one symbol
type Position struct {
	Symbol        string    `json:"symbol"`
	Quantity      float64   `json:"quantity"`
	AvgPrice      float64   `json:"avg_price"`
	CurrentPrice  float64   `json:"current_price"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	RealizedPnL   float64   `json:"realized_pnl"`
	StopLoss      float64   `json:"stop_loss,omitempty"`
	TakeProfit    float64   `json:"take_profit,omitempty"`
	Strategy      string    `json:"strategy"`
	OpenedAt      time.Time `json:"opened_at"`
}

// MarketValue returns the position's notional at its current price
func (p Position) MarketValue() float64 {
	price := p.CurrentPrice
	if price <= 0 {
		price = p.AvgPrice
	}
	return p.Quantity * price
}

// TradeRequest asks the gateway to execute a trade at a reference price
type TradeRequest struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Strategy   string    `json:"strategy"`
	StopLoss   float64   `json:"stop_loss,omitempty"`
	TakeProfit float64   `json:"take_profit,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// TradeResult describes an executed trade.
// OpenedBy names the strategy that opened the position a SELL closed.
type TradeResult struct {
	TradeID     string    `json:"trade_id"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Notional    float64   `json:"notional"`
	Fee         float64   `json:"fee"`
	RealizedPnL float64   `json:"realized_pnl"`
	Strategy    string    `json:"strategy"`
	OpenedBy    string    `json:"opened_by,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	ExecutedAt  time.Time `json:"executed_at"`
}

// Portfolio is the read-only view of holdings used for sizing and limits
type Portfolio interface {
	// Positions returns a copy of the open positions keyed by symbol
	Positions() map[string]Position
	// TotalValue returns cash plus marked-to-market positions
	TotalValue() float64
	CashBalance() float64
	// ValueHistory returns the recorded portfolio values, oldest first
	ValueHistory() []float64
}

// Gateway executes trades and keeps the portfolio marked to market.
// A rejected trade returns a nil result and an error.
type Gateway interface {
	Portfolio
	ExecuteTrade(ctx context.Context, req TradeRequest) (*TradeResult, error)
	RefreshValuation(ctx context.Context, prices map[string]float64) error
}
