package strategy

import (
	"context"
	"time"

	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-bot/pkg/types"
)

// RiskExitStrategy tags synthetic exits raised by the engine's stop-loss/take-profit sweep
const RiskExitStrategy = "risk_exit"

// Strategy defines the interface for trading strategies
type Strategy interface {
	// GetName returns the name of the strategy
	GetName() string

	// GenerateSignal proposes at most one signal for the symbol; nil means no opinion
	GenerateSignal(ctx context.Context, symbol string, snapshot types.Snapshot) (*Signal, error)

	// UpdatePerformance feeds back an executed trade attributed to this strategy
	UpdatePerformance(result exchange.TradeResult)

	// GetPerformanceMetrics returns lifetime performance used for weighting
	GetPerformanceMetrics() PerformanceMetrics
}

// TradeAction represents the type of trading action
type TradeAction int

const (
	ActionHold TradeAction = iota
	ActionBuy
	ActionSell
)

func (ta TradeAction) String() string {
	switch ta {
	case ActionHold:
		return "HOLD"
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Side maps the action onto an execution side
func (ta TradeAction) Side() exchange.Side {
	if ta == ActionSell {
		return exchange.SideSell
	}
	return exchange.SideBuy
}

// Signal is a strategy's proposal for one symbol in one cycle.
// Zero Quantity, StopLoss, TakeProfit and Volume mean "not provided".
type Signal struct {
	Symbol     string
	Action     TradeAction
	Confidence float64
	Price      float64
	Quantity   float64
	StopLoss   float64
	TakeProfit float64
	Volume     float64
	Strategy   string
	Reason     string
	Timestamp  time.Time
	Extras     SignalExtras
}

// SignalExtras carries optional context attached by strategies or the engine
type SignalExtras struct {
	// RecentCloses holds oldest-to-newest closes keyed by symbol,
	// including symbols other than the signal's own.
	RecentCloses   map[string][]float64
	TokenAddresses map[string]string
	Indicators     map[string]float64
}

// IsRiskExit reports whether the signal is a synthetic forced exit
func (s *Signal) IsRiskExit() bool {
	return s.Strategy == RiskExitStrategy
}

// Closes returns the embedded close history for the signal's own symbol
func (s *Signal) Closes() []float64 {
	return s.ClosesFor(s.Symbol)
}

// ClosesFor returns the embedded close history for symbol
func (s *Signal) ClosesFor(symbol string) []float64 {
	if s.Extras.RecentCloses == nil {
		return nil
	}
	return s.Extras.RecentCloses[symbol]
}

// RewardRisk returns the fractional distance to take-profit and stop-loss.
// ok is false when either level or the price is missing.
func (s *Signal) RewardRisk() (reward, risk float64, ok bool) {
	if s.Price <= 0 || s.StopLoss <= 0 || s.TakeProfit <= 0 {
		return 0, 0, false
	}
	reward = abs(s.TakeProfit-s.Price) / s.Price
	risk = abs(s.Price-s.StopLoss) / s.Price
	return reward, risk, true
}

// PerformanceMetrics summarises a strategy's closed trades
type PerformanceMetrics struct {
	TotalTrades   int       `json:"total_trades"`
	WinningTrades int       `json:"winning_trades"`
	LosingTrades  int       `json:"losing_trades"`
	WinRate       float64   `json:"win_rate"`
	TotalPnL      float64   `json:"total_pnl"`
	AverageWin    float64   `json:"average_win"`
	AverageLoss   float64   `json:"average_loss"`
	LastTradeAt   time.Time `json:"last_trade_at"`
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
