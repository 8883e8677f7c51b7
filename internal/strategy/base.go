package strategy

import (
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-bot/pkg/types"
)

const (
	DefaultStopLossPct   = 0.05
	DefaultTakeProfitPct = 0.15
)

// ProtectionSource supplies the account-level stop-loss and take-profit
// percentages. It is read on every signal so runtime updates apply immediately.
type ProtectionSource interface {
	ProtectionLevels() (stopLossPct, takeProfitPct float64)
}

type fixedProtection struct{ stopLoss, takeProfit float64 }

func (f fixedProtection) ProtectionLevels() (float64, float64) { return f.stopLoss, f.takeProfit }

// FixedProtection returns a ProtectionSource with constant levels
func FixedProtection(stopLossPct, takeProfitPct float64) ProtectionSource {
	return fixedProtection{stopLoss: stopLossPct, takeProfit: takeProfitPct}
}

// Base carries the naming, protection levels and performance bookkeeping shared by strategies
type Base struct {
	name   string
	levels ProtectionSource

	mu      sync.RWMutex
	metrics PerformanceMetrics
	wins    float64
	losses  float64
}

func (b *Base) init(name string, levels ProtectionSource) {
	if levels == nil {
		levels = FixedProtection(DefaultStopLossPct, DefaultTakeProfitPct)
	}
	b.name = name
	b.levels = levels
}

// GetName returns the name of the strategy
func (b *Base) GetName() string {
	return b.name
}

// UpdatePerformance counts closing trades only; opening a position is not an outcome
func (b *Base) UpdatePerformance(result exchange.TradeResult) {
	if result.Side != exchange.SideSell {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	m := &b.metrics
	m.TotalTrades++
	m.TotalPnL += result.RealizedPnL
	if result.RealizedPnL > 0 {
		m.WinningTrades++
		b.wins += result.RealizedPnL
		m.AverageWin = b.wins / float64(m.WinningTrades)
	} else {
		m.LosingTrades++
		b.losses += result.RealizedPnL
		m.AverageLoss = b.losses / float64(m.LosingTrades)
	}
	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	m.LastTradeAt = result.ExecutedAt
}

// GetPerformanceMetrics returns a copy of the lifetime metrics
func (b *Base) GetPerformanceMetrics() PerformanceMetrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}

// StopLoss places the protective stop on the losing side of price
func (b *Base) StopLoss(price float64, action TradeAction) float64 {
	pct, _ := b.levels.ProtectionLevels()
	if action == ActionSell {
		return price * (1 + pct)
	}
	return price * (1 - pct)
}

// TakeProfit places the target on the winning side of price
func (b *Base) TakeProfit(price float64, action TradeAction) float64 {
	_, pct := b.levels.ProtectionLevels()
	if action == ActionSell {
		return price * (1 - pct)
	}
	return price * (1 + pct)
}

func (b *Base) newSignal(symbol string, snapshot types.Snapshot, action TradeAction, confidence float64, reason string) *Signal {
	price := snapshot.Price
	ts := snapshot.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if confidence > 1 {
		confidence = 1
	}
	return &Signal{
		Symbol:     symbol,
		Action:     action,
		Confidence: confidence,
		Price:      price,
		StopLoss:   b.StopLoss(price, action),
		TakeProfit: b.TakeProfit(price, action),
		Volume:     snapshot.Volume,
		Strategy:   b.name,
		Reason:     reason,
		Timestamp:  ts,
		Extras:     SignalExtras{Indicators: make(map[string]float64)},
	}
}

// lastPrice prefers the live ticker price and falls back to the last close
func lastPrice(snapshot types.Snapshot) float64 {
	if snapshot.Price > 0 {
		return snapshot.Price
	}
	if n := len(snapshot.History); n > 0 {
		return snapshot.History[n-1].Close
	}
	return 0
}

// volumeRatio compares the latest candle volume with the average of the earlier ones
func volumeRatio(history []types.OHLCV) float64 {
	if len(history) < 2 {
		return 1
	}
	var sum float64
	for _, c := range history[:len(history)-1] {
		sum += c.Volume
	}
	avg := sum / float64(len(history)-1)
	if avg <= 0 {
		return 1
	}
	return history[len(history)-1].Volume / avg
}
