// Package risk gates, sizes and monitors trades against hard portfolio limits.
package risk

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-trading-bot/internal/logger"
	"github.com/ducminhle1904/crypto-trading-bot/internal/strategy"
)

const (
	epsilon = 1e-9

	// minCorrelationPoints is the fewest aligned returns a pair needs to be compared
	minCorrelationPoints = 3
	// minVaRObservations is the fewest returns VaR is computed from
	minVaRObservations = 5
)

// Metrics is a point-in-time view of the risk state
type Metrics struct {
	PortfolioValue  float64            `json:"portfolio_value"`
	CashBalance     float64            `json:"cash_balance"`
	PeakValue       float64            `json:"peak_value"`
	CurrentDrawdown float64            `json:"current_drawdown"`
	DailyTrades     int                `json:"daily_trades"`
	DailyPnL        float64            `json:"daily_pnl"`
	DailyLossLimit  float64            `json:"daily_loss_limit"`
	LastResetDate   string             `json:"last_reset_date"`
	VaR95           float64            `json:"var_95"`
	OpenPositions   int                `json:"open_positions"`
	Correlations    map[string]float64 `json:"correlations"`
	Concentrations  map[string]float64 `json:"concentrations"`
	Limits          Limits             `json:"limits"`
}

// Manager is the stateful risk gatekeeper shared by one engine.
// Portfolio value is always read live from the portfolio, never cached.
type Manager struct {
	portfolio exchange.Portfolio
	logger    *logger.Logger
	now       func() time.Time

	mu             sync.RWMutex
	limits         Limits
	dailyTrades    int
	dailyPnL       float64
	peakValue      float64
	lastResetDate  time.Time
	correlations   map[string]float64
	concentrations map[string]float64
}

// NewManager creates a risk manager reading holdings from portfolio
func NewManager(limits Limits, portfolio exchange.Portfolio, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	m := &Manager{
		portfolio:      portfolio,
		logger:         log,
		now:            time.Now,
		limits:         limits,
		correlations:   make(map[string]float64),
		concentrations: make(map[string]float64),
	}
	m.lastResetDate = utcDate(m.now())
	m.peakValue = portfolio.TotalValue()
	return m
}

func utcDate(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

// resetDailyLocked zeroes the daily counters once per UTC day
func (m *Manager) resetDailyLocked() {
	today := utcDate(m.now())
	if today.Equal(m.lastResetDate) {
		return
	}
	m.logger.Info("Daily risk counters reset (trades=%d pnl=%.2f)", m.dailyTrades, m.dailyPnL)
	m.dailyTrades = 0
	m.dailyPnL = 0
	m.lastResetDate = today
}

// ValidateSignal runs the hard checks in order and returns the first failure reason
func (m *Manager) ValidateSignal(sig *strategy.Signal) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetDailyLocked()
	l := m.limits

	pv := m.portfolio.TotalValue()
	if pv <= 0 {
		return false, "portfolio value unavailable"
	}

	if m.dailyTrades >= l.MaxDailyTrades {
		return false, fmt.Sprintf("daily trade limit reached (%d/%d)", m.dailyTrades, l.MaxDailyTrades)
	}

	if lossLimit := pv * l.MaxDailyLossPct; m.dailyPnL <= -lossLimit {
		return false, fmt.Sprintf("daily loss limit reached (%.2f <= -%.2f)", m.dailyPnL, lossLimit)
	}

	positions := m.portfolio.Positions()
	size := m.sizeLocked(sig, pv, positions, m.portfolio.CashBalance())
	if size <= 0 {
		return false, "position size is zero"
	}

	if sig.Action == strategy.ActionBuy {
		if ok, reason := m.checkCorrelationLocked(sig, positions); !ok {
			return false, reason
		}

		riskAmount := math.Abs(sig.Price-sig.StopLoss) * size
		if share := riskAmount / pv; share > l.MaxPortfolioRiskPct+epsilon {
			return false, fmt.Sprintf("risk per trade %.4f exceeds %.4f", share, l.MaxPortfolioRiskPct)
		}

		projected := positions[sig.Symbol].MarketValue() + size*sig.Price
		if share := projected / pv; share > l.MaxConcentrationPct+epsilon {
			return false, fmt.Sprintf("concentration in %s %.4f exceeds %.4f", sig.Symbol, share, l.MaxConcentrationPct)
		}
	}

	if sig.Volume > 0 && sig.Volume < l.MinVolume {
		return false, fmt.Sprintf("volume %.0f below minimum %.0f", sig.Volume, l.MinVolume)
	}

	return true, ""
}

func (m *Manager) checkCorrelationLocked(sig *strategy.Signal, positions map[string]exchange.Position) (bool, string) {
	candidate := indicators.Returns(sig.Closes())
	if len(candidate) < minCorrelationPoints {
		return true, ""
	}

	symbols := make([]string, 0, len(positions))
	for symbol, pos := range positions {
		if symbol != sig.Symbol && pos.Quantity > 0 {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		corr, ok := indicators.Pearson(candidate, indicators.Returns(sig.ClosesFor(symbol)), minCorrelationPoints)
		if !ok {
			continue
		}
		m.correlations[sig.Symbol+"/"+symbol] = corr
		if math.Abs(corr) > m.limits.MaxCorrelation {
			return false, fmt.Sprintf("correlation %.2f between %s and %s exceeds %.2f", corr, sig.Symbol, symbol, m.limits.MaxCorrelation)
		}
	}
	return true, ""
}

// CalculatePositionSize returns the quantity to trade for sig.
// SELL always closes the full holding; BUY is risk-budgeted and capped.
func (m *Manager) CalculatePositionSize(sig *strategy.Signal) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sizeLocked(sig, m.portfolio.TotalValue(), m.portfolio.Positions(), m.portfolio.CashBalance())
}

func (m *Manager) sizeLocked(sig *strategy.Signal, pv float64, positions map[string]exchange.Position, cash float64) float64 {
	if sig.Action == strategy.ActionSell {
		if pos, ok := positions[sig.Symbol]; ok && pos.Quantity > 0 {
			return pos.Quantity
		}
		return 0
	}

	l := m.limits
	price := sig.Price
	if price <= 0 || sig.StopLoss <= 0 || pv <= 0 {
		return 0
	}

	maxNotional := pv * l.MaxPositionSizePct
	fixed := l.FixedNotional > 0

	var size float64
	if fixed {
		size = l.FixedNotional / price
	} else {
		riskPerUnit := math.Abs(price - sig.StopLoss)
		if riskPerUnit == 0 {
			return 0
		}
		size = math.Min((pv*l.MaxPortfolioRiskPct)/riskPerUnit, maxNotional/price)
	}
	if size <= 0 {
		return 0
	}

	if size < l.MinTradeQuantity {
		size = l.MinTradeQuantity
	}
	if !fixed && size*price < l.MinNotional {
		size = l.MinNotional / price
	}

	// floors that break the position cap make the trade unfundable
	if size*price > maxNotional*(1+epsilon) {
		return 0
	}

	if affordable := cash / (price * (1 + l.FeeReserve)); size > affordable {
		size = affordable
		if size < l.MinTradeQuantity || (!fixed && size*price < l.MinNotional) {
			return 0
		}
	}
	return size
}

// RecordTrade books an executed trade into the daily counters
func (m *Manager) RecordTrade(result exchange.TradeResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetDailyLocked()
	m.dailyTrades++
	m.dailyPnL += result.RealizedPnL

	pv := m.portfolio.TotalValue()
	if pv > m.peakValue {
		m.peakValue = pv
	}
	m.refreshConcentrationLocked(pv)

	m.logger.Debug("Trade recorded: %s %s pnl=%.2f daily_trades=%d daily_pnl=%.2f",
		result.Side, result.Symbol, result.RealizedPnL, m.dailyTrades, m.dailyPnL)
}

func (m *Manager) refreshConcentrationLocked(pv float64) {
	m.concentrations = make(map[string]float64)
	if pv <= 0 {
		return
	}
	for symbol, pos := range m.portfolio.Positions() {
		m.concentrations[symbol] = pos.MarketValue() / pv
	}
}

// CheckRiskLimits reports whether trading may continue
func (m *Manager) CheckRiskLimits() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetDailyLocked()

	pv := m.portfolio.TotalValue()
	if pv <= 0 {
		return false, "portfolio value unavailable"
	}
	if pv > m.peakValue {
		m.peakValue = pv
	}
	m.refreshConcentrationLocked(pv)

	if lossLimit := m.limits.MaxDailyLossPct * pv; m.dailyPnL <= -lossLimit {
		return false, fmt.Sprintf("daily loss limit exceeded (%.2f <= -%.2f)", m.dailyPnL, lossLimit)
	}

	if drawdown := (m.peakValue - pv) / m.peakValue; drawdown > m.limits.MaxDrawdownPct {
		return false, fmt.Sprintf("max drawdown exceeded (%.2f%% > %.2f%%)", drawdown*100, m.limits.MaxDrawdownPct*100)
	}

	return true, ""
}

// CalculateVaR estimates the loss at the given confidence by historical simulation
func (m *Manager) CalculateVaR(portfolioValue, confidence float64) float64 {
	returns := indicators.Returns(m.portfolio.ValueHistory())
	if len(returns) < minVaRObservations {
		return 0
	}
	p := indicators.Percentile(returns, (1-confidence)*100)
	return math.Abs(p) * portfolioValue
}

// GetRiskMetrics returns a copy of the current risk state
func (m *Manager) GetRiskMetrics() Metrics {
	pv := m.portfolio.TotalValue()
	cash := m.portfolio.CashBalance()
	open := len(m.portfolio.Positions())
	var95 := m.CalculateVaR(pv, 0.95)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetDailyLocked()

	metrics := Metrics{
		PortfolioValue: pv,
		CashBalance:    cash,
		PeakValue:      m.peakValue,
		DailyTrades:    m.dailyTrades,
		DailyPnL:       m.dailyPnL,
		DailyLossLimit: pv * m.limits.MaxDailyLossPct,
		LastResetDate:  m.lastResetDate.Format("2006-01-02"),
		VaR95:          var95,
		OpenPositions:  open,
		Correlations:   make(map[string]float64, len(m.correlations)),
		Concentrations: make(map[string]float64, len(m.concentrations)),
		Limits:         m.limits,
	}
	if m.peakValue > 0 && pv < m.peakValue {
		metrics.CurrentDrawdown = (m.peakValue - pv) / m.peakValue
	}
	for k, v := range m.correlations {
		metrics.Correlations[k] = v
	}
	for k, v := range m.concentrations {
		metrics.Concentrations[k] = v
	}
	return metrics
}

// Limits returns the live limits
func (m *Manager) Limits() Limits {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.limits
}

// UpdateRiskLimits merges a partial update into the live limits.
// The update is rejected as a whole if the result is invalid.
func (m *Manager) UpdateRiskLimits(update LimitsUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.limits.Apply(update)
	if err := next.Validate(); err != nil {
		return fmt.Errorf("invalid risk limits: %w", err)
	}
	m.limits = next
	m.logger.Info("Risk limits updated: %+v", next)
	return nil
}
