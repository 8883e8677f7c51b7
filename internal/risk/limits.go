package risk

import "fmt"

// Limits are the hard risk rules. Percentages are fractions of portfolio value.
type Limits struct {
	MaxPositionSizePct  float64 `json:"max_position_size" yaml:"max_position_size"`
	MaxPortfolioRiskPct float64 `json:"max_portfolio_risk" yaml:"max_portfolio_risk"`
	MaxDailyLossPct     float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
	MaxDrawdownPct      float64 `json:"max_drawdown" yaml:"max_drawdown"`
	MaxCorrelation      float64 `json:"max_correlation" yaml:"max_correlation"`
	MaxConcentrationPct float64 `json:"max_concentration" yaml:"max_concentration"`
	MaxDailyTrades      int     `json:"max_daily_trades" yaml:"max_daily_trades"`
	MinVolume           float64 `json:"min_volume" yaml:"min_volume"` // 24h quote-currency turnover

	// Sizing floors and modes
	MinTradeQuantity float64 `json:"min_trade_quantity" yaml:"min_trade_quantity"`
	MinNotional      float64 `json:"min_position_notional" yaml:"min_position_notional"`
	FixedNotional    float64 `json:"fixed_trade_notional" yaml:"fixed_trade_notional"`
	FeeReserve       float64 `json:"fee_reserve" yaml:"fee_reserve"`
}

// DefaultLimits returns the stock risk limits
func DefaultLimits() Limits {
	return Limits{
		MaxPositionSizePct:  0.10,
		MaxPortfolioRiskPct: 0.02,
		MaxDailyLossPct:     0.05,
		MaxDrawdownPct:      0.15,
		MaxCorrelation:      0.70,
		MaxConcentrationPct: 0.30,
		MaxDailyTrades:      10,
		MinVolume:           100000,
		MinTradeQuantity:    0.0001,
		MinNotional:         10,
		FeeReserve:          0.001,
	}
}

// Validate checks that every limit is usable
func (l Limits) Validate() error {
	fractions := map[string]float64{
		"max_position_size":  l.MaxPositionSizePct,
		"max_portfolio_risk": l.MaxPortfolioRiskPct,
		"max_daily_loss":     l.MaxDailyLossPct,
		"max_drawdown":       l.MaxDrawdownPct,
		"max_correlation":    l.MaxCorrelation,
		"max_concentration":  l.MaxConcentrationPct,
	}
	for name, v := range fractions {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %v", name, v)
		}
	}
	if l.MaxDailyTrades <= 0 {
		return fmt.Errorf("max_daily_trades must be positive, got %d", l.MaxDailyTrades)
	}
	if l.MinVolume < 0 || l.MinTradeQuantity < 0 || l.MinNotional < 0 || l.FixedNotional < 0 || l.FeeReserve < 0 {
		return fmt.Errorf("volume, quantity, notional and fee reserve floors must not be negative")
	}
	return nil
}

// LimitsUpdate is a partial change; nil fields keep their current value
type LimitsUpdate struct {
	MaxPositionSizePct  *float64 `json:"max_position_size,omitempty"`
	MaxPortfolioRiskPct *float64 `json:"max_portfolio_risk,omitempty"`
	MaxDailyLossPct     *float64 `json:"max_daily_loss,omitempty"`
	MaxDrawdownPct      *float64 `json:"max_drawdown,omitempty"`
	MaxCorrelation      *float64 `json:"max_correlation,omitempty"`
	MaxConcentrationPct *float64 `json:"max_concentration,omitempty"`
	MaxDailyTrades      *int     `json:"max_daily_trades,omitempty"`
	MinVolume           *float64 `json:"min_volume,omitempty"`
	MinTradeQuantity    *float64 `json:"min_trade_quantity,omitempty"`
	MinNotional         *float64 `json:"min_position_notional,omitempty"`
	FixedNotional       *float64 `json:"fixed_trade_notional,omitempty"`
	FeeReserve          *float64 `json:"fee_reserve,omitempty"`
}

// Apply returns l with every non-nil field of u merged in
func (l Limits) Apply(u LimitsUpdate) Limits {
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setF(&l.MaxPositionSizePct, u.MaxPositionSizePct)
	setF(&l.MaxPortfolioRiskPct, u.MaxPortfolioRiskPct)
	setF(&l.MaxDailyLossPct, u.MaxDailyLossPct)
	setF(&l.MaxDrawdownPct, u.MaxDrawdownPct)
	setF(&l.MaxCorrelation, u.MaxCorrelation)
	setF(&l.MaxConcentrationPct, u.MaxConcentrationPct)
	setF(&l.MinVolume, u.MinVolume)
	setF(&l.MinTradeQuantity, u.MinTradeQuantity)
	setF(&l.MinNotional, u.MinNotional)
	setF(&l.FixedNotional, u.FixedNotional)
	setF(&l.FeeReserve, u.FeeReserve)
	if u.MaxDailyTrades != nil {
		l.MaxDailyTrades = *u.MaxDailyTrades
	}
	return l
}

// FullUpdate converts a complete Limits value into an update touching every field
func FullUpdate(l Limits) LimitsUpdate {
	return LimitsUpdate{
		MaxPositionSizePct:  &l.MaxPositionSizePct,
		MaxPortfolioRiskPct: &l.MaxPortfolioRiskPct,
		MaxDailyLossPct:     &l.MaxDailyLossPct,
		MaxDrawdownPct:      &l.MaxDrawdownPct,
		MaxCorrelation:      &l.MaxCorrelation,
		MaxConcentrationPct: &l.MaxConcentrationPct,
		MaxDailyTrades:      &l.MaxDailyTrades,
		MinVolume:           &l.MinVolume,
		MinTradeQuantity:    &l.MinTradeQuantity,
		MinNotional:         &l.MinNotional,
		FixedNotional:       &l.FixedNotional,
		FeeReserve:          &l.FeeReserve,
	}
}
