package config

import (
	"fmt"
	"sync"
	"time"
)

const (
	EdgeModeAdaptive = "adaptive"
	EdgeModeSimple   = "simple"
)

// SignalSettings are the consolidation and pacing thresholds
type SignalSettings struct {
	MinConfidence      float64 `json:"min_confidence" yaml:"min_confidence"`
	ConflictRatio      float64 `json:"conflict_ratio" yaml:"conflict_ratio"`
	CooldownSeconds    int     `json:"cooldown_seconds" yaml:"cooldown_seconds"`
	MinHoldSeconds     int     `json:"min_hold_seconds" yaml:"min_hold_seconds"`
	MaxSignalsPerCycle int     `json:"max_signals_per_cycle" yaml:"max_signals_per_cycle"`
	MaxTradesPerHour   int     `json:"max_trades_per_hour" yaml:"max_trades_per_hour"`
}

func DefaultSignalSettings() SignalSettings {
	return SignalSettings{
		MinConfidence:      0.6,
		ConflictRatio:      1.35,
		CooldownSeconds:    900,
		MinHoldSeconds:     900,
		MaxSignalsPerCycle: 3,
		MaxTradesPerHour:   6,
	}
}

// Cooldown returns the per-symbol cooldown window
func (s SignalSettings) Cooldown() time.Duration {
	return time.Duration(s.CooldownSeconds) * time.Second
}

// MinHold returns the minimum holding time before a strategy SELL
func (s SignalSettings) MinHold() time.Duration {
	return time.Duration(s.MinHoldSeconds) * time.Second
}

func (s SignalSettings) Validate() error {
	if s.MinConfidence < 0 || s.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in [0, 1]")
	}
	if s.ConflictRatio < 1 {
		return fmt.Errorf("conflict_ratio must be at least 1")
	}
	if s.CooldownSeconds < 0 || s.MinHoldSeconds < 0 {
		return fmt.Errorf("cooldown and hold times must not be negative")
	}
	if s.MaxSignalsPerCycle <= 0 {
		return fmt.Errorf("max_signals_per_cycle must be positive")
	}
	if s.MaxTradesPerHour < 0 {
		return fmt.Errorf("max_trades_per_hour must not be negative")
	}
	return nil
}

// EdgeSettings are the trade-economics thresholds
type EdgeSettings struct {
	Mode          string  `json:"mode" yaml:"mode"`
	FeeBps        float64 `json:"fee_bps" yaml:"fee_bps"`
	SlippageBps   float64 `json:"slippage_bps" yaml:"slippage_bps"`
	MinEdge       float64 `json:"min_edge" yaml:"min_edge"`
	MinRR         float64 `json:"min_rr" yaml:"min_rr"`
	VolWindow     int     `json:"vol_window" yaml:"vol_window"`
	VolMultiplier float64 `json:"vol_multiplier" yaml:"vol_multiplier"`
	TrendZMin     float64 `json:"trend_z_min" yaml:"trend_z_min"`
	MinHistory    int     `json:"min_history" yaml:"min_history"`
}

func DefaultEdgeSettings() EdgeSettings {
	return EdgeSettings{
		Mode:          EdgeModeAdaptive,
		FeeBps:        10,
		SlippageBps:   6,
		MinEdge:       0.004,
		MinRR:         1.2,
		VolWindow:     20,
		VolMultiplier: 0.75,
		TrendZMin:     0.25,
		MinHistory:    12,
	}
}

// Adaptive reports whether volatility-scaled floors are in use
func (e EdgeSettings) Adaptive() bool {
	return e.Mode != EdgeModeSimple
}

func (e EdgeSettings) Validate() error {
	if e.Mode != EdgeModeAdaptive && e.Mode != EdgeModeSimple {
		return fmt.Errorf("mode must be %q or %q", EdgeModeAdaptive, EdgeModeSimple)
	}
	if e.FeeBps < 0 || e.SlippageBps < 0 || e.MinEdge < 0 || e.MinRR < 0 {
		return fmt.Errorf("fee, slippage, min_edge and min_rr must not be negative")
	}
	if e.VolWindow < 2 {
		return fmt.Errorf("vol_window must be at least 2")
	}
	if e.VolMultiplier < 0 || e.TrendZMin < 0 || e.MinHistory < 0 {
		return fmt.Errorf("vol_multiplier, trend_z_min and min_history must not be negative")
	}
	return nil
}

// AccountSettings are the stop-loss and take-profit distances attached to entries
type AccountSettings struct {
	StopLossPct   float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct float64 `json:"take_profit_pct" yaml:"take_profit_pct"`
}

func DefaultAccountSettings() AccountSettings {
	return AccountSettings{StopLossPct: 0.05, TakeProfitPct: 0.15}
}

// RewardRiskRatio returns TakeProfitPct/StopLossPct, 0 when undefined
func (a AccountSettings) RewardRiskRatio() float64 {
	if a.StopLossPct <= 0 {
		return 0
	}
	return a.TakeProfitPct / a.StopLossPct
}

func (a AccountSettings) Validate() error {
	if a.StopLossPct <= 0 || a.StopLossPct >= 1 {
		return fmt.Errorf("stop_loss_pct must be in (0, 1)")
	}
	if a.TakeProfitPct <= 0 {
		return fmt.Errorf("take_profit_pct must be positive")
	}
	return nil
}

// Settings is the hot-reloadable subset of the configuration
type Settings struct {
	Signals SignalSettings  `json:"signals"`
	Edge    EdgeSettings    `json:"edge_filter"`
	Account AccountSettings `json:"account"`
}

func (s Settings) Validate() error {
	if err := s.Signals.Validate(); err != nil {
		return fmt.Errorf("signals: %w", err)
	}
	if err := s.Edge.Validate(); err != nil {
		return fmt.Errorf("edge_filter: %w", err)
	}
	if err := s.Account.Validate(); err != nil {
		return fmt.Errorf("account: %w", err)
	}
	return nil
}

// RuntimeUpdate is a partial settings change; nil fields are left untouched
type RuntimeUpdate struct {
	MinConfidence      *float64 `json:"min_confidence,omitempty"`
	ConflictRatio      *float64 `json:"conflict_ratio,omitempty"`
	CooldownSeconds    *int     `json:"cooldown_seconds,omitempty"`
	MinHoldSeconds     *int     `json:"min_hold_seconds,omitempty"`
	MaxSignalsPerCycle *int     `json:"max_signals_per_cycle,omitempty"`
	MaxTradesPerHour   *int     `json:"max_trades_per_hour,omitempty"`

	EdgeMode      *string  `json:"edge_mode,omitempty"`
	FeeBps        *float64 `json:"fee_bps,omitempty"`
	SlippageBps   *float64 `json:"slippage_bps,omitempty"`
	MinEdge       *float64 `json:"min_edge,omitempty"`
	MinRR         *float64 `json:"min_rr,omitempty"`
	VolWindow     *int     `json:"vol_window,omitempty"`
	VolMultiplier *float64 `json:"vol_multiplier,omitempty"`
	TrendZMin     *float64 `json:"trend_z_min,omitempty"`
	MinHistory    *int     `json:"min_history,omitempty"`

	StopLossPct   *float64 `json:"stop_loss_pct,omitempty"`
	TakeProfitPct *float64 `json:"take_profit_pct,omitempty"`
}

func (u RuntimeUpdate) apply(s Settings) Settings {
	setF := func(dst, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setI := func(dst, src *int) {
		if src != nil {
			*dst = *src
		}
	}

	setF(&s.Signals.MinConfidence, u.MinConfidence)
	setF(&s.Signals.ConflictRatio, u.ConflictRatio)
	setI(&s.Signals.CooldownSeconds, u.CooldownSeconds)
	setI(&s.Signals.MinHoldSeconds, u.MinHoldSeconds)
	setI(&s.Signals.MaxSignalsPerCycle, u.MaxSignalsPerCycle)
	setI(&s.Signals.MaxTradesPerHour, u.MaxTradesPerHour)

	if u.EdgeMode != nil {
		s.Edge.Mode = *u.EdgeMode
	}
	setF(&s.Edge.FeeBps, u.FeeBps)
	setF(&s.Edge.SlippageBps, u.SlippageBps)
	setF(&s.Edge.MinEdge, u.MinEdge)
	setF(&s.Edge.MinRR, u.MinRR)
	setI(&s.Edge.VolWindow, u.VolWindow)
	setF(&s.Edge.VolMultiplier, u.VolMultiplier)
	setF(&s.Edge.TrendZMin, u.TrendZMin)
	setI(&s.Edge.MinHistory, u.MinHistory)

	setF(&s.Account.StopLossPct, u.StopLossPct)
	setF(&s.Account.TakeProfitPct, u.TakeProfitPct)
	return s
}

// Runtime holds the live settings shared by the engine and strategies.
// Readers take a value copy per cycle so a concurrent update never tears a cycle.
type Runtime struct {
	mu       sync.RWMutex
	settings Settings
}

func NewRuntime(settings Settings) *Runtime {
	return &Runtime{settings: settings}
}

// Snapshot returns a copy of the current settings
func (r *Runtime) Snapshot() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings
}

// Update merges a partial change; an invalid result leaves the settings untouched
func (r *Runtime) Update(update RuntimeUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := update.apply(r.settings)
	if err := next.Validate(); err != nil {
		return fmt.Errorf("invalid runtime update: %w", err)
	}
	r.settings = next
	return nil
}

// Replace swaps every setting, typically after a config file reload
func (r *Runtime) Replace(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid runtime settings: %w", err)
	}
	r.mu.Lock()
	r.settings = settings
	r.mu.Unlock()
	return nil
}

// ProtectionLevels implements strategy.ProtectionSource
func (r *Runtime) ProtectionLevels() (stopLossPct, takeProfitPct float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings.Account.StopLossPct, r.settings.Account.TakeProfitPct
}
