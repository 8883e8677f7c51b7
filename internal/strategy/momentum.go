package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/ducminhle1904/crypto-trading-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-trading-bot/pkg/types"
)

const MomentumName = "momentum"

// MomentumConfig parameterises the momentum strategy
type MomentumConfig struct {
	LookbackPeriod    int     `json:"lookback_period" yaml:"lookback_period"`
	MomentumThreshold float64 `json:"momentum_threshold" yaml:"momentum_threshold"`
	VolumeThreshold   float64 `json:"volume_threshold" yaml:"volume_threshold"`
	RSIPeriod         int     `json:"rsi_period" yaml:"rsi_period"`
	RSIOversold       float64 `json:"rsi_oversold" yaml:"rsi_oversold"`
	RSIOverbought     float64 `json:"rsi_overbought" yaml:"rsi_overbought"`
	MinConfidence     float64 `json:"min_confidence" yaml:"min_confidence"`
}

// DefaultMomentumConfig returns the stock momentum parameters
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		LookbackPeriod:    14,
		MomentumThreshold: 0.005,
		VolumeThreshold:   1.0,
		RSIPeriod:         14,
		RSIOversold:       30,
		RSIOverbought:     80,
		MinConfidence:     0.5,
	}
}

// Momentum buys strong upward moves and sells strong downward ones.
// With short history it falls back to the 24h change and never sells.
type Momentum struct {
	Base
	cfg MomentumConfig
}

// NewMomentum creates a momentum strategy
func NewMomentum(cfg MomentumConfig, levels ProtectionSource) *Momentum {
	m := &Momentum{cfg: cfg}
	m.init(MomentumName, levels)
	return m
}

// GenerateSignal implements Strategy
func (m *Momentum) GenerateSignal(ctx context.Context, symbol string, snapshot types.Snapshot) (*Signal, error) {
	price := lastPrice(snapshot)
	if price <= 0 {
		return nil, fmt.Errorf("momentum: no price for %s", symbol)
	}
	snapshot.Price = price

	closes := snapshot.Closes()
	shortHistory := len(closes) < m.cfg.LookbackPeriod+1

	momentum := snapshot.ChangePercent / 100
	rsiValue := 50.0
	volRatio := 1.0

	if len(closes) >= 2 {
		lookback := m.cfg.LookbackPeriod
		if lookback > len(closes)-1 {
			lookback = len(closes) - 1
		}
		then := closes[len(closes)-1-lookback]
		historyMomentum := 0.0
		if then > 0 {
			historyMomentum = (price - then) / then
		}
		if !shortHistory || math.Abs(historyMomentum) >= math.Abs(momentum) {
			momentum = historyMomentum
		}
		volRatio = volumeRatio(snapshot.History)
		if v, err := indicators.NewRSI(m.cfg.RSIPeriod).Calculate(closes); err == nil {
			rsiValue = v
		}
	}

	if !shortHistory && volRatio < m.cfg.VolumeThreshold {
		return nil, nil
	}

	var action TradeAction
	switch {
	case momentum > m.cfg.MomentumThreshold && (shortHistory || rsiValue < m.cfg.RSIOverbought):
		action = ActionBuy
	case momentum < -m.cfg.MomentumThreshold && (shortHistory || rsiValue > m.cfg.RSIOversold):
		action = ActionSell
	default:
		return nil, nil
	}

	denominator := m.cfg.MomentumThreshold * 1.5
	minConfidence := m.cfg.MinConfidence
	if shortHistory {
		denominator = m.cfg.MomentumThreshold
		minConfidence *= 0.8
	}
	confidence := math.Min(math.Abs(momentum)/math.Max(denominator, 1e-9), 1.0)
	if confidence < minConfidence {
		return nil, nil
	}
	// without history there is nothing to confirm a sell against
	if action == ActionSell && shortHistory {
		return nil, nil
	}

	sig := m.newSignal(symbol, snapshot, action, confidence,
		fmt.Sprintf("momentum %.2f%% rsi %.1f", momentum*100, rsiValue))
	sig.Extras.Indicators["momentum"] = momentum
	sig.Extras.Indicators["rsi"] = rsiValue
	sig.Extras.Indicators["volume_ratio"] = volRatio
	return sig, nil
}
