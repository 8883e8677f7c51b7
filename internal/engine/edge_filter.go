package engine

import (
	"fmt"
	"math"

	"github.com/ducminhle1904/crypto-trading-bot/internal/config"
	"github.com/ducminhle1904/crypto-trading-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-trading-bot/internal/strategy"
)

const (
	// rrVolatilityScale lifts the RR floor by stdev×8, capped at +1
	rrVolatilityScale = 8.0
	// accountRRRelax is how far below the account TP/SL ratio the floor may relax
	accountRRRelax = 0.9
	minRRFloor     = 0.05
)

// EdgeDecision is the outcome of the trade-economics check with the numbers behind it
type EdgeDecision struct {
	Passed   bool    `json:"passed"`
	Reason   string  `json:"reason,omitempty"`
	Reward   float64 `json:"expected_reward"`
	Risk     float64 `json:"risk"`
	RR       float64 `json:"reward_risk"`
	MinEdge  float64 `json:"min_edge"`
	RRFloor  float64 `json:"rr_floor"`
	Mean     float64 `json:"mean_return"`
	StdDev   float64 `json:"stdev"`
	TrendZ   float64 `json:"trend_z"`
	Trending bool    `json:"trend_checked"`
}

// FeeSlippageBudget is the round-trip cost as a fraction of price
func FeeSlippageBudget(edge config.EdgeSettings) float64 {
	return (2*edge.FeeBps + edge.SlippageBps) / 10000
}

// EvaluateEdge decides whether a signal's reward justifies its cost and risk.
// Forced exits always pass.
func EvaluateEdge(sig *strategy.Signal, edge config.EdgeSettings, account config.AccountSettings) EdgeDecision {
	if sig.IsRiskExit() {
		return EdgeDecision{Passed: true, Reason: "forced exit"}
	}

	if sig.StopLoss <= 0 || sig.TakeProfit <= 0 || sig.Price <= 0 {
		return EdgeDecision{Reason: "missing stop-loss or take-profit"}
	}
	reward, risk, _ := sig.RewardRisk()
	d := EdgeDecision{Reward: reward, Risk: risk}
	if risk <= 0 {
		d.Reason = "zero risk distance"
		return d
	}
	d.RR = reward / risk

	if !edge.Adaptive() {
		d.MinEdge = edge.MinEdge
		d.RRFloor = edge.MinRR
		return d.finish()
	}

	closes := sig.Closes()
	window := closes
	if n := edge.VolWindow + 1; len(window) > n {
		window = window[len(window)-n:]
	}
	returns := indicators.Returns(window)
	d.Mean, d.StdDev = indicators.MeanStdDev(returns)

	d.MinEdge = math.Max(edge.MinEdge, FeeSlippageBudget(edge)+d.StdDev*edge.VolMultiplier)
	d.RRFloor = math.Max(edge.MinRR, 1+math.Min(1, d.StdDev*rrVolatilityScale))
	if accountRR := account.RewardRiskRatio(); accountRR > 0 && accountRR < d.RRFloor {
		d.RRFloor = math.Max(minRRFloor, accountRR*accountRRRelax)
	}

	if edge.MinHistory > 0 && len(closes) >= edge.MinHistory && len(returns) > 0 {
		d.Trending = true
		d.TrendZ = trendZ(d.Mean, d.StdDev, len(returns))
	}

	if d = d.finish(); !d.Passed || !d.Trending {
		return d
	}

	switch sig.Action {
	case strategy.ActionBuy:
		if d.TrendZ < edge.TrendZMin {
			d.Passed = false
			d.Reason = fmt.Sprintf("trend z %.3f below %.3f", d.TrendZ, edge.TrendZMin)
		}
	case strategy.ActionSell:
		if d.TrendZ > -edge.TrendZMin {
			d.Passed = false
			d.Reason = fmt.Sprintf("trend z %.3f above %.3f", d.TrendZ, -edge.TrendZMin)
		}
	}
	return d
}

func (d EdgeDecision) finish() EdgeDecision {
	switch {
	case d.Reward < d.MinEdge:
		d.Reason = fmt.Sprintf("expected reward %.4f below floor %.4f", d.Reward, d.MinEdge)
	case d.RR < d.RRFloor:
		d.Reason = fmt.Sprintf("reward/risk %.3f below floor %.3f", d.RR, d.RRFloor)
	default:
		d.Passed = true
	}
	return d
}

// trendZ is mean/stdev×√n. A flat series is infinitely trending in the sign of its mean.
func trendZ(mean, stdDev float64, n int) float64 {
	if stdDev == 0 {
		switch {
		case mean > 0:
			return math.Inf(1)
		case mean < 0:
			return math.Inf(-1)
		default:
			return 0
		}
	}
	return mean / stdDev * math.Sqrt(float64(n))
}
