package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/ducminhle1904/crypto-trading-bot/internal/config"
	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-bot/internal/strategy"
)

const (
	// minWeightedTrades is the trade count after which performance weighting applies
	minWeightedTrades = 5
	minStrategyWeight = 0.5
	maxStrategyWeight = 1.5
	minPriorityRR     = 0.5
	maxPriorityRR     = 3.0
)

// Rejection stages, also used as metric labels
const (
	StageCooldown   = "cooldown"
	StageConflict   = "conflict"
	StageConfidence = "confidence"
	StagePosition   = "position"
	StageHold       = "min_hold"
	StageRateLimit  = "rate_limit"
	StageEdge       = "edge"
	StageRisk       = "risk"
	StageExecution  = "execution"
)

// StrategyWeight scales a strategy's confidence by its lifetime record.
// Strategies with fewer than five closed trades get a neutral 1.0.
func StrategyWeight(m strategy.PerformanceMetrics) float64 {
	if m.TotalTrades < minWeightedTrades {
		return 1.0
	}
	w := 0.7 + m.WinRate*0.6
	if m.TotalPnL > 0 {
		w += 0.15
	} else {
		w -= 0.15
	}
	return clamp(w, minStrategyWeight, maxStrategyWeight)
}

// Candidate is a consolidated per-symbol winner
type Candidate struct {
	Signal       *strategy.Signal
	Weight       float64
	Priority     float64
	BuyStrength  float64
	SellStrength float64
}

// Rejection explains why a signal or symbol was dropped
type Rejection struct {
	Symbol   string
	Strategy string
	Stage    string
	Reason   string
}

// ConsolidationInput is the cycle state consolidation decides against
type ConsolidationInput struct {
	Settings  config.SignalSettings
	Positions map[string]exchange.Position
	LastTrade map[string]time.Time
	Weight    func(strategyName string) float64
	Now       time.Time
}

type sideTally struct {
	strength float64
	best     *strategy.Signal
}

// Consolidate reduces raw signals to at most one candidate per symbol,
// ranked by priority and capped at MaxSignalsPerCycle.
func Consolidate(signals []*strategy.Signal, in ConsolidationInput) ([]Candidate, []Rejection) {
	weight := in.Weight
	if weight == nil {
		weight = func(string) float64 { return 1.0 }
	}

	var rejections []Rejection
	var order []string
	bySymbol := make(map[string][]*strategy.Signal)

	for _, sig := range signals {
		if sig == nil || sig.Action == strategy.ActionHold {
			continue
		}
		if last, ok := in.LastTrade[sig.Symbol]; ok && !sig.IsRiskExit() && in.Now.Sub(last) < in.Settings.Cooldown() {
			rejections = append(rejections, Rejection{
				Symbol:   sig.Symbol,
				Strategy: sig.Strategy,
				Stage:    StageCooldown,
				Reason:   fmt.Sprintf("cooldown active, last trade %s ago", in.Now.Sub(last).Round(time.Second)),
			})
			continue
		}
		if _, seen := bySymbol[sig.Symbol]; !seen {
			order = append(order, sig.Symbol)
		}
		bySymbol[sig.Symbol] = append(bySymbol[sig.Symbol], sig)
	}

	var candidates []Candidate
	for _, symbol := range order {
		var buy, sell sideTally
		for _, sig := range bySymbol[symbol] {
			tally := &buy
			if sig.Action == strategy.ActionSell {
				tally = &sell
			}
			tally.strength += sig.Confidence * weight(sig.Strategy)
			if tally.best == nil || sig.Confidence > tally.best.Confidence {
				tally.best = sig
			}
		}

		var chosen *strategy.Signal
		ratio := in.Settings.ConflictRatio
		switch {
		case buy.strength > 0 && sell.strength > 0:
			if buy.strength >= sell.strength*ratio {
				chosen = buy.best
			} else if sell.strength >= buy.strength*ratio {
				chosen = sell.best
			} else {
				rejections = append(rejections, Rejection{
					Symbol: symbol,
					Stage:  StageConflict,
					Reason: fmt.Sprintf("conflicting signals buy=%.3f sell=%.3f ratio=%.2f", buy.strength, sell.strength, ratio),
				})
				continue
			}
		case buy.strength > 0:
			chosen = buy.best
		case sell.strength > 0:
			chosen = sell.best
		default:
			continue
		}

		if chosen.Confidence < in.Settings.MinConfidence {
			rejections = append(rejections, Rejection{
				Symbol:   symbol,
				Strategy: chosen.Strategy,
				Stage:    StageConfidence,
				Reason:   fmt.Sprintf("confidence %.3f below minimum %.3f", chosen.Confidence, in.Settings.MinConfidence),
			})
			continue
		}

		if rej, ok := checkPositionState(chosen, in); !ok {
			rejections = append(rejections, rej)
			continue
		}

		w := weight(chosen.Strategy)
		candidates = append(candidates, Candidate{
			Signal:       chosen,
			Weight:       w,
			Priority:     Priority(chosen, w),
			BuyStrength:  buy.strength,
			SellStrength: sell.strength,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})
	if limit := in.Settings.MaxSignalsPerCycle; limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, rejections
}

// checkPositionState applies the no-pyramiding and minimum-hold rules
func checkPositionState(sig *strategy.Signal, in ConsolidationInput) (Rejection, bool) {
	pos, held := in.Positions[sig.Symbol]
	held = held && pos.Quantity > 0

	rej := Rejection{Symbol: sig.Symbol, Strategy: sig.Strategy, Stage: StagePosition}
	switch sig.Action {
	case strategy.ActionSell:
		if !held {
			rej.Reason = "no open position to sell"
			return rej, false
		}
		if !sig.IsRiskExit() {
			if age := in.Now.Sub(pos.OpenedAt); age < in.Settings.MinHold() {
				rej.Stage = StageHold
				rej.Reason = fmt.Sprintf("position held %s, minimum %s", age.Round(time.Second), in.Settings.MinHold())
				return rej, false
			}
		}
	case strategy.ActionBuy:
		if held {
			rej.Reason = "position already open"
			return rej, false
		}
	}
	return Rejection{}, true
}

// Priority ranks a candidate by confidence, weight and trade economics.
// Without both protection levels the reward term is 0 and the ratio term 1.
func Priority(sig *strategy.Signal, weight float64) float64 {
	reward, risk, ok := sig.RewardRisk()
	rr := 1.0
	if !ok {
		reward = 0
	} else if risk > 0 {
		rr = clamp(reward/risk, minPriorityRR, maxPriorityRR)
	}
	return sig.Confidence * weight * (1 + reward) * rr
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
