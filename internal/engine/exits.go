package engine

import (
	"fmt"
	"time"

	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-bot/internal/strategy"
)

// ExitSignals builds a full-size forced SELL for every position whose live price
// has crossed its stop-loss or take-profit. Positions without a price are skipped.
func ExitSignals(positions map[string]exchange.Position, prices map[string]float64, now time.Time) []*strategy.Signal {
	var exits []*strategy.Signal
	for _, symbol := range sortedSymbols(positions) {
		pos := positions[symbol]
		price, ok := prices[symbol]
		if !ok || price <= 0 || pos.Quantity <= 0 {
			continue
		}

		var reason string
		switch {
		case pos.StopLoss > 0 && price <= pos.StopLoss:
			reason = fmt.Sprintf("stop-loss hit: price %.4f <= %.4f", price, pos.StopLoss)
		case pos.TakeProfit > 0 && price >= pos.TakeProfit:
			reason = fmt.Sprintf("take-profit hit: price %.4f >= %.4f", price, pos.TakeProfit)
		default:
			continue
		}

		exits = append(exits, &strategy.Signal{
			Symbol:     symbol,
			Action:     strategy.ActionSell,
			Confidence: 1.0,
			Price:      price,
			Quantity:   pos.Quantity,
			StopLoss:   pos.StopLoss,
			TakeProfit: pos.TakeProfit,
			Strategy:   strategy.RiskExitStrategy,
			Reason:     reason,
			Timestamp:  now,
		})
	}
	return exits
}
