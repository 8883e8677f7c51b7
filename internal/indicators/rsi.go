package indicators

import (
	"errors"
	"math"
)

// RSI calculates the Relative Strength Index
type RSI struct {
	period     int
	oversold   float64
	overbought float64
}

// NewRSI creates a new RSI instance with the given period and 30/70 levels
func NewRSI(period int) *RSI {
	return &RSI{
		period:     period,
		oversold:   30,
		overbought: 70,
	}
}

// WithLevels overrides the oversold and overbought thresholds
func (r *RSI) WithLevels(oversold, overbought float64) *RSI {
	r.oversold = oversold
	r.overbought = overbought
	return r
}

// Calculate computes the RSI value based on the given price slice
func (r *RSI) Calculate(prices []float64) (float64, error) {
	if r.period <= 0 || len(prices) < r.period+1 {
		return 0, errors.New("insufficient data for RSI calculation")
	}

	recent := prices[len(prices)-r.period-1:]
	var gain, loss float64
	for i := 1; i < len(recent); i++ {
		change := recent[i] - recent[i-1]
		if change > 0 {
			gain += change
		} else {
			loss += math.Abs(change)
		}
	}

	avgGain := gain / float64(r.period)
	avgLoss := loss / float64(r.period)

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil
		}
		return 100, nil
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), nil
}

// IsOversold returns true if the RSI indicates an oversold condition
func (r *RSI) IsOversold(value float64) bool {
	return value < r.oversold
}

// IsOverbought returns true if the RSI indicates an overbought condition
func (r *RSI) IsOverbought(value float64) bool {
	return value > r.overbought
}

// GetRequiredPeriods returns the minimum number of periods needed
func (r *RSI) GetRequiredPeriods() int {
	return r.period + 1
}
