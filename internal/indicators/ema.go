package indicators

import "errors"

// EMA represents the Exponential Moving Average technical indicator
type EMA struct {
	period int
	alpha  float64
}

// NewEMA creates a new EMA indicator
func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

// Calculate seeds with the SMA of the first period prices and folds the rest in
func (e *EMA) Calculate(prices []float64) (float64, error) {
	series, err := e.Series(prices)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// Series returns the EMA value for every price from index period-1 onwards
func (e *EMA) Series(prices []float64) ([]float64, error) {
	if e.period <= 0 || len(prices) < e.period {
		return nil, errors.New("insufficient data for EMA calculation")
	}

	sum := 0.0
	for _, p := range prices[:e.period] {
		sum += p
	}
	value := sum / float64(e.period)

	out := make([]float64, 0, len(prices)-e.period+1)
	out = append(out, value)
	for _, p := range prices[e.period:] {
		value = p*e.alpha + value*(1-e.alpha)
		out = append(out, value)
	}
	return out, nil
}

// GetRequiredPeriods returns the minimum number of periods needed
func (e *EMA) GetRequiredPeriods() int {
	return e.period
}
