package indicators

import "errors"

type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMACD creates a new MACD instance with specified fast, slow, and signal periods
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fastPeriod:   fast,
		slowPeriod:   slow,
		signalPeriod: signal,
	}
}

// Calculate computes the MACD line, signal line, and histogram.
// The signal line is an EMA of the MACD line history.
func (m *MACD) Calculate(prices []float64) (macdLine, signalLine, histogram float64, err error) {
	if len(prices) < m.GetRequiredPeriods() {
		return 0, 0, 0, errors.New("insufficient data for MACD calculation")
	}

	fast, err := NewEMA(m.fastPeriod).Series(prices)
	if err != nil {
		return 0, 0, 0, err
	}
	slow, err := NewEMA(m.slowPeriod).Series(prices)
	if err != nil {
		return 0, 0, 0, err
	}

	// align the fast series to the slow one, both end at the last price
	offset := len(fast) - len(slow)
	history := make([]float64, len(slow))
	for i := range slow {
		history[i] = fast[i+offset] - slow[i]
	}

	signal, err := NewEMA(m.signalPeriod).Calculate(history)
	if err != nil {
		return 0, 0, 0, err
	}

	macdLine = history[len(history)-1]
	return macdLine, signal, macdLine - signal, nil
}

// GetRequiredPeriods returns the minimum number of periods needed
func (m *MACD) GetRequiredPeriods() int {
	return m.slowPeriod + m.signalPeriod - 1
}
