package indicators

import "errors"

// SMA represents the Simple Moving Average technical indicator
type SMA struct {
	period    int
	lastValue float64
}

// NewSMA creates a new SMA indicator
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

// Calculate calculates the SMA over the trailing period of prices
func (s *SMA) Calculate(prices []float64) (float64, error) {
	if s.period <= 0 || len(prices) < s.period {
		return 0, errors.New("insufficient data for SMA calculation")
	}

	sum := 0.0
	for _, p := range prices[len(prices)-s.period:] {
		sum += p
	}

	s.lastValue = sum / float64(s.period)
	return s.lastValue, nil
}

// GetRequiredPeriods returns the minimum number of periods needed
func (s *SMA) GetRequiredPeriods() int {
	return s.period
}

// GetLastValue returns the last calculated SMA value
func (s *SMA) GetLastValue() float64 {
	return s.lastValue
}
