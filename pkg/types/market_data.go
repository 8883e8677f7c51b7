package types

import "time"

type OHLCV struct {
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

type Ticker struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Volume        float64   `json:"volume"` // 24h turnover in the quote currency
	BaseVolume    float64   `json:"base_volume"`
	ChangePercent float64   `json:"change_percent"`
	Timestamp     time.Time `json:"timestamp"`
}

// Snapshot is the per-symbol market view handed to strategies each cycle.
// History is ordered oldest to newest and may be empty.
type Snapshot struct {
	Ticker
	History []OHLCV `json:"history,omitempty"`
}

// Closes returns the close prices of the snapshot history.
func (s Snapshot) Closes() []float64 {
	closes := make([]float64, len(s.History))
	for i, c := range s.History {
		closes[i] = c.Close
	}
	return closes
}
