package safety

import (
	"sync"
	"time"
)

// TradeWindow is a sliding-window counter of executed trades.
// Timestamps older than the window age out on every access.
type TradeWindow struct {
	name   string
	window time.Duration
	events []time.Time
	mutex  sync.Mutex
}

// NewTradeWindow creates a sliding window of the given length
func NewTradeWindow(name string, window time.Duration) *TradeWindow {
	return &TradeWindow{name: name, window: window}
}

// NewHourlyTradeWindow creates a 60-minute trade window
func NewHourlyTradeWindow(name string) *TradeWindow {
	return NewTradeWindow(name, time.Hour)
}

// Allow reports whether another event fits under limit at now. It does not record.
// A non-positive limit disables the check.
func (tw *TradeWindow) Allow(now time.Time, limit int) bool {
	if limit <= 0 {
		return true
	}
	tw.mutex.Lock()
	defer tw.mutex.Unlock()

	tw.pruneLocked(now)
	return len(tw.events) < limit
}

// Record adds an event at now
func (tw *TradeWindow) Record(now time.Time) {
	tw.mutex.Lock()
	defer tw.mutex.Unlock()

	tw.pruneLocked(now)
	tw.events = append(tw.events, now)
}

// NextSlot returns when the oldest event ages out, zero if the window is empty
func (tw *TradeWindow) NextSlot(now time.Time) time.Time {
	return tw.GetStats(now).NextSlot()
}

func (tw *TradeWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-tw.window)
	i := 0
	for i < len(tw.events) && !tw.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		tw.events = append(tw.events[:0], tw.events[i:]...)
	}
}

// GetStats returns current statistics about the window
func (tw *TradeWindow) GetStats(now time.Time) TradeWindowStats {
	tw.mutex.Lock()
	defer tw.mutex.Unlock()

	tw.pruneLocked(now)
	stats := TradeWindowStats{Name: tw.name, Window: tw.window, Count: len(tw.events)}
	if len(tw.events) > 0 {
		stats.Oldest = tw.events[0]
	}
	return stats
}

// TradeWindowStats holds statistics about a trade window
type TradeWindowStats struct {
	Name   string        `json:"name"`
	Window time.Duration `json:"window"`
	Count  int           `json:"count"`
	Oldest time.Time     `json:"oldest"`
}

// NextSlot returns when the oldest event ages out, zero if the window is empty
func (s TradeWindowStats) NextSlot() time.Time {
	if s.Count == 0 {
		return time.Time{}
	}
	return s.Oldest.Add(s.Window)
}
