package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-bot/internal/logger"
	"github.com/ducminhle1904/crypto-trading-bot/internal/safety"
)

type sink struct {
	name     string
	notifier Notifier
	breaker  *safety.CircuitBreaker
}

// Multi fans a notification out to every registered sink.
// Each sink sits behind its own circuit breaker so a dead endpoint stops being called.
type Multi struct {
	sinks  []sink
	logger *logger.Logger
}

func NewMulti(log *logger.Logger) *Multi {
	if log == nil {
		log = logger.Nop()
	}
	return &Multi{logger: log}
}

// Add registers a sink under name
func (m *Multi) Add(name string, n Notifier) *Multi {
	breaker := safety.NewCircuitBreaker("notify-"+name, safety.CircuitBreakerConfig{
		FailureThreshold: 3,
		Timeout:          5 * time.Minute,
	})
	breaker.SetStateChangeCallback(func(from, to safety.CircuitBreakerState) {
		m.logger.Warning("Notifier %s circuit %s -> %s", name, from, to)
	})
	m.sinks = append(m.sinks, sink{name: name, notifier: n, breaker: breaker})
	return m
}

// Len returns the number of registered sinks
func (m *Multi) Len() int {
	return len(m.sinks)
}

// BreakerStats returns the circuit breaker state of every sink
func (m *Multi) BreakerStats() []safety.CircuitBreakerStats {
	stats := make([]safety.CircuitBreakerStats, 0, len(m.sinks))
	for _, s := range m.sinks {
		stats = append(stats, s.breaker.GetStats())
	}
	return stats
}

// ResetBreakers closes every sink's breaker, typically after a config reload
func (m *Multi) ResetBreakers() {
	for _, s := range m.sinks {
		s.breaker.Reset()
	}
}

func (m *Multi) SendAlert(ctx context.Context, title, message string) error {
	return m.each(func(n Notifier) error { return n.SendAlert(ctx, title, message) })
}

func (m *Multi) SendTradeNotification(ctx context.Context, trade exchange.TradeResult) error {
	return m.each(func(n Notifier) error { return n.SendTradeNotification(ctx, trade) })
}

func (m *Multi) SendRiskAlert(ctx context.Context, title, message string) error {
	return m.each(func(n Notifier) error { return n.SendRiskAlert(ctx, title, message) })
}

func (m *Multi) each(fn func(Notifier) error) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.breaker.Call(func() error { return fn(s.notifier) }); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
