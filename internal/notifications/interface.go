package notifications

import (
	"context"

	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange"
)

// Notifier defines the interface for notification services.
// Delivery is best-effort: callers log a returned error and carry on.
type Notifier interface {
	// SendAlert sends an operational alert
	SendAlert(ctx context.Context, title, message string) error

	// SendTradeNotification reports an executed trade
	SendTradeNotification(ctx context.Context, trade exchange.TradeResult) error

	// SendRiskAlert reports a risk-limit breach or halt
	SendRiskAlert(ctx context.Context, title, message string) error
}

// Nop discards every notification
type Nop struct{}

func (Nop) SendAlert(context.Context, string, string) error {
	return nil
}

func (Nop) SendTradeNotification(context.Context, exchange.TradeResult) error {
	return nil
}

func (Nop) SendRiskAlert(context.Context, string, string) error {
	return nil
}
