package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// TelegramNotifier posts Markdown messages through the Telegram Bot API
type TelegramNotifier struct {
	token      string
	chatID     string
	baseURL    string
	httpClient *http.Client
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		baseURL: defaultTelegramBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithBaseURL points the notifier at another API host
func (t *TelegramNotifier) WithBaseURL(baseURL string) *TelegramNotifier {
	t.baseURL = baseURL
	return t
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

func (t *TelegramNotifier) SendAlert(ctx context.Context, title, message string) error {
	return t.send(ctx, fmt.Sprintf("ℹ️ *%s*\n\n%s", title, message))
}

func (t *TelegramNotifier) SendRiskAlert(ctx context.Context, title, message string) error {
	return t.send(ctx, fmt.Sprintf("🚨 *%s*\n\n%s", title, message))
}

func (t *TelegramNotifier) SendTradeNotification(ctx context.Context, trade exchange.TradeResult) error {
	emoji := "🟢"
	if trade.Side == exchange.SideSell {
		emoji = "🔴"
	}

	text := fmt.Sprintf("%s *%s %s*\n\nQty: %.6f\nPrice: $%.4f\nNotional: $%.2f\nFee: $%.4f\nStrategy: %s",
		emoji, trade.Side, trade.Symbol, trade.Quantity, trade.Price, trade.Notional, trade.Fee, trade.Strategy)
	if trade.Side == exchange.SideSell {
		text += fmt.Sprintf("\nRealized P&L: $%.2f", trade.RealizedPnL)
	}
	if trade.Reason != "" {
		text += "\nReason: " + trade.Reason
	}
	return t.send(ctx, text)
}

func (t *TelegramNotifier) send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: t.chatID, Text: text, ParseMode: "Markdown"})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var response sendMessageResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	if !response.OK {
		return fmt.Errorf("telegram API error: %s", response.Description)
	}
	return nil
}
