package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-trading-bot/internal/safety"
)

// TestTelegramNotifier_SendTradeNotification tests the request sent to the Bot API
func TestTelegramNotifier_SendTradeNotification(t *testing.T) {
	var got sendMessageRequest
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier("TOKEN", "42").WithBaseURL(server.URL)
	err := n.SendTradeNotification(context.Background(), exchange.TradeResult{
		Symbol:      "BTCUSDT",
		Side:        exchange.SideSell,
		Quantity:    0.5,
		Price:       100,
		RealizedPnL: 12.5,
		Strategy:    "risk_exit",
	})
	require.NoError(t, err)

	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "Markdown", got.ParseMode)
	assert.Contains(t, got.Text, "SELL BTCUSDT")
	assert.Contains(t, got.Text, "Realized P&L: $12.50")
}

// TestTelegramNotifier_APIError tests error propagation from the API
func TestTelegramNotifier_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer server.Close()

	n := NewTelegramNotifier("TOKEN", "42").WithBaseURL(server.URL)
	err := n.SendRiskAlert(context.Background(), "Engine halted", "daily loss limit exceeded")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

// TestKafkaPublisher_Envelope tests the published event envelope
func TestKafkaPublisher_Envelope(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event struct {
			EventType     string    `json:"event_type"`
			Source        string    `json:"source"`
			SchemaVersion string    `json:"schema_version"`
			Data          AlertData `json:"data"`
		}
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.EventType != EventTypeRiskAlert || event.Source != "trading-bot" || event.SchemaVersion != "1.0" {
			return errors.New("unexpected envelope: " + string(val))
		}
		if event.Data.Title != "Engine halted" {
			return errors.New("unexpected title")
		}
		return nil
	})

	publisher := NewKafkaPublisherWithProducer(producer, "bot-events", "trading-bot")
	publisher.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, publisher.SendRiskAlert(context.Background(), "Engine halted", "max drawdown exceeded"))
	require.NoError(t, publisher.Close())
}

// TestKafkaPublisher_SendFailure tests a producer error surfacing to the caller
func TestKafkaPublisher_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewKafkaPublisherWithProducer(producer, "bot-events", "trading-bot")
	err := publisher.SendTradeNotification(context.Background(), exchange.TradeResult{Symbol: "ETHUSDT"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, publisher.Close())
}

type recordingNotifier struct {
	calls int
	err   error
}

func (r *recordingNotifier) SendAlert(context.Context, string, string) error {
	r.calls++
	return r.err
}

func (r *recordingNotifier) SendTradeNotification(context.Context, exchange.TradeResult) error {
	r.calls++
	return r.err
}

func (r *recordingNotifier) SendRiskAlert(context.Context, string, string) error {
	r.calls++
	return r.err
}

// TestMulti_IsolatesFailingSink tests fan-out with one failing sink behind a breaker
func TestMulti_IsolatesFailingSink(t *testing.T) {
	good := &recordingNotifier{}
	bad := &recordingNotifier{err: errors.New("down")}
	multi := NewMulti(nil).Add("good", good).Add("bad", bad)
	assert.Equal(t, 2, multi.Len())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		err := multi.SendAlert(ctx, "t", "m")
		require.Error(t, err)
		assert.True(t, strings.HasPrefix(err.Error(), "bad: "))
	}

	err := multi.SendAlert(ctx, "t", "m")
	var open *safety.ErrCircuitOpen
	assert.ErrorAs(t, err, &open)
	assert.Equal(t, 4, good.calls)
	assert.Equal(t, 3, bad.calls)

	stats := multi.BreakerStats()
	require.Len(t, stats, 2)
	assert.Equal(t, safety.StateClosed, stats[0].State)
	assert.Equal(t, safety.StateOpen, stats[1].State)
	assert.Equal(t, "notify-bad", stats[1].Name)

	multi.ResetBreakers()
	assert.Equal(t, safety.StateClosed, multi.BreakerStats()[1].State)
	bad.err = nil
	assert.NoError(t, multi.SendAlert(ctx, "t", "m"))
	assert.Equal(t, 4, bad.calls)

	assert.NoError(t, Nop{}.SendRiskAlert(ctx, "t", "m"))
}
