package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/ducminhle1904/crypto-trading-bot/internal/exchange"
)

const (
	EventTypeTrade     = "trade_executed"
	EventTypeAlert     = "alert"
	EventTypeRiskAlert = "risk_alert"

	eventSchemaVersion = "1.0"
)

// Event is the envelope published for every notification
type Event struct {
	EventType     string      `json:"event_type"`
	Source        string      `json:"source"`
	SchemaVersion string      `json:"schema_version"`
	Timestamp     time.Time   `json:"timestamp"`
	Data          interface{} `json:"data"`
}

// AlertData is the payload of alert and risk_alert events
type AlertData struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// KafkaPublisher publishes notifications as JSON events to one topic
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	source   string
	now      func() time.Time
}

// NewProducerConfig returns the sarama config used for the event producer
func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 3
	config.Producer.Timeout = 5 * time.Second
	config.Version = sarama.V2_8_0_0
	return config
}

// NewKafkaPublisher dials the brokers and creates a synchronous producer
func NewKafkaPublisher(brokers []string, topic, source string) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, topic, source), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic, source string) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		source:   source,
		now:      time.Now,
	}
}

func (k *KafkaPublisher) SendAlert(ctx context.Context, title, message string) error {
	return k.publish(ctx, EventTypeAlert, title, AlertData{Title: title, Message: message})
}

func (k *KafkaPublisher) SendRiskAlert(ctx context.Context, title, message string) error {
	return k.publish(ctx, EventTypeRiskAlert, title, AlertData{Title: title, Message: message})
}

func (k *KafkaPublisher) SendTradeNotification(ctx context.Context, trade exchange.TradeResult) error {
	return k.publish(ctx, EventTypeTrade, trade.Symbol, trade)
}

func (k *KafkaPublisher) publish(ctx context.Context, eventType, key string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(Event{
		EventType:     eventType,
		Source:        k.source,
		SchemaVersion: eventSchemaVersion,
		Timestamp:     k.now().UTC(),
		Data:          data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

// Close closes the underlying producer
func (k *KafkaPublisher) Close() error {
	return k.producer.Close()
}
