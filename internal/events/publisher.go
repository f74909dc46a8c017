// Package events publishes settlement events once a transaction reaches a terminal state.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/levisbarua/pesaflow/config"
	"github.com/levisbarua/pesaflow/internal/domain"
	"github.com/levisbarua/pesaflow/internal/metrics"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TypeTransactionCompleted = "transaction.completed"
	TypeTransactionFailed    = "transaction.failed"
)

type SettlementEvent struct {
	Type            string                   `json:"type"`
	TransactionID   string                   `json:"transaction_id"`
	UserID          string                   `json:"user_id"`
	TransactionType domain.TransactionType   `json:"transaction_type"`
	Amount          domain.Amount            `json:"amount"`
	Currency        string                   `json:"currency"`
	Status          domain.TransactionStatus `json:"status"`
	Reference       string                   `json:"reference,omitempty"`
	Description     string                   `json:"description,omitempty"`
	OccurredAt      time.Time                `json:"occurred_at"`
}

// NewSettlementEvent returns nil for a transaction that is still pending.
func NewSettlementEvent(tx *domain.Transaction) *SettlementEvent {
	var eventType string
	switch tx.Status {
	case domain.TransactionStatusCompleted:
		eventType = TypeTransactionCompleted
	case domain.TransactionStatusFailed:
		eventType = TypeTransactionFailed
	default:
		return nil
	}
	return &SettlementEvent{
		Type:            eventType,
		TransactionID:   tx.ID,
		UserID:          tx.UserID,
		TransactionType: tx.Type,
		Amount:          tx.Amount,
		Currency:        tx.Currency,
		Status:          tx.Status,
		Reference:       tx.Reference,
		Description:     tx.Description,
		OccurredAt:      tx.UpdatedAt,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event *SettlementEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaPublisher(writer messageWriter, logger *zap.Logger) Publisher {
	return &kafkaPublisher{writer: writer, logger: logger}
}

// Publish keys messages by user id so one user's events stay ordered within a partition.
func (p *kafkaPublisher) Publish(ctx context.Context, event *SettlementEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		metrics.EventPublishErrors.Inc()
		return fmt.Errorf("marshal settlement event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.EventPublishErrors.Inc()
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewKafkaWriter builds an async batching writer. Delivery failures surface
// through the completion callback, not through Publish.
func NewKafkaWriter(cfg config.KafkaConfig, logger *zap.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		MaxAttempts:  3,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Compression:  kafka.Snappy,
		Completion: func(messages []kafka.Message, err error) {
			if err == nil {
				return
			}
			metrics.EventPublishErrors.Add(float64(len(messages)))
			logger.Error("failed to deliver settlement events",
				zap.Error(err),
				zap.Int("count", len(messages)))
		},
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(msg, args...))
		}),
	}
}

type noopPublisher struct {
	logger *zap.Logger
}

// NewNoopPublisher is used when no brokers are configured.
func NewNoopPublisher(logger *zap.Logger) Publisher {
	return &noopPublisher{logger: logger}
}

func (p *noopPublisher) Publish(_ context.Context, event *SettlementEvent) error {
	p.logger.Debug("settlement event dropped, no brokers configured",
		zap.String("type", event.Type),
		zap.String("transaction_id", event.TransactionID))
	return nil
}

func (p *noopPublisher) Close() error { return nil }
