// Package events publishes order state transitions caused by gateway
// notifications so the owning commerce system can run its own lifecycle
// (mails, shipment, stock) without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"payflow-be/internal/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Transition struct {
	OrderID       string    `json:"order_id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	Outcome       string    `json:"outcome"`
	Origin        string    `json:"origin"`
	TransactionID string    `json:"transaction_id"`
	GatewayStatus string    `json:"gateway_status"`
	Uncanceled    bool      `json:"uncanceled,omitempty"`
	Invoiced      bool      `json:"invoiced,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, t Transition) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Transition) error { return nil }
func (NopPublisher) Close() error                              { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// Publish keys messages by order id so transitions of one order stay in one
// partition and keep their order.
func (p *KafkaPublisher) Publish(ctx context.Context, t Transition) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transition: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(t.OrderID),
		Value: payload,
		Time:  t.OccurredAt,
	})
	if err != nil {
		logger.FromCtx(ctx).Error("failed to publish transition",
			zap.String("order_id", t.OrderID),
			zap.String("to", t.To),
			zap.Error(err),
		)
		return fmt.Errorf("publish transition: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
