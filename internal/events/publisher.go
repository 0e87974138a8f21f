package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/sajilomart/orders-service/internal/config"
	"github.com/sajilomart/orders-service/internal/logging"
	"github.com/sajilomart/orders-service/internal/models"
)

// EventType identifies an order lifecycle event.
type EventType string

const (
	EventTypeOrderCreated     EventType = "order.created"
	EventTypeStatusChanged    EventType = "order.status_changed"
	EventTypePaymentConfirmed EventType = "order.payment_confirmed"
	EventTypeOrderCancelled   EventType = "order.cancelled"
)

// OrderEvent is the envelope published for every lifecycle change.
type OrderEvent struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	OrderID   string          `json:"order_id"`
	AccountID string          `json:"account_id"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// statusChangeData is the payload for status-change events.
type statusChangeData struct {
	Order          *models.Order      `json:"order"`
	PreviousStatus models.OrderStatus `json:"previous_status"`
}

// cancellationData is the payload for cancellation events.
type cancellationData struct {
	Order  *models.Order `json:"order"`
	Reason string        `json:"reason"`
}

// KafkaPublisher publishes order events to the orders topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *logging.Logger
}

// NewKafkaPublisher creates a new Kafka-based event publisher.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *logging.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.OrdersTopic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaPublisher{
		writer: writer,
		logger: logger,
	}
}

// PublishOrderCreated emits order.created.
func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	return p.publish(ctx, EventTypeOrderCreated, order, order)
}

// PublishOrderStatusChanged emits order.status_changed.
func (p *KafkaPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error {
	return p.publish(ctx, EventTypeStatusChanged, order, statusChangeData{
		Order:          order,
		PreviousStatus: previous,
	})
}

// PublishPaymentConfirmed emits order.payment_confirmed.
func (p *KafkaPublisher) PublishPaymentConfirmed(ctx context.Context, order *models.Order) error {
	return p.publish(ctx, EventTypePaymentConfirmed, order, order)
}

// PublishOrderCancelled emits order.cancelled.
func (p *KafkaPublisher) PublishOrderCancelled(ctx context.Context, order *models.Order, reason string) error {
	return p.publish(ctx, EventTypeOrderCancelled, order, cancellationData{
		Order:  order,
		Reason: reason,
	})
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType EventType, order *models.Order, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := OrderEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		OrderID:   order.ID,
		AccountID: order.AccountID,
		Data:      data,
		Timestamp: time.Now(),
	}

	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(order.ID),
		Value: value,
	})
	if err != nil {
		p.logger.Error("Failed to publish event", logging.Fields{
			"event_type": eventType,
			"order_id":   order.ID,
			"error":      err.Error(),
		})
		return err
	}

	p.logger.Debug("Event published", logging.Fields{
		"event_type": eventType,
		"order_id":   order.ID,
	})
	return nil
}
