package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sajilomart/orders-service/internal/apperrors"
	"github.com/sajilomart/orders-service/internal/config"
	"github.com/sajilomart/orders-service/internal/logging"
	"github.com/sajilomart/orders-service/internal/models"
	"github.com/sajilomart/orders-service/internal/service"
)

// PaymentEventType identifies a payment-gateway event.
type PaymentEventType string

const (
	PaymentEventCompleted PaymentEventType = "payment.completed"
	PaymentEventFailed    PaymentEventType = "payment.failed"
)

// PaymentEvent is the gateway's event envelope on the payments topic.
type PaymentEvent struct {
	ID        string                 `json:"id"`
	Type      PaymentEventType       `json:"type"`
	OrderID   string                 `json:"order_id"`
	Method    models.PaymentMethod   `json:"method"`
	Details   *models.PaymentDetails `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// KafkaConsumer applies asynchronous payment-gateway outcomes to orders.
// Confirmations funnel through the same idempotent ConfirmPayment path as
// the HTTP endpoint, so redelivered messages cannot double-apply stock.
type KafkaConsumer struct {
	reader       *kafka.Reader
	orderService *service.OrderService
	logger       *logging.Logger
	stopCh       chan struct{}
}

// NewKafkaConsumer creates a new Kafka-based payment event consumer.
func NewKafkaConsumer(cfg config.KafkaConfig, orderService *service.OrderService, logger *logging.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.PaymentsTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	return &KafkaConsumer{
		reader:       reader,
		orderService: orderService,
		logger:       logger,
		stopCh:       make(chan struct{}),
	}
}

// Start consumes until the context is cancelled or Stop is called.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting payments consumer", nil)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Error("Failed to read message", logging.Fields{"error": err.Error()})
				continue
			}
			c.handleMessage(ctx, msg)
		}
	}
}

// Stop stops the consumer.
func (c *KafkaConsumer) Stop() {
	close(c.stopCh)
	c.reader.Close()
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	var event PaymentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("Failed to unmarshal payment event", logging.Fields{
			"offset": msg.Offset,
			"error":  err.Error(),
		})
		return
	}

	switch event.Type {
	case PaymentEventCompleted:
		c.handlePaymentCompleted(ctx, &event)
	case PaymentEventFailed:
		c.handlePaymentFailed(ctx, &event)
	default:
		c.logger.Debug("Ignoring unknown payment event", logging.Fields{"type": event.Type})
	}
}

func (c *KafkaConsumer) handlePaymentCompleted(ctx context.Context, event *PaymentEvent) {
	req := &models.ConfirmPaymentRequest{
		Method:  event.Method,
		Details: event.Details,
	}

	_, err := c.orderService.ConfirmPayment(ctx, event.OrderID, req)
	if err != nil {
		// A conflict means the order was settled or cancelled through
		// another path; redeliveries of settled orders are no-ops already.
		if errors.Is(err, apperrors.ErrConflict) || errors.Is(err, apperrors.ErrNotFound) {
			c.logger.Warn("Payment completion not applicable", logging.Fields{
				"order_id": event.OrderID,
				"error":    err.Error(),
			})
			return
		}
		c.logger.Error("Failed to apply payment completion", logging.Fields{
			"order_id": event.OrderID,
			"error":    err.Error(),
		})
		return
	}

	c.logger.Info("Payment completion applied", logging.Fields{"order_id": event.OrderID})
}

func (c *KafkaConsumer) handlePaymentFailed(ctx context.Context, event *PaymentEvent) {
	if err := c.orderService.MarkPaymentFailed(ctx, event.OrderID); err != nil {
		c.logger.Error("Failed to record payment failure", logging.Fields{
			"order_id": event.OrderID,
			"error":    err.Error(),
		})
		return
	}
	c.logger.Info("Payment failure recorded", logging.Fields{"order_id": event.OrderID})
}
