package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/notify"
	"github.com/fjod/go_storefront/internal/repository"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const maxAttempts = 3

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type OrderGetter interface {
	Get(ctx context.Context, id string) (*domain.Order, error)
}

type OrderNotifier interface {
	OrderConfirmed(ctx context.Context, order *domain.Order) error
	OrderShipped(ctx context.Context, order *domain.Order) error
}

// Consumer turns order events into customer emails.
type Consumer struct {
	orders     OrderGetter
	notifier   OrderNotifier
	reader     MessageReader
	logger     *zap.Logger
	retryDelay time.Duration
}

func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewConsumer(orders OrderGetter, notifier OrderNotifier, reader MessageReader, logger *zap.Logger) *Consumer {
	return &Consumer{
		orders:     orders,
		notifier:   notifier,
		reader:     reader,
		logger:     logger,
		retryDelay: time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		c.logger.Error("error reading message", zap.Error(err))
		c.wait(ctx, c.retryDelay)
		return
	}

	for attempt := 1; ; attempt++ {
		err = c.handle(ctx, m)
		if err == nil || attempt >= maxAttempts || ctx.Err() != nil {
			break
		}
		c.logger.Warn("order event failed, retrying",
			zap.Int("attempt", attempt),
			zap.ByteString("key", m.Key),
			zap.Error(err))
		c.wait(ctx, time.Duration(attempt)*c.retryDelay)
	}
	if ctx.Err() != nil {
		// uncommitted, the group redelivers it after restart
		return
	}
	if err != nil {
		c.logger.Error("dropping order event", zap.ByteString("key", m.Key), zap.Error(err))
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.logger.Error("failed to commit message", zap.Int64("offset", m.Offset), zap.Error(err))
	}
}

// handle returns an error only for failures worth retrying.
func (c *Consumer) handle(ctx context.Context, m kafka.Message) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.logger.Error("error parsing message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	var send func(context.Context, *domain.Order) error
	switch {
	case event.Type == domain.EventOrderConfirmed:
		send = c.notifier.OrderConfirmed
	case event.Type == domain.EventOrderStatusChanged && event.Status == domain.OrderStatusShipped:
		send = c.notifier.OrderShipped
	default:
		return nil
	}

	order, err := c.orders.Get(ctx, event.OrderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		c.logger.Warn("event for unknown order", zap.String("order_id", event.OrderID))
		return nil
	}
	if err != nil {
		return err
	}

	err = send(ctx, order)
	if errors.Is(err, notify.ErrNoRecipient) {
		c.logger.Warn("order has no email", zap.String("order_id", order.ID))
		return nil
	}
	if err != nil {
		return err
	}
	c.logger.Info("order email sent",
		zap.String("order_id", order.ID),
		zap.String("event_type", event.Type),
		zap.String("event_id", event.ID))
	return nil
}

func (c *Consumer) wait(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
