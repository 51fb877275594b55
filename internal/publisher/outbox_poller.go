package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/config"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/repository"
	"github.com/fjod/go_storefront/internal/telemetry"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const HeaderEventType = "event_type"

// MessageWriter is the part of *kafka.Writer the poller needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// PendingCleaner deletes orders that never got paid.
type PendingCleaner interface {
	CleanupPendingOrders(ctx context.Context, olderThan time.Duration, dryRun bool) (int64, error)
}

type OutboxPoller struct {
	eventTick   time.Duration
	cleanupTick time.Duration
	batchSize   int64
	pendingTTL  time.Duration
	orders      repository.OrderRepository
	cleaner     PendingCleaner
	writer      MessageWriter
	metrics     *telemetry.Metrics
	logger      *zap.Logger
}

func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
}

func NewOutboxPoller(orders repository.OrderRepository, cleaner PendingCleaner, writer MessageWriter,
	cfg config.Outbox, pendingTTL time.Duration, metrics *telemetry.Metrics, logger *zap.Logger) *OutboxPoller {
	return &OutboxPoller{
		eventTick:   cfg.EventInterval,
		cleanupTick: cfg.CleanupInterval,
		batchSize:   cfg.BatchSize,
		pendingTTL:  pendingTTL,
		orders:      orders,
		cleaner:     cleaner,
		writer:      writer,
		metrics:     metrics,
		logger:      logger,
	}
}

// Run polls until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	cleanupTicker := time.NewTicker(p.cleanupTick)
	defer eventTicker.Stop()
	defer cleanupTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processPendingEvents(ctx)
		case <-cleanupTicker.C:
			p.cleanupPendingOrders(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processPendingEvents(ctx context.Context) {
	orders, err := p.orders.ListWithPendingEvents(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("failed to fetch pending events", zap.Error(err))
		return
	}

	for _, order := range orders {
		for _, event := range order.PendingEvents {
			if err := p.publish(ctx, event); err != nil {
				// later events of this order wait so consumers see them in order
				p.logger.Error("failed to publish event",
					zap.String("order_id", order.ID),
					zap.String("event_id", event.ID),
					zap.Error(err))
				break
			}
			if err := p.orders.RemovePendingEvent(ctx, order.ID, event.ID); err != nil {
				p.logger.Error("failed to mark event as published",
					zap.String("order_id", order.ID),
					zap.String("event_id", event.ID),
					zap.Error(err))
				break
			}
			p.metrics.OutboxPublished(event.Type)
		}
	}
}

func (p *OutboxPoller) cleanupPendingOrders(ctx context.Context) {
	n, err := p.cleaner.CleanupPendingOrders(ctx, p.pendingTTL, false)
	if err != nil {
		p.logger.Error("failed to clean up pending orders", zap.Error(err))
		return
	}
	if n > 0 {
		p.logger.Info("abandoned pending orders removed", zap.Int64("count", n))
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event domain.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.Type)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
