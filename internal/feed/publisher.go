// Package feed propagates order mutations to everyone watching them. Every
// event goes to a durable kafka topic (consumed by the notification
// dispatcher) and to redis pub/sub channels keyed by order and by party
// (consumed by live dashboards). Delivery is at-least-once; ordering across
// reconnects is not guaranteed.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/swiftdish/order-service/internal/config"
	"github.com/swiftdish/order-service/internal/entities"
	"github.com/swiftdish/order-service/pkg/utils"
)

func orderChannel(orderID string) string {
	return "orders.order." + orderID
}

func partyChannel(partyID string) string {
	return "orders.party." + partyID
}

type Publisher struct {
	logger *slog.Logger
	writer *kafka.Writer
	rdb    *redis.Client
}

func NewPublisher(logger *slog.Logger, cfg config.Kafka, rdb *redis.Client) *Publisher {
	return &Publisher{
		logger: logger.With(slog.String("component", "feed_publisher")),
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: cfg.BatchTimeout,
		},
		rdb: rdb,
	}
}

// Publish emits one event after the owning transaction has committed. Both
// sinks are retried with backoff; a duplicate is always preferable to a
// lost event, so a retried partial failure may double-publish.
func (p *Publisher) Publish(ctx context.Context, e entities.OrderEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	cfg := utils.RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxAttempts:  5,
		Multiplier:   2,
	}

	// keyed by order id so one order stays in one partition
	if err := utils.Retry(ctx, cfg, func() error {
		return p.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(e.OrderID),
			Value: payload,
		})
	}); err != nil {
		return fmt.Errorf("failed to publish to kafka: %w", err)
	}

	channels := []string{orderChannel(e.OrderID)}
	for _, party := range e.PartyIDs() {
		channels = append(channels, partyChannel(party))
	}
	if err := utils.Retry(ctx, cfg, func() error {
		g, ctx := errgroup.WithContext(ctx)
		for _, ch := range channels {
			ch := ch
			g.Go(func() error {
				return p.rdb.Publish(ctx, ch, payload).Err()
			})
		}
		return g.Wait()
	}); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Debug("event published",
		slog.String("order_id", e.OrderID),
		slog.String("transition", e.Transition()),
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
