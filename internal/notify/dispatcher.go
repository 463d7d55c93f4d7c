// Package notify turns change-feed events into per-party notification
// rows. It consumes the same durable topic the dashboards' feed publisher
// writes to, so it inherits at-least-once delivery and must be idempotent.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/swiftdish/order-service/internal/config"
	"github.com/swiftdish/order-service/internal/entities"
)

type Store interface {
	SaveNotification(ctx context.Context, n entities.Notification) (bool, error)
	ListNotificationsByUser(ctx context.Context, userID string, limit int) ([]entities.Notification, error)
}

// Transport is the out-of-band delivery collaborator (push/SMS/in-app).
// The core never depends on its success.
type Transport interface {
	Send(ctx context.Context, n entities.Notification) error
}

// LogTransport is the default transport: it just logs the message.
type LogTransport struct {
	Logger *slog.Logger
}

func (t LogTransport) Send(_ context.Context, n entities.Notification) error {
	t.Logger.Info("notification",
		slog.String("user_id", n.UserID),
		slog.String("title", n.Title),
		slog.String("type", string(n.Type)),
	)
	return nil
}

type Dispatcher struct {
	logger    *slog.Logger
	reader    *kafka.Reader
	dlq       *kafka.Writer
	store     Store
	transport Transport
}

func NewDispatcher(logger *slog.Logger, cfg config.Kafka, store Store, transport Transport) *Dispatcher {
	return &Dispatcher{
		logger: logger.With(slog.String("handler", "dispatcher")),
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Brokers,
			GroupID: cfg.GroupID,
			Topic:   cfg.Topic,
			MaxWait: cfg.ReaderMaxWait,
		}),
		dlq: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: cfg.BatchTimeout,
		},
		store:     store,
		transport: transport,
	}
}

func (d *Dispatcher) Consume(ctx context.Context) {
	for {
		m, err := d.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				break
			}
			d.logger.Error("failed to fetch message", slog.Any("error", err))
			continue
		}

		if err := d.handle(ctx, m); err != nil {
			eventsFailed.Inc()
			d.logger.Error("failed to handle event", slog.Any("error", err))

			if err := d.writeToDLQ(ctx, m); err != nil {
				d.logger.Error("failed to write to DLQ", slog.Any("error", err))
				continue
			}
			eventsDLQ.Inc()
		} else {
			eventsProcessed.Inc()
		}

		if err := d.reader.CommitMessages(ctx, m); err != nil {
			d.logger.Error("failed to commit message", slog.Any("error", err))
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, m kafka.Message) error {
	var event entities.OrderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.Resync || event.OrderID == "" {
		return nil
	}

	for _, n := range NotificationsFor(event) {
		inserted, err := d.store.SaveNotification(ctx, n)
		if err != nil {
			return fmt.Errorf("failed to save notification: %w", err)
		}
		if !inserted {
			// duplicate event from the at-least-once feed
			duplicatesSkipped.Inc()
			continue
		}
		// out-of-band delivery is fire-and-forget
		if err := d.transport.Send(ctx, n); err != nil {
			d.logger.Warn("transport send failed",
				slog.String("user_id", n.UserID),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

func (d *Dispatcher) writeToDLQ(ctx context.Context, m kafka.Message) error {
	m.Topic = fmt.Sprintf("%s-dlq", m.Topic)
	return d.dlq.WriteMessages(ctx, m)
}

func (d *Dispatcher) ListByUser(ctx context.Context, userID string, limit int) ([]entities.Notification, error) {
	return d.store.ListNotificationsByUser(ctx, userID, limit)
}

func (d *Dispatcher) Close() error {
	if err := d.reader.Close(); err != nil {
		return err
	}
	return d.dlq.Close()
}
