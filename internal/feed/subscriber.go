package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/swiftdish/order-service/internal/entities"
	"github.com/swiftdish/order-service/pkg/utils"
)

// SnapshotStore provides the last-known-good order sets a dashboard starts
// from. Reads only.
type SnapshotStore interface {
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
	ListByParty(ctx context.Context, role entities.ActorRole, partyID string, statuses []entities.Status) ([]entities.Order, error)
}

// Filter selects what a subscription watches: a single order, or one
// party's order set (optionally narrowed to some statuses).
type Filter struct {
	OrderID  string
	Role     entities.ActorRole
	PartyID  string
	Statuses []entities.Status
}

func (f Filter) channel() string {
	if f.OrderID != "" {
		return orderChannel(f.OrderID)
	}
	return partyChannel(f.PartyID)
}

// wants reports whether the filter admits the event. Resync markers always
// pass so a narrowed subscription still learns about gaps.
func (f Filter) wants(e entities.OrderEvent) bool {
	if e.Resync || len(f.Statuses) == 0 {
		return true
	}
	for _, st := range f.Statuses {
		if e.ToStatus == st {
			return true
		}
	}
	return false
}

type Subscriber struct {
	logger *slog.Logger
	rdb    *redis.Client
	store  SnapshotStore
}

func NewSubscriber(logger *slog.Logger, rdb *redis.Client, store SnapshotStore) *Subscriber {
	return &Subscriber{
		logger: logger.With(slog.String("component", "feed_subscriber")),
		rdb:    rdb,
		store:  store,
	}
}

// Subscription is one dashboard's view: an initial snapshot plus a stream
// of incremental events. Events are hints, not a log: on any gap the stream
// carries a Resync event and the consumer must call Snapshot again.
type Subscription struct {
	sub    *Subscriber
	pubsub *redis.PubSub
	filter Filter
	events chan entities.OrderEvent
	closed atomic.Bool
}

func (s *Subscription) Events() <-chan entities.OrderEvent {
	return s.events
}

// Snapshot fetches the current order set. Transient store failures are
// retried transparently; a missing order is final.
func (s *Subscription) Snapshot(ctx context.Context) ([]entities.Order, error) {
	var orders []entities.Order
	cfg := utils.RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxAttempts:  5,
		Multiplier:   2,
	}
	err := utils.Retry(ctx, cfg, func() error {
		var err error
		if s.filter.OrderID != "" {
			var o entities.Order
			o, err = s.sub.store.GetOrderByID(ctx, s.filter.OrderID)
			orders = []entities.Order{o}
		} else {
			orders, err = s.sub.store.ListByParty(ctx, s.filter.Role, s.filter.PartyID, s.filter.Statuses)
		}
		return err
	}, entities.ErrOrderNotFound, entities.ErrValidation)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Subscription) Close() error {
	s.closed.Store(true)
	return s.pubsub.Close()
}

// Subscribe opens the pub/sub channel for the filter. The caller should
// fetch Snapshot first, then drain Events; a Resync event means the
// snapshot must be refetched because events may have been missed.
func (s *Subscriber) Subscribe(ctx context.Context, f Filter) (*Subscription, error) {
	pubsub := s.rdb.Subscribe(ctx, f.channel())
	// force the SUBSCRIBE round-trip so a dead redis fails fast
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	sub := &Subscription{
		sub:    s,
		pubsub: pubsub,
		filter: f,
		events: make(chan entities.OrderEvent, 32),
	}
	go sub.pump(ctx, s.logger)
	return sub, nil
}

// pump moves redis messages onto the subscription channel. Any receive
// error counts as a gap: the client library resubscribes under the hood,
// but messages published meanwhile are gone, so a Resync marker is emitted
// before resuming.
func (s *Subscription) pump(ctx context.Context, logger *slog.Logger) {
	defer close(s.events)

	for {
		msg, err := s.pubsub.ReceiveMessage(ctx)
		if err != nil {
			if s.terminal(ctx, err) {
				return
			}
			logger.Warn("feed gap, resyncing", slog.Any("error", err))
			if !s.send(ctx, entities.OrderEvent{Resync: true, OccurredAt: time.Now()}) {
				return
			}
			continue
		}

		var e entities.OrderEvent
		if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
			logger.Error("failed to unmarshal event", slog.Any("error", err))
			continue
		}
		if !s.filter.wants(e) {
			continue
		}
		if !s.send(ctx, e) {
			return
		}
	}
}

// terminal reports whether a receive error ends the subscription rather
// than marking a gap. Close and context cancellation are terminal; anything
// else the client recovers from by resubscribing.
func (s *Subscription) terminal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || s.closed.Load() || errors.Is(err, redis.ErrClosed)
}

func (s *Subscription) send(ctx context.Context, e entities.OrderEvent) bool {
	select {
	case s.events <- e:
		return true
	case <-ctx.Done():
		return false
	}
}
