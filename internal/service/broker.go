package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/swiftdish/order-service/internal/config"
	"github.com/swiftdish/order-service/internal/entities"
	"github.com/swiftdish/order-service/pkg/trm"
)

// Broker arbitrates which driver delivers a ready order. The entire
// mutual-exclusion guarantee rests on one conditional write against the
// order row; assignment rows are audit, never arbitration.
type Broker struct {
	logger        *slog.Logger
	txManager     trm.Manager
	orders        OrderRepo
	assignments   AssignmentRepo
	notifications NotificationRepo
	publisher     EventPublisher
	cache         Cache
	cfg           config.Broker
}

func NewBroker(
	logger *slog.Logger,
	txManager trm.Manager,
	orders OrderRepo,
	assignments AssignmentRepo,
	notifications NotificationRepo,
	publisher EventPublisher,
	cache Cache,
	cfg config.Broker,
) *Broker {
	return &Broker{
		logger:        logger.With(slog.String("service", "broker")),
		txManager:     txManager,
		orders:        orders,
		assignments:   assignments,
		notifications: notifications,
		publisher:     publisher,
		cache:         cache,
		cfg:           cfg,
	}
}

// ListAvailable returns the ready, unassigned pool, optionally narrowed to
// orders whose drop-off lies within the configured radius of the driver.
func (b *Broker) ListAvailable(ctx context.Context, near *entities.GeoPoint) ([]entities.Order, error) {
	orders, err := b.orders.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	if near == nil {
		return orders, nil
	}
	filtered := orders[:0]
	for _, o := range orders {
		if near.DistanceKM(o.DeliveryLocation) <= b.cfg.SearchRadiusKM {
			filtered = append(filtered, o)
		}
	}
	return filtered, nil
}

// Offer records that an order was put in front of one driver. Re-offering
// the same pair is a no-op.
func (b *Broker) Offer(ctx context.Context, orderID, driverID string) (entities.Assignment, error) {
	if driverID == "" {
		return entities.Assignment{}, fmt.Errorf("%w: driver required", entities.ErrValidation)
	}
	order, err := b.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return entities.Assignment{}, err
	}
	if order.Status != entities.StatusReady || order.DriverID != "" {
		return entities.Assignment{}, fmt.Errorf("%w: order is not open for offers", entities.ErrValidation)
	}

	a := entities.Assignment{
		ID:       uuid.NewString(),
		OrderID:  orderID,
		DriverID: driverID,
		Status:   entities.AssignmentPending,
	}
	if err := b.assignments.CreateAssignment(ctx, a); err != nil {
		return entities.Assignment{}, err
	}
	return a, nil
}

// Accept is the only mandatory mutual-exclusion point in the core. It
// attempts one compare-and-swap; zero rows affected means another driver
// won and the caller gets ErrAlreadyTaken, never a silent success.
func (b *Broker) Accept(ctx context.Context, orderID, driverID string) (entities.Order, error) {
	if driverID == "" {
		return entities.Order{}, fmt.Errorf("%w: driver required", entities.ErrValidation)
	}

	var won bool
	err := b.txManager.Do(ctx, func(ctx context.Context) error {
		ok, err := b.orders.AcceptOrder(ctx, orderID, driverID)
		if err != nil {
			return err
		}
		won = ok
		if !ok {
			return nil
		}
		if err := b.assignments.MarkAccepted(ctx, uuid.NewString(), orderID, driverID); err != nil {
			return err
		}
		// losers' offers are closed in the same transaction
		return b.assignments.RejectPending(ctx, orderID, driverID)
	})
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to accept order: %w", err)
	}

	if !won {
		acceptConflictsTotal.Inc()
		current, err := b.orders.GetOrderByID(ctx, orderID)
		if err != nil {
			return entities.Order{}, err
		}
		if current.Status.NeedsDriver() {
			return entities.Order{}, fmt.Errorf("%w: order is %s", entities.ErrAlreadyTaken, current.Status)
		}
		// the order left the pool some other way, e.g. a cancel
		return entities.Order{}, fmt.Errorf("%w: order is %s, not open for pickup", entities.ErrValidation, current.Status)
	}

	acceptWinsTotal.Inc()
	b.cache.Delete(orderID)
	b.logger.Info("order accepted",
		slog.String("order_id", orderID),
		slog.String("driver_id", driverID),
	)

	order, err := b.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		// accept is committed; the caller still gets the essentials
		b.logger.Warn("failed to reload accepted order", slog.Any("error", err))
		return entities.Order{ID: orderID, DriverID: driverID, Status: entities.StatusAssigned}, nil
	}

	b.publish(ctx, order, entities.StatusReady, entities.StatusAssigned, entities.RoleDriver)
	return order, nil
}

// Reject closes exactly one driver's pending offer. The order itself is
// untouched; rejecting is not a transition.
func (b *Broker) Reject(ctx context.Context, assignmentID, driverID string) error {
	if driverID == "" {
		return fmt.Errorf("%w: driver required", entities.ErrValidation)
	}
	ok, err := b.assignments.RejectAssignment(ctx, assignmentID, driverID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	a, err := b.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if a.DriverID != driverID {
		return entities.ErrAssignmentNotFound
	}
	if a.Status == entities.AssignmentRejected {
		// already rejected, nothing to redo
		return nil
	}
	return fmt.Errorf("%w: assignment already %s", entities.ErrValidation, a.Status)
}

func (b *Broker) Assignments(ctx context.Context, orderID string) ([]entities.Assignment, error) {
	return b.assignments.ListAssignmentsByOrder(ctx, orderID)
}

// Run is the re-offer sweep: a ready order nobody accepted is re-announced
// on the feed every ReofferInterval, and its merchant is escalated to once
// after EscalateAfter. This is the chosen policy for the otherwise
// unspecified "stuck in ready" case.
func (b *Broker) Run(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.ReofferInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Sweep(ctx, time.Now())
		}
	}
}

// Sweep runs one pass over the stuck-ready pool. Exposed separately so a
// pass can be forced at a chosen time.
func (b *Broker) Sweep(ctx context.Context, now time.Time) {
	stuck, err := b.orders.ListStuckReady(ctx, now.Add(-b.cfg.ReofferInterval))
	if err != nil {
		b.logger.Error("failed to list stuck orders", slog.Any("error", err))
		return
	}

	for _, o := range stuck {
		b.publish(ctx, o, entities.StatusReady, entities.StatusReady, entities.RoleSystem)
		reoffersTotal.Inc()

		if now.Sub(o.UpdatedAt) < b.cfg.EscalateAfter {
			continue
		}
		inserted, err := b.notifications.SaveNotification(ctx, entities.Notification{
			ID:         uuid.NewString(),
			UserID:     o.MerchantID,
			Title:      "Order still waiting for a driver",
			Body:       fmt.Sprintf("Order #%d has had no driver for over %s.", o.OrderNumber, b.cfg.EscalateAfter),
			Type:       entities.NotificationEscalation,
			OrderID:    o.ID,
			Transition: "stuck_ready",
		})
		if err != nil {
			b.logger.Error("failed to save escalation", slog.Any("error", err))
			continue
		}
		if inserted {
			b.logger.Warn("order escalated",
				slog.String("order_id", o.ID),
				slog.Int64("order_number", o.OrderNumber),
			)
		}
	}
}

func (b *Broker) publish(ctx context.Context, o entities.Order, from, to entities.Status, actor entities.ActorRole) {
	event := entities.OrderEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		FromStatus:  from,
		ToStatus:    to,
		CustomerID:  o.CustomerID,
		MerchantID:  o.MerchantID,
		DriverID:    o.DriverID,
		ActorRole:   actor,
		OccurredAt:  time.Now(),
	}
	if err := b.publisher.Publish(ctx, event); err != nil {
		b.logger.Error("failed to publish event",
			slog.String("order_id", o.ID),
			slog.String("transition", event.Transition()),
			slog.Any("error", err),
		)
	}
}
