package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/swiftdish/order-service/internal/billing"
	"github.com/swiftdish/order-service/internal/entities"
	"github.com/swiftdish/order-service/pkg/trm"
	"github.com/swiftdish/order-service/pkg/utils"
)

// Ledger owns the order record and its state machine. It never holds an
// in-process lock across calls: legality is checked against a read, then
// enforced by the store's conditional write.
type Ledger struct {
	logger      *slog.Logger
	txManager   trm.Manager
	orders      OrderRepo
	assignments AssignmentRepo
	publisher   EventPublisher
	cache       Cache
	rates       billing.Rates
	promo       PromoService
	distance    DistanceFunc
}

func NewLedger(
	logger *slog.Logger,
	txManager trm.Manager,
	orders OrderRepo,
	assignments AssignmentRepo,
	publisher EventPublisher,
	cache Cache,
	rates billing.Rates,
	promo PromoService,
	distance DistanceFunc,
) *Ledger {
	if promo == nil {
		promo = ZeroDiscount{}
	}
	if distance == nil {
		distance = HaversineDistance
	}
	return &Ledger{
		logger:      logger.With(slog.String("service", "ledger")),
		txManager:   txManager,
		orders:      orders,
		assignments: assignments,
		publisher:   publisher,
		cache:       cache,
		rates:       rates,
		promo:       promo,
		distance:    distance,
	}
}

type CreateOrderCommand struct {
	CustomerID          string
	MerchantID          string
	Items               []entities.LineItem
	PaymentMethod       entities.PaymentMethod
	DeliveryAddress     string
	DeliveryLocation    entities.GeoPoint
	MerchantLocation    entities.GeoPoint
	DistanceKM          float64 // measured upstream; 0 means compute here
	PromoCode           string
	SpecialInstructions string
}

// Create opens an order in pending with its money totals frozen. Totals are
// established exactly once here and never recomputed.
func (s *Ledger) Create(ctx context.Context, cmd CreateOrderCommand) (entities.Order, error) {
	if cmd.CustomerID == "" || cmd.MerchantID == "" {
		return entities.Order{}, fmt.Errorf("%w: customer and merchant required", entities.ErrValidation)
	}
	if cmd.PaymentMethod == "" {
		return entities.Order{}, fmt.Errorf("%w: payment method required", entities.ErrValidation)
	}

	distance := cmd.DistanceKM
	if distance == 0 {
		distance = s.distance(cmd.MerchantLocation, cmd.DeliveryLocation)
	}

	var discount int64
	if cmd.PromoCode != "" {
		var err error
		discount, err = s.promo.Discount(ctx, subtotalOf(cmd.Items), cmd.PromoCode)
		if err != nil {
			return entities.Order{}, fmt.Errorf("failed to resolve promo code: %w", err)
		}
	}

	totals, err := billing.Quote(cmd.Items, distance, discount, s.rates)
	if err != nil {
		return entities.Order{}, err
	}

	order := entities.Order{
		ID:                  uuid.NewString(),
		CustomerID:          cmd.CustomerID,
		MerchantID:          cmd.MerchantID,
		Items:               cmd.Items,
		Subtotal:            totals.Subtotal,
		DeliveryFee:         totals.DeliveryFee,
		Tax:                 totals.Tax,
		Discount:            totals.Discount,
		TotalAmount:         totals.Total,
		Status:              entities.StatusPending,
		PaymentStatus:       entities.PaymentPending,
		PaymentMethod:       cmd.PaymentMethod,
		DeliveryAddress:     cmd.DeliveryAddress,
		DeliveryLocation:    cmd.DeliveryLocation,
		DeliveryDistanceKM:  distance,
		SpecialInstructions: cmd.SpecialInstructions,
	}

	created, err := s.orders.CreateOrder(ctx, order)
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to create order: %w", err)
	}
	s.logger.Info("order created",
		slog.String("order_id", created.ID),
		slog.Int64("order_number", created.OrderNumber),
		slog.Int64("total", created.TotalAmount),
	)

	s.publish(ctx, created, entities.EventStatusNone, entities.StatusPending, entities.RoleCustomer)
	return created, nil
}

// Transition moves an order along one edge of the state graph. The edge is
// validated against a fresh read and then re-validated by the store's
// compare-and-swap, so a stale dashboard can never force an illegal move.
func (s *Ledger) Transition(ctx context.Context, orderID string, target entities.Status, actor entities.ActorRole) error {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if target == entities.StatusAssigned {
		// assigned requires a driver binding, which only the broker's
		// accept race can establish
		return fmt.Errorf("%w: %s -> %s needs a driver accept", entities.ErrIllegalTransition, order.Status, target)
	}
	if !entities.CanTransition(order.Status, target) {
		return fmt.Errorf("%w: %s -> %s", entities.ErrIllegalTransition, order.Status, target)
	}

	effects := order.EffectsFor(target)
	var applied bool
	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		ok, err := s.orders.TransitionStatus(ctx, orderID, order.Status, target, effects)
		if err != nil {
			return err
		}
		applied = ok
		if !ok {
			return nil
		}
		if target == entities.StatusCancelled {
			// outstanding offers die with the order
			return s.assignments.RejectPending(ctx, orderID, "")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to transition order: %w", err)
	}
	if !applied {
		// lost a write race; report the truth, not our stale read
		current, err := s.orders.GetOrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: order is now %s", entities.ErrIllegalTransition, current.Status)
	}

	transitionsTotal.WithLabelValues(string(target)).Inc()
	s.cache.Delete(orderID)
	s.logger.Info("order transitioned",
		slog.String("order_id", orderID),
		slog.String("from", string(order.Status)),
		slog.String("to", string(target)),
		slog.String("actor", string(actor)),
	)

	s.publish(ctx, order, order.Status, target, actor)
	return nil
}

// Cancel is a convenience wrapper; legality (any non-terminal state) is
// enforced by the transition graph.
func (s *Ledger) Cancel(ctx context.Context, orderID string, actor entities.ActorRole) error {
	return s.Transition(ctx, orderID, entities.StatusCancelled, actor)
}

// GetOrder reads through the snapshot cache. The cache is never consulted
// for write decisions, only to serve dashboards.
func (s *Ledger) GetOrder(ctx context.Context, orderID string) (entities.Order, error) {
	if data, ok := s.cache.Get(orderID); ok {
		var order entities.Order
		if err := order.Unmarshal(data); err == nil {
			return order, nil
		}
		s.cache.Delete(orderID)
	}

	var order entities.Order
	cfg := utils.RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxAttempts:  5,
		Multiplier:   2,
	}
	err := utils.Retry(ctx, cfg, func() error {
		var err error
		order, err = s.orders.GetOrderByID(ctx, orderID)
		return err
	}, entities.ErrOrderNotFound)
	if err != nil {
		return entities.Order{}, err
	}

	if data, err := order.Marshal(); err == nil {
		s.cache.Set(orderID, data)
	}
	return order, nil
}

func (s *Ledger) ListOrders(ctx context.Context, role entities.ActorRole, partyID string, statuses []entities.Status) ([]entities.Order, error) {
	return s.orders.ListByParty(ctx, role, partyID, statuses)
}

// publish is best-effort: the mutation is already durable, so a feed
// failure is logged, not propagated. The retry inside the publisher makes
// loss rare; duplicates are the consumer's problem by contract.
func (s *Ledger) publish(ctx context.Context, o entities.Order, from, to entities.Status, actor entities.ActorRole) {
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
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event",
			slog.String("order_id", o.ID),
			slog.String("transition", event.Transition()),
			slog.Any("error", err),
		)
	}
}

func subtotalOf(items []entities.LineItem) int64 {
	var sum int64
	for _, it := range items {
		sum += it.UnitPrice * int64(it.Quantity)
	}
	return sum
}
