// Package service holds the two write paths of the core: the order ledger
// (state machine) and the assignment broker (driver arbitration). Both
// delegate atomicity to the store's conditional writes and publish every
// successful mutation to the change feed.
package service

import (
	"context"
	"time"

	"github.com/swiftdish/order-service/internal/entities"
)

type OrderRepo interface {
	CreateOrder(ctx context.Context, o entities.Order) (entities.Order, error)
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
	ListByParty(ctx context.Context, role entities.ActorRole, partyID string, statuses []entities.Status) ([]entities.Order, error)
	ListAvailable(ctx context.Context) ([]entities.Order, error)
	ListStuckReady(ctx context.Context, before time.Time) ([]entities.Order, error)

	// TransitionStatus and AcceptOrder are conditional writes: false with a
	// nil error means the precondition no longer held.
	TransitionStatus(ctx context.Context, orderID string, from, to entities.Status, effects entities.TransitionEffects) (bool, error)
	AcceptOrder(ctx context.Context, orderID, driverID string) (bool, error)
}

type AssignmentRepo interface {
	CreateAssignment(ctx context.Context, a entities.Assignment) error
	GetAssignment(ctx context.Context, assignmentID string) (entities.Assignment, error)
	ListAssignmentsByOrder(ctx context.Context, orderID string) ([]entities.Assignment, error)
	MarkAccepted(ctx context.Context, assignmentID, orderID, driverID string) error
	RejectPending(ctx context.Context, orderID, exceptDriverID string) error
	RejectAssignment(ctx context.Context, assignmentID, driverID string) (bool, error)
}

type NotificationRepo interface {
	SaveNotification(ctx context.Context, n entities.Notification) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, e entities.OrderEvent) error
}

type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Delete(key string)
}

// PromoService is the promo-code collaborator. The returned discount is in
// minor units; the billing calculator clamps it to [0, subtotal].
type PromoService interface {
	Discount(ctx context.Context, subtotal int64, code string) (int64, error)
}

// ZeroDiscount is the default promo collaborator: no promo system wired.
type ZeroDiscount struct{}

func (ZeroDiscount) Discount(context.Context, int64, string) (int64, error) { return 0, nil }

// DistanceFunc is the location collaborator. The default is the haversine
// distance on the raw coordinates.
type DistanceFunc func(a, b entities.GeoPoint) float64

func HaversineDistance(a, b entities.GeoPoint) float64 { return a.DistanceKM(b) }
