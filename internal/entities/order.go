package entities

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusAssigned  Status = "assigned"
	StatusPickedUp  Status = "picked_up"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentCard           PaymentMethod = "card"
	PaymentWallet         PaymentMethod = "wallet"
)

type ActorRole string

const (
	RoleCustomer ActorRole = "customer"
	RoleMerchant ActorRole = "merchant"
	RoleDriver   ActorRole = "driver"
	RoleAdmin    ActorRole = "admin"
	RoleSystem   ActorRole = "system"
)

// LineItem is an immutable snapshot of a catalog item taken at checkout.
// Catalog changes after creation never touch it.
type LineItem struct {
	ItemID    string
	Name      string
	UnitPrice int64
	Quantity  int
}

type GeoPoint struct {
	Lat float64
	Lng float64
}

// Order is the authoritative unit of work. All money fields are in minor
// currency units (paise). Mutations go exclusively through the ledger or the
// broker, which re-validate against the stored row.
type Order struct {
	ID          string
	OrderNumber int64

	CustomerID string
	MerchantID string
	DriverID   string // empty until a driver wins the accept race

	Items       []LineItem
	Subtotal    int64
	DeliveryFee int64
	Tax         int64
	Discount    int64
	TotalAmount int64

	Status        Status
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod

	DeliveryAddress     string
	DeliveryLocation    GeoPoint
	DeliveryDistanceKM  float64
	SpecialInstructions string

	CreatedAt          time.Time
	UpdatedAt          time.Time
	ActualDeliveryTime time.Time // zero until delivered
}

// TransitionEffects are the side effects the store applies atomically with
// a status flip.
type TransitionEffects struct {
	StampDelivery bool // set actual_delivery_time
	MarkPaid      bool // force payment_status to paid
	ClearDriver   bool // unbind driver_id (cancellation of an assigned order)
}

// EffectsFor derives the side effects of entering target on this order.
func (o Order) EffectsFor(target Status) TransitionEffects {
	switch target {
	case StatusDelivered:
		return TransitionEffects{
			StampDelivery: true,
			MarkPaid:      o.PaymentMethod == PaymentCashOnDelivery,
		}
	case StatusCancelled:
		return TransitionEffects{ClearDriver: o.DriverID != ""}
	}
	return TransitionEffects{}
}

// transitions is the closed edge set of the order state machine. Side edges
// to cancelled are handled by CanTransition since every non-terminal state
// may cancel.
var transitions = map[Status]Status{
	StatusPending:   StatusConfirmed,
	StatusConfirmed: StatusPreparing,
	StatusPreparing: StatusReady,
	StatusReady:     StatusAssigned,
	StatusAssigned:  StatusPickedUp,
	StatusPickedUp:  StatusDelivered,
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether the edge from -> to exists in the state graph.
func CanTransition(from, to Status) bool {
	if to == StatusCancelled {
		return !from.Terminal()
	}
	return transitions[from] == to
}

// NeedsDriver reports whether driver_id must be bound in this status.
func (s Status) NeedsDriver() bool {
	return s == StatusAssigned || s == StatusPickedUp || s == StatusDelivered
}

func ParseStatus(v string) (Status, error) {
	switch s := Status(v); s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
		StatusAssigned, StatusPickedUp, StatusDelivered, StatusCancelled:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, v)
}

func ParseRole(v string) (ActorRole, error) {
	switch r := ActorRole(v); r {
	case RoleCustomer, RoleMerchant, RoleDriver, RoleAdmin, RoleSystem:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrValidation, v)
}

func ParsePaymentMethod(v string) (PaymentMethod, error) {
	switch m := PaymentMethod(v); m {
	case PaymentCashOnDelivery, PaymentCard, PaymentWallet:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown payment method %q", ErrValidation, v)
}
