package handler

import (
	"time"

	"github.com/swiftdish/order-service/internal/entities"
)

// LineItem is one immutable snapshot cart line. Prices are minor units.
type LineItem struct {
	ItemID    string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	UnitPrice int64  `json:"unit_price" validate:"gte=0"`
	Quantity  int    `json:"qty" validate:"gt=0"`
}

type GeoPoint struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// Order is the wire shape of one order row.
type Order struct {
	ID          string `json:"id"`
	OrderNumber int64  `json:"order_number"`

	CustomerID string `json:"customer_id"`
	MerchantID string `json:"merchant_id"`
	DriverID   string `json:"driver_id,omitempty"`

	Items       []LineItem `json:"items"`
	Subtotal    int64      `json:"subtotal"`
	DeliveryFee int64      `json:"delivery_fee"`
	Tax         int64      `json:"tax"`
	Discount    int64      `json:"discount,omitempty"`
	TotalAmount int64      `json:"total_amount"`

	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	PaymentMethod string `json:"payment_method"`

	DeliveryAddress     string   `json:"delivery_address"`
	DeliveryLocation    GeoPoint `json:"delivery_location"`
	DeliveryDistanceKM  float64  `json:"delivery_distance_km"`
	SpecialInstructions string   `json:"special_instructions,omitempty"`

	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	ActualDeliveryTime *time.Time `json:"actual_delivery_time,omitempty"`
}

type CreateOrderRequest struct {
	CustomerID          string     `json:"customer_id" validate:"required"`
	MerchantID          string     `json:"merchant_id" validate:"required"`
	Items               []LineItem `json:"items" validate:"required,min=1,dive"`
	PaymentMethod       string     `json:"payment_method" validate:"required"`
	DeliveryAddress     string     `json:"delivery_address" validate:"required"`
	DeliveryLocation    GeoPoint   `json:"delivery_location"`
	MerchantLocation    GeoPoint   `json:"merchant_location"`
	DistanceKM          float64    `json:"distance_km" validate:"gte=0"`
	PromoCode           string     `json:"promo_code,omitempty"`
	SpecialInstructions string     `json:"special_instructions,omitempty"`
}

type TransitionRequest struct {
	TargetStatus string `json:"target_status" validate:"required"`
	ActorRole    string `json:"actor_role" validate:"required"`
}

type CancelRequest struct {
	ActorRole string `json:"actor_role" validate:"required"`
}

type DriverRequest struct {
	DriverID string `json:"driver_id" validate:"required"`
}

type Assignment struct {
	ID          string     `json:"id"`
	OrderID     string     `json:"order_id"`
	DriverID    string     `json:"driver_id"`
	Status      string     `json:"status"`
	AssignedAt  time.Time  `json:"assigned_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id"`
	CreatedAt time.Time `json:"created_at"`
}

func OrderEntityToJSON(o entities.Order) Order {
	items := make([]LineItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, LineItem{
			ItemID:    it.ItemID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}

	out := Order{
		ID:                  o.ID,
		OrderNumber:         o.OrderNumber,
		CustomerID:          o.CustomerID,
		MerchantID:          o.MerchantID,
		DriverID:            o.DriverID,
		Items:               items,
		Subtotal:            o.Subtotal,
		DeliveryFee:         o.DeliveryFee,
		Tax:                 o.Tax,
		Discount:            o.Discount,
		TotalAmount:         o.TotalAmount,
		Status:              string(o.Status),
		PaymentStatus:       string(o.PaymentStatus),
		PaymentMethod:       string(o.PaymentMethod),
		DeliveryAddress:     o.DeliveryAddress,
		DeliveryLocation:    GeoPoint{Lat: o.DeliveryLocation.Lat, Lng: o.DeliveryLocation.Lng},
		DeliveryDistanceKM:  o.DeliveryDistanceKM,
		SpecialInstructions: o.SpecialInstructions,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
	if !o.ActualDeliveryTime.IsZero() {
		t := o.ActualDeliveryTime
		out.ActualDeliveryTime = &t
	}
	return out
}

func OrdersToJSON(orders []entities.Order) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderEntityToJSON(o))
	}
	return out
}

func ItemsToEntities(items []LineItem) []entities.LineItem {
	out := make([]entities.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, entities.LineItem{
			ItemID:    it.ItemID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	return out
}

func AssignmentEntityToJSON(a entities.Assignment) Assignment {
	out := Assignment{
		ID:         a.ID,
		OrderID:    a.OrderID,
		DriverID:   a.DriverID,
		Status:     string(a.Status),
		AssignedAt: a.AssignedAt,
	}
	if !a.RespondedAt.IsZero() {
		t := a.RespondedAt
		out.RespondedAt = &t
	}
	return out
}

func NotificationEntityToJSON(n entities.Notification) Notification {
	return Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Body:      n.Body,
		Type:      string(n.Type),
		OrderID:   n.OrderID,
		CreatedAt: n.CreatedAt,
	}
}
