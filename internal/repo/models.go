package repo

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/swiftdish/order-service/internal/entities"
)

type Order struct {
	ID                  string          `db:"id"`
	OrderNumber         int64           `db:"order_number"`
	CustomerID          string          `db:"customer_id"`
	MerchantID          string          `db:"merchant_id"`
	DriverID            sql.NullString  `db:"driver_id"`
	Items               json.RawMessage `db:"items"`
	Subtotal            int64           `db:"subtotal"`
	DeliveryFee         int64           `db:"delivery_fee"`
	Tax                 int64           `db:"tax"`
	Discount            int64           `db:"discount"`
	TotalAmount         int64           `db:"total_amount"`
	Status              string          `db:"status"`
	PaymentStatus       string          `db:"payment_status"`
	PaymentMethod       string          `db:"payment_method"`
	DeliveryAddress     string          `db:"delivery_address"`
	DeliveryLat         float64         `db:"delivery_lat"`
	DeliveryLng         float64         `db:"delivery_lng"`
	DeliveryDistanceKM  float64         `db:"delivery_distance_km"`
	SpecialInstructions sql.NullString  `db:"special_instructions"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
	ActualDeliveryTime  sql.NullTime    `db:"actual_delivery_time"`
}

type Assignment struct {
	ID          string       `db:"id"`
	OrderID     string       `db:"order_id"`
	DriverID    string       `db:"driver_id"`
	Status      string       `db:"status"`
	AssignedAt  time.Time    `db:"assigned_at"`
	RespondedAt sql.NullTime `db:"responded_at"`
}

type Notification struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	Title      string    `db:"title"`
	Body       string    `db:"body"`
	Type       string    `db:"type"`
	OrderID    string    `db:"order_id"`
	Transition string    `db:"transition"`
	CreatedAt  time.Time `db:"created_at"`
}

// lineItem is the JSONB shape of one snapshot cart line.
type lineItem struct {
	ItemID    string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"qty"`
}

func marshalItems(items []entities.LineItem) (json.RawMessage, error) {
	rows := make([]lineItem, 0, len(items))
	for _, it := range items {
		rows = append(rows, lineItem{
			ItemID:    it.ItemID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	return json.Marshal(rows)
}

func unmarshalItems(raw json.RawMessage) ([]entities.LineItem, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rows []lineItem
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	items := make([]entities.LineItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, entities.LineItem{
			ItemID:    r.ItemID,
			Name:      r.Name,
			UnitPrice: r.UnitPrice,
			Quantity:  r.Quantity,
		})
	}
	return items, nil
}

func OrderToEntity(o Order) (entities.Order, error) {
	items, err := unmarshalItems(o.Items)
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to decode items: %w", err)
	}

	out := entities.Order{
		ID:                  o.ID,
		OrderNumber:         o.OrderNumber,
		CustomerID:          o.CustomerID,
		MerchantID:          o.MerchantID,
		DriverID:            nullStringToString(o.DriverID),
		Items:               items,
		Subtotal:            o.Subtotal,
		DeliveryFee:         o.DeliveryFee,
		Tax:                 o.Tax,
		Discount:            o.Discount,
		TotalAmount:         o.TotalAmount,
		Status:              entities.Status(o.Status),
		PaymentStatus:       entities.PaymentStatus(o.PaymentStatus),
		PaymentMethod:       entities.PaymentMethod(o.PaymentMethod),
		DeliveryAddress:     o.DeliveryAddress,
		DeliveryLocation:    entities.GeoPoint{Lat: o.DeliveryLat, Lng: o.DeliveryLng},
		DeliveryDistanceKM:  o.DeliveryDistanceKM,
		SpecialInstructions: nullStringToString(o.SpecialInstructions),
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
	if o.ActualDeliveryTime.Valid {
		out.ActualDeliveryTime = o.ActualDeliveryTime.Time
	}
	return out, nil
}

func AssignmentToEntity(a Assignment) entities.Assignment {
	out := entities.Assignment{
		ID:         a.ID,
		OrderID:    a.OrderID,
		DriverID:   a.DriverID,
		Status:     entities.AssignmentStatus(a.Status),
		AssignedAt: a.AssignedAt,
	}
	if a.RespondedAt.Valid {
		out.RespondedAt = a.RespondedAt.Time
	}
	return out
}

func NotificationToEntity(n Notification) entities.Notification {
	return entities.Notification{
		ID:         n.ID,
		UserID:     n.UserID,
		Title:      n.Title,
		Body:       n.Body,
		Type:       entities.NotificationType(n.Type),
		OrderID:    n.OrderID,
		Transition: n.Transition,
		CreatedAt:  n.CreatedAt,
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// storeErr keeps both the transient sentinel and the driver error on the
// chain so callers can errors.Is either way.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(entities.ErrStoreUnavailable, err))
}
