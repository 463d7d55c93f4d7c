package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/swiftdish/order-service/internal/entities"
)

var orderColumns = []string{
	"id", "order_number", "customer_id", "merchant_id", "driver_id",
	"items", "subtotal", "delivery_fee", "tax", "discount", "total_amount",
	"status", "payment_status", "payment_method",
	"delivery_address", "delivery_lat", "delivery_lng", "delivery_distance_km",
	"special_instructions", "created_at", "updated_at", "actual_delivery_time",
}

func (r *postgresRepo) CreateOrder(ctx context.Context, o entities.Order) (entities.Order, error) {
	items, err := marshalItems(o.Items)
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to encode items: %w", err)
	}

	// order_number comes from the orders_number_seq default.
	query, args := r.qb.Insert("orders").
		Columns(
			"id", "customer_id", "merchant_id",
			"items", "subtotal", "delivery_fee", "tax", "discount", "total_amount",
			"status", "payment_status", "payment_method",
			"delivery_address", "delivery_lat", "delivery_lng", "delivery_distance_km",
			"special_instructions",
		).
		Values(
			o.ID, o.CustomerID, o.MerchantID,
			items, o.Subtotal, o.DeliveryFee, o.Tax, o.Discount, o.TotalAmount,
			string(o.Status), string(o.PaymentStatus), string(o.PaymentMethod),
			o.DeliveryAddress, o.DeliveryLocation.Lat, o.DeliveryLocation.Lng, o.DeliveryDistanceKM,
			nullString(o.SpecialInstructions),
		).
		Suffix("RETURNING order_number, created_at, updated_at").
		MustSql()

	var row struct {
		OrderNumber int64     `db:"order_number"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}
	if err := r.getContext(ctx, &row, query, args...); err != nil {
		return entities.Order{}, storeErr("failed to insert order", err)
	}

	o.OrderNumber = row.OrderNumber
	o.CreatedAt = row.CreatedAt
	o.UpdatedAt = row.UpdatedAt
	return o, nil
}

func (r *postgresRepo) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": orderID}).
		MustSql()

	var row Order
	err := r.getContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if err != nil {
		return entities.Order{}, storeErr("failed to get order", err)
	}

	return OrderToEntity(row)
}

// ListByParty returns the orders one party can see, newest first. An empty
// statuses slice means all statuses.
func (r *postgresRepo) ListByParty(ctx context.Context, role entities.ActorRole, partyID string, statuses []entities.Status) ([]entities.Order, error) {
	var col string
	switch role {
	case entities.RoleCustomer:
		col = "customer_id"
	case entities.RoleMerchant:
		col = "merchant_id"
	case entities.RoleDriver:
		col = "driver_id"
	default:
		return nil, fmt.Errorf("%w: role %q has no order set", entities.ErrValidation, role)
	}

	q := r.qb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{col: partyID}).
		OrderBy("created_at DESC")
	if len(statuses) > 0 {
		vals := make([]string, len(statuses))
		for i, s := range statuses {
			vals[i] = string(s)
		}
		q = q.Where(sq.Eq{"status": vals})
	}
	query, args := q.MustSql()

	var rows []Order
	if err := r.selectContext(ctx, &rows, query, args...); err != nil {
		return nil, storeErr("failed to select orders", err)
	}
	return ordersToEntities(rows)
}

// ListAvailable returns ready orders with no driver bound, oldest first so
// stale orders surface at the top of the driver pool.
func (r *postgresRepo) ListAvailable(ctx context.Context) ([]entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"status": string(entities.StatusReady)}).
		Where("driver_id IS NULL").
		OrderBy("updated_at ASC").
		MustSql()

	var rows []Order
	if err := r.selectContext(ctx, &rows, query, args...); err != nil {
		return nil, storeErr("failed to select available orders", err)
	}
	return ordersToEntities(rows)
}

// ListStuckReady returns unassigned ready orders untouched since before.
func (r *postgresRepo) ListStuckReady(ctx context.Context, before time.Time) ([]entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"status": string(entities.StatusReady)}).
		Where("driver_id IS NULL").
		Where(sq.Lt{"updated_at": before}).
		OrderBy("updated_at ASC").
		MustSql()

	var rows []Order
	if err := r.selectContext(ctx, &rows, query, args...); err != nil {
		return nil, storeErr("failed to select stuck orders", err)
	}
	return ordersToEntities(rows)
}

// TransitionStatus is the single conditional write every ledger mutation
// funnels through. The WHERE on the current status makes it a compare-and-
// swap: false means another writer got there first and the caller must
// re-read.
func (r *postgresRepo) TransitionStatus(ctx context.Context, orderID string, from, to entities.Status, opts entities.TransitionEffects) (bool, error) {
	q := r.qb.Update("orders").
		Set("status", string(to)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": orderID, "status": string(from)})
	if opts.StampDelivery {
		q = q.Set("actual_delivery_time", sq.Expr("NOW()"))
	}
	if opts.MarkPaid {
		q = q.Set("payment_status", string(entities.PaymentPaid))
	}
	if opts.ClearDriver {
		q = q.Set("driver_id", nil)
	}
	query, args := q.MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return false, storeErr("failed to transition order", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("failed to read rows affected", err)
	}
	return n == 1, nil
}

// AcceptOrder atomically binds a driver to a ready unassigned order. Zero
// rows affected means the race was lost (or the id is stale); the caller
// distinguishes the two by re-reading.
func (r *postgresRepo) AcceptOrder(ctx context.Context, orderID, driverID string) (bool, error) {
	query, args := r.qb.Update("orders").
		Set("driver_id", driverID).
		Set("status", string(entities.StatusAssigned)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": orderID, "status": string(entities.StatusReady)}).
		Where("driver_id IS NULL").
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return false, storeErr("failed to accept order", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("failed to read rows affected", err)
	}
	return n == 1, nil
}

func ordersToEntities(rows []Order) ([]entities.Order, error) {
	out := make([]entities.Order, 0, len(rows))
	for _, row := range rows {
		o, err := OrderToEntity(row)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
