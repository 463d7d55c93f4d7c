package repo

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/swiftdish/order-service/internal/entities"
)

var assignmentColumns = []string{
	"id", "order_id", "driver_id", "status", "assigned_at", "responded_at",
}

// CreateAssignment records an offer of an order to one driver. Re-offering
// the same pair is a no-op thanks to the (order_id, driver_id) uniqueness.
func (r *postgresRepo) CreateAssignment(ctx context.Context, a entities.Assignment) error {
	query, args := r.qb.Insert("assignments").
		Columns("id", "order_id", "driver_id", "status").
		Values(a.ID, a.OrderID, a.DriverID, string(a.Status)).
		Suffix("ON CONFLICT (order_id, driver_id) DO NOTHING").
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return storeErr("failed to create assignment", err)
	}
	return nil
}

func (r *postgresRepo) GetAssignment(ctx context.Context, assignmentID string) (entities.Assignment, error) {
	query, args := r.qb.Select(assignmentColumns...).
		From("assignments").
		Where(sq.Eq{"id": assignmentID}).
		MustSql()

	var row Assignment
	err := r.getContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Assignment{}, entities.ErrAssignmentNotFound
	}
	if err != nil {
		return entities.Assignment{}, storeErr("failed to get assignment", err)
	}
	return AssignmentToEntity(row), nil
}

func (r *postgresRepo) ListAssignmentsByOrder(ctx context.Context, orderID string) ([]entities.Assignment, error) {
	query, args := r.qb.Select(assignmentColumns...).
		From("assignments").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("assigned_at ASC").
		MustSql()

	var rows []Assignment
	if err := r.selectContext(ctx, &rows, query, args...); err != nil {
		return nil, storeErr("failed to select assignments", err)
	}
	out := make([]entities.Assignment, 0, len(rows))
	for _, row := range rows {
		out = append(out, AssignmentToEntity(row))
	}
	return out, nil
}

// MarkAccepted upserts the winning driver's assignment row. The winner may
// not have a pre-created offer (on-demand pull), hence the upsert.
func (r *postgresRepo) MarkAccepted(ctx context.Context, assignmentID, orderID, driverID string) error {
	query, args := r.qb.Insert("assignments").
		Columns("id", "order_id", "driver_id", "status", "responded_at").
		Values(assignmentID, orderID, driverID, string(entities.AssignmentAccepted), sq.Expr("NOW()")).
		Suffix("ON CONFLICT (order_id, driver_id) DO UPDATE SET status = ?, responded_at = NOW()", string(entities.AssignmentAccepted)).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return storeErr("failed to mark assignment accepted", err)
	}
	return nil
}

// RejectPending force-rejects every still-pending assignment for the order,
// optionally sparing one driver (the accept winner).
func (r *postgresRepo) RejectPending(ctx context.Context, orderID, exceptDriverID string) error {
	q := r.qb.Update("assignments").
		Set("status", string(entities.AssignmentRejected)).
		Set("responded_at", sq.Expr("NOW()")).
		Where(sq.Eq{"order_id": orderID, "status": string(entities.AssignmentPending)})
	if exceptDriverID != "" {
		q = q.Where(sq.NotEq{"driver_id": exceptDriverID})
	}
	query, args := q.MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return storeErr("failed to reject pending assignments", err)
	}
	return nil
}

// RejectAssignment marks exactly one pending assignment rejected. False
// means the row was missing, someone else's, or already responded.
func (r *postgresRepo) RejectAssignment(ctx context.Context, assignmentID, driverID string) (bool, error) {
	query, args := r.qb.Update("assignments").
		Set("status", string(entities.AssignmentRejected)).
		Set("responded_at", sq.Expr("NOW()")).
		Where(sq.Eq{
			"id":        assignmentID,
			"driver_id": driverID,
			"status":    string(entities.AssignmentPending),
		}).
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return false, storeErr("failed to reject assignment", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("failed to read rows affected", err)
	}
	return n == 1, nil
}
