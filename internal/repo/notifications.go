package repo

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/swiftdish/order-service/internal/entities"
)

// SaveNotification inserts one notification row. The unique key on
// (order_id, transition, user_id) collapses duplicates from the
// at-least-once feed; the bool reports whether this call created the row.
func (r *postgresRepo) SaveNotification(ctx context.Context, n entities.Notification) (bool, error) {
	query, args := r.qb.Insert("notifications").
		Columns("id", "user_id", "title", "body", "type", "order_id", "transition").
		Values(n.ID, n.UserID, n.Title, n.Body, string(n.Type), n.OrderID, n.Transition).
		Suffix("ON CONFLICT (order_id, transition, user_id) DO NOTHING").
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return false, storeErr("failed to save notification", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("failed to read rows affected", err)
	}
	return inserted == 1, nil
}

func (r *postgresRepo) ListNotificationsByUser(ctx context.Context, userID string, limit int) ([]entities.Notification, error) {
	query, args := r.qb.Select("id", "user_id", "title", "body", "type", "order_id", "transition", "created_at").
		From("notifications").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		MustSql()

	var rows []Notification
	if err := r.selectContext(ctx, &rows, query, args...); err != nil {
		return nil, storeErr("failed to select notifications", err)
	}
	out := make([]entities.Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, NotificationToEntity(row))
	}
	return out, nil
}
