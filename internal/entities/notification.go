package entities

import "time"

type NotificationType string

const (
	NotificationOrderUpdate NotificationType = "order_update"
	NotificationEscalation  NotificationType = "escalation"
)

// Notification is a fire-and-forget message row. Creation is at-least-once
// per triggering transition; duplicates are collapsed by the
// (order_id, transition, user_id) uniqueness at the store.
type Notification struct {
	ID         string
	UserID     string
	Title      string
	Body       string
	Type       NotificationType
	OrderID    string
	Transition string
	CreatedAt  time.Time
}
