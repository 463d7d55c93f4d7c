package notify

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/swiftdish/order-service/internal/entities"
)

// NotificationsFor maps one transition to the parties it must reach. The
// table is static; unknown edges (including the sweep's ready→ready
// re-announce) produce nothing.
func NotificationsFor(e entities.OrderEvent) []entities.Notification {
	type message struct {
		userID string
		title  string
		body   string
	}

	num := e.OrderNumber
	var msgs []message

	switch {
	case e.ToStatus == entities.StatusPending:
		msgs = append(msgs, message{e.MerchantID, "New order received",
			fmt.Sprintf("Order #%d is waiting for your confirmation.", num)})

	case e.ToStatus == entities.StatusConfirmed:
		msgs = append(msgs, message{e.CustomerID, "Order confirmed",
			fmt.Sprintf("Order #%d was confirmed by the restaurant.", num)})

	case e.ToStatus == entities.StatusPreparing:
		msgs = append(msgs, message{e.CustomerID, "Order being prepared",
			fmt.Sprintf("Order #%d is being prepared.", num)})

	case e.ToStatus == entities.StatusAssigned && e.FromStatus == entities.StatusReady:
		if e.DriverID != "" {
			msgs = append(msgs, message{e.DriverID, "Delivery assigned",
				fmt.Sprintf("You are delivering order #%d.", num)})
		}
		msgs = append(msgs, message{e.CustomerID, "Driver assigned",
			fmt.Sprintf("A driver accepted order #%d.", num)})

	case e.ToStatus == entities.StatusPickedUp:
		msgs = append(msgs, message{e.CustomerID, "Order picked up",
			fmt.Sprintf("Order #%d is on its way.", num)})

	case e.ToStatus == entities.StatusDelivered:
		msgs = append(msgs, message{e.CustomerID, "Order delivered",
			fmt.Sprintf("Order #%d was delivered. Enjoy!", num)})

	case e.ToStatus == entities.StatusCancelled:
		body := fmt.Sprintf("Order #%d was cancelled.", num)
		msgs = append(msgs, message{e.CustomerID, "Order cancelled", body})
		msgs = append(msgs, message{e.MerchantID, "Order cancelled", body})
		if e.DriverID != "" {
			msgs = append(msgs, message{e.DriverID, "Delivery cancelled", body})
		}
	}

	out := make([]entities.Notification, 0, len(msgs))
	for _, m := range msgs {
		if m.userID == "" {
			continue
		}
		out = append(out, entities.Notification{
			ID:         uuid.NewString(),
			UserID:     m.userID,
			Title:      m.title,
			Body:       m.body,
			Type:       entities.NotificationOrderUpdate,
			OrderID:    e.OrderID,
			Transition: e.Transition(),
		})
	}
	return out
}
