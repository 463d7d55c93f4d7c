package entities

import "time"

// EventStatusNone is the synthetic from-status of the creation event.
const EventStatusNone Status = "none"

// OrderEvent is one change-feed record. Delivery is at-least-once and not
// strictly ordered across reconnects, so consumers must apply-if-newer
// instead of replaying it as a log.
type OrderEvent struct {
	OrderID     string    `json:"order_id"`
	OrderNumber int64     `json:"order_number"`
	FromStatus  Status    `json:"from_status"`
	ToStatus    Status    `json:"to_status"`
	CustomerID  string    `json:"customer_id"`
	MerchantID  string    `json:"merchant_id"`
	DriverID    string    `json:"driver_id,omitempty"`
	ActorRole   ActorRole `json:"actor_role"`
	Resync      bool      `json:"resync,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Transition is the edge label used for notification idempotency keys.
func (e OrderEvent) Transition() string {
	return string(e.FromStatus) + ">" + string(e.ToStatus)
}

// PartyIDs returns every party affected by the event, deduplicated order
// of customer, merchant, driver.
func (e OrderEvent) PartyIDs() []string {
	parties := make([]string, 0, 3)
	for _, id := range []string{e.CustomerID, e.MerchantID, e.DriverID} {
		if id == "" {
			continue
		}
		seen := false
		for _, p := range parties {
			if p == id {
				seen = true
				break
			}
		}
		if !seen {
			parties = append(parties, id)
		}
	}
	return parties
}
