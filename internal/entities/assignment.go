package entities

import "time"

type AssignmentStatus string

const (
	AssignmentPending  AssignmentStatus = "pending"
	AssignmentAccepted AssignmentStatus = "accepted"
	AssignmentRejected AssignmentStatus = "rejected"
)

// Assignment is the audit record of one driver's offer/response for one
// order. The order's driver_id, not this row, is the source of truth for
// ownership. At most one assignment per order ever becomes accepted.
type Assignment struct {
	ID          string
	OrderID     string
	DriverID    string
	Status      AssignmentStatus
	AssignedAt  time.Time
	RespondedAt time.Time // zero while pending
}
