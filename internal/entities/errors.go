package entities

import "errors"

var (
	// ErrValidation covers malformed input the caller can correct.
	ErrValidation = errors.New("invalid input")
	// ErrInvalidAmount is a billing-specific validation failure.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrIllegalTransition means the requested edge is not in the state
	// graph, or the caller raced on a stale status.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrAlreadyTaken means another driver won the accept race.
	ErrAlreadyTaken = errors.New("order already taken")

	ErrOrderNotFound      = errors.New("order not found")
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrStoreUnavailable wraps transient storage failures; read-only
	// callers may retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")
)
