package services

import (
	"errors"
)

// Client input errors: surfaced to the caller as-is, no mutation attempted.
var (
	ErrEventNotAvailable     = errors.New("event not available")
	ErrTierNotFound          = errors.New("ticket tier not found")
	ErrQuantityExceedsLimit  = errors.New("quantity exceeds per-order limit")
	ErrAttendeeCountMismatch = errors.New("attendee count must match quantity")
)

// Business-rule rejections decided at reservation time.
var (
	ErrInsufficientInventory = errors.New("not enough tickets remaining")
	ErrTierClosed            = errors.New("ticket tier is not on sale")
)

// ErrStorageConflict is transient; the coordinator retries internally and
// only surfaces it once the attempt budget is spent.
var ErrStorageConflict = errors.New("storage conflict")

// ErrInvariantViolation means remaining would exceed total or a reservation
// could not be compensated. It indicates a logic or integrity bug and is
// always logged for operator investigation.
var ErrInvariantViolation = errors.New("inventory invariant violation")

var ErrOrderNotFound = errors.New("order not found")

var ErrOrderNotCancellable = errors.New("order cannot be cancelled")
