// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// string matching: state conflicts map to 400/409 responses, ownership
// violations to 403, and missing rows to 404.
package repository

import (
	"errors"
	"fmt"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state, such as deleting an event that still has bookings
// or cancelling a booking that is not confirmed.
var ErrConflict = errors.New("conflict")

// ErrEventNotFound is returned when no event exists for the given id.
var ErrEventNotFound = errors.New("event not found")

// ErrTierNotFound is returned when a booking or waitlist request names a
// ticket tier the event does not have. Tier names match exactly.
var ErrTierNotFound = errors.New("ticket tier not found")

// ErrDuplicateWaitlist is returned when a user already holds an active
// waitlist entry for the same (event, tier).
var ErrDuplicateWaitlist = errors.New("already on waitlist for this tier")

// ErrSeatsAvailable is returned by waitlist joins when the tier still has
// enough seats: the caller should book directly instead of waiting.
var ErrSeatsAvailable = errors.New("tickets are currently available")

// ErrEmailExists is returned when registering with an email that is
// already taken.
var ErrEmailExists = errors.New("email already exists")

// InsufficientSeatsError reports a failed reservation together with the
// seats actually left, so the caller can surface the real count.
type InsufficientSeatsError struct {
	TierName  string
	Requested uint32
	Available uint32
}

func (e *InsufficientSeatsError) Error() string {
	return fmt.Sprintf("not enough seats available for tier '%s': requested %d, available %d",
		e.TierName, e.Requested, e.Available)
}
