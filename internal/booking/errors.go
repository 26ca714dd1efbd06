// Package booking implements the seat reservation core: the projection
// of seat availability from ledger rows, and the transactional hold,
// confirm and cancel operations that arbitrate concurrent claims.
package booking

import "errors"

// Sentinel errors returned by the reservation service.  Handlers
// compare with errors.Is and translate them into HTTP statuses.
var (
	// ErrSeatUnavailable is returned when any requested seat already
	// carries an active reservation by another user.  Expected and
	// user-facing; the whole batch is rejected, never retried
	// automatically.
	ErrSeatUnavailable = errors.New("seat unavailable")

	// ErrHoldExpired is returned when a confirm arrives after the hold
	// window has closed.  The client should place a fresh hold.
	ErrHoldExpired = errors.New("hold expired")

	// ErrNotFound is returned for unknown reservations and for
	// reservations not owned by the caller; ownership failures are
	// deliberately indistinguishable from missing rows.
	ErrNotFound = errors.New("reservation not found")

	// ErrTransientStore is returned when the ledger transaction was
	// aborted by contention (deadlock, lock wait timeout).  Safe to
	// retry the whole operation.
	ErrTransientStore = errors.New("transient store error")
)
