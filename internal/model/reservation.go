package model

import "time"

// Reservation statuses as stored in the reservations.status column.
// A PENDING row whose hold has expired is never rewritten; readers
// simply stop counting it as active.
const (
	ReservationPending   = "PENDING"
	ReservationConfirmed = "CONFIRMED"
	ReservationCancelled = "CANCELLED"
)

// Reservation records one user's claim on one seat.  Multiple rows may
// exist for the same seat over time; at most one of them may be active
// (CONFIRMED, or PENDING with an unexpired hold) at any instant.
//
// Fields:
//  ID            – primary key identifier.
//  SeatID        – seat being claimed.
//  SessionID     – session the seat belongs to (denormalized for
//                  conflict queries).
//  UserID        – holder of the claim.
//  Status        – PENDING, CONFIRMED or CANCELLED.
//  HoldExpiresAt – end of the hold window; set only while PENDING.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Reservation struct {
	ID            uint64     // reservations.id
	SeatID        uint64     // reservations.seat_id
	SessionID     uint64     // reservations.session_id
	UserID        uint64     // reservations.user_id
	Status        string     // reservations.status
	HoldExpiresAt *time.Time // reservations.hold_expires_at (nullable)
	CreatedAt     time.Time  // reservations.created_at
	UpdatedAt     time.Time  // reservations.updated_at
}

// Active reports whether the reservation counts against the
// one-active-claim-per-seat invariant at the given instant.  A
// CONFIRMED row is always active; a PENDING row is active only while
// its hold window is open.
func (r Reservation) Active(now time.Time) bool {
	switch r.Status {
	case ReservationConfirmed:
		return true
	case ReservationPending:
		return r.HoldExpiresAt != nil && r.HoldExpiresAt.After(now)
	default:
		return false
	}
}
