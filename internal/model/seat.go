package model

import (
	"strconv"
	"time"
)

// Seat categories.  GENERAL seats use the session's general price,
// VIP seats the VIP price; both are frozen onto the seat row when the
// seating chart is generated.
const (
	SeatGeneral = "GENERAL"
	SeatVIP     = "VIP"
)

// Seat describes one reservable place in a session's seating chart.
// Seats are immutable catalog facts: created once per session, never
// mutated and never deleted while the session is bookable.  Current
// availability is not stored here; it is derived at read time from the
// seat's reservation rows.
//
// Fields:
//  ID         – primary key identifier.
//  SessionID  – session to which this seat belongs.
//  RowLabel   – letter or string designating the row (e.g. "A").
//  SeatNumber – number of the seat within the row (1-based).
//  SeatType   – category of the seat (GENERAL, VIP).
//  PriceCents – price in cents for this seat.
//  CreatedAt  – creation timestamp.
type Seat struct {
	ID         uint64    // seats.id
	SessionID  uint64    // seats.session_id
	RowLabel   string    // seats.row_label
	SeatNumber uint32    // seats.seat_number
	SeatType   string    // seats.seat_type
	PriceCents uint32    // seats.price_cents
	CreatedAt  time.Time // seats.created_at
}

// Label returns the human readable seat position, e.g. "A7".
func (s Seat) Label() string {
	return s.RowLabel + strconv.FormatUint(uint64(s.SeatNumber), 10)
}
