package booking

import (
	"time"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// SeatStatus is the derived availability of a seat.  It is never
// persisted; it is computed per read from the seat's reservation rows
// and a single "now" shared across the whole batch.
type SeatStatus string

const (
	StatusAvailable SeatStatus = "AVAILABLE"
	StatusHeld      SeatStatus = "HELD"
	StatusBooked    SeatStatus = "BOOKED"
)

// SeatReservations pairs a seat with its non-cancelled reservation
// rows, as loaded in one snapshot by the ledger.
type SeatReservations struct {
	Seat         model.Seat
	Reservations []model.Reservation
}

// SeatStatusEntry is one seat's projected availability as exposed to
// observers and to the session seat listing.
type SeatStatusEntry struct {
	SeatID     uint64     `json:"seat_id"`
	RowLabel   string     `json:"row_label"`
	SeatNumber uint32     `json:"seat_number"`
	SeatType   string     `json:"seat_type"`
	PriceCents uint32     `json:"price_cents"`
	Status     SeatStatus `json:"status"`
}

// Project derives a seat's display status from its reservation rows at
// the given instant.  BOOKED wins over HELD; an expired PENDING row is
// inert and never rewritten.  Pure function: same rows and same now
// always yield the same status.
func Project(rows []model.Reservation, now time.Time) SeatStatus {
	held := false
	for _, r := range rows {
		switch r.Status {
		case model.ReservationConfirmed:
			return StatusBooked
		case model.ReservationPending:
			if r.HoldExpiresAt != nil && r.HoldExpiresAt.After(now) {
				held = true
			}
		}
	}
	if held {
		return StatusHeld
	}
	return StatusAvailable
}

// ProjectAll evaluates a whole session snapshot against one shared
// timestamp so that no seat flips state mid-listing.  The input order
// is preserved.
func ProjectAll(seats []SeatReservations, now time.Time) []SeatStatusEntry {
	out := make([]SeatStatusEntry, 0, len(seats))
	for _, sr := range seats {
		out = append(out, SeatStatusEntry{
			SeatID:     sr.Seat.ID,
			RowLabel:   sr.Seat.RowLabel,
			SeatNumber: sr.Seat.SeatNumber,
			SeatType:   sr.Seat.SeatType,
			PriceCents: sr.Seat.PriceCents,
			Status:     Project(sr.Reservations, now),
		})
	}
	return out
}
