// Package queue defines message payloads exchanged over the message broker.
package queue

// ReservationConfirmedEvent is published after a hold is successfully
// confirmed.  It contains enough information for downstream consumers
// to log, notify, or feed analytics without querying the primary
// database.
type ReservationConfirmedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	UserID        uint64 `json:"user_id"`
	SessionID     uint64 `json:"session_id"`
	SessionTitle  string `json:"session_title"`
	EventID       uint64 `json:"event_id"`
	EventTitle    string `json:"event_title"`
	SeatLabel     string `json:"seat"`
	PriceCents    uint32 `json:"price_cents"`
	ConfirmedAt   string `json:"confirmed_at"`
}
