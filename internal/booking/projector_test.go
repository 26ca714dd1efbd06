package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

func TestProject(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		rows []model.Reservation
		want SeatStatus
	}{
		{
			name: "no reservations",
			rows: nil,
			want: StatusAvailable,
		},
		{
			name: "active hold",
			rows: []model.Reservation{
				{Status: model.ReservationPending, HoldExpiresAt: &future},
			},
			want: StatusHeld,
		},
		{
			name: "expired hold",
			rows: []model.Reservation{
				{Status: model.ReservationPending, HoldExpiresAt: &past},
			},
			want: StatusAvailable,
		},
		{
			name: "hold expiring exactly now",
			rows: []model.Reservation{
				{Status: model.ReservationPending, HoldExpiresAt: &now},
			},
			want: StatusAvailable,
		},
		{
			name: "pending without expiry",
			rows: []model.Reservation{
				{Status: model.ReservationPending},
			},
			want: StatusAvailable,
		},
		{
			name: "confirmed",
			rows: []model.Reservation{
				{Status: model.ReservationConfirmed},
			},
			want: StatusBooked,
		},
		{
			name: "confirmed wins over active hold",
			rows: []model.Reservation{
				{Status: model.ReservationPending, HoldExpiresAt: &future},
				{Status: model.ReservationConfirmed},
			},
			want: StatusBooked,
		},
		{
			name: "cancelled rows are ignored",
			rows: []model.Reservation{
				{Status: model.ReservationCancelled},
			},
			want: StatusAvailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Project(tt.rows, now))
			// Pure function: a second evaluation with the same inputs
			// yields the same answer.
			assert.Equal(t, tt.want, Project(tt.rows, now))
		})
	}
}

func TestProjectAllSharedInstant(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Minute)

	seats := []SeatReservations{
		{
			Seat: model.Seat{ID: 3, RowLabel: "A", SeatNumber: 3, SeatType: model.SeatVIP, PriceCents: 5000},
			Reservations: []model.Reservation{
				{Status: model.ReservationConfirmed},
			},
		},
		{
			Seat: model.Seat{ID: 1, RowLabel: "A", SeatNumber: 1, SeatType: model.SeatGeneral, PriceCents: 1500},
			Reservations: []model.Reservation{
				{Status: model.ReservationPending, HoldExpiresAt: &future},
			},
		},
		{
			Seat: model.Seat{ID: 2, RowLabel: "A", SeatNumber: 2, SeatType: model.SeatGeneral, PriceCents: 1500},
		},
	}

	out := ProjectAll(seats, now)
	assert.Equal(t, []SeatStatusEntry{
		{SeatID: 3, RowLabel: "A", SeatNumber: 3, SeatType: model.SeatVIP, PriceCents: 5000, Status: StatusBooked},
		{SeatID: 1, RowLabel: "A", SeatNumber: 1, SeatType: model.SeatGeneral, PriceCents: 1500, Status: StatusHeld},
		{SeatID: 2, RowLabel: "A", SeatNumber: 2, SeatType: model.SeatGeneral, PriceCents: 1500, Status: StatusAvailable},
	}, out)
}
