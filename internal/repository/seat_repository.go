package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// SeatRepo provides access to the immutable seat catalog.  Seats are
// written exactly once, when a session's seating chart is generated;
// reservation state never touches this table.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// CreateBulkTx inserts multiple seats in a single statement within the
// provided transaction.  The ID fields of the passed values are not
// populated.  Passing an empty slice has no effect and returns nil.
func (r *SeatRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO seats (session_id, row_label, seat_number, seat_type, price_cents) VALUES `
	args := make([]any, 0, len(seats)*5)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, s.SessionID, s.RowLabel, s.SeatNumber, s.SeatType, s.PriceCents)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// GetBySession retrieves all seats of a session ordered by row label
// then seat number.
func (r *SeatRepo) GetBySession(ctx context.Context, sessionID uint64) ([]model.Seat, error) {
	const q = `SELECT id, session_id, row_label, seat_number, seat_type, price_cents, created_at
	           FROM seats
	           WHERE session_id = ?
	           ORDER BY row_label, seat_number`
	rows, err := r.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.SessionID, &s.RowLabel, &s.SeatNumber, &s.SeatType, &s.PriceCents, &s.CreatedAt); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// CountBySession returns the number of seats in a session's chart.
func (r *SeatRepo) CountBySession(ctx context.Context, sessionID uint64) (uint64, error) {
	var n uint64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seats WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
