package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// SessionRepo provides access to event sessions.  Creating a session
// also generates its seating chart; both happen in one transaction so
// a session is never visible without seats.
type SessionRepo struct {
	db    *sql.DB
	seats *SeatRepo
}

// NewSessionRepo returns a SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB, seats *SeatRepo) *SessionRepo {
	return &SessionRepo{db: db, seats: seats}
}

// DB exposes the underlying handle for callers that need to open
// their own transactions.
func (r *SessionRepo) DB() *sql.DB { return r.db }

// CreateWithSeats inserts the session and its full seating chart
// atomically.  The session's ID is populated on success.
func (r *SessionRepo) CreateWithSeats(ctx context.Context, s *model.Session, seats []model.Seat) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `INSERT INTO sessions (event_id, title, starts_at, ends_at) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, s.EventID, s.Title, s.StartsAt.UTC(), s.EndsAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)

	for i := range seats {
		seats[i].SessionID = s.ID
	}
	if err := r.seats.CreateBulkTx(ctx, tx, seats); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID returns a single session.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (model.Session, error) {
	const q = `SELECT id, event_id, title, starts_at, ends_at, created_at, updated_at
	           FROM sessions WHERE id = ?`
	var s model.Session
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.EventID, &s.Title, &s.StartsAt, &s.EndsAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrSessionNotFound
	}
	return s, err
}

// ListByEvent returns all sessions of an event ordered by start time.
func (r *SessionRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Session, error) {
	const q = `SELECT id, event_id, title, starts_at, ends_at, created_at, updated_at
	           FROM sessions WHERE event_id = ? ORDER BY starts_at`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var s model.Session
		if err := rows.Scan(&s.ID, &s.EventID, &s.Title, &s.StartsAt, &s.EndsAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
