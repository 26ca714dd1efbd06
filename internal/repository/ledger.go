package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-seat-reservation/internal/booking"
	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// LedgerRepo is the MySQL-backed reservation ledger: the source of
// truth for seat state and the only writer of reservation rows.  It
// implements booking.Ledger.  Conflict arbitration relies on InnoDB
// row locks taken inside a transaction; methods documented as tx-only
// must run within WithTx.
type LedgerRepo struct {
	db *sql.DB
}

// NewLedgerRepo returns a LedgerRepo bound to the provided database.
func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

type txKey struct{}

// WithTx runs fn inside one transaction, committing on nil and rolling
// back on error.  A nested call joins the surrounding transaction.
// Contention aborts (deadlock, lock wait timeout) map to
// booking.ErrTransientStore so callers know a retry is safe.
func (r *LedgerRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return mapStoreErr(err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return mapStoreErr(err)
	}
	if err := tx.Commit(); err != nil {
		return mapStoreErr(err)
	}
	return nil
}

func txFrom(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *LedgerRepo) q(ctx context.Context) querier {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return r.db
}

// mapStoreErr converts MySQL contention aborts into the transient
// sentinel; everything else passes through.
func mapStoreErr(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// 1213 = deadlock victim, 1205 = lock wait timeout
		if myErr.Number == 1213 || myErr.Number == 1205 {
			return fmt.Errorf("%w: %v", booking.ErrTransientStore, err)
		}
	}
	return err
}

// IsNotFound reports whether err means "no such row" in this store.
func (r *LedgerRepo) IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// LockSeats loads the requested seats of a session and locks their
// rows in ascending ID order for the remainder of the transaction.
// Concurrent holds touching overlapping seat sets serialize here.
// Tx-only.
func (r *LedgerRepo) LockSeats(ctx context.Context, sessionID uint64, seatIDs []uint64) ([]model.Seat, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	query := `SELECT id, session_id, row_label, seat_number, seat_type, price_cents, created_at
	          FROM seats
	          WHERE session_id = ? AND id IN (` + placeholders(len(seatIDs)) + `)
	          ORDER BY id
	          FOR UPDATE`
	args := make([]any, 0, len(seatIDs)+1)
	args = append(args, sessionID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	rows, err := r.q(ctx).QueryContext(ctx, query, args...)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// ActiveOnSeats returns every reservation touching the given seats
// that is CONFIRMED or PENDING with an unexpired hold at the supplied
// instant.  Expired PENDING rows are inert and never returned.
func (r *LedgerRepo) ActiveOnSeats(ctx context.Context, sessionID uint64, seatIDs []uint64, now time.Time) ([]model.Reservation, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	query := `SELECT id, seat_id, session_id, user_id, status, hold_expires_at, created_at, updated_at
	          FROM reservations
	          WHERE session_id = ? AND seat_id IN (` + placeholders(len(seatIDs)) + `)
	            AND (status = 'CONFIRMED' OR (status = 'PENDING' AND hold_expires_at > ?))`
	args := make([]any, 0, len(seatIDs)+2)
	args = append(args, sessionID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	args = append(args, now.UTC())
	rows, err := r.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

// CreatePending inserts the given PENDING rows and populates their
// IDs.  Rows are inserted one by one inside the surrounding
// transaction, so the batch remains all-or-nothing.  Tx-only.
func (r *LedgerRepo) CreatePending(ctx context.Context, res []*model.Reservation) error {
	const q = `INSERT INTO reservations (seat_id, session_id, user_id, status, hold_expires_at)
	           VALUES (?, ?, ?, ?, ?)`
	for _, rec := range res {
		var exp any
		if rec.HoldExpiresAt != nil {
			exp = rec.HoldExpiresAt.UTC()
		}
		result, err := r.q(ctx).ExecContext(ctx, q, rec.SeatID, rec.SessionID, rec.UserID, rec.Status, exp)
		if err != nil {
			return err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		rec.ID = uint64(id)
	}
	return nil
}

// GetForUpdate loads one reservation and locks its row.  Tx-only.
func (r *LedgerRepo) GetForUpdate(ctx context.Context, id uint64) (model.Reservation, error) {
	const q = `SELECT id, seat_id, session_id, user_id, status, hold_expires_at, created_at, updated_at
	           FROM reservations
	           WHERE id = ?
	           FOR UPDATE`
	return scanReservation(r.q(ctx).QueryRowContext(ctx, q, id))
}

// OtherConfirmedOnSeat reports whether a different reservation on the
// same seat is already CONFIRMED.
func (r *LedgerRepo) OtherConfirmedOnSeat(ctx context.Context, seatID, excludeID uint64) (bool, error) {
	const q = `SELECT EXISTS(
	             SELECT 1 FROM reservations
	             WHERE seat_id = ? AND id <> ? AND status = 'CONFIRMED')`
	var taken bool
	if err := r.q(ctx).QueryRowContext(ctx, q, seatID, excludeID).Scan(&taken); err != nil {
		return false, err
	}
	return taken, nil
}

// MarkConfirmed sets the row CONFIRMED and clears the hold window.
// Tx-only.
func (r *LedgerRepo) MarkConfirmed(ctx context.Context, id uint64) error {
	const q = `UPDATE reservations SET status = 'CONFIRMED', hold_expires_at = NULL WHERE id = ?`
	_, err := r.q(ctx).ExecContext(ctx, q, id)
	return err
}

// MarkCancelled sets the row CANCELLED.  Tx-only.
func (r *LedgerRepo) MarkCancelled(ctx context.Context, id uint64) error {
	const q = `UPDATE reservations SET status = 'CANCELLED', hold_expires_at = NULL WHERE id = ?`
	_, err := r.q(ctx).ExecContext(ctx, q, id)
	return err
}

// SessionSnapshot loads every seat of a session together with its
// non-cancelled reservation rows, ordered by row label then seat
// number.  Plain consistent read; takes no locks, so it is safe to
// call concurrently with writers.
func (r *LedgerRepo) SessionSnapshot(ctx context.Context, sessionID uint64) ([]booking.SeatReservations, error) {
	const q = `SELECT s.id, s.session_id, s.row_label, s.seat_number, s.seat_type, s.price_cents, s.created_at,
	                  r.id, r.seat_id, r.session_id, r.user_id, r.status, r.hold_expires_at
	           FROM seats s
	           LEFT JOIN reservations r
	             ON r.seat_id = s.id AND r.status IN ('PENDING', 'CONFIRMED')
	           WHERE s.session_id = ?
	           ORDER BY s.row_label, s.seat_number, r.id`
	rows, err := r.q(ctx).QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]booking.SeatReservations, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var s model.Seat
		var resID, seatID, sessID, userID sql.NullInt64
		var status sql.NullString
		var expires sql.NullTime
		if err := rows.Scan(
			&s.ID, &s.SessionID, &s.RowLabel, &s.SeatNumber, &s.SeatType, &s.PriceCents, &s.CreatedAt,
			&resID, &seatID, &sessID, &userID, &status, &expires,
		); err != nil {
			return nil, err
		}
		idx, ok := index[s.ID]
		if !ok {
			idx = len(out)
			index[s.ID] = idx
			out = append(out, booking.SeatReservations{Seat: s})
		}
		if resID.Valid {
			rec := model.Reservation{
				ID:        uint64(resID.Int64),
				SeatID:    uint64(seatID.Int64),
				SessionID: uint64(sessID.Int64),
				UserID:    uint64(userID.Int64),
				Status:    status.String,
			}
			if expires.Valid {
				t := expires.Time
				rec.HoldExpiresAt = &t
			}
			out[idx].Reservations = append(out[idx].Reservations, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReservationDetail is a reservation joined with its seat, session and
// event for display to customers and admins.
type ReservationDetail struct {
	ID            uint64     `json:"id"`
	Status        string     `json:"status"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	SeatID        uint64     `json:"seat_id"`
	RowLabel      string     `json:"row_label"`
	SeatNumber    uint32     `json:"seat_number"`
	SeatType      string     `json:"seat_type"`
	PriceCents    uint32     `json:"price_cents"`
	SessionID     uint64     `json:"session_id"`
	SessionTitle  string     `json:"session_title"`
	EventID       uint64     `json:"event_id"`
	EventTitle    string     `json:"event_title"`
	UserID        uint64     `json:"user_id,omitempty"`
	UserEmail     string     `json:"user_email,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

const detailSelect = `SELECT r.id, r.status, r.hold_expires_at, r.created_at,
	       st.id, st.row_label, st.seat_number, st.seat_type, st.price_cents,
	       ss.id, ss.title, e.id, e.title,
	       u.id, u.email
	FROM reservations r
	JOIN seats st ON st.id = r.seat_id
	JOIN sessions ss ON ss.id = r.session_id
	JOIN events e ON e.id = ss.event_id
	JOIN users u ON u.id = r.user_id`

// GetDetail returns the joined view of one reservation, used when
// publishing the confirmation event to the broker.
func (r *LedgerRepo) GetDetail(ctx context.Context, reservationID uint64) (ReservationDetail, error) {
	row := r.q(ctx).QueryRowContext(ctx, detailSelect+` WHERE r.id = ?`, reservationID)
	return scanDetail(row.Scan)
}

// ListByUser returns all reservations of a user, newest first.
func (r *LedgerRepo) ListByUser(ctx context.Context, userID uint64) ([]ReservationDetail, error) {
	rows, err := r.q(ctx).QueryContext(ctx, detailSelect+` WHERE r.user_id = ? ORDER BY r.created_at DESC, r.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDetails(rows)
}

// ListAll returns every reservation joined with its user, newest
// first.  Used by the admin report.
func (r *LedgerRepo) ListAll(ctx context.Context) ([]ReservationDetail, error) {
	rows, err := r.q(ctx).QueryContext(ctx, detailSelect+` ORDER BY r.created_at DESC, r.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDetails(rows)
}

// EventStats aggregates reservation counts for one event.
type EventStats struct {
	EventID   uint64 `json:"event_id"`
	Title     string `json:"title"`
	Total     uint64 `json:"total_reservations"`
	Confirmed uint64 `json:"confirmed_reservations"`
}

// Stats returns the global and per-event reservation counters for the
// admin analytics view.
func (r *LedgerRepo) Stats(ctx context.Context) (total, confirmed uint64, events []EventStats, err error) {
	const countQ = `SELECT COUNT(*), COALESCE(SUM(status = 'CONFIRMED'), 0) FROM reservations`
	if err = r.q(ctx).QueryRowContext(ctx, countQ).Scan(&total, &confirmed); err != nil {
		return 0, 0, nil, err
	}
	const perEventQ = `SELECT e.id, e.title,
	                          COUNT(r.id), COALESCE(SUM(r.status = 'CONFIRMED'), 0)
	                   FROM events e
	                   LEFT JOIN sessions ss ON ss.event_id = e.id
	                   LEFT JOIN reservations r ON r.session_id = ss.id
	                   GROUP BY e.id, e.title
	                   ORDER BY e.id`
	rows, err := r.q(ctx).QueryContext(ctx, perEventQ)
	if err != nil {
		return 0, 0, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var st EventStats
		if err = rows.Scan(&st.EventID, &st.Title, &st.Total, &st.Confirmed); err != nil {
			return 0, 0, nil, err
		}
		events = append(events, st)
	}
	if err = rows.Err(); err != nil {
		return 0, 0, nil, err
	}
	return total, confirmed, events, nil
}

func scanReservation(row *sql.Row) (model.Reservation, error) {
	var rec model.Reservation
	var expires sql.NullTime
	err := row.Scan(&rec.ID, &rec.SeatID, &rec.SessionID, &rec.UserID, &rec.Status, &expires, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return model.Reservation{}, err
	}
	if expires.Valid {
		t := expires.Time
		rec.HoldExpiresAt = &t
	}
	return rec, nil
}

func scanReservations(rows *sql.Rows) ([]model.Reservation, error) {
	var out []model.Reservation
	for rows.Next() {
		var rec model.Reservation
		var expires sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.SeatID, &rec.SessionID, &rec.UserID, &rec.Status, &expires, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		if expires.Valid {
			t := expires.Time
			rec.HoldExpiresAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanDetail(scan func(dest ...any) error) (ReservationDetail, error) {
	var d ReservationDetail
	var expires sql.NullTime
	err := scan(
		&d.ID, &d.Status, &expires, &d.CreatedAt,
		&d.SeatID, &d.RowLabel, &d.SeatNumber, &d.SeatType, &d.PriceCents,
		&d.SessionID, &d.SessionTitle, &d.EventID, &d.EventTitle,
		&d.UserID, &d.UserEmail,
	)
	if err != nil {
		return ReservationDetail{}, err
	}
	if expires.Valid {
		t := expires.Time
		d.HoldExpiresAt = &t
	}
	return d, nil
}

func collectDetails(rows *sql.Rows) ([]ReservationDetail, error) {
	details := make([]ReservationDetail, 0)
	for rows.Next() {
		d, err := scanDetail(rows.Scan)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// placeholders returns "?, ?, ..." with n markers for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
