package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// EventRepo provides CRUD operations for the event catalog.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// Create inserts an event and populates its ID.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	const q = `INSERT INTO events (title, description, location, image_url, starts_at, ends_at)
	           VALUES (?, ?, ?, ?, ?, ?)`
	var url, ends any
	if e.ImageURL != nil {
		url = *e.ImageURL
	}
	if e.EndsAt != nil {
		ends = e.EndsAt.UTC()
	}
	res, err := r.db.ExecContext(ctx, q, e.Title, e.Description, e.Location, url, e.StartsAt.UTC(), ends)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// Update rewrites the descriptive fields of an event.
func (r *EventRepo) Update(ctx context.Context, e *model.Event) error {
	const q = `UPDATE events
	           SET title = ?, description = ?, location = ?, image_url = ?, starts_at = ?, ends_at = ?
	           WHERE id = ?`
	var url, ends any
	if e.ImageURL != nil {
		url = *e.ImageURL
	}
	if e.EndsAt != nil {
		ends = e.EndsAt.UTC()
	}
	res, err := r.db.ExecContext(ctx, q, e.Title, e.Description, e.Location, url, e.StartsAt.UTC(), ends, e.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// RowsAffected is 0 both for a missing row and for a no-op
		// update; confirm existence before reporting not found.
		if _, err := r.GetByID(ctx, e.ID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an event; sessions, seats and reservations cascade in
// the schema.
func (r *EventRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// GetByID returns a single event.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	const q = `SELECT id, title, description, location, image_url, starts_at, ends_at, created_at, updated_at
	           FROM events WHERE id = ?`
	e, err := scanEvent(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrEventNotFound
	}
	return e, err
}

// ListAll returns all events ordered by start time ascending.
func (r *EventRepo) ListAll(ctx context.Context) ([]model.Event, error) {
	const q = `SELECT id, title, description, location, image_url, starts_at, ends_at, created_at, updated_at
	           FROM events ORDER BY starts_at`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEventRow(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanEvent(row *sql.Row) (model.Event, error) {
	var e model.Event
	var url sql.NullString
	var ends sql.NullTime
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &url, &e.StartsAt, &ends, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return model.Event{}, err
	}
	applyEventNulls(&e, url, ends)
	return e, nil
}

func scanEventRow(rows *sql.Rows) (model.Event, error) {
	var e model.Event
	var url sql.NullString
	var ends sql.NullTime
	err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &url, &e.StartsAt, &ends, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return model.Event{}, err
	}
	applyEventNulls(&e, url, ends)
	return e, nil
}

func applyEventNulls(e *model.Event, url sql.NullString, ends sql.NullTime) {
	if url.Valid {
		u := url.String
		e.ImageURL = &u
	}
	if ends.Valid {
		t := ends.Time
		e.EndsAt = &t
	}
}
