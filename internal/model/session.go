package model

import "time"

// Session represents a single timed occurrence of an event for which
// seats can be reserved.  A session owns its seating chart: seats are
// generated once when the session is created and never mutated while
// the session is bookable.
//
// Fields:
//  ID        – primary key identifier.
//  EventID   – event to which this session belongs.
//  Title     – display name (e.g. "Opening Night").
//  StartsAt  – when the session begins.
//  EndsAt    – when the session ends.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Session struct {
	ID        uint64    // sessions.id
	EventID   uint64    // sessions.event_id
	Title     string    // sessions.title
	StartsAt  time.Time // sessions.starts_at
	EndsAt    time.Time // sessions.ends_at
	CreatedAt time.Time // sessions.created_at
	UpdatedAt time.Time // sessions.updated_at
}
