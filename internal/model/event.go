package model

import "time"

// Event represents a ticketed happening that groups one or more timed
// sessions.  Events carry only descriptive catalog data; all seat and
// reservation state lives on the session level.
//
// Fields:
//  ID          – primary key identifier.
//  Title       – display name of the event.
//  Description – free-form description shown to visitors.
//  Location    – venue name or address.
//  ImageURL    – optional promotional image.
//  StartsAt    – when the event begins.
//  EndsAt      – when the event ends (nullable for open-ended events).
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Event struct {
	ID          uint64     // events.id
	Title       string     // events.title
	Description string     // events.description
	Location    string     // events.location
	ImageURL    *string    // events.image_url (nullable)
	StartsAt    time.Time  // events.starts_at
	EndsAt      *time.Time // events.ends_at (nullable)
	CreatedAt   time.Time  // events.created_at
	UpdatedAt   time.Time  // events.updated_at
}
