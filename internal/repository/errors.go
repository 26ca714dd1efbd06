// Package repository provides data access to the MySQL store.  These
// sentinel values let handlers distinguish failure scenarios without
// inspecting driver errors; repositories otherwise pass sql.ErrNoRows
// through untouched.
package repository

import "errors"

// ErrEventNotFound is returned when an event lookup yields no rows.
var ErrEventNotFound = errors.New("event not found")

// ErrSessionNotFound is returned when a session lookup yields no rows.
var ErrSessionNotFound = errors.New("session not found")

// ErrEmailExists is returned when registering with an email that is
// already taken.
var ErrEmailExists = errors.New("email already exists")
