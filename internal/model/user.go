package model

import "time"

// Roles stored in the users.role column.  ADMIN accounts manage the
// catalog; USER accounts reserve seats.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User represents an application user record as stored in the `users`
// table.  Handlers define separate response types with JSON tags; this
// struct is used by the repository layer only.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  Name         – display name.
//  PasswordHash – bcrypt hashed password.
//  Role         – USER or ADMIN.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	Name         string    // users.name
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
