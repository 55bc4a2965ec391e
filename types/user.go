package types

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account in the system.
// It contains identity, credential, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID uuid.UUID `json:"id" db:"id"`

	// Email is the unique login name, stored lower-cased.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// LastLogin is the timestamp of the last successful login, if any.
	LastLogin *time.Time `json:"lastLogin,omitempty" db:"last_login"`

	// Roles holds the user's role assignments. It is populated on reads
	// that need it and ignored on writes.
	Roles []RoleAssignment `json:"roles,omitempty" db:"-"`
}

// RoleAssignment links a user to a role.
type RoleAssignment struct {
	UserID     uuid.UUID `json:"userId" db:"user_id"`
	RoleID     int64     `json:"roleId" db:"role_id"`
	RoleName   string    `json:"roleName" db:"role_name"`
	AssignedAt time.Time `json:"assignedAt" db:"assigned_at"`
}
