// Package model defines domain models and types used throughout the
// application including User, Course, Enrollment, and activity structures.
package model

import (
	"database/sql"
	"time"
)

// User roles.
const (
	RoleAdmin      = "admin"
	RoleInstructor = "instructor"
	RoleStudent    = "student"
)

// User account statuses.
const (
	UserStatusActive    = "active"
	UserStatusInactive  = "inactive"
	UserStatusSuspended = "suspended"
)

// User represents a platform account.
type User struct {
	ID                int64          `json:"id"`
	Email             string         `json:"email"`
	PasswordHash      string         `json:"-"` // Never expose in JSON
	FirstName         string         `json:"first_name"`
	LastName          string         `json:"last_name"`
	Role              string         `json:"role"`
	Status            string         `json:"status"`
	Bio               sql.NullString `json:"bio,omitempty"`
	Phone             sql.NullString `json:"phone,omitempty"`
	Avatar            sql.NullString `json:"avatar,omitempty"`
	IsVerified        bool           `json:"is_verified"`
	VerificationToken sql.NullString `json:"-"`
	ResetToken        sql.NullString `json:"-"`
	ResetExpires      sql.NullTime   `json:"-"`
	RememberToken     sql.NullString `json:"-"`
	RememberExpires   sql.NullTime   `json:"-"`
	LastLoginAt       sql.NullTime   `json:"last_login_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// IsAdmin returns true if the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsInstructor returns true if the user has the instructor role.
func (u *User) IsInstructor() bool {
	return u.Role == RoleInstructor
}

// IsActive returns true if the account may log in.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// FullName returns the user's display name.
// Value receiver so html/template can call it on non-addressable values.
func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}
