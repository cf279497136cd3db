package model

import (
	"database/sql"
	"time"
)

// Activity actions recorded in the audit log.
const (
	ActionUserRegistered        = "user_registered"
	ActionEmailVerified         = "email_verified"
	ActionLoginSuccess          = "successful_login"
	ActionLoginFailed           = "failed_login"
	ActionLoginRateLimited      = "rate_limited_login"
	ActionAutoLogin             = "auto_login"
	ActionLogout                = "logout"
	ActionPasswordResetRequest  = "password_reset_requested"
	ActionPasswordReset         = "password_reset"
	ActionPasswordChanged       = "password_changed"
	ActionProfileUpdated        = "profile_updated"
	ActionAvatarUploaded        = "avatar_uploaded"
	ActionCourseCreated         = "course_created"
	ActionCourseApproved        = "course_approved"
	ActionCourseRejected        = "course_rejected"
	ActionCourseEnrolled        = "course_enrolled"
	ActionLessonCompleted       = "lesson_completed"
	ActionCourseCompleted       = "course_completed"
	ActionSystemWarning         = "system_warning"
	ActionSystemError           = "system_error"
)

// Activity is an append-only audit log entry. Rows are never mutated.
type Activity struct {
	ID        int64          `json:"id"`
	UserID    sql.NullInt64  `json:"user_id,omitempty"`
	Action    string         `json:"action"`
	Details   sql.NullString `json:"details,omitempty"`
	IPAddress sql.NullString `json:"ip_address,omitempty"`
	UserAgent sql.NullString `json:"user_agent,omitempty"`
	Country   sql.NullString `json:"country,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
