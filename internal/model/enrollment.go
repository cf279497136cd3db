package model

import (
	"database/sql"
	"time"
)

// Enrollment statuses. The completed status is a one-way transition: once an
// enrollment reaches 100% it never reverts to active, even if the course
// content changes afterwards.
const (
	EnrollmentStatusActive    = "active"
	EnrollmentStatusCompleted = "completed"
)

// Enrollment links one user to one course with progress bookkeeping.
// Unique per (user_id, course_id).
type Enrollment struct {
	ID                 int64        `json:"id"`
	UserID             int64        `json:"user_id"`
	CourseID           int64        `json:"course_id"`
	Status             string       `json:"status"`
	ProgressPercentage float64      `json:"progress_percentage"`
	EnrollmentDate     time.Time    `json:"enrollment_date"`
	CompletionDate     sql.NullTime `json:"completion_date,omitempty"`
}

// IsCompleted returns true once the enrollment has reached 100%.
func (e *Enrollment) IsCompleted() bool {
	return e.Status == EnrollmentStatusCompleted
}

// LessonProgress records one completed lesson per user. Re-completing a
// lesson is a no-op: the original CompletedAt is preserved.
type LessonProgress struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	LessonID    int64     `json:"lesson_id"`
	CompletedAt time.Time `json:"completed_at"`
}
