package model

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Course enrollment types.
const (
	EnrollmentPublic     = "public"
	EnrollmentPrivate    = "private"
	EnrollmentInviteOnly = "invite_only"
)

// Course approval statuses (admin-controlled gate for public listing).
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Lesson content types.
const (
	ContentTypeText  = "text"
	ContentTypeVideo = "video"
	ContentTypePDF   = "pdf"
	ContentTypeLink  = "link"
)

// Course represents a course owned by one instructor.
type Course struct {
	ID             int64           `json:"id"`
	Title          string          `json:"title"`
	Slug           string          `json:"slug"`
	Description    sql.NullString  `json:"description,omitempty"`
	InstructorID   int64           `json:"instructor_id"`
	CategoryID     sql.NullInt64   `json:"category_id,omitempty"`
	EnrollmentType string          `json:"enrollment_type"`
	ApprovalStatus string          `json:"approval_status"`
	IsPublished    bool            `json:"is_published"`
	Featured       bool            `json:"featured"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	MaxStudents    sql.NullInt64   `json:"max_students,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsListable returns true if the course may appear in the public catalog.
func (c *Course) IsListable() bool {
	return c.IsPublished && c.ApprovalStatus == ApprovalApproved
}

// IsFree returns true if the course has no price.
// Value receiver so html/template can call it on non-addressable values.
func (c Course) IsFree() bool {
	return c.Price.IsZero()
}

// Module is an ordered child of a Course.
type Module struct {
	ID          int64          `json:"id"`
	CourseID    int64          `json:"course_id"`
	Title       string         `json:"title"`
	Description sql.NullString `json:"description,omitempty"`
	SortOrder   int64          `json:"sort_order"`
	IsPublished bool           `json:"is_published"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Lesson is an ordered child of a Module.
type Lesson struct {
	ID          int64          `json:"id"`
	ModuleID    int64          `json:"module_id"`
	CourseID    int64          `json:"course_id"`
	Title       string         `json:"title"`
	Content     sql.NullString `json:"content,omitempty"`
	ContentType string         `json:"content_type"`
	VideoURL    sql.NullString `json:"video_url,omitempty"`
	FilePath    sql.NullString `json:"file_path,omitempty"`
	SortOrder   int64          `json:"sort_order"`
	IsPublished bool           `json:"is_published"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Category groups courses in the catalog.
type Category struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	Description sql.NullString `json:"description,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
