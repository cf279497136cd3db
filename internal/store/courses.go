package store

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/openlms/openlms/internal/model"
)

const courseColumns = `id, title, slug, description, instructor_id, category_id,
	enrollment_type, approval_status, is_published, featured, price, currency,
	max_students, created_at, updated_at`

func scanCourse(row interface{ Scan(...any) error }) (model.Course, error) {
	var c model.Course
	var price string
	err := row.Scan(
		&c.ID, &c.Title, &c.Slug, &c.Description, &c.InstructorID, &c.CategoryID,
		&c.EnrollmentType, &c.ApprovalStatus, &c.IsPublished, &c.Featured, &price, &c.Currency,
		&c.MaxStudents, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return c, err
	}
	c.Price, err = decimal.NewFromString(price)
	return c, err
}

// CreateCourseParams holds the fields required to insert a new course.
type CreateCourseParams struct {
	Title          string
	Slug           string
	Description    sql.NullString
	InstructorID   int64
	CategoryID     sql.NullInt64
	EnrollmentType string
	Price          decimal.Decimal
	Currency       string
	MaxStudents    sql.NullInt64
}

// CreateCourse inserts a new course in pending approval state.
func (q *Queries) CreateCourse(ctx context.Context, arg CreateCourseParams) (model.Course, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO courses (title, slug, description, instructor_id, category_id,
			enrollment_type, price, currency, max_students)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+courseColumns,
		arg.Title, arg.Slug, arg.Description, arg.InstructorID, arg.CategoryID,
		arg.EnrollmentType, arg.Price.String(), arg.Currency, arg.MaxStudents,
	)
	return scanCourse(row)
}

// GetCourseByID fetches a course by primary key.
func (q *Queries) GetCourseByID(ctx context.Context, id int64) (model.Course, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = ?`, id)
	return scanCourse(row)
}

// GetCourseBySlug fetches a course by its URL slug.
func (q *Queries) GetCourseBySlug(ctx context.Context, slug string) (model.Course, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE slug = ?`, slug)
	return scanCourse(row)
}

// CourseSlugExists reports whether a slug is already taken.
func (q *Queries) CourseSlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM courses WHERE slug = ?)`, slug).Scan(&exists)
	return exists, err
}

// ListCoursesParams filters the public course listing.
type ListCoursesParams struct {
	CategoryID sql.NullInt64
	Search     sql.NullString
	Limit      int64
	Offset     int64
}

// ListListableCourses returns published, approved courses newest first,
// optionally filtered by category or a title/description search term.
func (q *Queries) ListListableCourses(ctx context.Context, arg ListCoursesParams) ([]model.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses
		WHERE is_published = 1 AND approval_status = 'approved'`
	args := []any{}
	if arg.CategoryID.Valid {
		query += ` AND category_id = ?`
		args = append(args, arg.CategoryID.Int64)
	}
	if arg.Search.Valid {
		query += ` AND (title LIKE ? OR description LIKE ?)`
		like := "%" + arg.Search.String + "%"
		args = append(args, like, like)
	}
	query += ` ORDER BY featured DESC, created_at DESC LIMIT ? OFFSET ?`
	args = append(args, arg.Limit, arg.Offset)

	return q.queryCourses(ctx, query, args...)
}

// ListCoursesByInstructor returns an instructor's courses, newest first.
func (q *Queries) ListCoursesByInstructor(ctx context.Context, instructorID int64) ([]model.Course, error) {
	return q.queryCourses(ctx, `
		SELECT `+courseColumns+` FROM courses
		WHERE instructor_id = ? ORDER BY created_at DESC`, instructorID)
}

// ListPendingCourses returns courses awaiting admin approval.
func (q *Queries) ListPendingCourses(ctx context.Context) ([]model.Course, error) {
	return q.queryCourses(ctx, `
		SELECT `+courseColumns+` FROM courses
		WHERE approval_status = 'pending' ORDER BY created_at ASC`)
}

func (q *Queries) queryCourses(ctx context.Context, query string, args ...any) ([]model.Course, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// UpdateCourseParams holds the editable course fields.
type UpdateCourseParams struct {
	ID             int64
	Title          string
	Description    sql.NullString
	CategoryID     sql.NullInt64
	EnrollmentType string
	Price          decimal.Decimal
	Currency       string
	MaxStudents    sql.NullInt64
	IsPublished    bool
}

// UpdateCourse updates a course's editable fields.
func (q *Queries) UpdateCourse(ctx context.Context, arg UpdateCourseParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE courses SET title = ?, description = ?, category_id = ?,
			enrollment_type = ?, price = ?, currency = ?, max_students = ?,
			is_published = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		arg.Title, arg.Description, arg.CategoryID, arg.EnrollmentType,
		arg.Price.String(), arg.Currency, arg.MaxStudents, arg.IsPublished, arg.ID)
	return err
}

// SetCourseApproval updates a course's approval status.
func (q *Queries) SetCourseApproval(ctx context.Context, id int64, status string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE courses SET approval_status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, status, id)
	return err
}

// SetCourseFeatured toggles the featured flag.
func (q *Queries) SetCourseFeatured(ctx context.Context, id int64, featured bool) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE courses SET featured = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, featured, id)
	return err
}

// DeleteCourse removes a course and, via cascading constraints, its modules,
// lessons, and enrollments.
func (q *Queries) DeleteCourse(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
	return err
}

// CountCourses returns the total number of courses.
func (q *Queries) CountCourses(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses`).Scan(&n)
	return n, err
}

// CreateCategory inserts a new course category.
func (q *Queries) CreateCategory(ctx context.Context, name, slug string, description sql.NullString) (model.Category, error) {
	var c model.Category
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO categories (name, slug, description) VALUES (?, ?, ?)
		RETURNING id, name, slug, description, created_at`,
		name, slug, description,
	).Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt)
	return c, err
}

// ListCategories returns all categories ordered by name.
func (q *Queries) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, slug, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// GetCategoryBySlug fetches a category by its URL slug.
func (q *Queries) GetCategoryBySlug(ctx context.Context, slug string) (model.Category, error) {
	var c model.Category
	err := q.db.QueryRowContext(ctx, `
		SELECT id, name, slug, description, created_at FROM categories WHERE slug = ?`,
		slug,
	).Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt)
	return c, err
}
