package store

import (
	"context"
	"database/sql"

	"github.com/openlms/openlms/internal/model"
)

// CreateModuleParams holds the fields required to insert a course module.
type CreateModuleParams struct {
	CourseID    int64
	Title       string
	Description sql.NullString
	SortOrder   int64
	IsPublished bool
}

// CreateModule inserts a new module into a course.
func (q *Queries) CreateModule(ctx context.Context, arg CreateModuleParams) (model.Module, error) {
	var m model.Module
	err := q.db.QueryRowContext(ctx, `
		INSERT INTO modules (course_id, title, description, sort_order, is_published)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, course_id, title, description, sort_order, is_published, created_at, updated_at`,
		arg.CourseID, arg.Title, arg.Description, arg.SortOrder, arg.IsPublished,
	).Scan(&m.ID, &m.CourseID, &m.Title, &m.Description, &m.SortOrder, &m.IsPublished,
		&m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// GetModuleByID fetches a module by primary key.
func (q *Queries) GetModuleByID(ctx context.Context, id int64) (model.Module, error) {
	var m model.Module
	err := q.db.QueryRowContext(ctx, `
		SELECT id, course_id, title, description, sort_order, is_published, created_at, updated_at
		FROM modules WHERE id = ?`, id,
	).Scan(&m.ID, &m.CourseID, &m.Title, &m.Description, &m.SortOrder, &m.IsPublished,
		&m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// ListModulesByCourse returns a course's modules in sort order.
func (q *Queries) ListModulesByCourse(ctx context.Context, courseID int64, publishedOnly bool) ([]model.Module, error) {
	query := `
		SELECT id, course_id, title, description, sort_order, is_published, created_at, updated_at
		FROM modules WHERE course_id = ?`
	if publishedOnly {
		query += ` AND is_published = 1`
	}
	query += ` ORDER BY sort_order, id`

	rows, err := q.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []model.Module
	for rows.Next() {
		var m model.Module
		if err := rows.Scan(&m.ID, &m.CourseID, &m.Title, &m.Description, &m.SortOrder,
			&m.IsPublished, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// UpdateModuleParams holds the editable module fields.
type UpdateModuleParams struct {
	ID          int64
	Title       string
	Description sql.NullString
	SortOrder   int64
	IsPublished bool
}

// UpdateModule updates a module's editable fields.
func (q *Queries) UpdateModule(ctx context.Context, arg UpdateModuleParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE modules SET title = ?, description = ?, sort_order = ?, is_published = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, arg.Title, arg.Description, arg.SortOrder, arg.IsPublished, arg.ID)
	return err
}

// DeleteModule removes a module and its lessons.
func (q *Queries) DeleteModule(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM modules WHERE id = ?`, id)
	return err
}

const lessonColumns = `id, module_id, course_id, title, content, content_type,
	video_url, file_path, sort_order, is_published, created_at, updated_at`

func scanLesson(row interface{ Scan(...any) error }) (model.Lesson, error) {
	var l model.Lesson
	err := row.Scan(
		&l.ID, &l.ModuleID, &l.CourseID, &l.Title, &l.Content, &l.ContentType,
		&l.VideoURL, &l.FilePath, &l.SortOrder, &l.IsPublished, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

// CreateLessonParams holds the fields required to insert a lesson.
type CreateLessonParams struct {
	ModuleID    int64
	CourseID    int64
	Title       string
	Content     sql.NullString
	ContentType string
	VideoURL    sql.NullString
	FilePath    sql.NullString
	SortOrder   int64
	IsPublished bool
}

// CreateLesson inserts a new lesson into a module.
func (q *Queries) CreateLesson(ctx context.Context, arg CreateLessonParams) (model.Lesson, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO lessons (module_id, course_id, title, content, content_type,
			video_url, file_path, sort_order, is_published)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+lessonColumns,
		arg.ModuleID, arg.CourseID, arg.Title, arg.Content, arg.ContentType,
		arg.VideoURL, arg.FilePath, arg.SortOrder, arg.IsPublished,
	)
	return scanLesson(row)
}

// GetLessonByID fetches a lesson by primary key.
func (q *Queries) GetLessonByID(ctx context.Context, id int64) (model.Lesson, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = ?`, id)
	return scanLesson(row)
}

// ListLessonsByModule returns a module's lessons in sort order.
func (q *Queries) ListLessonsByModule(ctx context.Context, moduleID int64, publishedOnly bool) ([]model.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE module_id = ?`
	if publishedOnly {
		query += ` AND is_published = 1`
	}
	query += ` ORDER BY sort_order, id`

	rows, err := q.db.QueryContext(ctx, query, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessons []model.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

// UpdateLessonParams holds the editable lesson fields.
type UpdateLessonParams struct {
	ID          int64
	Title       string
	Content     sql.NullString
	ContentType string
	VideoURL    sql.NullString
	FilePath    sql.NullString
	SortOrder   int64
	IsPublished bool
}

// UpdateLesson updates a lesson's editable fields.
func (q *Queries) UpdateLesson(ctx context.Context, arg UpdateLessonParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE lessons SET title = ?, content = ?, content_type = ?, video_url = ?,
			file_path = ?, sort_order = ?, is_published = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		arg.Title, arg.Content, arg.ContentType, arg.VideoURL, arg.FilePath,
		arg.SortOrder, arg.IsPublished, arg.ID)
	return err
}

// DeleteLesson removes a lesson.
func (q *Queries) DeleteLesson(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = ?`, id)
	return err
}

// CountPublishedLessons returns the number of published lessons in a course.
// Only lessons in published modules count toward course progress.
func (q *Queries) CountPublishedLessons(ctx context.Context, courseID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM lessons l
		JOIN modules m ON m.id = l.module_id
		WHERE l.course_id = ? AND l.is_published = 1 AND m.is_published = 1`,
		courseID).Scan(&n)
	return n, err
}
