package store

import (
	"context"
	"time"

	"github.com/openlms/openlms/internal/model"
)

const enrollmentColumns = `id, user_id, course_id, status, progress_percentage,
	enrollment_date, completion_date`

func scanEnrollment(row interface{ Scan(...any) error }) (model.Enrollment, error) {
	var e model.Enrollment
	err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Status, &e.ProgressPercentage,
		&e.EnrollmentDate, &e.CompletionDate)
	return e, err
}

// CreateEnrollment inserts an active enrollment for a user in a course.
// The UNIQUE(user_id, course_id) constraint rejects duplicates.
func (q *Queries) CreateEnrollment(ctx context.Context, userID, courseID int64) (model.Enrollment, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO enrollments (user_id, course_id) VALUES (?, ?)
		RETURNING `+enrollmentColumns, userID, courseID)
	return scanEnrollment(row)
}

// GetEnrollment fetches a user's enrollment in a course.
func (q *Queries) GetEnrollment(ctx context.Context, userID, courseID int64) (model.Enrollment, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+enrollmentColumns+` FROM enrollments
		WHERE user_id = ? AND course_id = ?`, userID, courseID)
	return scanEnrollment(row)
}

// EnrollmentExists reports whether the user is enrolled in the course.
func (q *Queries) EnrollmentExists(ctx context.Context, userID, courseID int64) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM enrollments WHERE user_id = ? AND course_id = ?)`,
		userID, courseID).Scan(&exists)
	return exists, err
}

// CountEnrollmentsByCourse returns the number of enrollments in a course.
func (q *Queries) CountEnrollmentsByCourse(ctx context.Context, courseID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE course_id = ?`, courseID).Scan(&n)
	return n, err
}

// CountActiveEnrollmentsByCourse returns the number of active enrollments in
// a course. Completed and dropped enrollments do not take up seats.
func (q *Queries) CountActiveEnrollmentsByCourse(ctx context.Context, courseID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE course_id = ? AND status = 'active'`,
		courseID).Scan(&n)
	return n, err
}

// ListEnrollmentsByUser returns a user's enrollments, most recent first.
func (q *Queries) ListEnrollmentsByUser(ctx context.Context, userID int64) ([]model.Enrollment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+enrollmentColumns+` FROM enrollments
		WHERE user_id = ? ORDER BY enrollment_date DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enrollments []model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

// UpdateEnrollmentProgress stores a recomputed progress percentage. The status
// moves to completed when progress reaches 100 and never moves back.
func (q *Queries) UpdateEnrollmentProgress(ctx context.Context, id int64, progress float64) error {
	if progress >= 100 {
		_, err := q.db.ExecContext(ctx, `
			UPDATE enrollments SET progress_percentage = ?, status = 'completed',
				completion_date = COALESCE(completion_date, ?)
			WHERE id = ?`, progress, time.Now().UTC().Format(sqliteTimeLayout), id)
		return err
	}
	// Completed enrollments keep their status even if content is added later.
	_, err := q.db.ExecContext(ctx, `
		UPDATE enrollments SET progress_percentage = ? WHERE id = ?`, progress, id)
	return err
}

// MarkLessonCompleted records lesson completion for a user. Completing a
// lesson again refreshes its completion timestamp.
func (q *Queries) MarkLessonCompleted(ctx context.Context, userID, lessonID int64) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO lesson_progress (user_id, lesson_id) VALUES (?, ?)
		ON CONFLICT (user_id, lesson_id) DO UPDATE SET completed_at = CURRENT_TIMESTAMP`,
		userID, lessonID)
	return err
}

// LessonCompleted reports whether the user has completed the lesson.
func (q *Queries) LessonCompleted(ctx context.Context, userID, lessonID int64) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM lesson_progress WHERE user_id = ? AND lesson_id = ?)`,
		userID, lessonID).Scan(&exists)
	return exists, err
}

// CountCompletedLessons returns how many published lessons of a course the
// user has completed. Only lessons in published modules count.
func (q *Queries) CountCompletedLessons(ctx context.Context, userID, courseID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM lesson_progress lp
		JOIN lessons l ON l.id = lp.lesson_id
		JOIN modules m ON m.id = l.module_id
		WHERE lp.user_id = ? AND l.course_id = ?
			AND l.is_published = 1 AND m.is_published = 1`,
		userID, courseID).Scan(&n)
	return n, err
}

// ListCompletedLessonIDs returns the IDs of lessons the user has completed in
// a course, for rendering progress checkmarks.
func (q *Queries) ListCompletedLessonIDs(ctx context.Context, userID, courseID int64) (map[int64]bool, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT lp.lesson_id FROM lesson_progress lp
		JOIN lessons l ON l.id = lp.lesson_id
		WHERE lp.user_id = ? AND l.course_id = ?`, userID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		done[id] = true
	}
	return done, rows.Err()
}

// CountEnrollmentsByStatus returns enrollment counts for a user by status.
func (q *Queries) CountEnrollmentsByStatus(ctx context.Context, userID int64, status string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM enrollments WHERE user_id = ? AND status = ?`,
		userID, status).Scan(&n)
	return n, err
}

// CountStudentsByInstructor returns the number of distinct students enrolled
// across all of an instructor's courses.
func (q *Queries) CountStudentsByInstructor(ctx context.Context, instructorID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT e.user_id) FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		WHERE c.instructor_id = ?`, instructorID).Scan(&n)
	return n, err
}

// CountEnrollments returns the total number of enrollments.
func (q *Queries) CountEnrollments(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM enrollments`).Scan(&n)
	return n, err
}
