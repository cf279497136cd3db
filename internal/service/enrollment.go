package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/openlms/openlms/internal/model"
	"github.com/openlms/openlms/internal/store"
)

// EnrollmentService manages the enrollment ledger and per-lesson progress.
type EnrollmentService struct {
	db *sql.DB
	q  *store.Queries
}

// NewEnrollmentService creates the enrollment service. The raw database
// handle is needed for transactional operations.
func NewEnrollmentService(db *sql.DB, q *store.Queries) *EnrollmentService {
	return &EnrollmentService{db: db, q: q}
}

// Enroll adds the user to a course. The capacity check and the insert run in
// one serialized transaction so concurrent enrollments cannot exceed
// max_students.
func (s *EnrollmentService) Enroll(ctx context.Context, userID, courseID int64) (model.Enrollment, error) {
	course, err := s.q.GetCourseByID(ctx, courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Enrollment{}, ErrNotFound
	}
	if err != nil {
		return model.Enrollment{}, fmt.Errorf("loading course: %w", err)
	}

	// Students can only enroll in courses visible in the catalog.
	if !course.IsListable() {
		return model.Enrollment{}, ErrNotFound
	}

	enrolled, err := s.q.EnrollmentExists(ctx, userID, courseID)
	if err != nil {
		return model.Enrollment{}, fmt.Errorf("checking enrollment: %w", err)
	}
	if enrolled {
		return model.Enrollment{}, ErrAlreadyEnrolled
	}

	if course.EnrollmentType != model.EnrollmentPublic {
		return model.Enrollment{}, ErrEnrollmentNotAllowed
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return model.Enrollment{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.q.WithTx(tx)

	// Only active enrollments occupy seats; students who finished the
	// course free theirs up.
	if course.MaxStudents.Valid {
		count, err := qtx.CountActiveEnrollmentsByCourse(ctx, courseID)
		if err != nil {
			return model.Enrollment{}, fmt.Errorf("counting enrollments: %w", err)
		}
		if count >= course.MaxStudents.Int64 {
			return model.Enrollment{}, ErrCourseFull
		}
	}

	enrollment, err := qtx.CreateEnrollment(ctx, userID, courseID)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Enrollment{}, ErrAlreadyEnrolled
		}
		return model.Enrollment{}, fmt.Errorf("creating enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Enrollment{}, fmt.Errorf("committing enrollment: %w", err)
	}
	return enrollment, nil
}

// MarkLessonCompleted records a lesson completion and recomputes course
// progress in one transaction. Completing an already-completed lesson keeps
// progress unchanged but refreshes the lesson's completion timestamp.
func (s *EnrollmentService) MarkLessonCompleted(ctx context.Context, userID, lessonID int64) (model.Enrollment, error) {
	lesson, err := s.q.GetLessonByID(ctx, lessonID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Enrollment{}, ErrNotFound
	}
	if err != nil {
		return model.Enrollment{}, fmt.Errorf("loading lesson: %w", err)
	}
	if !lesson.IsPublished {
		return model.Enrollment{}, ErrNotFound
	}

	enrollment, err := s.q.GetEnrollment(ctx, userID, lesson.CourseID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Enrollment{}, ErrEnrollmentNotAllowed
	}
	if err != nil {
		return model.Enrollment{}, fmt.Errorf("loading enrollment: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return model.Enrollment{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.q.WithTx(tx)

	if err := qtx.MarkLessonCompleted(ctx, userID, lessonID); err != nil {
		return model.Enrollment{}, fmt.Errorf("recording completion: %w", err)
	}

	progress, err := computeProgress(ctx, qtx, userID, lesson.CourseID)
	if err != nil {
		return model.Enrollment{}, err
	}
	if err := qtx.UpdateEnrollmentProgress(ctx, enrollment.ID, progress); err != nil {
		return model.Enrollment{}, fmt.Errorf("updating progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Enrollment{}, fmt.Errorf("committing progress: %w", err)
	}

	return s.q.GetEnrollment(ctx, userID, lesson.CourseID)
}

// RefreshProgress recomputes a user's progress after course content changes.
func (s *EnrollmentService) RefreshProgress(ctx context.Context, userID, courseID int64) (model.Enrollment, error) {
	enrollment, err := s.q.GetEnrollment(ctx, userID, courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Enrollment{}, ErrEnrollmentNotAllowed
	}
	if err != nil {
		return model.Enrollment{}, fmt.Errorf("loading enrollment: %w", err)
	}

	progress, err := computeProgress(ctx, s.q, userID, courseID)
	if err != nil {
		return model.Enrollment{}, err
	}
	if err := s.q.UpdateEnrollmentProgress(ctx, enrollment.ID, progress); err != nil {
		return model.Enrollment{}, fmt.Errorf("updating progress: %w", err)
	}
	return s.q.GetEnrollment(ctx, userID, courseID)
}

// ListUserEnrollments returns the user's enrollments with their courses.
func (s *EnrollmentService) ListUserEnrollments(ctx context.Context, userID int64) ([]EnrolledCourse, error) {
	enrollments, err := s.q.ListEnrollmentsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing enrollments: %w", err)
	}

	result := make([]EnrolledCourse, 0, len(enrollments))
	for _, e := range enrollments {
		course, err := s.q.GetCourseByID(ctx, e.CourseID)
		if err != nil {
			return nil, fmt.Errorf("loading course %d: %w", e.CourseID, err)
		}
		result = append(result, EnrolledCourse{Enrollment: e, Course: course})
	}
	return result, nil
}

// EnrolledCourse pairs an enrollment with its course for dashboards.
type EnrolledCourse struct {
	Enrollment model.Enrollment
	Course     model.Course
}

// Enrollment returns the user's enrollment in a course, or ErrNotFound.
func (s *EnrollmentService) Enrollment(ctx context.Context, userID, courseID int64) (model.Enrollment, error) {
	e, err := s.q.GetEnrollment(ctx, userID, courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Enrollment{}, ErrNotFound
	}
	if err != nil {
		return model.Enrollment{}, fmt.Errorf("loading enrollment: %w", err)
	}
	return e, nil
}

// computeProgress returns the completion percentage for a user in a course,
// rounded to two decimals. Courses with no published lessons count as zero
// progress.
func computeProgress(ctx context.Context, q *store.Queries, userID, courseID int64) (float64, error) {
	total, err := q.CountPublishedLessons(ctx, courseID)
	if err != nil {
		return 0, fmt.Errorf("counting lessons: %w", err)
	}
	if total == 0 {
		return 0, nil
	}

	completed, err := q.CountCompletedLessons(ctx, userID, courseID)
	if err != nil {
		return 0, fmt.Errorf("counting completed lessons: %w", err)
	}

	return math.Round(float64(completed)/float64(total)*100*100) / 100, nil
}
