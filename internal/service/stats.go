package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openlms/openlms/internal/model"
	"github.com/openlms/openlms/internal/store"
	"github.com/openlms/openlms/internal/util"
)

// StatsService aggregates the dashboard counters for each role.
type StatsService struct {
	q *store.Queries
}

// NewStatsService creates the stats service.
func NewStatsService(q *store.Queries) *StatsService {
	return &StatsService{q: q}
}

// AdminStats are the admin dashboard counters.
type AdminStats struct {
	Users       int64
	Students    int64
	Instructors int64
	Courses     int64
	Enrollments int64
}

// Admin returns sitewide counters.
func (s *StatsService) Admin(ctx context.Context) (AdminStats, error) {
	var stats AdminStats
	var err error

	if stats.Users, err = s.q.CountUsers(ctx, sql.NullString{}); err != nil {
		return stats, fmt.Errorf("counting users: %w", err)
	}
	if stats.Students, err = s.q.CountUsers(ctx, util.NullStringFromValue(model.RoleStudent)); err != nil {
		return stats, fmt.Errorf("counting students: %w", err)
	}
	if stats.Instructors, err = s.q.CountUsers(ctx, util.NullStringFromValue(model.RoleInstructor)); err != nil {
		return stats, fmt.Errorf("counting instructors: %w", err)
	}
	if stats.Courses, err = s.q.CountCourses(ctx); err != nil {
		return stats, fmt.Errorf("counting courses: %w", err)
	}
	if stats.Enrollments, err = s.q.CountEnrollments(ctx); err != nil {
		return stats, fmt.Errorf("counting enrollments: %w", err)
	}
	return stats, nil
}

// InstructorStats are the instructor dashboard counters.
type InstructorStats struct {
	Courses  int64
	Students int64
}

// Instructor returns counters scoped to one instructor's courses.
func (s *StatsService) Instructor(ctx context.Context, instructorID int64) (InstructorStats, error) {
	var stats InstructorStats

	courses, err := s.q.ListCoursesByInstructor(ctx, instructorID)
	if err != nil {
		return stats, fmt.Errorf("listing courses: %w", err)
	}
	stats.Courses = int64(len(courses))

	if stats.Students, err = s.q.CountStudentsByInstructor(ctx, instructorID); err != nil {
		return stats, fmt.Errorf("counting students: %w", err)
	}
	return stats, nil
}

// StudentStats are the student dashboard counters.
type StudentStats struct {
	Active    int64
	Completed int64
}

// Student returns a student's enrollment counters.
func (s *StatsService) Student(ctx context.Context, userID int64) (StudentStats, error) {
	var stats StudentStats
	var err error

	if stats.Active, err = s.q.CountEnrollmentsByStatus(ctx, userID, model.EnrollmentStatusActive); err != nil {
		return stats, fmt.Errorf("counting active enrollments: %w", err)
	}
	if stats.Completed, err = s.q.CountEnrollmentsByStatus(ctx, userID, model.EnrollmentStatusCompleted); err != nil {
		return stats, fmt.Errorf("counting completed enrollments: %w", err)
	}
	return stats, nil
}
