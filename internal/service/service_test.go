package service

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/openlms/openlms/internal/cache"
	"github.com/openlms/openlms/internal/model"
	"github.com/openlms/openlms/internal/store"
)

// testEnv wires all services against a temporary database.
type testEnv struct {
	db       *sql.DB
	q        *store.Queries
	limiter  *LoginLimiter
	settings *SettingsService
	emails   *EmailService
	auth     *AuthService
	enroll   *EnrollmentService
	catalog  *CatalogService
	users    *UserService
	stats    *StatsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	f, err := os.CreateTemp("", "openlms-service-test-*.db")
	require.NoError(t, err)
	dbPath := f.Name()
	f.Close()

	db, err := store.NewDB(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))

	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})

	q := store.New(db)
	c := cache.NewMemoryCache(cache.MemoryOptions{DefaultTTL: time.Minute})
	t.Cleanup(func() { c.Close() })

	limiter := NewLoginLimiter(5, 15*time.Minute)
	settings := NewSettingsService(q, c)
	emails := NewEmailService(q, "http://localhost:8080")

	return &testEnv{
		db:       db,
		q:        q,
		limiter:  limiter,
		settings: settings,
		emails:   emails,
		auth:     NewAuthService(q, settings, emails, limiter, 8, 30*24*time.Hour),
		enroll:   NewEnrollmentService(db, q),
		catalog:  NewCatalogService(q),
		users:    NewUserService(q),
		stats:    NewStatsService(q),
	}
}

// disableVerification turns off the email verification requirement.
func (e *testEnv) disableVerification(t *testing.T) {
	t.Helper()
	require.NoError(t, e.settings.Set(context.Background(), model.SettingEmailVerificationRequired, "0"))
}

// registerVerified creates a ready-to-login student account.
func (e *testEnv) registerVerified(t *testing.T, email, password string) model.User {
	t.Helper()
	ctx := context.Background()

	user, err := e.auth.Register(ctx, RegisterInput{
		Email: email, Password: password, FirstName: "Test", LastName: "Student",
	})
	require.NoError(t, err)

	if !user.IsVerified {
		verified, err := e.auth.VerifyEmail(ctx, user.VerificationToken.String)
		require.NoError(t, err)
		return verified
	}
	return user
}

// makeInstructor creates an instructor account directly in the store.
func (e *testEnv) makeInstructor(t *testing.T, email string) model.User {
	t.Helper()
	u, err := e.q.CreateUser(context.Background(), store.CreateUserParams{
		Email: email, PasswordHash: "x", FirstName: "Ina", LastName: "Structor",
		Role: model.RoleInstructor, IsVerified: true,
	})
	require.NoError(t, err)
	return u
}

// makeListableCourse creates a published, approved public course.
func (e *testEnv) makeListableCourse(t *testing.T, instructorID int64, slug string, maxStudents int64) model.Course {
	t.Helper()
	ctx := context.Background()

	params := store.CreateCourseParams{
		Title: "Course " + slug, Slug: slug, InstructorID: instructorID,
		EnrollmentType: model.EnrollmentPublic, Price: decimal.Zero, Currency: "USD",
	}
	if maxStudents > 0 {
		params.MaxStudents = sql.NullInt64{Int64: maxStudents, Valid: true}
	}
	course, err := e.q.CreateCourse(ctx, params)
	require.NoError(t, err)

	require.NoError(t, e.q.SetCourseApproval(ctx, course.ID, model.ApprovalApproved))
	require.NoError(t, e.q.UpdateCourse(ctx, store.UpdateCourseParams{
		ID: course.ID, Title: course.Title, EnrollmentType: course.EnrollmentType,
		Price: course.Price, Currency: course.Currency, MaxStudents: params.MaxStudents,
		IsPublished: true,
	}))

	course, err = e.q.GetCourseByID(ctx, course.ID)
	require.NoError(t, err)
	return course
}

// makeLesson creates a published lesson in a published module.
func (e *testEnv) makeLesson(t *testing.T, courseID int64, title string) model.Lesson {
	t.Helper()
	ctx := context.Background()

	mod, err := e.q.CreateModule(ctx, store.CreateModuleParams{
		CourseID: courseID, Title: "Module for " + title, IsPublished: true,
	})
	require.NoError(t, err)

	lesson, err := e.q.CreateLesson(ctx, store.CreateLessonParams{
		ModuleID: mod.ID, CourseID: courseID, Title: title,
		ContentType: model.ContentTypeText, IsPublished: true,
	})
	require.NoError(t, err)
	return lesson
}
