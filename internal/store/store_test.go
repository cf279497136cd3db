package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openlms/openlms/internal/model"
)

// testDB creates a temporary test database.
func testDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	f, err := os.CreateTemp("", "openlms-test-*.db")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	dbPath := f.Name()
	f.Close()

	db, err := NewDB(dbPath)
	if err != nil {
		os.Remove(dbPath)
		t.Fatalf("NewDB: %v", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		os.Remove(dbPath)
		t.Fatalf("Migrate: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}

	return db, cleanup
}

func mustCreateUser(t *testing.T, q *Queries, email, role string) model.User {
	t.Helper()
	u, err := q.CreateUser(context.Background(), CreateUserParams{
		Email:        email,
		PasswordHash: "x",
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
		IsVerified:   true,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func mustCreateCourse(t *testing.T, q *Queries, slug string, instructorID int64) model.Course {
	t.Helper()
	c, err := q.CreateCourse(context.Background(), CreateCourseParams{
		Title:          "Course " + slug,
		Slug:           slug,
		InstructorID:   instructorID,
		EnrollmentType: model.EnrollmentPublic,
		Price:          decimal.Zero,
		Currency:       "USD",
	})
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	return c
}

func TestCreateUser(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)

	user, err := q.CreateUser(ctx, CreateUserParams{
		Email:        "Student@Example.com",
		PasswordHash: "hashed-password",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Role:         model.RoleStudent,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID == 0 {
		t.Error("expected non-zero user ID")
	}
	if user.Email != "student@example.com" {
		t.Errorf("expected lowercased email, got %q", user.Email)
	}
	if user.IsVerified {
		t.Error("new user should not be verified")
	}

	// Duplicate email violates the unique constraint, case-insensitively.
	if _, err := q.CreateUser(ctx, CreateUserParams{
		Email:        "STUDENT@example.com",
		PasswordHash: "other",
		FirstName:    "A",
		LastName:     "B",
		Role:         model.RoleStudent,
	}); err == nil {
		t.Error("expected duplicate email insert to fail")
	}

	exists, err := q.UserEmailExists(ctx, "STUDENT@EXAMPLE.COM")
	if err != nil {
		t.Fatalf("UserEmailExists: %v", err)
	}
	if !exists {
		t.Error("expected email to exist")
	}
}

func TestUserTokens(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	u := mustCreateUser(t, q, "tok@example.com", model.RoleStudent)

	// Reset token with future expiry is found; expired one is not.
	expires := sql.NullTime{Time: time.Now().Add(time.Hour), Valid: true}
	if err := q.SetResetToken(ctx, u.ID, "reset-tok", expires); err != nil {
		t.Fatalf("SetResetToken: %v", err)
	}
	got, err := q.GetUserByResetToken(ctx, "reset-tok")
	if err != nil {
		t.Fatalf("GetUserByResetToken: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("expected user %d, got %d", u.ID, got.ID)
	}

	past := sql.NullTime{Time: time.Now().Add(-time.Hour), Valid: true}
	if err := q.SetResetToken(ctx, u.ID, "stale-tok", past); err != nil {
		t.Fatalf("SetResetToken: %v", err)
	}
	if _, err := q.GetUserByResetToken(ctx, "stale-tok"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows for expired token, got %v", err)
	}

	// Changing the password invalidates reset and remember tokens.
	rememberExp := sql.NullTime{Time: time.Now().Add(24 * time.Hour), Valid: true}
	if err := q.SetRememberToken(ctx, u.ID,
		sql.NullString{String: "rem-tok", Valid: true}, rememberExp); err != nil {
		t.Fatalf("SetRememberToken: %v", err)
	}
	if err := q.UpdateUserPassword(ctx, u.ID, "new-hash"); err != nil {
		t.Fatalf("UpdateUserPassword: %v", err)
	}
	if _, err := q.GetUserByRememberToken(ctx, "rem-tok"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected remember token cleared after password change, got %v", err)
	}
}

func TestListListableCourses(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	inst := mustCreateUser(t, q, "inst@example.com", model.RoleInstructor)

	visible := mustCreateCourse(t, q, "visible", inst.ID)
	if err := q.SetCourseApproval(ctx, visible.ID, model.ApprovalApproved); err != nil {
		t.Fatalf("SetCourseApproval: %v", err)
	}
	if err := q.UpdateCourse(ctx, UpdateCourseParams{
		ID: visible.ID, Title: visible.Title, EnrollmentType: visible.EnrollmentType,
		Price: visible.Price, Currency: visible.Currency, IsPublished: true,
	}); err != nil {
		t.Fatalf("UpdateCourse: %v", err)
	}

	// Unpublished and unapproved courses stay hidden.
	mustCreateCourse(t, q, "draft", inst.ID)
	pending := mustCreateCourse(t, q, "pending-pub", inst.ID)
	if err := q.UpdateCourse(ctx, UpdateCourseParams{
		ID: pending.ID, Title: pending.Title, EnrollmentType: pending.EnrollmentType,
		Price: pending.Price, Currency: pending.Currency, IsPublished: true,
	}); err != nil {
		t.Fatalf("UpdateCourse: %v", err)
	}

	courses, err := q.ListListableCourses(ctx, ListCoursesParams{Limit: 10})
	if err != nil {
		t.Fatalf("ListListableCourses: %v", err)
	}
	if len(courses) != 1 || courses[0].Slug != "visible" {
		t.Errorf("expected only the visible course, got %+v", courses)
	}
}

func TestEnrollmentUniqueness(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	inst := mustCreateUser(t, q, "inst@example.com", model.RoleInstructor)
	student := mustCreateUser(t, q, "stud@example.com", model.RoleStudent)
	course := mustCreateCourse(t, q, "go-101", inst.ID)

	e, err := q.CreateEnrollment(ctx, student.ID, course.ID)
	if err != nil {
		t.Fatalf("CreateEnrollment: %v", err)
	}
	if e.Status != model.EnrollmentStatusActive {
		t.Errorf("expected active status, got %q", e.Status)
	}
	if e.ProgressPercentage != 0 {
		t.Errorf("expected zero progress, got %v", e.ProgressPercentage)
	}

	if _, err := q.CreateEnrollment(ctx, student.ID, course.ID); err == nil {
		t.Error("expected duplicate enrollment to fail")
	}
}

func TestProgressOneWayCompletion(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	inst := mustCreateUser(t, q, "inst@example.com", model.RoleInstructor)
	student := mustCreateUser(t, q, "stud@example.com", model.RoleStudent)
	course := mustCreateCourse(t, q, "go-101", inst.ID)

	e, err := q.CreateEnrollment(ctx, student.ID, course.ID)
	if err != nil {
		t.Fatalf("CreateEnrollment: %v", err)
	}

	if err := q.UpdateEnrollmentProgress(ctx, e.ID, 100); err != nil {
		t.Fatalf("UpdateEnrollmentProgress: %v", err)
	}
	got, err := q.GetEnrollment(ctx, student.ID, course.ID)
	if err != nil {
		t.Fatalf("GetEnrollment: %v", err)
	}
	if got.Status != model.EnrollmentStatusCompleted {
		t.Errorf("expected completed status, got %q", got.Status)
	}
	if !got.CompletionDate.Valid {
		t.Error("expected completion date to be set")
	}
	firstCompletion := got.CompletionDate.Time

	// Progress dropping below 100 (new lessons added) must not demote the
	// enrollment or clear the completion date.
	if err := q.UpdateEnrollmentProgress(ctx, e.ID, 50); err != nil {
		t.Fatalf("UpdateEnrollmentProgress: %v", err)
	}
	got, err = q.GetEnrollment(ctx, student.ID, course.ID)
	if err != nil {
		t.Fatalf("GetEnrollment: %v", err)
	}
	if got.Status != model.EnrollmentStatusCompleted {
		t.Errorf("completion must be one-way, got status %q", got.Status)
	}
	if got.ProgressPercentage != 50 {
		t.Errorf("expected progress 50, got %v", got.ProgressPercentage)
	}

	// Re-completing keeps the original completion date.
	if err := q.UpdateEnrollmentProgress(ctx, e.ID, 100); err != nil {
		t.Fatalf("UpdateEnrollmentProgress: %v", err)
	}
	got, _ = q.GetEnrollment(ctx, student.ID, course.ID)
	if !got.CompletionDate.Time.Equal(firstCompletion) {
		t.Errorf("completion date changed: %v vs %v", got.CompletionDate.Time, firstCompletion)
	}
}

func TestMarkLessonCompletedIdempotent(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	inst := mustCreateUser(t, q, "inst@example.com", model.RoleInstructor)
	student := mustCreateUser(t, q, "stud@example.com", model.RoleStudent)
	course := mustCreateCourse(t, q, "go-101", inst.ID)

	mod, err := q.CreateModule(ctx, CreateModuleParams{
		CourseID: course.ID, Title: "Basics", IsPublished: true,
	})
	if err != nil {
		t.Fatalf("CreateModule: %v", err)
	}
	lesson, err := q.CreateLesson(ctx, CreateLessonParams{
		ModuleID: mod.ID, CourseID: course.ID, Title: "Hello",
		ContentType: model.ContentTypeText, IsPublished: true,
	})
	if err != nil {
		t.Fatalf("CreateLesson: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := q.MarkLessonCompleted(ctx, student.ID, lesson.ID); err != nil {
			t.Fatalf("MarkLessonCompleted: %v", err)
		}
	}

	n, err := q.CountCompletedLessons(ctx, student.ID, course.ID)
	if err != nil {
		t.Fatalf("CountCompletedLessons: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 completed lesson, got %d", n)
	}
}

func TestCountPublishedLessonsExcludesDrafts(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)
	inst := mustCreateUser(t, q, "inst@example.com", model.RoleInstructor)
	course := mustCreateCourse(t, q, "go-101", inst.ID)

	pubMod, _ := q.CreateModule(ctx, CreateModuleParams{CourseID: course.ID, Title: "A", IsPublished: true})
	draftMod, _ := q.CreateModule(ctx, CreateModuleParams{CourseID: course.ID, Title: "B"})

	q.CreateLesson(ctx, CreateLessonParams{ModuleID: pubMod.ID, CourseID: course.ID,
		Title: "published", ContentType: model.ContentTypeText, IsPublished: true})
	q.CreateLesson(ctx, CreateLessonParams{ModuleID: pubMod.ID, CourseID: course.ID,
		Title: "draft lesson", ContentType: model.ContentTypeText})
	q.CreateLesson(ctx, CreateLessonParams{ModuleID: draftMod.ID, CourseID: course.ID,
		Title: "in draft module", ContentType: model.ContentTypeText, IsPublished: true})

	n, err := q.CountPublishedLessons(ctx, course.ID)
	if err != nil {
		t.Fatalf("CountPublishedLessons: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 countable lesson, got %d", n)
	}
}

func TestSettingsUpsert(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)

	if err := q.SetSetting(ctx, model.SettingSiteName, "First"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := q.SetSetting(ctx, model.SettingSiteName, "Second"); err != nil {
		t.Fatalf("SetSetting upsert: %v", err)
	}

	s, err := q.GetSetting(ctx, model.SettingSiteName)
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if s.Value != "Second" {
		t.Errorf("expected upserted value, got %q", s.Value)
	}
}

func TestEmailQueue(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	q := New(db)

	e, err := q.EnqueueEmail(ctx, EnqueueEmailParams{
		Recipient: "user@example.com",
		Subject:   "Verify your account",
		Body:      "Click the link",
		Kind:      "verification",
	})
	if err != nil {
		t.Fatalf("EnqueueEmail: %v", err)
	}
	if e.Status != model.EmailStatusPending {
		t.Errorf("expected pending status, got %q", e.Status)
	}

	pending, err := q.ListPendingEmails(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingEmails: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending email, got %d", len(pending))
	}

	if err := q.SetEmailStatus(ctx, e.ID, model.EmailStatusSent); err != nil {
		t.Fatalf("SetEmailStatus: %v", err)
	}
	pending, _ = q.ListPendingEmails(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("expected no pending emails, got %d", len(pending))
	}
}

func TestSeed(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := Seed(ctx, db); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	// Seeding twice is a no-op.
	if err := Seed(ctx, db); err != nil {
		t.Fatalf("Seed (second run): %v", err)
	}

	q := New(db)
	admin, err := q.GetUserByEmail(ctx, DefaultAdminEmail)
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if admin.Role != model.RoleAdmin {
		t.Errorf("expected admin role, got %q", admin.Role)
	}
	if !admin.IsVerified {
		t.Error("seeded admin should be verified")
	}
}
