package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/openlms/openlms/internal/model"
	"github.com/openlms/openlms/internal/service"
	"github.com/openlms/openlms/internal/store"
)

func TestListCourses_ShowsApprovedOnly(t *testing.T) {
	app := newTestApp(t)
	instructor := app.createUser("teach@example.com", "password123", model.RoleInstructor)

	app.seedCourse(instructor, "Visible Course")

	// A published but unapproved course stays out of the catalog
	if _, err := app.catalog.CreateCourse(context.Background(), instructor.ID, serviceCourseInput("Hidden Course")); err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}

	status, body := app.get("/courses")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	assertContains(t, body, "Visible Course")
	if strings.Contains(body, "Hidden Course") {
		t.Error("unapproved course listed in the catalog")
	}
}

func TestListCourses_PageParameter(t *testing.T) {
	app := newTestApp(t)
	instructor := app.createUser("teach@example.com", "password123", model.RoleInstructor)
	app.seedCourse(instructor, "Lonely Course")

	status, body := app.get("/courses?page=2")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if strings.Contains(body, "Lonely Course") {
		t.Error("page 2 of a one-course catalog should be empty")
	}

	// Garbage page values fall back to the first page.
	status, body = app.get("/courses?page=bogus")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	assertContains(t, body, "Lonely Course")
}

func TestEnroll_RequiresLogin(t *testing.T) {
	app := newTestApp(t)
	instructor := app.createUser("teach@example.com", "password123", model.RoleInstructor)
	course := app.seedCourse(instructor, "Go Basics")

	_, body := app.postForm("/courses/"+course.Slug+"/enroll", nil)
	assertContains(t, body, "Log in")
}

func TestEnrollAndCompleteCourse(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	instructor := app.createUser("teach@example.com", "password123", model.RoleInstructor)
	course := app.seedCourse(instructor, "Go Basics")
	student := app.createUser("student@example.com", "password123", model.RoleStudent)
	app.login("student@example.com", "password123")

	_, body := app.postForm("/courses/"+course.Slug+"/enroll", nil)
	assertContains(t, body, "Enrolled! Start with the first lesson.")

	enr, err := app.enroll.Enrollment(ctx, student.ID, course.ID)
	if err != nil {
		t.Fatalf("Enrollment: %v", err)
	}
	if enr.ProgressPercentage != 0 {
		t.Errorf("initial progress = %v; want 0", enr.ProgressPercentage)
	}

	detail, err := app.catalog.GetCourse(ctx, course.Slug, false)
	if err != nil {
		t.Fatalf("GetCourse: %v", err)
	}
	lessons := detail.Modules[0].Lessons

	lessonURL := func(id int64) string {
		return "/lessons/" + strconv.FormatInt(id, 10)
	}

	status, body := app.get(lessonURL(lessons[0].ID))
	if status != http.StatusOK {
		t.Fatalf("lesson status = %d", status)
	}
	assertContains(t, body, "markdown")

	_, body = app.postForm(lessonURL(lessons[0].ID)+"/complete", nil)
	assertContains(t, body, "Lesson completed")

	enr, err = app.enroll.Enrollment(ctx, student.ID, course.ID)
	if err != nil {
		t.Fatalf("Enrollment: %v", err)
	}
	if enr.ProgressPercentage != 50 {
		t.Errorf("progress after one lesson = %v; want 50", enr.ProgressPercentage)
	}

	_, body = app.postForm(lessonURL(lessons[1].ID)+"/complete", nil)
	assertContains(t, body, "Congratulations, you finished the course!")

	enr, err = app.enroll.Enrollment(ctx, student.ID, course.ID)
	if err != nil {
		t.Fatalf("Enrollment: %v", err)
	}
	if !enr.IsCompleted() {
		t.Error("enrollment not marked completed")
	}
	if enr.ProgressPercentage != 100 {
		t.Errorf("final progress = %v; want 100", enr.ProgressPercentage)
	}
}

func TestEnroll_Twice(t *testing.T) {
	app := newTestApp(t)
	instructor := app.createUser("teach@example.com", "password123", model.RoleInstructor)
	course := app.seedCourse(instructor, "Go Basics")
	app.createUser("student@example.com", "password123", model.RoleStudent)
	app.login("student@example.com", "password123")

	app.postForm("/courses/"+course.Slug+"/enroll", nil)
	_, body := app.postForm("/courses/"+course.Slug+"/enroll", nil)
	assertContains(t, body, "already enrolled")
}

func TestEnroll_FullCourse(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	instructor := app.createUser("teach@example.com", "password123", model.RoleInstructor)

	in := serviceCourseInput("Tiny Course")
	in.MaxStudents.Int64, in.MaxStudents.Valid = 1, true
	course, err := app.catalog.CreateCourse(ctx, instructor.ID, in)
	if err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	if err := app.catalog.SetApproval(ctx, course.ID, model.ApprovalApproved); err != nil {
		t.Fatalf("SetApproval: %v", err)
	}
	if err := app.queries.UpdateCourse(ctx, store.UpdateCourseParams{
		ID: course.ID, Title: course.Title, Description: course.Description,
		CategoryID: course.CategoryID, EnrollmentType: course.EnrollmentType,
		Price: course.Price, Currency: course.Currency, MaxStudents: course.MaxStudents,
		IsPublished: true,
	}); err != nil {
		t.Fatalf("UpdateCourse: %v", err)
	}

	first := app.createUser("first@example.com", "password123", model.RoleStudent)
	if _, err := app.enroll.Enroll(ctx, first.ID, course.ID); err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	app.createUser("second@example.com", "password123", model.RoleStudent)
	app.login("second@example.com", "password123")
	_, body := app.postForm("/courses/"+course.Slug+"/enroll", nil)
	assertContains(t, body, "This course is full")
}

func TestShowLesson_RequiresEnrollment(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	instructor := app.createUser("teach@example.com", "password123", model.RoleInstructor)
	course := app.seedCourse(instructor, "Go Basics")
	app.createUser("student@example.com", "password123", model.RoleStudent)
	app.login("student@example.com", "password123")

	detail, err := app.catalog.GetCourse(ctx, course.Slug, false)
	if err != nil {
		t.Fatalf("GetCourse: %v", err)
	}
	lessonID := detail.Modules[0].Lessons[0].ID

	_, body := app.get(fmt.Sprintf("/lessons/%d", lessonID))
	assertContains(t, body, "Enroll to access the lessons")
}

func serviceCourseInput(title string) service.CourseInput {
	return service.CourseInput{
		Title:          title,
		Description:    "Test course",
		EnrollmentType: model.EnrollmentPublic,
		Price:          "0",
		Currency:       "USD",
		IsPublished:    true,
	}
}
