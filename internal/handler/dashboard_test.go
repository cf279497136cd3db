package handler

import (
	"context"
	"net/url"
	"testing"

	"github.com/openlms/openlms/internal/model"
)

func TestDashboard_ShowsEnrollments(t *testing.T) {
	app := newTestApp(t)
	instructor := app.createUser("teach@example.com", "password123", model.RoleInstructor)
	course := app.seedCourse(instructor, "Visible On Dashboard")
	app.createUser("student@example.com", "password123", model.RoleStudent)
	app.login("student@example.com", "password123")

	app.postForm("/courses/"+course.Slug+"/enroll", nil)

	_, body := app.get("/dashboard")
	assertContains(t, body, "Visible On Dashboard")
}

func TestUpdateProfile(t *testing.T) {
	app := newTestApp(t)
	user := app.createUser("user@example.com", "password123", model.RoleStudent)
	app.login("user@example.com", "password123")

	_, body := app.postForm("/profile", url.Values{
		"first_name": {"Grace"},
		"last_name":  {"Hopper"},
		"bio":        {"Navy rear admiral."},
	})
	assertContains(t, body, "Profile updated")

	updated, err := app.queries.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if updated.FirstName != "Grace" || updated.LastName != "Hopper" {
		t.Errorf("name = %q %q; want Grace Hopper", updated.FirstName, updated.LastName)
	}
}

func TestChangePassword(t *testing.T) {
	app := newTestApp(t)
	app.createUser("user@example.com", "password123", model.RoleStudent)
	app.login("user@example.com", "password123")

	_, body := app.postForm("/profile/password", url.Values{
		"current_password": {"password123"},
		"new_password":     {"newpassword456"},
	})
	assertContains(t, body, "Password changed")

	app.postForm("/logout", nil)
	app.login("user@example.com", "newpassword456")
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	app := newTestApp(t)
	app.createUser("user@example.com", "password123", model.RoleStudent)
	app.login("user@example.com", "password123")

	_, body := app.postForm("/profile/password", url.Values{
		"current_password": {"not-the-password"},
		"new_password":     {"newpassword456"},
	})
	assertContains(t, body, "Current password is incorrect")
}
