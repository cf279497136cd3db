package handler

import (
	"errors"
	"net/http"

	"github.com/alexedwards/scs/v2"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/openlms/openlms/internal/middleware"
	"github.com/openlms/openlms/internal/model"
	"github.com/openlms/openlms/internal/render"
	"github.com/openlms/openlms/internal/service"
	"github.com/openlms/openlms/internal/upload"
)

const (
	redirectProfile = "/profile"
	maxAvatarBytes  = 5 << 20
)

// DashboardHandler serves the student dashboard and profile pages.
type DashboardHandler struct {
	enroll   *service.EnrollmentService
	users    *service.UserService
	auth     *service.AuthService
	stats    *service.StatsService
	activity *service.ActivityService
	avatars  *upload.AvatarStore
	renderer *render.Renderer
	sm       *scs.SessionManager
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(enroll *service.EnrollmentService, users *service.UserService,
	auth *service.AuthService, stats *service.StatsService, activity *service.ActivityService,
	avatars *upload.AvatarStore, renderer *render.Renderer, sm *scs.SessionManager) *DashboardHandler {
	return &DashboardHandler{
		enroll:   enroll,
		users:    users,
		auth:     auth,
		stats:    stats,
		activity: activity,
		avatars:  avatars,
		renderer: renderer,
		sm:       sm,
	}
}

type dashboardData struct {
	Enrollments []service.EnrolledCourse
	Stats       service.StudentStats
}

// Home renders the student dashboard.
func (h *DashboardHandler) Home(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	enrollments, err := h.enroll.ListUserEnrollments(r.Context(), user.ID)
	if err != nil {
		logAndInternalError(w, "listing enrollments", "error", err, "user_id", user.ID)
		return
	}
	stats, err := h.stats.Student(r.Context(), user.ID)
	if err != nil {
		logAndInternalError(w, "loading student stats", "error", err)
		return
	}

	data := dashboardData{Enrollments: enrollments, Stats: stats}
	if err := h.renderer.Render(w, r, "dashboard/home", pageData(h.sm, r, "Dashboard", data)); err != nil {
		logAndInternalError(w, "rendering dashboard", "error", err)
	}
}

// ProfileForm renders the profile page.
func (h *DashboardHandler) ProfileForm(w http.ResponseWriter, r *http.Request) {
	if err := h.renderer.Render(w, r, "dashboard/profile", pageData(h.sm, r, "Profile", nil)); err != nil {
		logAndInternalError(w, "rendering profile", "error", err)
	}
}

// UpdateProfile handles the profile form submission.
func (h *DashboardHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !parseFormOrRedirect(w, r, h.renderer, redirectProfile) {
		return
	}

	in := service.ProfileInput{
		FirstName: r.FormValue("first_name"),
		LastName:  r.FormValue("last_name"),
		Bio:       r.FormValue("bio"),
		Phone:     r.FormValue("phone"),
	}

	if err := h.users.UpdateProfile(r.Context(), user.ID, in); err != nil {
		var vErrs validation.Errors
		if errors.As(err, &vErrs) {
			flashError(w, r, h.renderer, redirectProfile, "Please check the form: "+err.Error())
			return
		}
		logAndInternalError(w, "updating profile", "error", err, "user_id", user.ID)
		return
	}

	h.activity.RecordForUser(r.Context(), user.ID, model.ActionProfileUpdated, "", requestMeta(r))
	flashSuccess(w, r, h.renderer, redirectProfile, "Profile updated")
}

// UploadAvatar handles the avatar upload form.
func (h *DashboardHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		flashError(w, r, h.renderer, redirectProfile, "Upload too large or malformed")
		return
	}
	file, _, err := r.FormFile("avatar")
	if err != nil {
		flashError(w, r, h.renderer, redirectProfile, "Choose an image to upload")
		return
	}
	defer file.Close()

	name, err := h.avatars.Save(file)
	if err != nil {
		flashError(w, r, h.renderer, redirectProfile, "Could not process the image")
		return
	}

	// Replace the previous avatar file, if any
	old := user.Avatar
	if err := h.users.SetAvatar(r.Context(), user.ID, name); err != nil {
		_ = h.avatars.Delete(name)
		logAndInternalError(w, "saving avatar", "error", err, "user_id", user.ID)
		return
	}
	if old.Valid {
		_ = h.avatars.Delete(old.String)
	}

	h.activity.RecordForUser(r.Context(), user.ID, model.ActionAvatarUploaded, name, requestMeta(r))
	flashSuccess(w, r, h.renderer, redirectProfile, "Avatar updated")
}

// ChangePassword handles the password change form.
func (h *DashboardHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !parseFormOrRedirect(w, r, h.renderer, redirectProfile) {
		return
	}

	current := r.FormValue("current_password")
	newPassword := r.FormValue("new_password")

	err := h.auth.ChangePassword(r.Context(), user.ID, current, newPassword)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		flashError(w, r, h.renderer, redirectProfile, "Current password is incorrect")
		return
	case errors.Is(err, service.ErrWeakPassword):
		flashError(w, r, h.renderer, redirectProfile, "New password is too short")
		return
	case err != nil:
		logAndInternalError(w, "changing password", "error", err, "user_id", user.ID)
		return
	}

	h.activity.RecordForUser(r.Context(), user.ID, model.ActionPasswordChanged, "", requestMeta(r))
	flashSuccess(w, r, h.renderer, redirectProfile, "Password changed")
}
