package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/openlms/openlms/internal/middleware"
	"github.com/openlms/openlms/internal/model"
	"github.com/openlms/openlms/internal/render"
	"github.com/openlms/openlms/internal/service"
	"github.com/openlms/openlms/internal/store"
)

const (
	redirectAdmin      = "/admin"
	redirectAdminUsers = "/admin/users"

	adminUsersPageSize = 50
)

// AdminHandler serves the administration pages.
type AdminHandler struct {
	catalog  *service.CatalogService
	users    *service.UserService
	stats    *service.StatsService
	activity *service.ActivityService
	queries  *store.Queries
	renderer *render.Renderer
	sm       *scs.SessionManager
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(catalog *service.CatalogService, users *service.UserService,
	stats *service.StatsService, activity *service.ActivityService,
	queries *store.Queries, renderer *render.Renderer, sm *scs.SessionManager) *AdminHandler {
	return &AdminHandler{
		catalog:  catalog,
		users:    users,
		stats:    stats,
		activity: activity,
		queries:  queries,
		renderer: renderer,
		sm:       sm,
	}
}

type adminDashboardData struct {
	Stats    service.AdminStats
	Pending  []model.Course
	Activity []model.Activity
}

// Dashboard renders the admin overview with pending approvals and recent activity.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Admin(r.Context())
	if err != nil {
		logAndInternalError(w, "loading admin stats", "error", err)
		return
	}
	pending, err := h.catalog.ListPendingCourses(r.Context())
	if err != nil {
		logAndInternalError(w, "listing pending courses", "error", err)
		return
	}
	recent, err := h.activity.Recent(r.Context(), 25)
	if err != nil {
		logAndInternalError(w, "listing recent activity", "error", err)
		return
	}

	data := adminDashboardData{Stats: stats, Pending: pending, Activity: recent}
	if err := h.renderer.Render(w, r, "admin/dashboard", pageData(h.sm, r, "Administration", data)); err != nil {
		logAndInternalError(w, "rendering admin dashboard", "error", err)
	}
}

// ApproveCourse approves a pending course for the catalog.
func (h *AdminHandler) ApproveCourse(w http.ResponseWriter, r *http.Request) {
	h.setApproval(w, r, model.ApprovalApproved, model.ActionCourseApproved, "Course approved")
}

// RejectCourse rejects a pending course.
func (h *AdminHandler) RejectCourse(w http.ResponseWriter, r *http.Request) {
	h.setApproval(w, r, model.ApprovalRejected, model.ActionCourseRejected, "Course rejected")
}

func (h *AdminHandler) setApproval(w http.ResponseWriter, r *http.Request, status, action, message string) {
	admin := middleware.GetUser(r)

	courseID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	course, err := h.queries.GetCourseByID(r.Context(), courseID)
	if err != nil {
		flashError(w, r, h.renderer, redirectAdmin, "Course not found")
		return
	}

	if err := h.catalog.SetApproval(r.Context(), courseID, status); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			flashError(w, r, h.renderer, redirectAdmin, "Course not found")
			return
		}
		logAndInternalError(w, "setting course approval", "error", err, "course_id", courseID)
		return
	}

	h.activity.RecordForUser(r.Context(), admin.ID, action, course.Title, requestMeta(r))
	flashSuccess(w, r, h.renderer, redirectAdmin, message)
}

type adminUsersData struct {
	Users []model.User
	Page  int64
}

// Users lists accounts for role and status management.
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.ParseInt(r.URL.Query().Get("page"), 10, 64)
	if page < 1 {
		page = 1
	}

	users, err := h.users.List(r.Context(), adminUsersPageSize, (page-1)*adminUsersPageSize)
	if err != nil {
		logAndInternalError(w, "listing users", "error", err)
		return
	}

	data := adminUsersData{Users: users, Page: page}
	if err := h.renderer.Render(w, r, "admin/users", pageData(h.sm, r, "Users", data)); err != nil {
		logAndInternalError(w, "rendering users page", "error", err)
	}
}

// SetUserRole changes an account's role.
func (h *AdminHandler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	admin := middleware.GetUser(r)
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if !parseFormOrRedirect(w, r, h.renderer, redirectAdminUsers) {
		return
	}
	if userID == admin.ID {
		flashError(w, r, h.renderer, redirectAdminUsers, "You cannot change your own role")
		return
	}

	if err := h.users.SetRole(r.Context(), userID, r.FormValue("role")); err != nil {
		flashError(w, r, h.renderer, redirectAdminUsers, "Could not change the role")
		return
	}
	flashSuccess(w, r, h.renderer, redirectAdminUsers, "Role updated")
}

// SetUserStatus suspends or reinstates an account.
func (h *AdminHandler) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	admin := middleware.GetUser(r)
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if !parseFormOrRedirect(w, r, h.renderer, redirectAdminUsers) {
		return
	}
	if userID == admin.ID {
		flashError(w, r, h.renderer, redirectAdminUsers, "You cannot change your own status")
		return
	}

	if err := h.users.SetStatus(r.Context(), userID, r.FormValue("status")); err != nil {
		flashError(w, r, h.renderer, redirectAdminUsers, "Could not change the status")
		return
	}
	flashSuccess(w, r, h.renderer, redirectAdminUsers, "Status updated")
}
