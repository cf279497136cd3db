package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/openlms/openlms/internal/middleware"
	"github.com/openlms/openlms/internal/model"
	"github.com/openlms/openlms/internal/render"
	"github.com/openlms/openlms/internal/service"
	"github.com/openlms/openlms/internal/store"
	"github.com/openlms/openlms/internal/util"
)

const redirectInstructor = "/instructor/courses"

// InstructorHandler serves the course authoring pages.
type InstructorHandler struct {
	catalog  *service.CatalogService
	stats    *service.StatsService
	activity *service.ActivityService
	queries  *store.Queries
	renderer *render.Renderer
	sm       *scs.SessionManager
}

// NewInstructorHandler creates a new InstructorHandler.
func NewInstructorHandler(catalog *service.CatalogService, stats *service.StatsService,
	activity *service.ActivityService, queries *store.Queries,
	renderer *render.Renderer, sm *scs.SessionManager) *InstructorHandler {
	return &InstructorHandler{
		catalog:  catalog,
		stats:    stats,
		activity: activity,
		queries:  queries,
		renderer: renderer,
		sm:       sm,
	}
}

type instructorCoursesData struct {
	Courses    []model.Course
	Categories []model.Category
	Stats      service.InstructorStats
}

// Courses lists the instructor's courses and the new-course form.
func (h *InstructorHandler) Courses(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)

	courses, err := h.catalog.ListInstructorCourses(r.Context(), user.ID)
	if err != nil {
		logAndInternalError(w, "listing instructor courses", "error", err, "user_id", user.ID)
		return
	}
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		logAndInternalError(w, "listing categories", "error", err)
		return
	}
	stats, err := h.stats.Instructor(r.Context(), user.ID)
	if err != nil {
		logAndInternalError(w, "loading instructor stats", "error", err)
		return
	}

	data := instructorCoursesData{Courses: courses, Categories: categories, Stats: stats}
	if err := h.renderer.Render(w, r, "instructor/courses", pageData(h.sm, r, "My Teaching", data)); err != nil {
		logAndInternalError(w, "rendering instructor courses", "error", err)
	}
}

// courseInputFromForm reads the course form fields. Enrollment type, price,
// and currency fall back to sensible defaults for the short creation form.
func courseInputFromForm(r *http.Request) service.CourseInput {
	in := service.CourseInput{
		Title:          r.FormValue("title"),
		Description:    r.FormValue("description"),
		CategoryID:     util.ParseNullInt64(r.FormValue("category_id")),
		EnrollmentType: r.FormValue("enrollment_type"),
		Price:          r.FormValue("price"),
		Currency:       r.FormValue("currency"),
		MaxStudents:    util.ParseNullInt64Positive(r.FormValue("max_students")),
		IsPublished:    r.FormValue("is_published") == "1",
	}
	if in.EnrollmentType == "" {
		in.EnrollmentType = model.EnrollmentPublic
	}
	if in.Price == "" {
		in.Price = "0"
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}
	return in
}

// CreateCourse handles the new-course form. New courses start unapproved.
func (h *InstructorHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if !parseFormOrRedirect(w, r, h.renderer, redirectInstructor) {
		return
	}

	course, err := h.catalog.CreateCourse(r.Context(), user.ID, courseInputFromForm(r))
	if err != nil {
		var vErrs validation.Errors
		if errors.As(err, &vErrs) {
			flashError(w, r, h.renderer, redirectInstructor, "Please check the form: "+err.Error())
			return
		}
		logAndInternalError(w, "creating course", "error", err)
		return
	}

	h.activity.RecordForUser(r.Context(), user.ID, model.ActionCourseCreated, course.Title, requestMeta(r))
	flashSuccess(w, r, h.renderer, courseEditURL(course.ID), "Course created. It will appear in the catalog once approved.")
}

type instructorCourseData struct {
	Detail service.CourseDetail
}

// ShowCourse renders the course editor with drafts visible.
func (h *InstructorHandler) ShowCourse(w http.ResponseWriter, r *http.Request) {
	course, ok := h.ownCourse(w, r)
	if !ok {
		return
	}

	detail, err := h.catalog.GetCourse(r.Context(), course.Slug, true)
	if err != nil {
		logAndInternalError(w, "loading course editor", "error", err, "course_id", course.ID)
		return
	}

	data := instructorCourseData{Detail: detail}
	if err := h.renderer.Render(w, r, "instructor/course", pageData(h.sm, r, course.Title, data)); err != nil {
		logAndInternalError(w, "rendering course editor", "error", err)
	}
}

// UpdateCourse handles the course editor form.
func (h *InstructorHandler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	course, ok := h.ownCourse(w, r)
	if !ok {
		return
	}
	if !parseFormOrRedirect(w, r, h.renderer, courseEditURL(course.ID)) {
		return
	}

	in := courseInputFromForm(r)
	if r.FormValue("enrollment_type") == "" {
		in.EnrollmentType = course.EnrollmentType
	}
	if r.FormValue("currency") == "" {
		in.Currency = course.Currency
	}

	if err := h.catalog.UpdateCourse(r.Context(), *user, course.ID, in); err != nil {
		var vErrs validation.Errors
		if errors.As(err, &vErrs) {
			flashError(w, r, h.renderer, courseEditURL(course.ID), "Please check the form: "+err.Error())
			return
		}
		if errors.Is(err, service.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		logAndInternalError(w, "updating course", "error", err, "course_id", course.ID)
		return
	}

	flashSuccess(w, r, h.renderer, courseEditURL(course.ID), "Course saved")
}

// CreateModule adds a module to a course.
func (h *InstructorHandler) CreateModule(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	course, ok := h.ownCourse(w, r)
	if !ok {
		return
	}
	if !parseFormOrRedirect(w, r, h.renderer, courseEditURL(course.ID)) {
		return
	}

	in := service.ModuleInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		IsPublished: true,
	}
	if _, err := h.catalog.CreateModule(r.Context(), *user, course.ID, in); err != nil {
		var vErrs validation.Errors
		if errors.As(err, &vErrs) {
			flashError(w, r, h.renderer, courseEditURL(course.ID), "Please check the form: "+err.Error())
			return
		}
		logAndInternalError(w, "creating module", "error", err, "course_id", course.ID)
		return
	}

	flashSuccess(w, r, h.renderer, courseEditURL(course.ID), "Module added")
}

// CreateLesson adds a lesson to a module.
func (h *InstructorHandler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	moduleID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	mod, err := h.queries.GetModuleByID(r.Context(), moduleID)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	backURL := courseEditURL(mod.CourseID)

	if !parseFormOrRedirect(w, r, h.renderer, backURL) {
		return
	}

	in := service.LessonInput{
		Title:       r.FormValue("title"),
		Content:     r.FormValue("content"),
		ContentType: r.FormValue("content_type"),
		VideoURL:    r.FormValue("video_url"),
		IsPublished: true,
	}
	if _, err := h.catalog.CreateLesson(r.Context(), *user, moduleID, in); err != nil {
		var vErrs validation.Errors
		if errors.As(err, &vErrs) {
			flashError(w, r, h.renderer, backURL, "Please check the form: "+err.Error())
			return
		}
		if errors.Is(err, service.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		logAndInternalError(w, "creating lesson", "error", err, "module_id", moduleID)
		return
	}

	flashSuccess(w, r, h.renderer, backURL, "Lesson added")
}

// ownCourse loads the course from the URL and verifies the current user may
// edit it. Admins may edit any course.
func (h *InstructorHandler) ownCourse(w http.ResponseWriter, r *http.Request) (model.Course, bool) {
	user := middleware.GetUser(r)

	courseID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return model.Course{}, false
	}

	course, err := h.queries.GetCourseByID(r.Context(), courseID)
	if err != nil {
		http.NotFound(w, r)
		return model.Course{}, false
	}
	if !user.IsAdmin() && course.InstructorID != user.ID {
		http.NotFound(w, r)
		return model.Course{}, false
	}
	return course, true
}

func courseEditURL(id int64) string {
	return "/instructor/courses/" + strconv.FormatInt(id, 10)
}
