package handler

import (
	"errors"
	"html/template"
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

// CatalogHandler serves the public course catalog and the learning pages.
type CatalogHandler struct {
	catalog  *service.CatalogService
	enroll   *service.EnrollmentService
	activity *service.ActivityService
	queries  *store.Queries
	renderer *render.Renderer
	sm       *scs.SessionManager
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService, enroll *service.EnrollmentService,
	activity *service.ActivityService, queries *store.Queries,
	renderer *render.Renderer, sm *scs.SessionManager) *CatalogHandler {
	return &CatalogHandler{
		catalog:  catalog,
		enroll:   enroll,
		activity: activity,
		queries:  queries,
		renderer: renderer,
		sm:       sm,
	}
}

type courseListData struct {
	Courses      []model.Course
	Categories   []model.Category
	Search       string
	CategorySlug string
}

// ListCourses renders the catalog, optionally filtered by search and category.
func (h *CatalogHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.ParseInt(r.URL.Query().Get("page"), 10, 64)
	filter := service.CatalogFilter{
		CategorySlug: r.URL.Query().Get("category"),
		Search:       r.URL.Query().Get("q"),
		Page:         page,
	}

	courses, err := h.catalog.ListCourses(r.Context(), filter)
	if err != nil {
		logAndInternalError(w, "listing courses", "error", err)
		return
	}
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		logAndInternalError(w, "listing categories", "error", err)
		return
	}

	data := courseListData{
		Courses:      courses,
		Categories:   categories,
		Search:       filter.Search,
		CategorySlug: filter.CategorySlug,
	}
	if err := h.renderer.Render(w, r, "catalog/courses", pageData(h.sm, r, "Courses", data)); err != nil {
		logAndInternalError(w, "rendering course list", "error", err)
	}
}

type courseDetailData struct {
	Detail     service.CourseDetail
	IsEnrolled bool
	Progress   float64
	Completed  map[int64]bool
}

// ShowCourse renders a course page with its curriculum and, for enrolled
// students, their progress.
func (h *CatalogHandler) ShowCourse(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	detail, err := h.catalog.GetCourse(r.Context(), slug, false)
	if errors.Is(err, service.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		logAndInternalError(w, "loading course", "error", err, "slug", slug)
		return
	}

	data := courseDetailData{Detail: detail, Completed: map[int64]bool{}}

	if user := middleware.GetUser(r); user != nil {
		enrollment, err := h.enroll.Enrollment(r.Context(), user.ID, detail.Course.ID)
		if err == nil {
			data.IsEnrolled = true
			data.Progress = enrollment.ProgressPercentage
			data.Completed, err = h.queries.ListCompletedLessonIDs(r.Context(), user.ID, detail.Course.ID)
			if err != nil {
				logAndInternalError(w, "loading lesson progress", "error", err)
				return
			}
		} else if !errors.Is(err, service.ErrNotFound) {
			logAndInternalError(w, "loading enrollment", "error", err)
			return
		}
	}

	if err := h.renderer.Render(w, r, "catalog/course", pageData(h.sm, r, detail.Course.Title, data)); err != nil {
		logAndInternalError(w, "rendering course page", "error", err)
	}
}

// Enroll handles the enrollment button.
func (h *CatalogHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	slug := chi.URLParam(r, "slug")
	courseURL := "/courses/" + slug

	detail, err := h.catalog.GetCourse(r.Context(), slug, false)
	if errors.Is(err, service.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		logAndInternalError(w, "loading course", "error", err, "slug", slug)
		return
	}

	_, err = h.enroll.Enroll(r.Context(), user.ID, detail.Course.ID)
	switch {
	case errors.Is(err, service.ErrAlreadyEnrolled):
		flashError(w, r, h.renderer, courseURL, "You are already enrolled in this course")
		return
	case errors.Is(err, service.ErrCourseFull):
		flashError(w, r, h.renderer, courseURL, "This course is full")
		return
	case errors.Is(err, service.ErrEnrollmentNotAllowed):
		flashError(w, r, h.renderer, courseURL, "This course does not accept self-enrollment")
		return
	case errors.Is(err, service.ErrNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		logAndInternalError(w, "enrolling", "error", err, "course_id", detail.Course.ID)
		return
	}

	h.activity.RecordForUser(r.Context(), user.ID, model.ActionCourseEnrolled, detail.Course.Title, requestMeta(r))
	flashSuccess(w, r, h.renderer, courseURL, "Enrolled! Start with the first lesson.")
}

type lessonData struct {
	Course    model.Course
	Lesson    model.Lesson
	Content   template.HTML
	Completed bool
}

// ShowLesson renders a lesson for an enrolled student.
func (h *CatalogHandler) ShowLesson(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	lessonID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	lesson, err := h.catalog.GetLesson(r.Context(), lessonID, false)
	if errors.Is(err, service.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		logAndInternalError(w, "loading lesson", "error", err, "lesson_id", lessonID)
		return
	}

	course, err := h.queries.GetCourseByID(r.Context(), lesson.CourseID)
	if err != nil {
		logAndInternalError(w, "loading lesson course", "error", err)
		return
	}

	if _, err := h.enroll.Enrollment(r.Context(), user.ID, course.ID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			flashError(w, r, h.renderer, "/courses/"+course.Slug, "Enroll to access the lessons")
			return
		}
		logAndInternalError(w, "loading enrollment", "error", err)
		return
	}

	content, err := h.catalog.RenderLessonContent(lesson)
	if err != nil {
		logAndInternalError(w, "rendering lesson content", "error", err, "lesson_id", lessonID)
		return
	}

	completed, err := h.queries.LessonCompleted(r.Context(), user.ID, lessonID)
	if err != nil {
		logAndInternalError(w, "checking lesson completion", "error", err)
		return
	}

	data := lessonData{Course: course, Lesson: lesson, Content: content, Completed: completed}
	if err := h.renderer.Render(w, r, "catalog/lesson", pageData(h.sm, r, lesson.Title, data)); err != nil {
		logAndInternalError(w, "rendering lesson page", "error", err)
	}
}

// CompleteLesson marks a lesson as done and reports course completion when
// the last lesson falls.
func (h *CatalogHandler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	lessonID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	lesson, err := h.catalog.GetLesson(r.Context(), lessonID, false)
	if errors.Is(err, service.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		logAndInternalError(w, "loading lesson", "error", err, "lesson_id", lessonID)
		return
	}
	lessonURL := "/lessons/" + strconv.FormatInt(lessonID, 10)

	enrollment, err := h.enroll.MarkLessonCompleted(r.Context(), user.ID, lessonID)
	switch {
	case errors.Is(err, service.ErrEnrollmentNotAllowed):
		flashError(w, r, h.renderer, "/courses", "Enroll to track progress")
		return
	case errors.Is(err, service.ErrNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		logAndInternalError(w, "completing lesson", "error", err, "lesson_id", lessonID)
		return
	}

	h.activity.RecordForUser(r.Context(), user.ID, model.ActionLessonCompleted, lesson.Title, requestMeta(r))

	if enrollment.IsCompleted() {
		course, err := h.queries.GetCourseByID(r.Context(), lesson.CourseID)
		if err == nil {
			h.activity.RecordForUser(r.Context(), user.ID, model.ActionCourseCompleted, course.Title, requestMeta(r))
			flashSuccess(w, r, h.renderer, "/courses/"+course.Slug, "Congratulations, you finished the course!")
			return
		}
	}
	flashSuccess(w, r, h.renderer, lessonURL, "Lesson completed")
}
