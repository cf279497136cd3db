package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html/template"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/openlms/openlms/internal/model"
	"github.com/openlms/openlms/internal/store"
	"github.com/openlms/openlms/internal/util"
)

// CatalogService serves the public course catalog and the instructor/admin
// authoring operations behind it.
type CatalogService struct {
	q        *store.Queries
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
}

// NewCatalogService creates the catalog service.
func NewCatalogService(q *store.Queries) *CatalogService {
	return &CatalogService{
		q: q,
		markdown: goldmark.New(
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// CatalogFilter narrows the public course listing.
type CatalogFilter struct {
	CategorySlug string
	Search       string
	Page         int64
	PerPage      int64
}

// ListCourses returns catalog courses matching the filter. Only published,
// approved courses appear.
func (s *CatalogService) ListCourses(ctx context.Context, filter CatalogFilter) ([]model.Course, error) {
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	params := store.ListCoursesParams{
		Search: util.NullStringFromValue(filter.Search),
		Limit:  filter.PerPage,
		Offset: (filter.Page - 1) * filter.PerPage,
	}

	if filter.CategorySlug != "" {
		cat, err := s.q.GetCategoryBySlug(ctx, filter.CategorySlug)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("loading category: %w", err)
		}
		params.CategoryID = util.NullInt64FromValue(cat.ID)
	}

	courses, err := s.q.ListListableCourses(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("listing courses: %w", err)
	}
	return courses, nil
}

// CourseDetail is a course with its visible curriculum.
type CourseDetail struct {
	Course     model.Course
	Instructor model.User
	Category   *model.Category
	Modules    []ModuleDetail
	Enrolled   int64
}

// ModuleDetail is a module with its visible lessons.
type ModuleDetail struct {
	Module  model.Module
	Lessons []model.Lesson
}

// GetCourse returns a catalog course by slug with its published curriculum.
// Unpublished or unapproved courses are hidden unless includeDrafts is set
// (instructor/admin views).
func (s *CatalogService) GetCourse(ctx context.Context, slug string, includeDrafts bool) (CourseDetail, error) {
	course, err := s.q.GetCourseBySlug(ctx, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return CourseDetail{}, ErrNotFound
	}
	if err != nil {
		return CourseDetail{}, fmt.Errorf("loading course: %w", err)
	}
	if !includeDrafts && !course.IsListable() {
		return CourseDetail{}, ErrNotFound
	}

	detail := CourseDetail{Course: course}

	detail.Instructor, err = s.q.GetUserByID(ctx, course.InstructorID)
	if err != nil {
		return CourseDetail{}, fmt.Errorf("loading instructor: %w", err)
	}

	if course.CategoryID.Valid {
		cats, err := s.q.ListCategories(ctx)
		if err != nil {
			return CourseDetail{}, fmt.Errorf("loading categories: %w", err)
		}
		for i := range cats {
			if cats[i].ID == course.CategoryID.Int64 {
				detail.Category = &cats[i]
				break
			}
		}
	}

	publishedOnly := !includeDrafts
	modules, err := s.q.ListModulesByCourse(ctx, course.ID, publishedOnly)
	if err != nil {
		return CourseDetail{}, fmt.Errorf("listing modules: %w", err)
	}
	for _, m := range modules {
		lessons, err := s.q.ListLessonsByModule(ctx, m.ID, publishedOnly)
		if err != nil {
			return CourseDetail{}, fmt.Errorf("listing lessons: %w", err)
		}
		detail.Modules = append(detail.Modules, ModuleDetail{Module: m, Lessons: lessons})
	}

	detail.Enrolled, err = s.q.CountEnrollmentsByCourse(ctx, course.ID)
	if err != nil {
		return CourseDetail{}, fmt.Errorf("counting enrollments: %w", err)
	}

	return detail, nil
}

// ListCategories returns all course categories.
func (s *CatalogService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.q.ListCategories(ctx)
}

// CreateCategory adds a category with a generated unique slug.
func (s *CatalogService) CreateCategory(ctx context.Context, name, description string) (model.Category, error) {
	if name == "" {
		return model.Category{}, validation.NewError("validation_required", "name cannot be blank")
	}
	slug, err := util.UniqueSlug(ctx, name, func(ctx context.Context, slug string) (bool, error) {
		_, err := s.q.GetCategoryBySlug(ctx, slug)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return err == nil, err
	})
	if err != nil {
		return model.Category{}, fmt.Errorf("generating slug: %w", err)
	}
	return s.q.CreateCategory(ctx, name, slug, util.NullStringFromValue(description))
}

// CourseInput carries the course authoring form fields.
type CourseInput struct {
	Title          string
	Description    string
	CategoryID     sql.NullInt64
	EnrollmentType string
	Price          string
	Currency       string
	MaxStudents    sql.NullInt64
	IsPublished    bool
}

// Validate checks the course authoring fields.
func (in CourseInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(3, 200)),
		validation.Field(&in.Description, validation.Length(0, 10000)),
		validation.Field(&in.EnrollmentType, validation.Required, validation.In(
			model.EnrollmentPublic, model.EnrollmentPrivate, model.EnrollmentInviteOnly)),
		validation.Field(&in.Currency, validation.Required, validation.Length(3, 3)),
	)
}

func parsePrice(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	price, err := decimal.NewFromString(s)
	if err != nil || price.IsNegative() {
		return decimal.Zero, validation.NewError("validation_price", "price must be a non-negative number")
	}
	return price, nil
}

// CreateCourse creates a course for the instructor. New courses await admin
// approval before they can appear in the catalog.
func (s *CatalogService) CreateCourse(ctx context.Context, instructorID int64, in CourseInput) (model.Course, error) {
	if err := in.Validate(); err != nil {
		return model.Course{}, err
	}
	price, err := parsePrice(in.Price)
	if err != nil {
		return model.Course{}, err
	}

	slug, err := util.UniqueSlug(ctx, in.Title, s.q.CourseSlugExists)
	if err != nil {
		return model.Course{}, fmt.Errorf("generating slug: %w", err)
	}

	course, err := s.q.CreateCourse(ctx, store.CreateCourseParams{
		Title:          in.Title,
		Slug:           slug,
		Description:    util.NullStringFromValue(in.Description),
		InstructorID:   instructorID,
		CategoryID:     in.CategoryID,
		EnrollmentType: in.EnrollmentType,
		Price:          price,
		Currency:       in.Currency,
		MaxStudents:    in.MaxStudents,
	})
	if err != nil {
		return model.Course{}, fmt.Errorf("creating course: %w", err)
	}
	return course, nil
}

// UpdateCourse updates a course owned by the instructor. Admins may edit any
// course.
func (s *CatalogService) UpdateCourse(ctx context.Context, actor model.User, courseID int64, in CourseInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	price, err := parsePrice(in.Price)
	if err != nil {
		return err
	}

	course, err := s.ownedCourse(ctx, actor, courseID)
	if err != nil {
		return err
	}

	return s.q.UpdateCourse(ctx, store.UpdateCourseParams{
		ID:             course.ID,
		Title:          in.Title,
		Description:    util.NullStringFromValue(in.Description),
		CategoryID:     in.CategoryID,
		EnrollmentType: in.EnrollmentType,
		Price:          price,
		Currency:       in.Currency,
		MaxStudents:    in.MaxStudents,
		IsPublished:    in.IsPublished,
	})
}

// DeleteCourse removes a course owned by the instructor (or any course for
// admins), together with its curriculum and enrollments.
func (s *CatalogService) DeleteCourse(ctx context.Context, actor model.User, courseID int64) error {
	course, err := s.ownedCourse(ctx, actor, courseID)
	if err != nil {
		return err
	}
	return s.q.DeleteCourse(ctx, course.ID)
}

// SetApproval moves a course through the admin review workflow.
func (s *CatalogService) SetApproval(ctx context.Context, courseID int64, status string) error {
	if status != model.ApprovalApproved && status != model.ApprovalRejected {
		return validation.NewError("validation_status", "status must be approved or rejected")
	}
	if _, err := s.q.GetCourseByID(ctx, courseID); errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	} else if err != nil {
		return fmt.Errorf("loading course: %w", err)
	}
	return s.q.SetCourseApproval(ctx, courseID, status)
}

// ListPendingCourses returns courses awaiting approval, oldest first.
func (s *CatalogService) ListPendingCourses(ctx context.Context) ([]model.Course, error) {
	return s.q.ListPendingCourses(ctx)
}

// ListInstructorCourses returns all of an instructor's courses.
func (s *CatalogService) ListInstructorCourses(ctx context.Context, instructorID int64) ([]model.Course, error) {
	return s.q.ListCoursesByInstructor(ctx, instructorID)
}

// ModuleInput carries the module authoring form fields.
type ModuleInput struct {
	Title       string
	Description string
	SortOrder   int64
	IsPublished bool
}

// Validate checks the module authoring fields.
func (in ModuleInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
	)
}

// CreateModule adds a module to a course owned by the actor.
func (s *CatalogService) CreateModule(ctx context.Context, actor model.User, courseID int64, in ModuleInput) (model.Module, error) {
	if err := in.Validate(); err != nil {
		return model.Module{}, err
	}
	course, err := s.ownedCourse(ctx, actor, courseID)
	if err != nil {
		return model.Module{}, err
	}
	return s.q.CreateModule(ctx, store.CreateModuleParams{
		CourseID:    course.ID,
		Title:       in.Title,
		Description: util.NullStringFromValue(in.Description),
		SortOrder:   in.SortOrder,
		IsPublished: in.IsPublished,
	})
}

// UpdateModule updates a module in a course owned by the actor.
func (s *CatalogService) UpdateModule(ctx context.Context, actor model.User, moduleID int64, in ModuleInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	module, err := s.q.GetModuleByID(ctx, moduleID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("loading module: %w", err)
	}
	if _, err := s.ownedCourse(ctx, actor, module.CourseID); err != nil {
		return err
	}
	return s.q.UpdateModule(ctx, store.UpdateModuleParams{
		ID:          module.ID,
		Title:       in.Title,
		Description: util.NullStringFromValue(in.Description),
		SortOrder:   in.SortOrder,
		IsPublished: in.IsPublished,
	})
}

// LessonInput carries the lesson authoring form fields.
type LessonInput struct {
	Title       string
	Content     string
	ContentType string
	VideoURL    string
	FilePath    string
	SortOrder   int64
	IsPublished bool
}

// Validate checks the lesson authoring fields.
func (in LessonInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.ContentType, validation.Required, validation.In(
			model.ContentTypeText, model.ContentTypeVideo, model.ContentTypePDF, model.ContentTypeLink)),
	)
}

// CreateLesson adds a lesson to a module in a course owned by the actor.
func (s *CatalogService) CreateLesson(ctx context.Context, actor model.User, moduleID int64, in LessonInput) (model.Lesson, error) {
	if err := in.Validate(); err != nil {
		return model.Lesson{}, err
	}
	module, err := s.q.GetModuleByID(ctx, moduleID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Lesson{}, ErrNotFound
	}
	if err != nil {
		return model.Lesson{}, fmt.Errorf("loading module: %w", err)
	}
	if _, err := s.ownedCourse(ctx, actor, module.CourseID); err != nil {
		return model.Lesson{}, err
	}
	return s.q.CreateLesson(ctx, store.CreateLessonParams{
		ModuleID:    module.ID,
		CourseID:    module.CourseID,
		Title:       in.Title,
		Content:     util.NullStringFromValue(in.Content),
		ContentType: in.ContentType,
		VideoURL:    util.NullStringFromValue(in.VideoURL),
		FilePath:    util.NullStringFromValue(in.FilePath),
		SortOrder:   in.SortOrder,
		IsPublished: in.IsPublished,
	})
}

// UpdateLesson updates a lesson in a course owned by the actor.
func (s *CatalogService) UpdateLesson(ctx context.Context, actor model.User, lessonID int64, in LessonInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	lesson, err := s.q.GetLessonByID(ctx, lessonID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("loading lesson: %w", err)
	}
	if _, err := s.ownedCourse(ctx, actor, lesson.CourseID); err != nil {
		return err
	}
	return s.q.UpdateLesson(ctx, store.UpdateLessonParams{
		ID:          lesson.ID,
		Title:       in.Title,
		Content:     util.NullStringFromValue(in.Content),
		ContentType: in.ContentType,
		VideoURL:    util.NullStringFromValue(in.VideoURL),
		FilePath:    util.NullStringFromValue(in.FilePath),
		SortOrder:   in.SortOrder,
		IsPublished: in.IsPublished,
	})
}

// GetLesson returns a published lesson for an enrolled student, or any
// lesson when includeDrafts is set.
func (s *CatalogService) GetLesson(ctx context.Context, lessonID int64, includeDrafts bool) (model.Lesson, error) {
	lesson, err := s.q.GetLessonByID(ctx, lessonID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Lesson{}, ErrNotFound
	}
	if err != nil {
		return model.Lesson{}, fmt.Errorf("loading lesson: %w", err)
	}
	if !includeDrafts && !lesson.IsPublished {
		return model.Lesson{}, ErrNotFound
	}
	return lesson, nil
}

// RenderLessonContent converts a text lesson's markdown body to sanitized
// HTML safe for template embedding.
func (s *CatalogService) RenderLessonContent(lesson model.Lesson) (template.HTML, error) {
	if !lesson.Content.Valid {
		return "", nil
	}

	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(lesson.Content.String), &buf); err != nil {
		return "", fmt.Errorf("rendering lesson content: %w", err)
	}
	return template.HTML(s.policy.SanitizeBytes(buf.Bytes())), nil
}

// ownedCourse loads a course and verifies the actor may modify it: admins
// always, instructors only for their own courses.
func (s *CatalogService) ownedCourse(ctx context.Context, actor model.User, courseID int64) (model.Course, error) {
	course, err := s.q.GetCourseByID(ctx, courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Course{}, ErrNotFound
	}
	if err != nil {
		return model.Course{}, fmt.Errorf("loading course: %w", err)
	}
	if !actor.IsAdmin() && course.InstructorID != actor.ID {
		return model.Course{}, ErrNotFound
	}
	return course, nil
}
