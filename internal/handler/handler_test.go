package handler

import (
	"context"
	"database/sql"
	"io"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/openlms/openlms/internal/cache"
	"github.com/openlms/openlms/internal/geoip"
	"github.com/openlms/openlms/internal/middleware"
	"github.com/openlms/openlms/internal/model"
	"github.com/openlms/openlms/internal/render"
	"github.com/openlms/openlms/internal/service"
	"github.com/openlms/openlms/internal/session"
	"github.com/openlms/openlms/internal/store"
	"github.com/openlms/openlms/internal/upload"
	"github.com/openlms/openlms/web"
)

var csrfInputRe = regexp.MustCompile(`name="csrf_token" value="([0-9a-f]+)"`)

// testApp stands up the full application over a temp SQLite database and
// drives it through real HTTP requests with a cookie jar.
type testApp struct {
	t       *testing.T
	srv     *httptest.Server
	client  *http.Client
	db      *sql.DB
	queries *store.Queries
	auth    *service.AuthService
	catalog *service.CatalogService
	enroll  *service.EnrollmentService
	users   *service.UserService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()

	db, err := store.NewDB(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	queries := store.New(db)
	if err := queries.SetSetting(ctx, model.SettingEmailVerificationRequired, "0"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}

	sm := session.New(db, true, 2*time.Hour)

	settings := service.NewSettingsService(queries, cache.NewMemoryCache(cache.MemoryOptions{}))
	emails := service.NewEmailService(queries, "http://localhost:8080")
	limiter := service.NewLoginLimiter(5, 15*time.Minute)
	auth := service.NewAuthService(queries, settings, emails, limiter, 8, 720*time.Hour)
	catalog := service.NewCatalogService(queries)
	enroll := service.NewEnrollmentService(db, queries)
	users := service.NewUserService(queries)
	stats := service.NewStatsService(queries)
	geo, err := geoip.NewLookup("")
	if err != nil {
		t.Fatalf("NewLookup: %v", err)
	}
	activity := service.NewActivityService(queries, geo)
	avatars := upload.NewAvatarStore(t.TempDir(), 5<<20)

	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		t.Fatalf("templates fs: %v", err)
	}
	renderer, err := render.New(render.Config{
		TemplatesFS:    templatesFS,
		SessionManager: sm,
		SiteName:       "Test LMS",
	})
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		t.Fatalf("static fs: %v", err)
	}

	r := Routes(RouterConfig{
		DB:             db,
		SessionManager: sm,
		Auth:           auth,
		AuthLimiter:    middleware.NewIPRateLimiter(1000, 1000),
		IsDev:          true,
		UploadsDir:     t.TempDir(),
		StaticFS:       staticFS,

		AuthHandler:       NewAuthHandler(auth, settings, activity, renderer, sm, true, 720*time.Hour),
		CatalogHandler:    NewCatalogHandler(catalog, enroll, activity, queries, renderer, sm),
		DashboardHandler:  NewDashboardHandler(enroll, users, auth, stats, activity, avatars, renderer, sm),
		InstructorHandler: NewInstructorHandler(catalog, stats, activity, queries, renderer, sm),
		AdminHandler:      NewAdminHandler(catalog, users, stats, activity, queries, renderer, sm),
		HealthHandler:     NewHealthHandler(db, sm, t.TempDir()),
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}

	return &testApp{
		t:       t,
		srv:     srv,
		client:  &http.Client{Jar: jar},
		db:      db,
		queries: queries,
		auth:    auth,
		catalog: catalog,
		enroll:  enroll,
		users:   users,
	}
}

// get fetches a page and returns the final status code and body. Redirects
// are followed, so flash messages land in the returned body.
func (a *testApp) get(path string) (int, string) {
	a.t.Helper()
	resp, err := a.client.Get(a.srv.URL + path)
	if err != nil {
		a.t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		a.t.Fatalf("reading body: %v", err)
	}
	return resp.StatusCode, string(body)
}

// postForm submits a form with the session's CSRF token and returns the
// final status code and body after following redirects.
func (a *testApp) postForm(path string, form url.Values) (int, string) {
	a.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set(middleware.CSRFFormField, a.csrfToken())
	resp, err := a.client.PostForm(a.srv.URL+path, form)
	if err != nil {
		a.t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		a.t.Fatalf("reading body: %v", err)
	}
	return resp.StatusCode, string(body)
}

// csrfToken fetches the login page and extracts the session CSRF token.
func (a *testApp) csrfToken() string {
	a.t.Helper()
	_, body := a.get("/login")
	m := csrfInputRe.FindStringSubmatch(body)
	if m == nil {
		a.t.Fatal("no CSRF token found on the login page")
	}
	return m[1]
}

// createUser registers an account directly through the service layer and
// assigns the given role.
func (a *testApp) createUser(email, password, role string) model.User {
	a.t.Helper()
	ctx := context.Background()
	user, err := a.auth.Register(ctx, service.RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: "Test",
		LastName:  "User",
	})
	if err != nil {
		a.t.Fatalf("Register: %v", err)
	}
	if role != model.RoleStudent {
		if err := a.users.SetRole(ctx, user.ID, role); err != nil {
			a.t.Fatalf("SetRole: %v", err)
		}
		user.Role = role
	}
	return user
}

// login signs the client's session in through the login form.
func (a *testApp) login(email, password string) {
	a.t.Helper()
	status, body := a.postForm("/login", url.Values{
		"email":    {email},
		"password": {password},
	})
	if status != http.StatusOK || !strings.Contains(body, "Dashboard") {
		a.t.Fatalf("login for %s did not reach the dashboard (status %d)", email, status)
	}
}

// seedCourse creates an approved, published course with one module and two
// lessons, returning the course.
func (a *testApp) seedCourse(instructor model.User, title string) model.Course {
	a.t.Helper()
	ctx := context.Background()

	course, err := a.catalog.CreateCourse(ctx, instructor.ID, service.CourseInput{
		Title:          title,
		Description:    "Seeded course",
		EnrollmentType: model.EnrollmentPublic,
		Price:          "0",
		Currency:       "USD",
		IsPublished:    true,
	})
	if err != nil {
		a.t.Fatalf("CreateCourse: %v", err)
	}
	if err := a.catalog.SetApproval(ctx, course.ID, model.ApprovalApproved); err != nil {
		a.t.Fatalf("SetApproval: %v", err)
	}
	// CreateCourse ignores IsPublished by design; publish explicitly.
	if err := a.queries.UpdateCourse(ctx, store.UpdateCourseParams{
		ID: course.ID, Title: course.Title, Description: course.Description,
		CategoryID: course.CategoryID, EnrollmentType: course.EnrollmentType,
		Price: course.Price, Currency: course.Currency, MaxStudents: course.MaxStudents,
		IsPublished: true,
	}); err != nil {
		a.t.Fatalf("UpdateCourse: %v", err)
	}
	course.IsPublished = true

	mod, err := a.catalog.CreateModule(ctx, instructor, course.ID, service.ModuleInput{
		Title:       "Module 1",
		IsPublished: true,
	})
	if err != nil {
		a.t.Fatalf("CreateModule: %v", err)
	}
	for _, name := range []string{"Lesson 1", "Lesson 2"} {
		if _, err := a.catalog.CreateLesson(ctx, instructor, mod.ID, service.LessonInput{
			Title:       name,
			Content:     "Some **markdown** content.",
			ContentType: model.ContentTypeText,
			IsPublished: true,
		}); err != nil {
			a.t.Fatalf("CreateLesson: %v", err)
		}
	}

	course.ApprovalStatus = model.ApprovalApproved
	return course
}

func assertContains(t *testing.T, body, want string) {
	t.Helper()
	if !strings.Contains(body, want) {
		t.Errorf("response does not contain %q", want)
	}
}
