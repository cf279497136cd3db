package handler

import (
	"database/sql"
	"io/fs"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/openlms/openlms/internal/middleware"
	"github.com/openlms/openlms/internal/model"
	"github.com/openlms/openlms/internal/service"
)

const requestTimeout = 30 * time.Second

// RouterConfig carries everything the router needs to wire the application.
type RouterConfig struct {
	DB             *sql.DB
	SessionManager *scs.SessionManager
	Auth           *service.AuthService
	AuthLimiter    *middleware.IPRateLimiter
	IsDev          bool
	UploadsDir     string
	StaticFS       fs.FS

	AuthHandler       *AuthHandler
	CatalogHandler    *CatalogHandler
	DashboardHandler  *DashboardHandler
	InstructorHandler *InstructorHandler
	AdminHandler      *AdminHandler
	HealthHandler     *HealthHandler
}

// Routes assembles the application router.
func Routes(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.StripTrailingSlash)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDev)))
	r.Use(middleware.RequestPath)
	r.Use(cfg.SessionManager.LoadAndSave)
	r.Use(middleware.RememberMe(cfg.SessionManager, cfg.Auth, cfg.IsDev))

	r.Get("/health", cfg.HealthHandler.Health)
	r.Get("/health/live", cfg.HealthHandler.Liveness)
	r.Get("/health/ready", cfg.HealthHandler.Readiness)

	staticHandler := middleware.StaticCache(31536000)(
		http.StripPrefix("/static/", http.FileServer(http.FS(cfg.StaticFS))))
	r.Handle("/static/*", staticHandler)

	uploadsHandler := middleware.StaticCache(604800)(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsDir))))
	r.Handle("/uploads/*", uploadsHandler)

	csrf := middleware.CSRF(cfg.SessionManager)

	// Public catalog pages.
	r.Group(func(r chi.Router) {
		r.Use(csrf)
		r.Use(middleware.OptionalLoadUser(cfg.SessionManager, cfg.DB))

		r.Get("/", cfg.CatalogHandler.ListCourses)
		r.Get("/courses", cfg.CatalogHandler.ListCourses)
		r.Get("/courses/{slug}", cfg.CatalogHandler.ShowCourse)
	})

	// Authentication pages, rate limited per IP.
	r.Group(func(r chi.Router) {
		r.Use(cfg.AuthLimiter.Middleware())
		r.Use(csrf)
		r.Use(middleware.OptionalLoadUser(cfg.SessionManager, cfg.DB))

		r.Get("/login", cfg.AuthHandler.LoginForm)
		r.Post("/login", cfg.AuthHandler.Login)
		r.Get("/register", cfg.AuthHandler.RegisterForm)
		r.Post("/register", cfg.AuthHandler.Register)
		r.Get("/verify-email", cfg.AuthHandler.VerifyEmail)
		r.Get("/forgot-password", cfg.AuthHandler.ForgotPasswordForm)
		r.Post("/forgot-password", cfg.AuthHandler.ForgotPassword)
		r.Get("/reset-password", cfg.AuthHandler.ResetPasswordForm)
		r.Post("/reset-password", cfg.AuthHandler.ResetPassword)
	})

	// Signed-in users.
	r.Group(func(r chi.Router) {
		r.Use(csrf)
		r.Use(middleware.Auth(cfg.SessionManager))
		r.Use(middleware.LoadUser(cfg.SessionManager, cfg.DB))

		r.Post("/logout", cfg.AuthHandler.Logout)

		r.Get("/dashboard", cfg.DashboardHandler.Home)
		r.Get("/profile", cfg.DashboardHandler.ProfileForm)
		r.Post("/profile", cfg.DashboardHandler.UpdateProfile)
		r.Post("/profile/avatar", cfg.DashboardHandler.UploadAvatar)
		r.Post("/profile/password", cfg.DashboardHandler.ChangePassword)

		r.Post("/courses/{slug}/enroll", cfg.CatalogHandler.Enroll)
		r.Get("/lessons/{id}", cfg.CatalogHandler.ShowLesson)
		r.Post("/lessons/{id}/complete", cfg.CatalogHandler.CompleteLesson)
	})

	// Instructor area.
	r.Route("/instructor", func(r chi.Router) {
		r.Use(csrf)
		r.Use(middleware.Auth(cfg.SessionManager))
		r.Use(middleware.LoadUser(cfg.SessionManager, cfg.DB))
		r.Use(middleware.RequireRole(model.RoleInstructor))

		r.Get("/courses", cfg.InstructorHandler.Courses)
		r.Post("/courses", cfg.InstructorHandler.CreateCourse)
		r.Get("/courses/{id}", cfg.InstructorHandler.ShowCourse)
		r.Post("/courses/{id}", cfg.InstructorHandler.UpdateCourse)
		r.Post("/courses/{id}/modules", cfg.InstructorHandler.CreateModule)
		r.Post("/modules/{id}/lessons", cfg.InstructorHandler.CreateLesson)
	})

	// Admin area.
	r.Route("/admin", func(r chi.Router) {
		r.Use(csrf)
		r.Use(middleware.Auth(cfg.SessionManager))
		r.Use(middleware.LoadUser(cfg.SessionManager, cfg.DB))
		r.Use(middleware.RequireRole(model.RoleAdmin))

		r.Get("/", cfg.AdminHandler.Dashboard)
		r.Get("/users", cfg.AdminHandler.Users)
		r.Post("/courses/{id}/approve", cfg.AdminHandler.ApproveCourse)
		r.Post("/courses/{id}/reject", cfg.AdminHandler.RejectCourse)
		r.Post("/users/{id}/role", cfg.AdminHandler.SetUserRole)
		r.Post("/users/{id}/status", cfg.AdminHandler.SetUserStatus)
	})

	return r
}
