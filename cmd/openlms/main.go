// Command openlms runs the OpenLMS web application: a server-rendered
// learning management system with a course catalog, enrollments, and
// progress tracking on SQLite.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/openlms/openlms/internal/cache"
	"github.com/openlms/openlms/internal/config"
	"github.com/openlms/openlms/internal/geoip"
	"github.com/openlms/openlms/internal/handler"
	"github.com/openlms/openlms/internal/logging"
	"github.com/openlms/openlms/internal/middleware"
	"github.com/openlms/openlms/internal/render"
	"github.com/openlms/openlms/internal/scheduler"
	"github.com/openlms/openlms/internal/service"
	"github.com/openlms/openlms/internal/session"
	"github.com/openlms/openlms/internal/store"
	"github.com/openlms/openlms/internal/upload"
	"github.com/openlms/openlms/web"
)

const maxAvatarUpload = 5 << 20 // 5MB

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Ensure data directory exists
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Upgrade logger to also mirror WARN and ERROR logs into the activity log
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewActivityLogHandler(textHandler, db))
	slog.SetDefault(logger)

	ctx := context.Background()
	if cfg.DoSeed {
		if err := store.Seed(ctx, db); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
		slog.Info("database seeded")
	}

	queries := store.New(db)

	sessionManager := session.New(db, cfg.IsDevelopment(), cfg.SessionTimeout)
	slog.Info("session manager initialized", "idle_timeout", cfg.SessionTimeout)

	appCache, err := cache.New(cache.Config{
		RedisURL:   cfg.RedisURL,
		Prefix:     cfg.CachePrefix,
		DefaultTTL: time.Duration(cfg.CacheTTL) * time.Second,
		MaxSize:    cfg.CacheMaxSize,
	})
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer func() {
		if err := appCache.Close(); err != nil {
			slog.Error("error closing cache", "error", err)
		}
	}()
	if cfg.UseRedisCache() {
		slog.Info("cache initialized", "backend", "redis", "url", cfg.RedisURL)
	} else {
		slog.Info("cache initialized", "backend", "memory")
	}

	geo, err := geoip.NewLookup(cfg.GeoIPDBPath)
	if err != nil {
		return fmt.Errorf("initializing GeoIP: %w", err)
	}
	defer func() {
		if err := geo.Close(); err != nil {
			slog.Error("error closing GeoIP database", "error", err)
		}
	}()
	if geo.IsEnabled() {
		slog.Info("GeoIP lookups enabled", "path", cfg.GeoIPDBPath)
	}

	// Services
	settings := service.NewSettingsService(queries, appCache)
	emails := service.NewEmailService(queries, cfg.BaseURL)
	loginLimiter := service.NewLoginLimiter(cfg.LoginMaxAttempts, cfg.LoginWindow)
	auth := service.NewAuthService(queries, settings, emails, loginLimiter,
		cfg.PasswordMinLength, cfg.RememberDuration)
	catalog := service.NewCatalogService(queries)
	enroll := service.NewEnrollmentService(db, queries)
	users := service.NewUserService(queries)
	stats := service.NewStatsService(queries)
	activity := service.NewActivityService(queries, geo)

	var sender service.Sender = service.LogSender{}
	if cfg.SMTPAddr != "" {
		sender = service.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPFrom)
		slog.Info("email delivery via SMTP", "addr", cfg.SMTPAddr)
	} else {
		slog.Info("email delivery disabled, outgoing mail is logged")
	}

	avatars := upload.NewAvatarStore(cfg.UploadsDir, maxAvatarUpload)

	// Template renderer
	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		return fmt.Errorf("getting templates fs: %w", err)
	}
	renderer, err := render.New(render.Config{
		TemplatesFS:    templatesFS,
		SessionManager: sessionManager,
		SiteName:       settings.SiteName(ctx),
	})
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}
	slog.Info("template renderer initialized")

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		return fmt.Errorf("getting static fs: %w", err)
	}

	// Per-IP limiter for the authentication endpoints
	authLimiter := middleware.NewIPRateLimiter(1, 10)

	sched := scheduler.New(db, emails, sender, loginLimiter, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	r := handler.Routes(handler.RouterConfig{
		DB:             db,
		SessionManager: sessionManager,
		Auth:           auth,
		AuthLimiter:    authLimiter,
		IsDev:          cfg.IsDevelopment(),
		UploadsDir:     cfg.UploadsDir,
		StaticFS:       staticFS,

		AuthHandler: handler.NewAuthHandler(auth, settings, activity, renderer,
			sessionManager, cfg.IsDevelopment(), cfg.RememberDuration),
		CatalogHandler:    handler.NewCatalogHandler(catalog, enroll, activity, queries, renderer, sessionManager),
		DashboardHandler:  handler.NewDashboardHandler(enroll, users, auth, stats, activity, avatars, renderer, sessionManager),
		InstructorHandler: handler.NewInstructorHandler(catalog, stats, activity, queries, renderer, sessionManager),
		AdminHandler:      handler.NewAdminHandler(catalog, users, stats, activity, queries, renderer, sessionManager),
		HealthHandler:     handler.NewHealthHandler(db, sessionManager, cfg.UploadsDir),
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
