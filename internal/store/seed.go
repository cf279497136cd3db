package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openlms/openlms/internal/auth"
	"github.com/openlms/openlms/internal/model"
)

// Default admin credentials
const (
	DefaultAdminEmail    = "admin@example.com"
	DefaultAdminPassword = "changeme"
)

// Seed creates initial data in the database: an admin account, default system
// settings, and a starter category.
func Seed(ctx context.Context, db *sql.DB) error {
	queries := New(db)

	_, err := queries.GetUserByEmail(ctx, DefaultAdminEmail)
	if err == nil {
		slog.Info("admin user already exists, skipping seed")
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking for admin user: %w", err)
	}

	passwordHash, err := auth.HashPassword(DefaultAdminPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user, err := queries.CreateUser(ctx, CreateUserParams{
		Email:        DefaultAdminEmail,
		PasswordHash: passwordHash,
		FirstName:    "Site",
		LastName:     "Administrator",
		Role:         model.RoleAdmin,
		IsVerified:   true,
	})
	if err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	defaults := map[string]string{
		model.SettingSiteName:                  "OpenLMS",
		model.SettingAllowRegistration:         "1",
		model.SettingEmailVerificationRequired: "1",
	}
	for key, value := range defaults {
		if err := queries.SetSetting(ctx, key, value); err != nil {
			return fmt.Errorf("seeding setting %s: %w", key, err)
		}
	}

	if _, err := queries.CreateCategory(ctx, "General", "general",
		sql.NullString{String: "Uncategorized courses", Valid: true}); err != nil {
		return fmt.Errorf("seeding category: %w", err)
	}

	slog.Info("database seeded",
		"admin_email", user.Email,
		"admin_password", DefaultAdminPassword)
	return nil
}
