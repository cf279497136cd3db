package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/openlms/openlms/internal/cache"
	"github.com/openlms/openlms/internal/model"
	"github.com/openlms/openlms/internal/store"
)

const settingsCacheTTL = 5 * time.Minute

// SettingsService reads and writes system settings with a cache in front of
// the database. Settings change rarely but are consulted on every
// registration and login.
type SettingsService struct {
	q     *store.Queries
	cache cache.Cache
}

// NewSettingsService creates a settings service backed by the given cache.
func NewSettingsService(q *store.Queries, c cache.Cache) *SettingsService {
	return &SettingsService{q: q, cache: c}
}

func settingCacheKey(key string) string {
	return "setting:" + key
}

// Get returns a setting value. Missing settings return defaultValue.
func (s *SettingsService) Get(ctx context.Context, key, defaultValue string) (string, error) {
	if cached, err := s.cache.Get(ctx, settingCacheKey(key)); err == nil {
		return string(cached), nil
	}

	setting, err := s.q.GetSetting(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return defaultValue, nil
	}
	if err != nil {
		return "", fmt.Errorf("loading setting %s: %w", key, err)
	}

	_ = s.cache.Set(ctx, settingCacheKey(key), []byte(setting.Value), settingsCacheTTL)
	return setting.Value, nil
}

// GetBool returns a boolean setting. "1", "true", "yes", and "on" are true.
func (s *SettingsService) GetBool(ctx context.Context, key string, defaultValue bool) (bool, error) {
	def := "0"
	if defaultValue {
		def = "1"
	}
	v, err := s.Get(ctx, key, def)
	if err != nil {
		return defaultValue, err
	}
	switch v {
	case "1", "true", "yes", "on":
		return true, nil
	default:
		return false, nil
	}
}

// Set stores a setting and invalidates its cache entry.
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	if err := s.q.SetSetting(ctx, key, value); err != nil {
		return fmt.Errorf("saving setting %s: %w", key, err)
	}
	_ = s.cache.Delete(ctx, settingCacheKey(key))
	return nil
}

// List returns all settings, bypassing the cache.
func (s *SettingsService) List(ctx context.Context) ([]model.Setting, error) {
	return s.q.ListSettings(ctx)
}

// EmailVerificationRequired reports whether new accounts must verify their
// email before logging in. Defaults to true when unset.
func (s *SettingsService) EmailVerificationRequired(ctx context.Context) bool {
	required, err := s.GetBool(ctx, model.SettingEmailVerificationRequired, true)
	if err != nil {
		return true
	}
	return required
}

// RegistrationAllowed reports whether self-registration is open. Defaults to
// true when unset.
func (s *SettingsService) RegistrationAllowed(ctx context.Context) bool {
	allowed, err := s.GetBool(ctx, model.SettingAllowRegistration, true)
	if err != nil {
		return true
	}
	return allowed
}

// SiteName returns the configured site name.
func (s *SettingsService) SiteName(ctx context.Context) string {
	name, err := s.Get(ctx, model.SettingSiteName, "OpenLMS")
	if err != nil {
		return "OpenLMS"
	}
	return name
}
