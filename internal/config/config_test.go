package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSecret = "Xk9mPq2rT5vW8yZa3bCd6eFg1hJk4lMn"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OLMS_SESSION_SECRET", validSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./data/openlms.db", cfg.DBPath)
	assert.Equal(t, "localhost:8080", cfg.ServerAddr())
	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 2*time.Hour, cfg.SessionTimeout)
	assert.Equal(t, 30*24*time.Hour, cfg.RememberDuration)
	assert.Equal(t, 5, cfg.LoginMaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.LoginWindow)
	assert.Equal(t, 8, cfg.PasswordMinLength)
	assert.False(t, cfg.UseRedisCache())
	assert.False(t, cfg.GeoIPEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OLMS_SESSION_SECRET", validSecret)
	t.Setenv("OLMS_SERVER_HOST", "0.0.0.0")
	t.Setenv("OLMS_SERVER_PORT", "9000")
	t.Setenv("OLMS_ENV", "production")
	t.Setenv("OLMS_LOGIN_MAX_ATTEMPTS", "3")
	t.Setenv("OLMS_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ServerAddr())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 3, cfg.LoginMaxAttempts)
	assert.True(t, cfg.UseRedisCache())
}

func TestLoadMissingSecret(t *testing.T) {
	t.Setenv("OLMS_SESSION_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadShortSecret(t *testing.T) {
	t.Setenv("OLMS_SESSION_SECRET", "too-short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 bytes")
}

func TestLoadWeakSecret(t *testing.T) {
	t.Setenv("OLMS_SESSION_SECRET", "change-me-to-32-byte-secret-key!")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known default value")
}

func TestHasMinimumEntropy(t *testing.T) {
	assert.True(t, hasMinimumEntropy("Abc123def456ghi789jkl012mno345pq"))
	assert.False(t, hasMinimumEntropy("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	assert.False(t, hasMinimumEntropy("abcdefghijklmnop0123456789012345"))
}
