package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"OLMS_DB_PATH" envDefault:"./data/openlms.db"`
	SessionSecret string `env:"OLMS_SESSION_SECRET,required"`
	ServerHost    string `env:"OLMS_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"OLMS_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"OLMS_ENV" envDefault:"development"`
	LogLevel      string `env:"OLMS_LOG_LEVEL" envDefault:"info"`
	UploadsDir    string `env:"OLMS_UPLOADS_DIR" envDefault:"./uploads"`
	BaseURL       string `env:"OLMS_BASE_URL" envDefault:"http://localhost:8080"`

	// Session lifetimes
	SessionTimeout   time.Duration `env:"OLMS_SESSION_TIMEOUT" envDefault:"2h"`
	RememberDuration time.Duration `env:"OLMS_REMEMBER_DURATION" envDefault:"720h"` // 30 days

	// Login rate limiting
	LoginMaxAttempts int           `env:"OLMS_LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	LoginWindow      time.Duration `env:"OLMS_LOGIN_WINDOW" envDefault:"15m"`

	// Password policy
	PasswordMinLength int `env:"OLMS_PASSWORD_MIN_LENGTH" envDefault:"8"`

	// Cache configuration
	RedisURL     string `env:"OLMS_REDIS_URL"`                         // Optional Redis URL for distributed caching
	CachePrefix  string `env:"OLMS_CACHE_PREFIX" envDefault:"olms:"`   // Redis key prefix
	CacheTTL     int    `env:"OLMS_CACHE_TTL" envDefault:"3600"`       // Default cache TTL in seconds
	CacheMaxSize int    `env:"OLMS_CACHE_MAX_SIZE" envDefault:"10000"` // Max memory cache entries

	// Email delivery. When SMTPAddr is empty, outgoing mail is logged instead.
	SMTPAddr string `env:"OLMS_SMTP_ADDR"` // host:port of the SMTP relay
	SMTPFrom string `env:"OLMS_SMTP_FROM" envDefault:"noreply@localhost"`

	// GeoIP configuration
	GeoIPDBPath string `env:"OLMS_GEOIP_DB_PATH"` // Path to GeoLite2-Country.mmdb file

	// Seeding configuration
	DoSeed bool `env:"OLMS_DO_SEED" envDefault:"false"` // Enable database seeding
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// GeoIPEnabled returns true if GeoIP database is configured.
func (c Config) GeoIPEnabled() bool {
	return c.GeoIPDBPath != ""
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("OLMS_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("OLMS_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("OLMS_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
