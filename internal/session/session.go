// Package session configures the server-side session manager backed by SQLite.
package session

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// Keys under which login state is stored in the session.
const (
	KeyUserID   = "user_id"
	KeyUserRole = "user_role"
	KeyCSRF     = "csrf_token"
)

// New creates a session manager persisted in the sessions table.
// idleTimeout is the sliding inactivity window: any request extends the
// session, and a session untouched for that long expires.
func New(db *sql.DB, isDev bool, idleTimeout time.Duration) *scs.SessionManager {
	sm := scs.New()

	sm.Store = sqlite3store.New(db)

	sm.IdleTimeout = idleTimeout
	sm.Lifetime = 24 * time.Hour
	if sm.Lifetime < idleTimeout {
		sm.Lifetime = idleTimeout
	}
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = !isDev // Secure cookies in production only
	if !isDev {
		// __Host- prefix binds the cookie to this host over HTTPS.
		sm.Cookie.Name = "__Host-session"
		sm.Cookie.Path = "/"
	}

	return sm
}
