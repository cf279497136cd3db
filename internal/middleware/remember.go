package middleware

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/openlms/openlms/internal/service"
	"github.com/openlms/openlms/internal/session"
)

// RememberCookie is the name of the persistent login cookie.
const RememberCookie = "remember_token"

// RememberMe creates middleware that signs a user in from the remember-me
// cookie when no session exists. Invalid or expired tokens clear the cookie.
// Must be wrapped by sm.LoadAndSave and placed before Auth.
func RememberMe(sm *scs.SessionManager, auth *service.AuthService, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sm.GetInt64(r.Context(), session.KeyUserID) != 0 {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(RememberCookie)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := auth.AutoLoginFromToken(r.Context(), cookie.Value)
			if err != nil {
				ClearRememberCookie(w, isDev)
				next.ServeHTTP(w, r)
				return
			}

			// Fresh session token for the new login state
			if err := sm.RenewToken(r.Context()); err == nil {
				sm.Put(r.Context(), session.KeyUserID, user.ID)
				sm.Put(r.Context(), session.KeyUserRole, user.Role)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SetRememberCookie writes the persistent login cookie.
func SetRememberCookie(w http.ResponseWriter, token string, ttl time.Duration, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     RememberCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   !isDev,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearRememberCookie expires the persistent login cookie.
func ClearRememberCookie(w http.ResponseWriter, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     RememberCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !isDev,
		SameSite: http.SameSiteLaxMode,
	})
}
