package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/openlms/openlms/internal/session"
)

// CSRF token transport names.
const (
	CSRFFormField = "csrf_token"
	CSRFHeader    = "X-CSRF-Token"
)

const csrfTokenBytes = 32

// CSRF returns middleware implementing the synchronizer token pattern on top
// of the session manager. A random token is generated once per session and
// every state-changing request must echo it back in the csrf_token form field
// or the X-CSRF-Token header. Comparison is constant-time.
//
// Must be wrapped by sm.LoadAndSave.
func CSRF(sm *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sm.GetString(r.Context(), session.KeyCSRF)
			if token == "" {
				buf := make([]byte, csrfTokenBytes)
				if _, err := rand.Read(buf); err != nil {
					slog.Error("csrf token generation failed", "error", err)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				token = hex.EncodeToString(buf)
				sm.Put(r.Context(), session.KeyCSRF, token)
			}

			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				// Safe methods only read the token
			default:
				sent := r.PostFormValue(CSRFFormField)
				if sent == "" {
					sent = r.Header.Get(CSRFHeader)
				}
				if subtle.ConstantTimeCompare([]byte(sent), []byte(token)) != 1 {
					slog.Warn("csrf validation failed",
						"method", r.Method,
						"path", r.URL.Path,
						"ip", ClientIP(r),
					)
					http.Error(w, "Forbidden - CSRF validation failed", http.StatusForbidden)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CSRFToken returns the token for the current session, for embedding in forms.
// Empty until the CSRF middleware has run for this session.
func CSRFToken(sm *scs.SessionManager, r *http.Request) string {
	return sm.GetString(r.Context(), session.KeyCSRF)
}
