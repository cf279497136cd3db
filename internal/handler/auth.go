package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/openlms/openlms/internal/middleware"
	"github.com/openlms/openlms/internal/model"
	"github.com/openlms/openlms/internal/render"
	"github.com/openlms/openlms/internal/service"
	"github.com/openlms/openlms/internal/session"
)

// Redirect targets used by the auth flows.
const (
	redirectLogin     = "/login"
	redirectRegister  = "/register"
	redirectDashboard = "/dashboard"
	redirectForgot    = "/forgot-password"
)

// AuthHandler handles registration, login, and password recovery routes.
type AuthHandler struct {
	auth     *service.AuthService
	settings *service.SettingsService
	activity *service.ActivityService
	renderer *render.Renderer
	sm       *scs.SessionManager
	isDev    bool
	remember time.Duration
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, settings *service.SettingsService,
	activity *service.ActivityService, renderer *render.Renderer,
	sm *scs.SessionManager, isDev bool, remember time.Duration) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		settings: settings,
		activity: activity,
		renderer: renderer,
		sm:       sm,
		isDev:    isDev,
		remember: remember,
	}
}

// LoginForm renders the login page. Authenticated users go to the dashboard.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.sm.GetInt64(r.Context(), session.KeyUserID) > 0 {
		http.Redirect(w, r, redirectDashboard, http.StatusSeeOther)
		return
	}
	if err := h.renderer.Render(w, r, "auth/login", pageData(h.sm, r, "Log in", nil)); err != nil {
		logAndInternalError(w, "rendering login page", "error", err)
	}
}

// Login handles the login form submission.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, redirectLogin) {
		return
	}

	email := r.FormValue("email")
	password := r.FormValue("password")
	rememberMe := r.FormValue("remember_me") == "1"

	if email == "" || password == "" {
		flashError(w, r, h.renderer, redirectLogin, "Email and password are required")
		return
	}

	user, rememberToken, err := h.auth.Login(r.Context(), email, password, rememberMe)
	switch {
	case errors.Is(err, service.ErrRateLimited):
		h.activity.RecordAnonymous(r.Context(), model.ActionLoginRateLimited, email, requestMeta(r))
		flashError(w, r, h.renderer, redirectLogin, "Too many login attempts. Please try again later.")
		return
	case errors.Is(err, service.ErrUnverifiedAccount):
		flashError(w, r, h.renderer, redirectLogin, "Please verify your email address before logging in.")
		return
	case errors.Is(err, service.ErrInvalidCredentials):
		h.activity.RecordAnonymous(r.Context(), model.ActionLoginFailed, email, requestMeta(r))
		flashError(w, r, h.renderer, redirectLogin, "Invalid email or password")
		return
	case err != nil:
		logAndInternalError(w, "login failed", "error", err)
		return
	}

	// Session fixation defense: new session token on privilege change
	if err := h.sm.RenewToken(r.Context()); err != nil {
		logAndInternalError(w, "renewing session token", "error", err)
		return
	}
	h.sm.Put(r.Context(), session.KeyUserID, user.ID)
	h.sm.Put(r.Context(), session.KeyUserRole, user.Role)

	if rememberToken != "" {
		middleware.SetRememberCookie(w, rememberToken, h.remember, h.isDev)
	}

	h.activity.RecordForUser(r.Context(), user.ID, model.ActionLoginSuccess, "", requestMeta(r))
	slog.Info("user logged in", "user_id", user.ID)

	http.Redirect(w, r, redirectDashboard, http.StatusSeeOther)
}

// Logout destroys the session and clears the persistent login token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := h.sm.GetInt64(r.Context(), session.KeyUserID)
	if userID > 0 {
		if err := h.auth.Logout(r.Context(), userID); err != nil {
			slog.Error("clearing remember token", "error", err, "user_id", userID)
		}
		h.activity.RecordForUser(r.Context(), userID, model.ActionLogout, "", requestMeta(r))
	}

	if err := h.sm.Destroy(r.Context()); err != nil {
		slog.Error("destroying session", "error", err)
	}
	middleware.ClearRememberCookie(w, h.isDev)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RegisterForm renders the registration page.
func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	if !h.settings.RegistrationAllowed(r.Context()) {
		flashError(w, r, h.renderer, "/", "Registration is currently closed")
		return
	}
	if err := h.renderer.Render(w, r, "auth/register", pageData(h.sm, r, "Register", nil)); err != nil {
		logAndInternalError(w, "rendering register page", "error", err)
	}
}

// Register handles the registration form submission.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.settings.RegistrationAllowed(r.Context()) {
		flashError(w, r, h.renderer, "/", "Registration is currently closed")
		return
	}
	if !parseFormOrRedirect(w, r, h.renderer, redirectRegister) {
		return
	}

	in := service.RegisterInput{
		Email:     r.FormValue("email"),
		Password:  r.FormValue("password"),
		FirstName: r.FormValue("first_name"),
		LastName:  r.FormValue("last_name"),
	}

	user, err := h.auth.Register(r.Context(), in)
	switch {
	case errors.Is(err, service.ErrDuplicateEmail):
		flashError(w, r, h.renderer, redirectRegister, "An account with that email already exists")
		return
	case errors.Is(err, service.ErrWeakPassword):
		flashError(w, r, h.renderer, redirectRegister, "Password is too short")
		return
	case err != nil:
		var vErrs validation.Errors
		if errors.As(err, &vErrs) {
			flashError(w, r, h.renderer, redirectRegister, "Please check the form: "+err.Error())
			return
		}
		logAndInternalError(w, "registration failed", "error", err)
		return
	}

	h.activity.RecordForUser(r.Context(), user.ID, model.ActionUserRegistered, user.Email, requestMeta(r))

	if !user.IsVerified {
		flashSuccess(w, r, h.renderer, redirectLogin, "Account created. Check your email for a verification link.")
		return
	}
	flashSuccess(w, r, h.renderer, redirectLogin, "Account created. You can log in now.")
}

// VerifyEmail handles the verification link from the signup email.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	user, err := h.auth.VerifyEmail(r.Context(), token)
	if errors.Is(err, service.ErrInvalidOrExpiredToken) {
		flashError(w, r, h.renderer, redirectLogin, "Verification link is invalid or has already been used")
		return
	}
	if err != nil {
		logAndInternalError(w, "verifying email", "error", err)
		return
	}

	h.activity.RecordForUser(r.Context(), user.ID, model.ActionEmailVerified, "", requestMeta(r))
	flashSuccess(w, r, h.renderer, redirectLogin, "Email verified. You can log in now.")
}

// ForgotPasswordForm renders the password reset request page.
func (h *AuthHandler) ForgotPasswordForm(w http.ResponseWriter, r *http.Request) {
	if err := h.renderer.Render(w, r, "auth/forgot_password", pageData(h.sm, r, "Reset password", nil)); err != nil {
		logAndInternalError(w, "rendering forgot password page", "error", err)
	}
}

// ForgotPassword handles the reset request. The response is identical whether
// or not the email exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, redirectForgot) {
		return
	}

	email := r.FormValue("email")
	if err := h.auth.RequestPasswordReset(r.Context(), email); err != nil {
		logAndInternalError(w, "requesting password reset", "error", err)
		return
	}

	h.activity.RecordAnonymous(r.Context(), model.ActionPasswordResetRequest, email, requestMeta(r))
	flashSuccess(w, r, h.renderer, redirectLogin, "If that email is registered, a reset link is on its way.")
}

// ResetPasswordForm renders the new-password page for a reset token.
func (h *AuthHandler) ResetPasswordForm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		flashError(w, r, h.renderer, redirectLogin, "Reset link is invalid")
		return
	}
	if err := h.renderer.Render(w, r, "auth/reset_password", pageData(h.sm, r, "Choose a new password", token)); err != nil {
		logAndInternalError(w, "rendering reset password page", "error", err)
	}
}

// ResetPassword handles the new-password form submission.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	if !parseFormOrRedirect(w, r, h.renderer, redirectLogin) {
		return
	}

	token := r.FormValue("token")
	password := r.FormValue("password")

	err := h.auth.ResetPassword(r.Context(), token, password)
	switch {
	case errors.Is(err, service.ErrWeakPassword):
		flashError(w, r, h.renderer, fmt.Sprintf("/reset-password?token=%s", token), "Password is too short")
		return
	case errors.Is(err, service.ErrInvalidOrExpiredToken):
		flashError(w, r, h.renderer, redirectForgot, "Reset link is invalid or has expired")
		return
	case err != nil:
		logAndInternalError(w, "resetting password", "error", err)
		return
	}

	h.activity.RecordAnonymous(r.Context(), model.ActionPasswordReset, "", requestMeta(r))
	flashSuccess(w, r, h.renderer, redirectLogin, "Password updated. You can log in now.")
}
