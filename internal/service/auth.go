package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/openlms/openlms/internal/auth"
	"github.com/openlms/openlms/internal/model"
	"github.com/openlms/openlms/internal/store"
)

// resetTokenTTL is how long a password reset link stays valid.
const resetTokenTTL = time.Hour

// AuthService implements registration, login, and the account token flows.
type AuthService struct {
	q                 *store.Queries
	settings          *SettingsService
	emails            *EmailService
	limiter           *LoginLimiter
	passwordMinLength int
	rememberDuration  time.Duration
}

// NewAuthService creates the authentication service.
func NewAuthService(q *store.Queries, settings *SettingsService, emails *EmailService,
	limiter *LoginLimiter, passwordMinLength int, rememberDuration time.Duration) *AuthService {
	return &AuthService{
		q:                 q,
		settings:          settings,
		emails:            emails,
		limiter:           limiter,
		passwordMinLength: passwordMinLength,
		rememberDuration:  rememberDuration,
	}
}

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Validate checks the registration fields. Password strength is checked
// separately so it maps to its own error.
func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.EmailFormat),
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.LastName, validation.Required, validation.Length(1, 100)),
	)
}

// Register creates a new student account. When email verification is
// required, the account starts unverified and a verification email is queued.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	if err := in.Validate(); err != nil {
		return model.User{}, err
	}
	if len(in.Password) < s.passwordMinLength {
		return model.User{}, ErrWeakPassword
	}

	exists, err := s.q.UserEmailExists(ctx, in.Email)
	if err != nil {
		return model.User{}, fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return model.User{}, ErrDuplicateEmail
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return model.User{}, fmt.Errorf("hashing password: %w", err)
	}

	params := store.CreateUserParams{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         model.RoleStudent,
		IsVerified:   true,
	}

	verificationRequired := s.settings.EmailVerificationRequired(ctx)
	var token string
	if verificationRequired {
		token, err = auth.GenerateToken(auth.TokenLen)
		if err != nil {
			return model.User{}, fmt.Errorf("generating verification token: %w", err)
		}
		params.IsVerified = false
		params.VerificationToken = sql.NullString{String: token, Valid: true}
	}

	user, err := s.q.CreateUser(ctx, params)
	if err != nil {
		// A concurrent registration can slip past the existence check; the
		// unique constraint is the authority.
		if isUniqueViolation(err) {
			return model.User{}, ErrDuplicateEmail
		}
		return model.User{}, fmt.Errorf("creating user: %w", err)
	}

	if verificationRequired {
		if err := s.emails.SendVerification(ctx, user.Email, token); err != nil {
			return model.User{}, fmt.Errorf("queueing verification email: %w", err)
		}
	}

	return user, nil
}

// VerifyEmail marks the account matching the token as verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, ErrInvalidOrExpiredToken
	}

	user, err := s.q.GetUserByVerificationToken(ctx, token)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return model.User{}, fmt.Errorf("looking up verification token: %w", err)
	}

	if err := s.q.MarkUserVerified(ctx, user.ID); err != nil {
		return model.User{}, fmt.Errorf("marking user verified: %w", err)
	}
	user.IsVerified = true
	return user, nil
}

// Login authenticates a user. The same ErrInvalidCredentials is returned for
// unknown emails and wrong passwords so responses don't reveal which emails
// are registered. When rememberMe is set, a persistent login token is issued
// and returned alongside the user.
func (s *AuthService) Login(ctx context.Context, email, password string, rememberMe bool) (model.User, string, error) {
	if !s.limiter.Allow(email) {
		return model.User{}, "", ErrRateLimited
	}

	user, err := s.q.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		// Burn the same hashing work as a real check so unknown emails
		// are not distinguishable by response time.
		auth.CheckPasswordDummy(password)
		return model.User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, "", fmt.Errorf("looking up user: %w", err)
	}

	ok, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return model.User{}, "", ErrInvalidCredentials
	}

	// Suspended and deactivated accounts fail like wrong credentials.
	if !user.IsActive() {
		return model.User{}, "", ErrInvalidCredentials
	}

	if !user.IsVerified && s.settings.EmailVerificationRequired(ctx) {
		return model.User{}, "", ErrUnverifiedAccount
	}

	// Upgrade hashes created with older parameters.
	if auth.NeedsRehash(user.PasswordHash) {
		if newHash, err := auth.HashPassword(password); err == nil {
			_ = s.q.UpdateUserPassword(ctx, user.ID, newHash)
		}
	}

	if err := s.q.TouchLastLogin(ctx, user.ID); err != nil {
		return model.User{}, "", fmt.Errorf("recording login: %w", err)
	}

	var rememberToken string
	if rememberMe {
		rememberToken, err = auth.GenerateToken(auth.TokenLen)
		if err != nil {
			return model.User{}, "", fmt.Errorf("generating remember token: %w", err)
		}
		expires := sql.NullTime{Time: time.Now().Add(s.rememberDuration), Valid: true}
		if err := s.q.SetRememberToken(ctx, user.ID,
			sql.NullString{String: rememberToken, Valid: true}, expires); err != nil {
			return model.User{}, "", fmt.Errorf("storing remember token: %w", err)
		}
	}

	return user, rememberToken, nil
}

// AutoLoginFromToken resumes a session from a persistent login cookie.
// Expired or unknown tokens, accounts that are no longer active, and
// accounts awaiting required email verification fail with
// ErrInvalidOrExpiredToken.
func (s *AuthService) AutoLoginFromToken(ctx context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, ErrInvalidOrExpiredToken
	}

	user, err := s.q.GetUserByRememberToken(ctx, token)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return model.User{}, fmt.Errorf("looking up remember token: %w", err)
	}

	if !user.IsActive() {
		return model.User{}, ErrInvalidOrExpiredToken
	}

	if !user.IsVerified && s.settings.EmailVerificationRequired(ctx) {
		return model.User{}, ErrInvalidOrExpiredToken
	}

	if err := s.q.TouchLastLogin(ctx, user.ID); err != nil {
		return model.User{}, fmt.Errorf("recording login: %w", err)
	}
	return user, nil
}

// Logout invalidates the user's persistent login token. Session destruction
// is the caller's responsibility.
func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	if err := s.q.ClearRememberToken(ctx, userID); err != nil {
		return fmt.Errorf("clearing remember token: %w", err)
	}
	return nil
}

// RequestPasswordReset issues a reset token and queues the reset email.
// Unknown emails succeed silently so the endpoint can't be used to probe for
// registered accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.q.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}

	token, err := auth.GenerateToken(auth.TokenLen)
	if err != nil {
		return fmt.Errorf("generating reset token: %w", err)
	}

	expires := sql.NullTime{Time: time.Now().Add(resetTokenTTL), Valid: true}
	if err := s.q.SetResetToken(ctx, user.ID, token, expires); err != nil {
		return fmt.Errorf("storing reset token: %w", err)
	}

	return s.emails.SendPasswordReset(ctx, user.Email, token)
}

// ResetPassword sets a new password for the account matching a valid reset
// token. All outstanding tokens for the account are invalidated.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < s.passwordMinLength {
		return ErrWeakPassword
	}

	user, err := s.q.GetUserByResetToken(ctx, token)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidOrExpiredToken
	}
	if err != nil {
		return fmt.Errorf("looking up reset token: %w", err)
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.q.UpdateUserPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	s.limiter.Reset(user.Email)
	return nil
}

// ChangePassword updates the password for a logged-in user after verifying
// the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, newPassword string) error {
	user, err := s.q.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}

	ok, err := auth.CheckPassword(current, user.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}

	if len(newPassword) < s.passwordMinLength {
		return ErrWeakPassword
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.q.UpdateUserPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err comes from a UNIQUE constraint.
// Matching on the message keeps this driver-agnostic between modernc and
// mattn-based builds.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
