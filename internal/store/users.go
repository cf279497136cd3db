package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/openlms/openlms/internal/model"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, status,
	bio, phone, avatar, is_verified, verification_token, reset_token, reset_expires,
	remember_token, remember_expires, last_login_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.Status,
		&u.Bio, &u.Phone, &u.Avatar, &u.IsVerified, &u.VerificationToken, &u.ResetToken, &u.ResetExpires,
		&u.RememberToken, &u.RememberExpires, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

// CreateUserParams holds the fields required to insert a new user.
type CreateUserParams struct {
	Email             string
	PasswordHash      string
	FirstName         string
	LastName          string
	Role              string
	IsVerified        bool
	VerificationToken sql.NullString
}

// CreateUser inserts a new user and returns the stored row.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, first_name, last_name, role, is_verified, verification_token)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+userColumns,
		strings.ToLower(arg.Email), arg.PasswordHash, arg.FirstName, arg.LastName,
		arg.Role, arg.IsVerified, arg.VerificationToken,
	)
	return scanUser(row)
}

// GetUserByID fetches a user by primary key.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail fetches a user by email, case-insensitively.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`,
		strings.ToLower(email))
	return scanUser(row)
}

// GetUserByVerificationToken fetches a user by pending verification token.
func (q *Queries) GetUserByVerificationToken(ctx context.Context, token string) (model.User, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE verification_token = ?`, token)
	return scanUser(row)
}

// GetUserByResetToken fetches a user whose reset token matches and has not expired.
func (q *Queries) GetUserByResetToken(ctx context.Context, token string) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE reset_token = ? AND reset_expires > CURRENT_TIMESTAMP`, token)
	return scanUser(row)
}

// GetUserByRememberToken fetches a user whose remember token matches and has not expired.
func (q *Queries) GetUserByRememberToken(ctx context.Context, token string) (model.User, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE remember_token = ? AND remember_expires > CURRENT_TIMESTAMP`, token)
	return scanUser(row)
}

// UserEmailExists reports whether any user already holds the given email.
func (q *Queries) UserEmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, strings.ToLower(email)).Scan(&exists)
	return exists, err
}

// MarkUserVerified flags the user as verified and clears the verification token.
func (q *Queries) MarkUserVerified(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET is_verified = 1, verification_token = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, id)
	return err
}

// UpdateUserPassword replaces the password hash and clears any reset token.
func (q *Queries) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, reset_token = NULL, reset_expires = NULL,
			remember_token = NULL, remember_expires = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, passwordHash, id)
	return err
}

// SetResetToken stores a password reset token with its expiry.
func (q *Queries) SetResetToken(ctx context.Context, id int64, token string, expires sql.NullTime) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET reset_token = ?, reset_expires = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, token, bindTime(expires), id)
	return err
}

// SetRememberToken stores a persistent login token with its expiry.
func (q *Queries) SetRememberToken(ctx context.Context, id int64, token sql.NullString, expires sql.NullTime) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET remember_token = ?, remember_expires = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, token, bindTime(expires), id)
	return err
}

// ClearRememberToken removes a user's persistent login token.
func (q *Queries) ClearRememberToken(ctx context.Context, id int64) error {
	return q.SetRememberToken(ctx, id, sql.NullString{}, sql.NullTime{})
}

// TouchLastLogin records a successful login timestamp.
func (q *Queries) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET last_login_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, id)
	return err
}

// UpdateUserProfileParams holds the editable profile fields.
type UpdateUserProfileParams struct {
	ID        int64
	FirstName string
	LastName  string
	Bio       sql.NullString
	Phone     sql.NullString
}

// UpdateUserProfile updates a user's editable profile fields.
func (q *Queries) UpdateUserProfile(ctx context.Context, arg UpdateUserProfileParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET first_name = ?, last_name = ?, bio = ?, phone = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, arg.FirstName, arg.LastName, arg.Bio, arg.Phone, arg.ID)
	return err
}

// UpdateUserAvatar stores the avatar file name for a user.
func (q *Queries) UpdateUserAvatar(ctx context.Context, id int64, avatar string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET avatar = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, avatar, id)
	return err
}

// UpdateUserStatus sets the account status (active, inactive, suspended).
func (q *Queries) UpdateUserStatus(ctx context.Context, id int64, status string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	return err
}

// UpdateUserRole changes a user's role.
func (q *Queries) UpdateUserRole(ctx context.Context, id int64, role string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, role, id)
	return err
}

// ListUsers returns users ordered by creation date, newest first.
func (q *Queries) ListUsers(ctx context.Context, limit, offset int64) ([]model.User, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the total number of users, optionally filtered by role.
func (q *Queries) CountUsers(ctx context.Context, role sql.NullString) (int64, error) {
	var n int64
	var err error
	if role.Valid {
		err = q.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM users WHERE role = ?`, role.String).Scan(&n)
	} else {
		err = q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	}
	return n, err
}
