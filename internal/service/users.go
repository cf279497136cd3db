package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/openlms/openlms/internal/model"
	"github.com/openlms/openlms/internal/store"
	"github.com/openlms/openlms/internal/util"
)

// UserService covers profile management and the admin user views.
type UserService struct {
	q *store.Queries
}

// NewUserService creates the user service.
func NewUserService(q *store.Queries) *UserService {
	return &UserService{q: q}
}

// Get returns a user by ID, or ErrNotFound.
func (s *UserService) Get(ctx context.Context, id int64) (model.User, error) {
	user, err := s.q.GetUserByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("loading user: %w", err)
	}
	return user, nil
}

// ProfileInput carries the profile form fields.
type ProfileInput struct {
	FirstName string
	LastName  string
	Bio       string
	Phone     string
}

// Validate checks the profile fields.
func (in ProfileInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Bio, validation.Length(0, 2000)),
		validation.Field(&in.Phone, validation.Length(0, 30)),
	)
}

// UpdateProfile updates a user's own profile fields.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	return s.q.UpdateUserProfile(ctx, store.UpdateUserProfileParams{
		ID:        userID,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Bio:       util.NullStringFromValue(in.Bio),
		Phone:     util.NullStringFromValue(in.Phone),
	})
}

// SetAvatar stores the processed avatar file name.
func (s *UserService) SetAvatar(ctx context.Context, userID int64, filename string) error {
	return s.q.UpdateUserAvatar(ctx, userID, filename)
}

// List returns a page of users for the admin user table.
func (s *UserService) List(ctx context.Context, limit, offset int64) ([]model.User, error) {
	return s.q.ListUsers(ctx, limit, offset)
}

// SetRole changes a user's role (admin operation).
func (s *UserService) SetRole(ctx context.Context, userID int64, role string) error {
	switch role {
	case model.RoleAdmin, model.RoleInstructor, model.RoleStudent:
	default:
		return validation.NewError("validation_role", "unknown role")
	}
	return s.q.UpdateUserRole(ctx, userID, role)
}

// SetStatus changes a user's account status (admin operation).
func (s *UserService) SetStatus(ctx context.Context, userID int64, status string) error {
	switch status {
	case model.UserStatusActive, model.UserStatusInactive, model.UserStatusSuspended:
	default:
		return validation.NewError("validation_status", "unknown status")
	}
	return s.q.UpdateUserStatus(ctx, userID, status)
}
