// Package service implements the LMS business logic on top of the store
// layer: registration and login, enrollment and progress tracking, the course
// catalog, and the supporting activity, settings, and email services.
package service

import "errors"

// Sentinel errors returned by the service layer. Handlers map these to user
// messages and HTTP responses; anything else is treated as an internal error.
var (
	ErrDuplicateEmail        = errors.New("email is already registered")
	ErrWeakPassword          = errors.New("password does not meet the minimum requirements")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrUnverifiedAccount     = errors.New("account email is not verified")
	ErrRateLimited           = errors.New("too many login attempts, try again later")
	ErrInvalidOrExpiredToken = errors.New("token is invalid or has expired")
	ErrAlreadyEnrolled       = errors.New("already enrolled in this course")
	ErrEnrollmentNotAllowed  = errors.New("enrollment in this course is not allowed")
	ErrCourseFull            = errors.New("course has reached its enrollment limit")
	ErrNotFound              = errors.New("not found")
)
