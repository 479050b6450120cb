package service

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateEmail     = errors.New("user already exists with this email")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid refresh token")
	ErrUserNotFound       = errors.New("user not found")
	ErrStoreUnavailable   = errors.New("store unavailable")
)
