package auth

import (
	"errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user exists")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("weak password")
)

// AuthError is a rejected sign-in or sign-up. Message is meant to be shown
// to the user as is.
type AuthError struct {
	Err     error
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func newAuthError(err error, message string) *AuthError {
	return &AuthError{Err: err, Message: message}
}
