package library

import "errors"

var (
	// ErrNotFound is returned when no record carries the requested id or email.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when a write would give two members the same email.
	ErrDuplicateEmail = errors.New("email already in use")

	// ErrInvalidCredentials is returned when a password does not match the stored hash.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
