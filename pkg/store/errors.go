package store

import "errors"

var (
	// ErrUserNotFound is returned when a user id or username resolves to
	// no row.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateUser is returned when a username is already taken.
	ErrDuplicateUser = errors.New("username already exists")

	// ErrInvalidCredentials is returned when authentication fails, whether
	// the user is missing, inactive, or the verifier does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrProtectedUser is returned when an operation would delete the
	// primary admin or clear its admin flag.
	ErrProtectedUser = errors.New("primary admin is protected")

	// ErrFileNotFound is returned when a file id resolves to no row.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidRecord is returned when a record violates placement rules,
	// such as a directory carrying a blob reference.
	ErrInvalidRecord = errors.New("invalid file record")

	// ErrBadPattern is returned for empty or match-everything search
	// patterns.
	ErrBadPattern = errors.New("invalid search pattern")
)
