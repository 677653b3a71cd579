package types

import "errors"

// Store operation errors.
var (
	ErrNotFound          = errors.New("product not found")
	ErrDuplicateID       = errors.New("product ID already exists")
	ErrInsufficientStock = errors.New("insufficient quantity")
	ErrUserNotFound      = errors.New("user not found")
	ErrUsernameTaken     = errors.New("username already exists")
	ErrBackendClosed     = errors.New("backend is closed")
)

// Record validation errors.
var (
	ErrInvalidID       = errors.New("ID must be a non-negative number")
	ErrInvalidName     = errors.New("invalid product name")
	ErrInvalidPrice    = errors.New("price must be a non-negative number")
	ErrInvalidQuantity = errors.New("quantity must be a non-negative number")
	ErrInvalidUsername = errors.New("username must be at least 3 characters long")
	ErrInvalidPassword = errors.New("password must be at least 4 characters long")
	ErrMalformedLine   = errors.New("malformed record line")
	ErrEmptyLine       = errors.New("empty record line")
)
