package user

import "errors"

// Sentinel errors returned by repositories.
var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("user email already registered")
)
