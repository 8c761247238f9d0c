package auth

import (
	"errors"

	"github.com/loykin/curator/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Re-export store types and errors so callers need one import.
type (
	User      = store.User
	UserStore = store.UserStore
)

var (
	ErrUserNotFound      = store.ErrUserNotFound
	ErrUserAlreadyExists = store.ErrUserAlreadyExists
)
