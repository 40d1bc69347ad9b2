package ws

import "errors"

// Connection-level error taxonomy. All of these are recoverable: they
// produce an error frame on the originating connection, which stays open.
var (
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	ErrUnknownConnection    = errors.New("unknown connection")
	ErrForbidden            = errors.New("sender does not match authenticated user")
	ErrEmptyContent         = errors.New("message content is empty")
	ErrUserNotFound         = errors.New("user not found")
)
