package repo

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicatePhone is returned when registering a phone number that
	// already belongs to a user.
	ErrDuplicatePhone = errors.New("phone already registered")
	// ErrAlreadyFriends is returned when a friendship for the pair already
	// exists, regardless of argument order.
	ErrAlreadyFriends = errors.New("already friends")
)

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
