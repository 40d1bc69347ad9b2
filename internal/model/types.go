package model

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// User represents a registered account. PasswordHash is owned by the auth
// service and must never appear in API responses or wire events.
type User struct {
	ID           uuid.UUID
	Name         string
	Phone        string
	PasswordHash string
	CreatedAt    time.Time
}

// Friendship is an accepted relation between two users. UserID1 always
// sorts before UserID2 so each unordered pair maps to exactly one row;
// the friends table enforces this with a CHECK plus a unique constraint.
type Friendship struct {
	ID        int64
	UserID1   uuid.UUID
	UserID2   uuid.UUID
	Status    string
	CreatedAt time.Time
}

// Friend is a friendship joined with the peer's user record, shaped for
// the friend-list endpoint.
type Friend struct {
	FriendshipID int64
	UserID       uuid.UUID
	Name         string
	Phone        string
	CreatedAt    time.Time
}

// Message is one persisted chat message. ID and Timestamp are assigned by
// the store at insert time; history ordering is (Timestamp, ID) ascending.
type Message struct {
	ID         int64
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Content    string
	Timestamp  time.Time
}

// RefreshSession represents a refresh token session
type RefreshSession struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	TokenHash  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *uuid.UUID
}

// CanonicalPair orders two user ids ascending (byte order, which matches
// Postgres uuid ordering) so unordered pairs such as friendships and
// conversation channels map to a single key.
func CanonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(b[:], a[:]) < 0 {
		return b, a
	}
	return a, b
}
