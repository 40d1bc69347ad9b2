package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/tranvananh112/Messenger/internal/model"
)

// FriendRepo defines the interface for friendship repository operations
type FriendRepo interface {
	Add(ctx context.Context, a, b uuid.UUID) (model.Friendship, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Friend, error)
	AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error)
}

type friendRepo struct {
	db *sql.DB
}

// NewFriendRepo creates a new FriendRepo instance
func NewFriendRepo(db *sql.DB) FriendRepo {
	return &friendRepo{db: db}
}

// Add creates an accepted friendship for the pair. The pair is stored
// canonically (smaller id first) so Add(a,b) and Add(b,a) target the same
// row; the unique constraint resolves concurrent inserts and duplicate
// adds surface as ErrAlreadyFriends.
func (r *friendRepo) Add(ctx context.Context, a, b uuid.UUID) (model.Friendship, error) {
	u1, u2 := model.CanonicalPair(a, b)
	query := `
		INSERT INTO friends (user1_id, user2_id, status)
		VALUES ($1, $2, 'accepted')
		RETURNING id, status, created_at
	`
	f := model.Friendship{UserID1: u1, UserID2: u2}
	err := r.db.QueryRowContext(ctx, query, u1, u2).Scan(&f.ID, &f.Status, &f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Friendship{}, ErrAlreadyFriends
		}
		return model.Friendship{}, fmt.Errorf("failed to insert friendship: %w", err)
	}
	return f, nil
}

// ListForUser returns the user's friends joined with the peer user record,
// ordered by peer name for a stable listing.
func (r *friendRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Friend, error) {
	query := `
		SELECT f.id, u.id, u.name, u.phone, f.created_at
		FROM friends f
		JOIN users u
		  ON u.id = CASE WHEN f.user1_id = $1 THEN f.user2_id ELSE f.user1_id END
		WHERE f.user1_id = $1 OR f.user2_id = $1
		ORDER BY u.name, u.id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query friends: %w", err)
	}
	defer rows.Close()

	var friends []model.Friend
	for rows.Next() {
		var f model.Friend
		var peerID string
		if err := rows.Scan(&f.FriendshipID, &peerID, &f.Name, &f.Phone, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		f.UserID, err = uuid.Parse(peerID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse friend ID: %w", err)
		}
		friends = append(friends, f)
	}
	return friends, rows.Err()
}

// AreFriends reports whether an accepted friendship exists for the pair.
func (r *friendRepo) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	u1, u2 := model.CanonicalPair(a, b)
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM friends WHERE user1_id = $1 AND user2_id = $2 AND status = 'accepted'
	`, u1, u2).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to query friendship: %w", err)
	}
	return true, nil
}
