package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/tranvananh112/Messenger/internal/model"
)

// MessageRepo defines the interface for message repository operations.
// The store assigns id and timestamp at insert time; clients never supply
// either, which keeps the (timestamp, id) ordering trustworthy.
type MessageRepo interface {
	Insert(ctx context.Context, senderID, receiverID uuid.UUID, content string) (model.Message, error)
	History(ctx context.Context, a, b uuid.UUID, limit int) ([]model.Message, error)
}

type messageRepo struct {
	db *sql.DB
}

// NewMessageRepo creates a new MessageRepo instance
func NewMessageRepo(db *sql.DB) MessageRepo {
	return &messageRepo{db: db}
}

// Insert persists a message and returns it with the assigned id and
// server-side timestamp.
func (r *messageRepo) Insert(ctx context.Context, senderID, receiverID uuid.UUID, content string) (model.Message, error) {
	query := `
		INSERT INTO messages (sender_id, receiver_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, "timestamp"
	`
	msg := model.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	}
	err := r.db.QueryRowContext(ctx, query, senderID, receiverID, content).Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

// History returns the latest limit messages exchanged between the two
// users, ascending by (timestamp, id). The inner query selects the most
// recent rows; the outer query restores chronological order.
func (r *messageRepo) History(ctx context.Context, a, b uuid.UUID, limit int) ([]model.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, content, "timestamp" FROM (
			SELECT id, sender_id, receiver_id, content, "timestamp"
			FROM messages
			WHERE (sender_id = $1 AND receiver_id = $2)
			   OR (sender_id = $2 AND receiver_id = $1)
			ORDER BY "timestamp" DESC, id DESC
			LIMIT $3
		) latest
		ORDER BY "timestamp" ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, a, b, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		var senderStr, receiverStr string
		if err := rows.Scan(&m.ID, &senderStr, &receiverStr, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if m.SenderID, err = uuid.Parse(senderStr); err != nil {
			return nil, fmt.Errorf("failed to parse sender ID: %w", err)
		}
		if m.ReceiverID, err = uuid.Parse(receiverStr); err != nil {
			return nil, fmt.Errorf("failed to parse receiver ID: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
