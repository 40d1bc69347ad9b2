package ws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tranvananh112/Messenger/internal/model"
	"github.com/tranvananh112/Messenger/internal/repo"
)

// historyLimit bounds the snapshot returned on join_conversation.
const historyLimit = 50

// MessageStore persists chat messages; the store assigns id and timestamp.
// Satisfied by repo.MessageRepo.
type MessageStore interface {
	Insert(ctx context.Context, senderID, receiverID uuid.UUID, content string) (model.Message, error)
	History(ctx context.Context, a, b uuid.UUID, limit int) ([]model.Message, error)
}

// UserDirectory resolves user ids to user records for display names.
// Satisfied by repo.UserRepo.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
}

// Dispatcher validates, persists and fans out chat traffic for
// authenticated connections.
type Dispatcher struct {
	presence *Presence
	router   *Router
	store    MessageStore
	users    UserDirectory
}

// NewDispatcher creates a dispatcher over the given registries and store.
func NewDispatcher(presence *Presence, router *Router, store MessageStore, users UserDirectory) *Dispatcher {
	return &Dispatcher{
		presence: presence,
		router:   router,
		store:    store,
		users:    users,
	}
}

// JoinConversation registers the connection in the pair's channel and
// returns the latest persisted history for the pair, ascending, capped at
// historyLimit. The snapshot is point-in-time: messages persisted after
// the history query arrive via new_message, not by re-reading history.
func (d *Dispatcher) JoinConversation(ctx context.Context, connID uuid.UUID, p JoinConversationPayload) ([]MessagePayload, error) {
	user, ok := d.presence.BoundUser(connID)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	if p.UserID != uuid.Nil && p.UserID != user.ID {
		return nil, ErrForbidden
	}

	friend, err := d.users.GetByID(ctx, p.FriendID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("look up friend: %w", err)
	}

	d.router.Join(connID, NewChannel(user.ID, friend.ID))

	msgs, err := d.store.History(ctx, user.ID, friend.ID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	names := map[uuid.UUID]string{user.ID: user.Name, friend.ID: friend.Name}
	history := make([]MessagePayload, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, MessagePayload{
			ID:         m.ID,
			SenderID:   m.SenderID,
			SenderName: names[m.SenderID],
			ReceiverID: m.ReceiverID,
			Content:    m.Content,
			Timestamp:  m.Timestamp,
		})
	}
	return history, nil
}

// SendMessage runs the dispatch pipeline: authenticate, validate, persist,
// then fan out to the channel including the sender's other connections.
// A message that fails to persist is never broadcast; a receiver with no
// live connections is not an error, the message stays retrievable via
// history.
func (d *Dispatcher) SendMessage(ctx context.Context, connID uuid.UUID, p SendMessagePayload) (MessagePayload, error) {
	user, ok := d.presence.BoundUser(connID)
	if !ok {
		return MessagePayload{}, ErrNotAuthenticated
	}

	content := strings.TrimSpace(p.Content)
	if content == "" {
		return MessagePayload{}, ErrEmptyContent
	}

	// Declared sender must match the bound user; the payload field exists
	// only so clients can be caught lying about it.
	if p.SenderID != user.ID {
		return MessagePayload{}, ErrForbidden
	}

	msg, err := d.store.Insert(ctx, user.ID, p.ReceiverID, content)
	if err != nil {
		return MessagePayload{}, fmt.Errorf("persist message: %w", err)
	}

	out := MessagePayload{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		SenderName: user.Name,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		Timestamp:  msg.Timestamp,
	}
	frame, err := NewFrame(EventNewMessage, out)
	if err != nil {
		return MessagePayload{}, err
	}
	d.router.Broadcast(NewChannel(user.ID, p.ReceiverID), frame)
	return out, nil
}

// SetTyping broadcasts an ephemeral typing signal to the channel,
// excluding every one of the typist's own connections. Nothing is
// persisted; unauthenticated connections are silently ignored.
func (d *Dispatcher) SetTyping(connID uuid.UUID, p TypingPayload) {
	user, ok := d.presence.BoundUser(connID)
	if !ok {
		return
	}
	frame, err := NewFrame(EventUserTyping, UserTypingPayload{
		UserID:   user.ID,
		UserName: user.Name,
		IsTyping: p.IsTyping,
	})
	if err != nil {
		return
	}
	d.router.BroadcastExcludingUser(NewChannel(user.ID, p.ReceiverID), frame, user.ID)
}
