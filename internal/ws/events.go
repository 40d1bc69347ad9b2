package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event names are the wire contract shared with clients; they must not change.
const (
	EventAuthenticate     = "authenticate"
	EventAuthSuccess      = "auth_success"
	EventAuthError        = "auth_error"
	EventJoinConversation = "join_conversation"
	EventMessageHistory   = "message_history"
	EventSendMessage      = "send_message"
	EventNewMessage       = "new_message"
	EventTyping           = "typing"
	EventUserTyping       = "user_typing"
	EventUsersOnline      = "users_online"
	EventError            = "error"
)

// Frame is the envelope for every websocket message in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame builds a frame with the payload marshalled into Data.
func NewFrame(event string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Frame{Event: event, Data: data}, nil
}

// AuthenticatePayload is the inbound authenticate payload.
type AuthenticatePayload struct {
	Credential string `json:"credential"`
}

// AuthSuccessPayload carries the resolved identity after authentication.
type AuthSuccessPayload struct {
	User UserInfo `json:"user"`
}

// AuthErrorPayload reports a failed authentication attempt.
type AuthErrorPayload struct {
	Error string `json:"error"`
}

// JoinConversationPayload is the inbound join_conversation payload.
type JoinConversationPayload struct {
	UserID   uuid.UUID `json:"userId"`
	FriendID uuid.UUID `json:"friendId"`
}

// SendMessagePayload is the inbound send_message payload. SenderID is
// declared by the client and checked against the connection's bound user.
type SendMessagePayload struct {
	SenderID   uuid.UUID `json:"senderId"`
	ReceiverID uuid.UUID `json:"receiverId"`
	Content    string    `json:"content"`
}

// TypingPayload is the inbound typing payload.
type TypingPayload struct {
	ReceiverID uuid.UUID `json:"receiverId"`
	IsTyping   bool      `json:"isTyping"`
}

// UserTypingPayload is broadcast to the channel, excluding the typist's
// own connections.
type UserTypingPayload struct {
	UserID   uuid.UUID `json:"userId"`
	UserName string    `json:"userName"`
	IsTyping bool      `json:"isTyping"`
}

// ErrorPayload reports a rejected operation; the connection stays open.
type ErrorPayload struct {
	Message string `json:"message"`
}

// UserInfo is the user shape used in auth_success and users_online.
type UserInfo struct {
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name"`
	Phone  string    `json:"phone"`
}

// MessagePayload is the message shape used in new_message and
// message_history, carrying the resolved sender display name.
type MessagePayload struct {
	ID         int64     `json:"id"`
	SenderID   uuid.UUID `json:"senderId"`
	SenderName string    `json:"senderName"`
	ReceiverID uuid.UUID `json:"receiverId"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}
