package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a connection's lifecycle position. Transitions only move
// forward: reconnection is a brand-new connection, never a state reset.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session drives one connection's lifecycle. HandleFrame is the single
// dispatch point: the pair (state, event) decides the transition and its
// effects, so illegal sequences like sending before authenticating are
// rejected in one place instead of per-handler guards.
//
// Frames for one connection are handled sequentially on its read loop;
// the mutex only guards state against the auth-deadline timer and close.
type Session struct {
	connID uuid.UUID
	hub    *Hub
	out    Outbound

	mu        sync.Mutex
	state     State
	authTimer *time.Timer
}

// NewSession creates a session for a connection already admitted to the hub.
func NewSession(connID uuid.UUID, hub *Hub, out Outbound) *Session {
	return &Session{connID: connID, hub: hub, out: out}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartAuthDeadline force-closes the connection if it has not
// authenticated within d. Failing to authenticate in time is the one
// fatal error in the taxonomy.
func (s *Session) StartAuthDeadline(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authTimer = time.AfterFunc(d, func() {
		if s.State() != StateUnauthenticated {
			return
		}
		s.sendAuthError("authentication timeout")
		s.out.Close()
	})
}

// HandleFrame dispatches one inbound frame against the current state.
// Rejected operations emit an error frame and leave the connection open.
func (s *Session) HandleFrame(ctx context.Context, f Frame) {
	state := s.State()
	if state == StateClosed {
		return
	}

	switch f.Event {
	case EventAuthenticate:
		s.handleAuthenticate(ctx, f.Data)
	case EventJoinConversation:
		if state != StateAuthenticated {
			s.sendError(ErrNotAuthenticated.Error())
			return
		}
		s.handleJoinConversation(ctx, f.Data)
	case EventSendMessage:
		if state != StateAuthenticated {
			s.sendError(ErrNotAuthenticated.Error())
			return
		}
		s.handleSendMessage(ctx, f.Data)
	case EventTyping:
		// Ephemeral signal: silently dropped unless authenticated.
		if state != StateAuthenticated {
			return
		}
		s.handleTyping(f.Data)
	default:
		s.sendError(fmt.Sprintf("unknown event %q", f.Event))
	}
}

// Close marks the session terminal and detaches the connection from the
// registry and every channel. Idempotent; called from the read loop on
// disconnect and from shutdown.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	if s.authTimer != nil {
		s.authTimer.Stop()
	}
	s.mu.Unlock()

	s.hub.Disconnect(s.connID)
}

func (s *Session) handleAuthenticate(ctx context.Context, data json.RawMessage) {
	if s.State() == StateAuthenticated {
		s.sendAuthError(ErrAlreadyAuthenticated.Error())
		return
	}

	var p AuthenticatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.sendAuthError("malformed authenticate payload")
		return
	}

	user, err := s.hub.Authenticate(ctx, s.connID, p.Credential)
	if err != nil {
		// The connection stays open; the client may retry until the
		// auth deadline fires.
		s.sendAuthError(err.Error())
		return
	}

	s.mu.Lock()
	s.state = StateAuthenticated
	if s.authTimer != nil {
		s.authTimer.Stop()
	}
	s.mu.Unlock()

	s.send(EventAuthSuccess, AuthSuccessPayload{
		User: UserInfo{UserID: user.ID, Name: user.Name, Phone: user.Phone},
	})
}

func (s *Session) handleJoinConversation(ctx context.Context, data json.RawMessage) {
	var p JoinConversationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.sendError("malformed join_conversation payload")
		return
	}
	history, err := s.hub.dispatcher.JoinConversation(ctx, s.connID, p)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	s.send(EventMessageHistory, history)
}

func (s *Session) handleSendMessage(ctx context.Context, data json.RawMessage) {
	var p SendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.sendError("malformed send_message payload")
		return
	}
	// Delivery to the sender happens through the channel broadcast like
	// any other member; only failures are reported back directly.
	if _, err := s.hub.dispatcher.SendMessage(ctx, s.connID, p); err != nil {
		s.sendError(err.Error())
	}
}

func (s *Session) handleTyping(data json.RawMessage) {
	var p TypingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	s.hub.dispatcher.SetTyping(s.connID, p)
}

func (s *Session) send(event string, payload any) {
	frame, err := NewFrame(event, payload)
	if err != nil {
		return
	}
	s.out.Send(frame)
}

func (s *Session) sendError(message string) {
	s.send(EventError, ErrorPayload{Message: message})
}

func (s *Session) sendAuthError(message string) {
	s.send(EventAuthError, AuthErrorPayload{Error: message})
}
