package ws

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/tranvananh112/Messenger/internal/model"
)

// Verifier resolves a bearer credential to a user identity. Satisfied by
// auth.Service.
type Verifier interface {
	Verify(ctx context.Context, credential string) (model.User, error)
}

// Hub owns the realtime state of the process: the presence registry, the
// conversation router and the dispatcher. One Hub is created at startup,
// handed to the websocket handler, and torn down at shutdown; nothing
// reaches the registries except through it.
type Hub struct {
	presence   *Presence
	router     *Router
	dispatcher *Dispatcher
	verifier   Verifier
}

// NewHub wires the realtime components together.
func NewHub(verifier Verifier, store MessageStore, users UserDirectory) *Hub {
	presence := NewPresence()
	router := NewRouter(presence)
	return &Hub{
		presence:   presence,
		router:     router,
		dispatcher: NewDispatcher(presence, router, store, users),
		verifier:   verifier,
	}
}

// Connect admits a new unauthenticated connection.
func (h *Hub) Connect(connID uuid.UUID, out Outbound) {
	h.presence.Register(connID, out)
}

// Authenticate verifies the credential and binds the identity to the
// connection. Success changes the online set, so the roster is broadcast
// to every connection.
func (h *Hub) Authenticate(ctx context.Context, connID uuid.UUID, credential string) (model.User, error) {
	user, err := h.verifier.Verify(ctx, credential)
	if err != nil {
		return model.User{}, err
	}
	if err := h.presence.BindIdentity(connID, &user); err != nil {
		return model.User{}, err
	}
	h.broadcastRoster()
	return user, nil
}

// Disconnect removes the connection from every channel and from the
// registry. The roster is rebroadcast only if a user actually left the
// online set; dropping one of a user's several connections stays silent.
func (h *Hub) Disconnect(connID uuid.UUID) {
	h.router.LeaveAll(connID)
	if wentOffline := h.presence.Unregister(connID); len(wentOffline) > 0 {
		h.broadcastRoster()
	}
}

// Shutdown closes every live connection.
func (h *Hub) Shutdown() {
	h.presence.CloseAll()
}

func (h *Hub) broadcastRoster() {
	frame, err := NewFrame(EventUsersOnline, h.presence.OnlineUsers())
	if err != nil {
		log.Printf("ws: failed to build users_online frame: %v", err)
		return
	}
	h.presence.Broadcast(frame)
}
