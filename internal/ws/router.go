package ws

import (
	"sync"

	"github.com/google/uuid"
)

// Router maintains channel membership and fans frames out to joined
// connections. Membership references connections by id only; the presence
// registry stays the owner, and a connection that unregisters mid-broadcast
// is simply skipped.
type Router struct {
	presence *Presence

	mu      sync.RWMutex
	members map[Channel]map[uuid.UUID]struct{}
	joined  map[uuid.UUID]map[Channel]struct{} // reverse index for LeaveAll
}

// NewRouter creates a router resolving deliveries through the given registry.
func NewRouter(presence *Presence) *Router {
	return &Router{
		presence: presence,
		members:  make(map[Channel]map[uuid.UUID]struct{}),
		joined:   make(map[uuid.UUID]map[Channel]struct{}),
	}
}

// Join adds the connection to the channel's membership. Joining twice is
// a no-op.
func (r *Router) Join(connID uuid.UUID, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.members[ch]
	if conns == nil {
		conns = make(map[uuid.UUID]struct{})
		r.members[ch] = conns
	}
	conns[connID] = struct{}{}

	chans := r.joined[connID]
	if chans == nil {
		chans = make(map[Channel]struct{})
		r.joined[connID] = chans
	}
	chans[ch] = struct{}{}
}

// Leave removes the connection from the channel's membership.
func (r *Router) Leave(connID uuid.UUID, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, ch)
}

// LeaveAll removes the connection from every channel it joined; used on
// disconnect.
func (r *Router) LeaveAll(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.joined[connID] {
		r.leaveLocked(connID, ch)
	}
}

func (r *Router) leaveLocked(connID uuid.UUID, ch Channel) {
	if conns := r.members[ch]; conns != nil {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.members, ch)
		}
	}
	if chans := r.joined[connID]; chans != nil {
		delete(chans, ch)
		if len(chans) == 0 {
			delete(r.joined, connID)
		}
	}
}

// Broadcast delivers f to every connection joined to the channel,
// including all of the sender's own connections. Used for new_message.
func (r *Router) Broadcast(ch Channel, f Frame) {
	r.BroadcastExcludingUser(ch, f, uuid.Nil)
}

// BroadcastExcludingUser delivers f to the channel's members, skipping
// every connection bound to excludeUser. Typing indicators use this so a
// typist's own sessions never see their user_typing echo.
func (r *Router) BroadcastExcludingUser(ch Channel, f Frame, excludeUser uuid.UUID) {
	r.mu.RLock()
	connIDs := make([]uuid.UUID, 0, len(r.members[ch]))
	for id := range r.members[ch] {
		connIDs = append(connIDs, id)
	}
	r.mu.RUnlock()

	for _, out := range r.presence.resolveExcept(connIDs, excludeUser) {
		out.Send(f)
	}
}

// Joined reports whether the connection is currently a member of ch.
func (r *Router) Joined(connID uuid.UUID, ch Channel) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[ch][connID]
	return ok
}
