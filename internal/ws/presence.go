package ws

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tranvananh112/Messenger/internal/model"
)

// Outbound is the write side of a live connection. The websocket client
// implements it; tests substitute a recording fake. Send must not block.
type Outbound interface {
	Send(f Frame)
	Close()
}

// Conn is one live connection as tracked by the registry. User stays nil
// until the connection authenticates and is written exactly once after
// that, under the registry lock.
type Conn struct {
	ID          uuid.UUID
	User        *model.User
	ConnectedAt time.Time
	Out         Outbound
}

// Presence is the authoritative in-memory registry of live connections
// and their authenticated identities. A user may hold any number of
// simultaneous connections; the registry owns the Conn records for their
// whole lifetime.
type Presence struct {
	mu     sync.RWMutex
	byConn map[uuid.UUID]*Conn
	byUser map[uuid.UUID]map[uuid.UUID]*Conn // user id -> conn id -> conn
}

// NewPresence creates an empty registry.
func NewPresence() *Presence {
	return &Presence{
		byConn: make(map[uuid.UUID]*Conn),
		byUser: make(map[uuid.UUID]map[uuid.UUID]*Conn),
	}
}

// Register admits a new unauthenticated connection. Registering an
// already-known connection id is a no-op.
func (p *Presence) Register(connID uuid.UUID, out Outbound) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byConn[connID]; ok {
		return
	}
	p.byConn[connID] = &Conn{
		ID:          connID,
		ConnectedAt: time.Now(),
		Out:         out,
	}
}

// BindIdentity attaches an authenticated user to a registered connection.
func (p *Presence) BindIdentity(connID uuid.UUID, user *model.User) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.byConn[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if c.User != nil {
		return ErrAlreadyAuthenticated
	}
	c.User = user

	conns := p.byUser[user.ID]
	if conns == nil {
		conns = make(map[uuid.UUID]*Conn)
		p.byUser[user.ID] = conns
	}
	conns[connID] = c
	return nil
}

// Unregister removes the connection and returns the ids of users who left
// the online set as a result. A user with other live connections stays
// online, so dropping one of several connections returns nothing and no
// presence broadcast is due.
func (p *Presence) Unregister(connID uuid.UUID) []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.byConn[connID]
	if !ok {
		return nil
	}
	delete(p.byConn, connID)

	if c.User == nil {
		return nil
	}
	conns := p.byUser[c.User.ID]
	delete(conns, connID)
	if len(conns) > 0 {
		return nil
	}
	delete(p.byUser, c.User.ID)
	return []uuid.UUID{c.User.ID}
}

// BoundUser returns the user bound to the connection, if any.
func (p *Presence) BoundUser(connID uuid.UUID) (*model.User, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.byConn[connID]
	if !ok || c.User == nil {
		return nil, false
	}
	return c.User, true
}

// IsOnline reports whether the user has at least one live connection.
func (p *Presence) IsOnline(userID uuid.UUID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser[userID]) > 0
}

// OnlineUsers returns a snapshot of the online set, one entry per user,
// ordered by user id ascending so repeated snapshots are diffable.
func (p *Presence) OnlineUsers() []UserInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	users := make([]UserInfo, 0, len(p.byUser))
	for _, conns := range p.byUser {
		for _, c := range conns {
			users = append(users, UserInfo{UserID: c.User.ID, Name: c.User.Name, Phone: c.User.Phone})
			break
		}
	}
	sort.Slice(users, func(i, j int) bool {
		return bytes.Compare(users[i].UserID[:], users[j].UserID[:]) < 0
	})
	return users
}

// Broadcast delivers f to every registered connection, authenticated or not.
func (p *Presence) Broadcast(f Frame) {
	for _, out := range p.outbounds() {
		out.Send(f)
	}
}

// CloseAll closes every registered connection; used at shutdown.
func (p *Presence) CloseAll() {
	for _, out := range p.outbounds() {
		out.Close()
	}
}

// outbounds snapshots the write sides so sends happen without the lock.
func (p *Presence) outbounds() []Outbound {
	p.mu.RLock()
	defer p.mu.RUnlock()
	outs := make([]Outbound, 0, len(p.byConn))
	for _, c := range p.byConn {
		outs = append(outs, c.Out)
	}
	return outs
}

// resolveExcept maps connection ids to their write sides, skipping ids
// that have already unregistered and, when excludeUser is not uuid.Nil,
// every connection bound to that user.
func (p *Presence) resolveExcept(connIDs []uuid.UUID, excludeUser uuid.UUID) []Outbound {
	p.mu.RLock()
	defer p.mu.RUnlock()
	outs := make([]Outbound, 0, len(connIDs))
	for _, id := range connIDs {
		c, ok := p.byConn[id]
		if !ok {
			continue
		}
		if excludeUser != uuid.Nil && c.User != nil && c.User.ID == excludeUser {
			continue
		}
		outs = append(outs, c.Out)
	}
	return outs
}
