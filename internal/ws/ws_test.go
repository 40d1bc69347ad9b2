package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tranvananh112/Messenger/internal/model"
	"github.com/tranvananh112/Messenger/internal/repo"
)

// Shared in-memory fakes for the realtime layer tests.

type fakeOutbound struct {
	mu     sync.Mutex
	frames []Frame
	closed bool
}

func (f *fakeOutbound) Send(fr Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr)
}

func (f *fakeOutbound) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeOutbound) byEvent(event string) []Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Frame
	for _, fr := range f.frames {
		if fr.Event == event {
			out = append(out, fr)
		}
	}
	return out
}

func (f *fakeOutbound) count(event string) int {
	return len(f.byEvent(event))
}

func (f *fakeOutbound) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type memStore struct {
	mu        sync.Mutex
	nextID    int64
	msgs      []model.Message
	insertErr error
}

func (s *memStore) Insert(_ context.Context, senderID, receiverID uuid.UUID, content string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return model.Message{}, s.insertErr
	}
	s.nextID++
	m := model.Message{
		ID:         s.nextID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  time.Now(),
	}
	s.msgs = append(s.msgs, m)
	return m, nil
}

func (s *memStore) History(_ context.Context, a, b uuid.UUID, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pair []model.Message
	for _, m := range s.msgs {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			pair = append(pair, m)
		}
	}
	if len(pair) > limit {
		pair = pair[len(pair)-limit:]
	}
	return pair, nil
}

func (s *memStore) stored() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message(nil), s.msgs...)
}

type memDirectory map[uuid.UUID]model.User

func (d memDirectory) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	if u, ok := d[id]; ok {
		return u, nil
	}
	return model.User{}, repo.ErrNotFound
}

type fakeVerifier map[string]model.User

func (v fakeVerifier) Verify(_ context.Context, credential string) (model.User, error) {
	if u, ok := v[credential]; ok {
		return u, nil
	}
	return model.User{}, errors.New("invalid credentials")
}

// credentialFor is the token the fakeVerifier accepts for a user.
func credentialFor(u model.User) string {
	return "token-" + u.Phone
}

func newTestHub(users ...model.User) (*Hub, *memStore) {
	store := &memStore{}
	dir := memDirectory{}
	verifier := fakeVerifier{}
	for _, u := range users {
		dir[u.ID] = u
		verifier[credentialFor(u)] = u
	}
	return NewHub(verifier, store, dir), store
}

var (
	alice = model.User{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Name: "Alice", Phone: "+111"}
	bob   = model.User{ID: uuid.MustParse("22222222-2222-2222-2222-222222222222"), Name: "Bob", Phone: "+222"}
	carol = model.User{ID: uuid.MustParse("33333333-3333-3333-3333-333333333333"), Name: "Carol", Phone: "+333"}
)

// connect registers a fresh connection on the hub and binds it to u when
// u is non-nil.
func connect(t *testing.T, hub *Hub, u *model.User) (uuid.UUID, *fakeOutbound) {
	t.Helper()
	connID := uuid.New()
	out := &fakeOutbound{}
	hub.Connect(connID, out)
	if u != nil {
		if err := hub.presence.BindIdentity(connID, u); err != nil {
			t.Fatalf("bind identity: %v", err)
		}
	}
	return connID, out
}

func decodePayload[T any](t *testing.T, fr Frame) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(fr.Data, &v); err != nil {
		t.Fatalf("decode %s payload: %v", fr.Event, err)
	}
	return v
}
