package ws

import (
	"github.com/google/uuid"
	"github.com/tranvananh112/Messenger/internal/model"
)

// Channel identifies a one-to-one conversation by its canonical
// participant pair: A always sorts before B. Channels are derived values
// with no stored lifecycle; two participants always derive the same one.
type Channel struct {
	A, B uuid.UUID
}

// NewChannel returns the channel for an unordered pair of user ids.
// NewChannel(a, b) == NewChannel(b, a) for all a, b.
func NewChannel(a, b uuid.UUID) Channel {
	u1, u2 := model.CanonicalPair(a, b)
	return Channel{A: u1, B: u2}
}

// ID renders the channel as "<a>:<b>" with the ids in canonical order.
func (c Channel) ID() string {
	return c.A.String() + ":" + c.B.String()
}

// Has reports whether id is one of the two participants.
func (c Channel) Has(id uuid.UUID) bool {
	return id == c.A || id == c.B
}
