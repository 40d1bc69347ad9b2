package ws

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage_FanOutExactlyOncePerConnection(t *testing.T) {
	hub, store := newTestHub(alice, bob)
	a1, outA1 := connect(t, hub, &alice)
	a2, outA2 := connect(t, hub, &alice)
	b1, outB1 := connect(t, hub, &bob)

	ch := NewChannel(alice.ID, bob.ID)
	hub.router.Join(a1, ch)
	hub.router.Join(a2, ch)
	hub.router.Join(b1, ch)

	msg, err := hub.dispatcher.SendMessage(context.Background(), a1, SendMessagePayload{
		SenderID:   alice.ID,
		ReceiverID: bob.ID,
		Content:    "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.ID)
	assert.Equal(t, "Alice", msg.SenderName)

	// Every joined connection, including BOTH of the sender's own, sees
	// the message exactly once.
	for _, out := range []*fakeOutbound{outA1, outA2, outB1} {
		frames := out.byEvent(EventNewMessage)
		require.Len(t, frames, 1)
		got := decodePayload[MessagePayload](t, frames[0])
		assert.Equal(t, "hi", got.Content)
		assert.Equal(t, alice.ID, got.SenderID)
		assert.Equal(t, bob.ID, got.ReceiverID)
	}

	require.Len(t, store.stored(), 1)
}

func TestSendMessage_PersistsBeforeBroadcast(t *testing.T) {
	hub, store := newTestHub(alice, bob)
	a1, _ := connect(t, hub, &alice)
	b1, outB1 := connect(t, hub, &bob)
	hub.router.Join(a1, NewChannel(alice.ID, bob.ID))
	hub.router.Join(b1, NewChannel(alice.ID, bob.ID))

	_, err := hub.dispatcher.SendMessage(context.Background(), a1, SendMessagePayload{
		SenderID: alice.ID, ReceiverID: bob.ID, Content: "hello",
	})
	require.NoError(t, err)

	// The broadcast frame carries the store-assigned id, so a history
	// query issued after delivery must return the same message.
	frames := outB1.byEvent(EventNewMessage)
	require.Len(t, frames, 1)
	got := decodePayload[MessagePayload](t, frames[0])

	history, err := store.History(context.Background(), alice.ID, bob.ID, historyLimit)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, history[0].ID, got.ID)
}

func TestSendMessage_NoLiveReceiverStillPersists(t *testing.T) {
	hub, store := newTestHub(alice, bob)
	a1, _ := connect(t, hub, &alice)

	_, err := hub.dispatcher.SendMessage(context.Background(), a1, SendMessagePayload{
		SenderID: alice.ID, ReceiverID: bob.ID, Content: "offline msg",
	})
	require.NoError(t, err)
	require.Len(t, store.stored(), 1)
}

func TestSendMessage_Unauthenticated(t *testing.T) {
	hub, store := newTestHub(alice, bob)
	c1, _ := connect(t, hub, nil)

	_, err := hub.dispatcher.SendMessage(context.Background(), c1, SendMessagePayload{
		SenderID: alice.ID, ReceiverID: bob.ID, Content: "hi",
	})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, store.stored())
}

func TestSendMessage_EmptyContentNotPersisted(t *testing.T) {
	hub, store := newTestHub(alice, bob)
	a1, _ := connect(t, hub, &alice)

	for _, content := range []string{"", "   ", "\t\n"} {
		_, err := hub.dispatcher.SendMessage(context.Background(), a1, SendMessagePayload{
			SenderID: alice.ID, ReceiverID: bob.ID, Content: content,
		})
		assert.ErrorIs(t, err, ErrEmptyContent)
	}
	assert.Empty(t, store.stored())
}

func TestSendMessage_SpoofedSenderForbidden(t *testing.T) {
	hub, store := newTestHub(alice, bob)
	a1, _ := connect(t, hub, &alice)

	_, err := hub.dispatcher.SendMessage(context.Background(), a1, SendMessagePayload{
		SenderID: bob.ID, ReceiverID: alice.ID, Content: "spoofed",
	})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, store.stored())
}

func TestSendMessage_PersistFailureNeverBroadcasts(t *testing.T) {
	hub, store := newTestHub(alice, bob)
	store.insertErr = errors.New("disk full")

	a1, outA1 := connect(t, hub, &alice)
	b1, outB1 := connect(t, hub, &bob)
	hub.router.Join(a1, NewChannel(alice.ID, bob.ID))
	hub.router.Join(b1, NewChannel(alice.ID, bob.ID))

	_, err := hub.dispatcher.SendMessage(context.Background(), a1, SendMessagePayload{
		SenderID: alice.ID, ReceiverID: bob.ID, Content: "hi",
	})
	require.Error(t, err)
	assert.Zero(t, outA1.count(EventNewMessage))
	assert.Zero(t, outB1.count(EventNewMessage))
}

func TestSetTyping_ExcludesTypistsOwnConnections(t *testing.T) {
	hub, _ := newTestHub(alice, bob)
	a1, outA1 := connect(t, hub, &alice)
	a2, outA2 := connect(t, hub, &alice)
	b1, outB1 := connect(t, hub, &bob)

	ch := NewChannel(alice.ID, bob.ID)
	hub.router.Join(a1, ch)
	hub.router.Join(a2, ch)
	hub.router.Join(b1, ch)

	hub.dispatcher.SetTyping(a1, TypingPayload{ReceiverID: bob.ID, IsTyping: true})

	assert.Zero(t, outA1.count(EventUserTyping), "typist's sending connection must not see the echo")
	assert.Zero(t, outA2.count(EventUserTyping), "typist's other connection must not see the echo")

	frames := outB1.byEvent(EventUserTyping)
	require.Len(t, frames, 1)
	got := decodePayload[UserTypingPayload](t, frames[0])
	assert.Equal(t, alice.ID, got.UserID)
	assert.Equal(t, "Alice", got.UserName)
	assert.True(t, got.IsTyping)
}

func TestSetTyping_UnauthenticatedSilentlyIgnored(t *testing.T) {
	hub, _ := newTestHub(alice, bob)
	c1, out1 := connect(t, hub, nil)

	hub.dispatcher.SetTyping(c1, TypingPayload{ReceiverID: bob.ID, IsTyping: true})
	assert.Empty(t, out1.frames)
}

func TestJoinConversation_ReturnsAscendingHistoryWithNames(t *testing.T) {
	hub, store := newTestHub(alice, bob)

	for i := 0; i < 3; i++ {
		_, err := store.Insert(context.Background(), alice.ID, bob.ID, "msg")
		require.NoError(t, err)
	}

	b1, _ := connect(t, hub, &bob)
	history, err := hub.dispatcher.JoinConversation(context.Background(), b1, JoinConversationPayload{
		UserID: bob.ID, FriendID: alice.ID,
	})
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, m := range history {
		assert.Equal(t, int64(i+1), m.ID, "history must ascend by id")
		assert.Equal(t, "Alice", m.SenderName)
	}
	assert.True(t, hub.router.Joined(b1, NewChannel(alice.ID, bob.ID)))
}

func TestJoinConversation_HistoryCappedAtLimit(t *testing.T) {
	hub, store := newTestHub(alice, bob)
	for i := 0; i < historyLimit+10; i++ {
		_, err := store.Insert(context.Background(), alice.ID, bob.ID, "msg")
		require.NoError(t, err)
	}

	b1, _ := connect(t, hub, &bob)
	history, err := hub.dispatcher.JoinConversation(context.Background(), b1, JoinConversationPayload{
		UserID: bob.ID, FriendID: alice.ID,
	})
	require.NoError(t, err)
	require.Len(t, history, historyLimit)
	// The cap keeps the LATEST messages.
	assert.Equal(t, int64(11), history[0].ID)
	assert.Equal(t, int64(historyLimit+10), history[len(history)-1].ID)
}

func TestJoinConversation_Errors(t *testing.T) {
	hub, _ := newTestHub(alice, bob)

	unauth, _ := connect(t, hub, nil)
	_, err := hub.dispatcher.JoinConversation(context.Background(), unauth, JoinConversationPayload{FriendID: bob.ID})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	a1, _ := connect(t, hub, &alice)
	_, err = hub.dispatcher.JoinConversation(context.Background(), a1, JoinConversationPayload{
		UserID: bob.ID, FriendID: alice.ID,
	})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = hub.dispatcher.JoinConversation(context.Background(), a1, JoinConversationPayload{
		UserID: alice.ID, FriendID: uuid.New(),
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
}
