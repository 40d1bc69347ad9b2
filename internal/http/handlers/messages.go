package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tranvananh112/Messenger/internal/middleware"
	"github.com/tranvananh112/Messenger/internal/repo"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// MessagesHandler handles message-history endpoints
type MessagesHandler struct {
	messageRepo repo.MessageRepo
	userRepo    repo.UserRepo
	friendRepo  repo.FriendRepo
}

// NewMessagesHandler creates a new messages handler
func NewMessagesHandler(messageRepo repo.MessageRepo, userRepo repo.UserRepo, friendRepo repo.FriendRepo) *MessagesHandler {
	return &MessagesHandler{messageRepo: messageRepo, userRepo: userRepo, friendRepo: friendRepo}
}

// messageResponse is one message in a history listing
type messageResponse struct {
	ID         int64     `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// HandleHistory handles GET /messages/history?friend_id=&limit= (protected).
// Messages are returned ascending by (timestamp, id).
func (h *MessagesHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	friendID, err := uuid.Parse(r.URL.Query().Get("friend_id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "friend_id must be a valid user id")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}
	}

	if _, err := h.userRepo.GetByID(r.Context(), friendID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "user not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}

	areFriends, err := h.friendRepo.AreFriends(r.Context(), user.ID, friendID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to check friendship")
		return
	}
	if !areFriends {
		respondWithError(w, http.StatusForbidden, "not friends with that user")
		return
	}

	messages, err := h.messageRepo.History(r.Context(), user.ID, friendID, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	out := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, messageResponse{
			ID:         m.ID,
			SenderID:   m.SenderID.String(),
			ReceiverID: m.ReceiverID.String(),
			Content:    m.Content,
			Timestamp:  m.Timestamp,
		})
	}
	respondJSON(w, http.StatusOK, out)
}
