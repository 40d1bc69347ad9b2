package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tranvananh112/Messenger/internal/middleware"
	"github.com/tranvananh112/Messenger/internal/repo"
)

// FriendsHandler handles the friend-list endpoints
type FriendsHandler struct {
	friendRepo repo.FriendRepo
	userRepo   repo.UserRepo
}

// NewFriendsHandler creates a new friends handler
func NewFriendsHandler(friendRepo repo.FriendRepo, userRepo repo.UserRepo) *FriendsHandler {
	return &FriendsHandler{friendRepo: friendRepo, userRepo: userRepo}
}

// friendResponse is one entry in the friend list
type friendResponse struct {
	FriendshipID int64     `json:"friendship_id"`
	User         userResponse `json:"user"`
	CreatedAt    time.Time `json:"created_at"`
}

// addFriendRequest is the request body for POST /friends
type addFriendRequest struct {
	Phone string `json:"phone"`
}

// HandleList handles GET /friends (protected)
func (h *FriendsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	friends, err := h.friendRepo.ListForUser(r.Context(), user.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list friends")
		return
	}

	out := make([]friendResponse, 0, len(friends))
	for _, f := range friends {
		out = append(out, friendResponse{
			FriendshipID: f.FriendshipID,
			User: userResponse{
				ID:    f.UserID.String(),
				Name:  f.Name,
				Phone: f.Phone,
			},
			CreatedAt: f.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleAdd handles POST /friends (protected). Adding by phone creates an
// accepted friendship immediately; there is no pending-request step.
func (h *FriendsHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req addFriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" {
		respondWithError(w, http.StatusBadRequest, "phone is required")
		return
	}

	peer, err := h.userRepo.GetByPhone(r.Context(), req.Phone)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "no user with that phone")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}
	if peer.ID == user.ID {
		respondWithError(w, http.StatusBadRequest, "cannot add yourself")
		return
	}

	friendship, err := h.friendRepo.Add(r.Context(), user.ID, peer.ID)
	if err != nil {
		if errors.Is(err, repo.ErrAlreadyFriends) {
			respondWithError(w, http.StatusConflict, "already friends")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to add friend")
		return
	}

	respondJSON(w, http.StatusCreated, friendResponse{
		FriendshipID: friendship.ID,
		User: userResponse{
			ID:    peer.ID.String(),
			Name:  peer.Name,
			Phone: peer.Phone,
		},
		CreatedAt: friendship.CreatedAt,
	})
}
