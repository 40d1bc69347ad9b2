package tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/lib/pq"
	"github.com/tranvananh112/Messenger/internal/auth"
	"github.com/tranvananh112/Messenger/internal/config"
	"github.com/tranvananh112/Messenger/internal/db"
	httphandler "github.com/tranvananh112/Messenger/internal/http"
	"github.com/tranvananh112/Messenger/internal/http/handlers"
	"github.com/tranvananh112/Messenger/internal/repo"
	"github.com/tranvananh112/Messenger/internal/ws"
)

func TestMain(m *testing.M) {
	// Set env if unset. Do NOT set DATABASE_URL; integration tests skip if missing.
	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", "test-jwt-secret-at-least-32-characters-long")
	}

	code := m.Run()
	os.Exit(code)
}

// testServer holds the server and DB for integration tests
type testServer struct {
	Server *httptest.Server
	DB     *sql.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err, "config load must succeed for integration test")

	ctx := context.Background()
	database, err := db.Open(ctx, cfg.DatabaseURL)
	require.NoError(t, err, "database open must succeed; check DATABASE_URL and that test DB exists")
	t.Cleanup(func() { database.Close() })

	err = RunMigrations(database)
	require.NoError(t, err, "migrations must run successfully")

	userRepo := repo.NewUserRepo(database)
	friendRepo := repo.NewFriendRepo(database)
	messageRepo := repo.NewMessageRepo(database)
	refreshRepo := repo.NewRefreshRepo(database)

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL)
	authService := auth.NewService(jwtService, userRepo, refreshRepo, cfg.RefreshTokenTTL)

	hub := ws.NewHub(authService, messageRepo, userRepo)
	t.Cleanup(hub.Shutdown)
	wsHandler := ws.NewHandler(hub, cfg.AuthTimeout, nil)

	authHandler := handlers.NewAuthHandler(authService)
	friendsHandler := handlers.NewFriendsHandler(friendRepo, userRepo)
	messagesHandler := handlers.NewMessagesHandler(messageRepo, userRepo, friendRepo)

	router := httphandler.NewRouter(authHandler, friendsHandler, messagesHandler, wsHandler, jwtService, userRepo)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{Server: server, DB: database}
}

func (s *testServer) BaseURL() string { return s.Server.URL }

func (s *testServer) Truncate(t *testing.T) {
	t.Helper()
	require.NoError(t, TruncateChatTables(context.Background(), s.DB), "truncate chat tables")
}

// userJSON matches the user object in API responses
type userJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// loginJSON matches POST /auth/login response
type loginJSON struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	User         userJSON `json:"user"`
}

// refreshJSON matches POST /auth/refresh response
type refreshJSON struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// friendJSON matches one entry of GET /friends
type friendJSON struct {
	FriendshipID int64    `json:"friendship_id"`
	User         userJSON `json:"user"`
}

// messageJSON matches one entry of GET /messages/history
type messageJSON struct {
	ID         int64  `json:"id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

// errorJSON matches error JSON body
type errorJSON struct {
	Error string `json:"error"`
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := client.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// register creates an account and returns the login response for it.
func registerAndLogin(t *testing.T, client *http.Client, baseURL, name, phone, password string) loginJSON {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/auth/register", map[string]string{
		"name": name, "phone": phone, "password": password,
	})
	body := readBody(resp)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode, "register must return 201; body: %s", body)

	resp = postJSON(t, client, baseURL+"/auth/login", map[string]string{
		"phone": phone, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "login must return 200")
	return decodeJSON[loginJSON](t, resp)
}

func authedGet(t *testing.T, client *http.Client, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func authedPostJSON(t *testing.T, client *http.Client, url, token string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func TestChatIntegration(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ts := newTestServer(t)
	baseURL := ts.BaseURL()
	client := ts.Server.Client()

	t.Run("A_HealthCheck", func(t *testing.T) {
		resp, err := client.Get(baseURL + "/health")
		require.NoError(t, err)
		body := decodeJSON[map[string]bool](t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "GET /health must return 200")
		assert.True(t, body["ok"], "response must contain {\"ok\":true}")
	})

	t.Run("B_RegisterLoginMe", func(t *testing.T) {
		ts.Truncate(t)
		login := registerAndLogin(t, client, baseURL, "Alice", "+491111", "password123")
		assert.NotEmpty(t, login.AccessToken)
		assert.NotEmpty(t, login.RefreshToken)
		assert.Equal(t, "bearer", login.TokenType)
		assert.Equal(t, "Alice", login.User.Name)
		assert.Equal(t, "+491111", login.User.Phone)

		respMe := authedGet(t, client, baseURL+"/me", login.AccessToken)
		me := decodeJSON[userJSON](t, respMe)
		assert.Equal(t, http.StatusOK, respMe.StatusCode)
		assert.Equal(t, login.User.ID, me.ID)
		assert.Equal(t, "+491111", me.Phone)
	})

	t.Run("B2_RegisterDuplicatePhone", func(t *testing.T) {
		ts.Truncate(t)
		registerAndLogin(t, client, baseURL, "Alice", "+491111", "password123")

		resp := postJSON(t, client, baseURL+"/auth/register", map[string]string{
			"name": "Impostor", "phone": "+491111", "password": "password456",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode, "duplicate phone must return 409; body: %s", readBody(resp))
	})

	t.Run("B3_LoginWrongPassword", func(t *testing.T) {
		ts.Truncate(t)
		registerAndLogin(t, client, baseURL, "Alice", "+491111", "password123")

		resp := postJSON(t, client, baseURL+"/auth/login", map[string]string{
			"phone": "+491111", "password": "wrong-password",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("C_RefreshRotationAndReuse", func(t *testing.T) {
		ts.Truncate(t)
		login := registerAndLogin(t, client, baseURL, "Alice", "+491111", "password123")

		// Rotate: old token yields a new pair.
		resp := postJSON(t, client, baseURL+"/auth/refresh", map[string]string{"refresh_token": login.RefreshToken})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		rotated := decodeJSON[refreshJSON](t, resp)
		require.NotEmpty(t, rotated.RefreshToken)

		respMe := authedGet(t, client, baseURL+"/me", rotated.AccessToken)
		respMe.Body.Close()
		assert.Equal(t, http.StatusOK, respMe.StatusCode, "GET /me with rotated access token must return 200")

		// Reuse of the rotated-away token trips reuse detection.
		respReuse := postJSON(t, client, baseURL+"/auth/refresh", map[string]string{"refresh_token": login.RefreshToken})
		reuseBody := readBody(respReuse)
		respReuse.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, respReuse.StatusCode, "reused token must return 401; body: %s", reuseBody)
		var reuseErr errorJSON
		require.NoError(t, json.Unmarshal([]byte(reuseBody), &reuseErr))
		assert.Equal(t, "refresh_token_reuse_detected", reuseErr.Error)

		// Reuse revokes the whole family: the current token is dead too.
		respRevoked := postJSON(t, client, baseURL+"/auth/refresh", map[string]string{"refresh_token": rotated.RefreshToken})
		respRevoked.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, respRevoked.StatusCode, "token from the revoked family must return 401")
	})

	t.Run("C2_Logout", func(t *testing.T) {
		ts.Truncate(t)
		login := registerAndLogin(t, client, baseURL, "Alice", "+491111", "password123")

		resp := postJSON(t, client, baseURL+"/auth/logout", map[string]string{"refresh_token": login.RefreshToken})
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		respRefresh := postJSON(t, client, baseURL+"/auth/refresh", map[string]string{"refresh_token": login.RefreshToken})
		respRefresh.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, respRefresh.StatusCode, "refresh after logout must return 401")
	})

	t.Run("D_Friends", func(t *testing.T) {
		ts.Truncate(t)
		alice := registerAndLogin(t, client, baseURL, "Alice", "+491111", "password123")
		bob := registerAndLogin(t, client, baseURL, "Bob", "+492222", "password123")

		// Adding by phone creates an accepted friendship immediately.
		resp := authedPostJSON(t, client, baseURL+"/friends", alice.AccessToken, map[string]string{"phone": "+492222"})
		added := decodeJSON[friendJSON](t, resp)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, bob.User.ID, added.User.ID)

		// Both sides see the friendship.
		respList := authedGet(t, client, baseURL+"/friends", bob.AccessToken)
		list := decodeJSON[[]friendJSON](t, respList)
		require.Len(t, list, 1)
		assert.Equal(t, alice.User.ID, list[0].User.ID)
		assert.Equal(t, "Alice", list[0].User.Name)

		// Re-adding in either direction conflicts.
		respDup := authedPostJSON(t, client, baseURL+"/friends", alice.AccessToken, map[string]string{"phone": "+492222"})
		respDup.Body.Close()
		assert.Equal(t, http.StatusConflict, respDup.StatusCode, "adding an existing friendship must return 409")
		respDup = authedPostJSON(t, client, baseURL+"/friends", bob.AccessToken, map[string]string{"phone": "+491111"})
		respDup.Body.Close()
		assert.Equal(t, http.StatusConflict, respDup.StatusCode, "argument order must not matter for the conflict")
	})

	t.Run("D2_FriendsEdgeCases", func(t *testing.T) {
		ts.Truncate(t)
		alice := registerAndLogin(t, client, baseURL, "Alice", "+491111", "password123")

		resp := authedPostJSON(t, client, baseURL+"/friends", alice.AccessToken, map[string]string{"phone": "+490000"})
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "unknown phone must return 404")

		resp = authedPostJSON(t, client, baseURL+"/friends", alice.AccessToken, map[string]string{"phone": "+491111"})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "self-add must return 400")

		resp = authedPostJSON(t, client, baseURL+"/friends", "not-a-token", map[string]string{"phone": "+491111"})
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("E_MessageHistory", func(t *testing.T) {
		ts.Truncate(t)
		alice := registerAndLogin(t, client, baseURL, "Alice", "+491111", "password123")
		bob := registerAndLogin(t, client, baseURL, "Bob", "+492222", "password123")
		resp := authedPostJSON(t, client, baseURL+"/friends", alice.AccessToken, map[string]string{"phone": "+492222"})
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		// Seed messages directly; the realtime path has its own tests.
		ctx := context.Background()
		messageRepo := repo.NewMessageRepo(ts.DB)
		m1, err := messageRepo.Insert(ctx, mustUUID(t, alice.User.ID), mustUUID(t, bob.User.ID), "hi")
		require.NoError(t, err)
		m2, err := messageRepo.Insert(ctx, mustUUID(t, bob.User.ID), mustUUID(t, alice.User.ID), "hello")
		require.NoError(t, err)

		respHist := authedGet(t, client, baseURL+"/messages/history?friend_id="+bob.User.ID, alice.AccessToken)
		history := decodeJSON[[]messageJSON](t, respHist)
		assert.Equal(t, http.StatusOK, respHist.StatusCode)
		require.Len(t, history, 2)
		assert.Equal(t, m1.ID, history[0].ID, "history must be ascending")
		assert.Equal(t, "hi", history[0].Content)
		assert.Equal(t, m2.ID, history[1].ID)

		respLimited := authedGet(t, client, baseURL+"/messages/history?friend_id="+bob.User.ID+"&limit=1", alice.AccessToken)
		limited := decodeJSON[[]messageJSON](t, respLimited)
		require.Len(t, limited, 1)
		assert.Equal(t, "hello", limited[0].Content, "limit keeps the most recent messages")
	})

	t.Run("E2_MessageHistoryRequiresFriendship", func(t *testing.T) {
		ts.Truncate(t)
		alice := registerAndLogin(t, client, baseURL, "Alice", "+491111", "password123")
		carol := registerAndLogin(t, client, baseURL, "Carol", "+493333", "password123")

		resp := authedGet(t, client, baseURL+"/messages/history?friend_id="+carol.User.ID, alice.AccessToken)
		resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, "history without a friendship must return 403")

		resp = authedGet(t, client, baseURL+"/messages/history?friend_id=not-a-uuid", alice.AccessToken)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = authedGet(t, client, baseURL+"/messages/history?friend_id=00000000-0000-0000-0000-0000000000ff", alice.AccessToken)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "unknown friend_id must return 404")
	})
}

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}

// readBody reads and returns the response body (consumes it). Use for error messages only.
func readBody(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}
