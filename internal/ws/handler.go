package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to websocket connections and runs their
// lifecycle. Authentication happens in-band via the authenticate event,
// bounded by authTimeout.
type Handler struct {
	hub         *Hub
	authTimeout time.Duration
	upgrader    websocket.Upgrader
}

// NewHandler creates the websocket endpoint handler. An empty
// allowedOrigins list accepts every origin.
func NewHandler(hub *Hub, authTimeout time.Duration, allowedOrigins []string) *Handler {
	return &Handler{
		hub:         hub,
		authTimeout: authTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	client := newClient(conn)
	client.session = NewSession(client.id, h.hub, client)
	h.hub.Connect(client.id, client)
	client.session.StartAuthDeadline(h.authTimeout)

	go client.writePump()
	go client.readPump()
}

func originChecker(allowedOrigins []string) func(*http.Request) bool {
	if len(allowedOrigins) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := allowed[r.Header.Get("Origin")]
		return ok
	}
}
