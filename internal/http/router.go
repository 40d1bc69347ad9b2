package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/tranvananh112/Messenger/internal/auth"
	"github.com/tranvananh112/Messenger/internal/http/handlers"
	"github.com/tranvananh112/Messenger/internal/middleware"
	"github.com/tranvananh112/Messenger/internal/repo"
	"github.com/tranvananh112/Messenger/internal/ws"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	authHandler *handlers.AuthHandler,
	friendsHandler *handlers.FriendsHandler,
	messagesHandler *handlers.MessagesHandler,
	wsHandler *ws.Handler,
	jwtService *auth.JWTService,
	userRepo repo.UserRepo,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/refresh", authHandler.HandleRefresh)
		r.Post("/logout", authHandler.HandleLogout)
	})

	// WebSocket endpoint: no bearer required here, authentication is
	// in-band via the authenticate event.
	r.Get("/ws", wsHandler.ServeHTTP)

	// Protected routes (require valid JWT)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(jwtService, userRepo))
		r.Get("/me", authHandler.HandleMe)
		r.Get("/friends", friendsHandler.HandleList)
		r.Post("/friends", friendsHandler.HandleAdd)
		r.Get("/messages/history", messagesHandler.HandleHistory)
	})

	return r
}
