package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/tranvananh112/Messenger/internal/auth"
	"github.com/tranvananh112/Messenger/internal/config"
	"github.com/tranvananh112/Messenger/internal/db"
	httphandler "github.com/tranvananh112/Messenger/internal/http"
	"github.com/tranvananh112/Messenger/internal/http/handlers"
	"github.com/tranvananh112/Messenger/internal/repo"
	"github.com/tranvananh112/Messenger/internal/ws"

	_ "github.com/lib/pq"
)

func main() {
	// Load .env from CWD if present (env vars override)
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create context for startup operations
	ctx := context.Background()

	// Open database connection
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := runMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	userRepo := repo.NewUserRepo(database)
	friendRepo := repo.NewFriendRepo(database)
	messageRepo := repo.NewMessageRepo(database)
	refreshRepo := repo.NewRefreshRepo(database)

	// Initialize auth service
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL)
	authService := auth.NewService(jwtService, userRepo, refreshRepo, cfg.RefreshTokenTTL)

	// Initialize realtime hub: auth service doubles as the identity
	// verifier for websocket connections.
	hub := ws.NewHub(authService, messageRepo, userRepo)
	wsHandler := ws.NewHandler(hub, cfg.AuthTimeout, cfg.AllowedOrigins)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	friendsHandler := handlers.NewFriendsHandler(friendRepo, userRepo)
	messagesHandler := handlers.NewMessagesHandler(messageRepo, userRepo, friendRepo)

	// Create router
	router := httphandler.NewRouter(authHandler, friendsHandler, messagesHandler, wsHandler, jwtService, userRepo)

	// Create HTTP server with timeouts. No global write timeout: it
	// would kill long-lived websocket connections.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Close live websocket connections, then drain HTTP with a timeout
	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from the repo root)")
	}

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
