package server

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/coder/websocket"
	_ "github.com/joho/godotenv/autoload"
	"github.com/pressly/goose/v3"

	"tictactoe-server/internal/database"
	"tictactoe-server/internal/telegram"
)

type Server struct {
	port int

	db          database.Service
	store       GameStore
	registry    *Registry
	dispatcher  *Dispatcher
	coordinator *Coordinator
	stats       *StatsLedger
	notifier    *telegram.Notifier

	botToken string
	now      func() time.Time
}

func NewServer() (*Server, *http.Server) {
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}

	// Initialize database
	dbService := database.New()

	// Run migrations
	if err := runMigrations(dbService.DB()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	var notifier *telegram.Notifier
	if botToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, webhook replies disabled")
	} else if n, err := telegram.NewNotifier(botToken, os.Getenv("WEBAPP_URL")); err != nil {
		log.Printf("Warning: telegram notifier disabled: %v", err)
	} else {
		notifier = n
	}

	srv := newServerWith(NewStore(dbService.DB()), botToken)
	srv.port = port
	srv.db = dbService
	srv.notifier = notifier

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.port),
		Handler:      srv.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return srv, httpServer
}

// newServerWith wires the core around a store; tests call it directly with
// an in-memory fake.
func newServerWith(store GameStore, botToken string) *Server {
	registry := NewRegistry()
	dispatcher := NewDispatcher(store, registry)
	stats := NewStatsLedger(store)

	return &Server{
		store:       store,
		registry:    registry,
		dispatcher:  dispatcher,
		stats:       stats,
		coordinator: NewCoordinator(store, stats, dispatcher),
		botToken:    botToken,
		now:         time.Now,
	}
}

// runMigrations applies database migrations using goose
func runMigrations(db *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "./db/migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Println("Database migrations applied successfully")
	return nil
}

// Shutdown closes every open socket so clients see a clean going-away frame,
// then releases the database. Games live in the store, so nothing needs to
// be flushed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.registry.CloseAll(websocket.StatusGoingAway, "Server shutting down")

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
