// Package server provides the HTTP server and routing for podfund.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/podfund/internal/events"
	"github.com/aristath/podfund/internal/services"
)

// Config holds server configuration
type Config struct {
	Log            zerolog.Logger
	Engine         *services.EngineService
	Bus            *events.Bus
	SystemHandlers *SystemHandlers
	Port           int
	DevMode        bool
}

// Server is the HTTP front door for the funding intelligence engine
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
}

// New creates and wires the HTTP server
func New(cfg Config) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s := &Server{
		router: router,
		log:    cfg.Log.With().Str("component", "server").Logger(),
	}

	apiHandlers := NewAPIHandlers(cfg.Engine, cfg.Log)
	streamHandler := NewEventsStreamHandler(cfg.Bus, cfg.Log)

	router.Route("/api", func(r chi.Router) {
		apiHandlers.RegisterRoutes(r)
		r.Get("/events/stream", streamHandler.ServeHTTP)
		if cfg.SystemHandlers != nil {
			cfg.SystemHandlers.RegisterRoutes(r)
		}
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving; blocks until the server stops
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}
