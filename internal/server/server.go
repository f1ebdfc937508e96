package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"codeguardian/internal/auth"
	"codeguardian/internal/config"
	"codeguardian/internal/engine"
	"codeguardian/internal/errors"
	"codeguardian/internal/jobs"
)

// Server is the HTTP front of the pipeline: the REST API under /api/v1, the
// websocket endpoint for live updates, and the health and metrics surfaces.
type Server struct {
	router *mux.Router
	server *http.Server
	engine *engine.Engine
	jobs   *jobs.Manager
	auth   *auth.Service
	hub    *Hub
}

// New creates the server and installs its routes and middleware
func New(cfg *config.Config, eng *engine.Engine, jobManager *jobs.Manager, authService *auth.Service, hub *Hub) *Server {
	router := mux.NewRouter()

	s := &Server{
		router: router,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
			Handler:           router,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: eng,
		jobs:   jobManager,
		auth:   authService,
		hub:    hub,
	}

	rateLimiter := errors.NewRateLimiter(time.Minute, 100)
	router.Use(errors.CORSMiddleware)
	router.Use(errors.SecurityHeadersMiddleware)
	router.Use(errors.RateLimitMiddleware(rateLimiter))
	router.Use(errors.ValidationMiddleware)

	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all the HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ws", s.hub.HandleConnection)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Authentication
	api.HandleFunc("/auth/token", s.auth.HandleToken).Methods("POST")
	api.HandleFunc("/auth/logout", s.auth.HandleLogout).Methods("POST")

	// Analysis
	api.Handle("/analyze", s.auth.Require(http.HandlerFunc(s.handleAnalyze))).Methods("POST")
	api.Handle("/analyze/batch", s.auth.Require(http.HandlerFunc(s.handleAnalyzeBatch))).Methods("POST")

	// Batch jobs
	api.Handle("/jobs", s.auth.Optional(http.HandlerFunc(s.handleListJobs))).Methods("GET")
	api.Handle("/jobs/{id}", s.auth.Optional(http.HandlerFunc(s.handleGetJob))).Methods("GET")
	api.Handle("/jobs/{id}", s.auth.Require(http.HandlerFunc(s.handleCancelJob))).Methods("DELETE")

	// Suggestions
	api.Handle("/suggestions", s.auth.Optional(http.HandlerFunc(s.handleListSuggestions))).Methods("GET")
	api.Handle("/suggestions", s.auth.Require(http.HandlerFunc(s.handleGenerateSuggestions))).Methods("POST")
	api.Handle("/suggestions", s.auth.Require(http.HandlerFunc(s.handleClearSuggestions))).Methods("DELETE")
	api.Handle("/suggestions/{id}/apply", s.auth.Require(http.HandlerFunc(s.handleApplySuggestion))).Methods("POST")

	// Rules
	api.Handle("/rules", s.auth.Optional(http.HandlerFunc(s.handleGetRules))).Methods("GET")
	api.Handle("/rules/reload", s.auth.Require(http.HandlerFunc(s.handleReloadRules))).Methods("POST")

	// Knowledge search
	api.Handle("/search", s.auth.Optional(http.HandlerFunc(s.handleSearch))).Methods("GET")

	// Alerts
	api.Handle("/alerts", s.auth.Optional(http.HandlerFunc(s.handleListAlerts))).Methods("GET")
	api.Handle("/alerts/{id}/resolve", s.auth.Require(http.HandlerFunc(s.handleResolveAlert))).Methods("POST")

	// Observability
	api.Handle("/metrics", s.auth.Optional(http.HandlerFunc(s.handleMetrics))).Methods("GET")
	api.Handle("/status", s.auth.Optional(http.HandlerFunc(s.handleStatus))).Methods("GET")
}

// Start runs the server until it is shut down
func (s *Server) Start() error {
	log.Printf("🌐 Starting server on %s...", s.server.Addr)
	log.Printf("📊 API available under http://localhost%s/api/v1/", s.server.Addr)
	log.Printf("🔗 WebSocket available on ws://localhost%s/ws", s.server.Addr)

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("🛑 Shutting down HTTP server...")
	return s.server.Shutdown(ctx)
}
