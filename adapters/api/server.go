package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"phenotab/ports"
)

// Server exposes the run archive as a read-only JSON surface for triaging
// past cleanups.
type Server struct {
	router  *chi.Mux
	archive ports.RunArchive
	port    string
}

// NewServer creates a new archive API server
func NewServer(archive ports.RunArchive, port string) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		archive: archive,
		port:    port,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures HTTP middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Get("/api/runs", s.handleListRuns)
	s.router.Get("/api/runs/{id}", s.handleGetRun)
	s.router.Get("/api/runs/{id}/diagnostics", s.handleListDiagnostics)
}

// Router returns the HTTP handler, for embedding and tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := ":" + s.port
	log.Printf("Starting archive API server on %s", addr)
	return http.ListenAndServe(addr, s.router)
}
