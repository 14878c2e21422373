package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/moodcue/moodcue/internal/db"
	"github.com/moodcue/moodcue/internal/models"
)

// Engine is the recommendation surface the HTTP layer exposes.
type Engine interface {
	SearchByText(ctx context.Context, query string, k int, f models.MovieFilter) ([]models.ScoredMovie, error)
	SimilarToMovie(ctx context.Context, movieID string, k int) ([]models.ScoredMovie, error)
	Recommend(ctx context.Context, userID, mood string, k int) ([]models.MovieRecord, error)
	IngestMovie(ctx context.Context, ext models.ExternalMovie) (*models.MovieRecord, error)
	ImportMovies(ctx context.Context, exts []models.ExternalMovie) ([]models.EnhancedMovie, error)
}

// Tracker records conversation turns.
type Tracker interface {
	Observe(ctx context.Context, userID, mood, utterance string) (bool, error)
}

// Store is the direct persistence surface for reads the engine does not
// mediate.
type Store interface {
	GetMovie(ctx context.Context, id string) (*models.MovieRecord, error)
	DeleteMovie(ctx context.Context, id string) error
	GetStats(ctx context.Context) (*db.Stats, error)
}

// Server implements the HTTP API.
type Server struct {
	engine    Engine
	tracker   Tracker
	store     Store
	router    *chi.Mux
	port      int
	model     string
	log       zerolog.Logger
	sseServer *server.SSEServer
	httpSrv   *http.Server
}

// NewServer creates an HTTP API server.
func NewServer(engine Engine, tracker Tracker, store Store, port int, model string, log zerolog.Logger) *Server {
	s := &Server{
		engine:  engine,
		tracker: tracker,
		store:   store,
		port:    port,
		model:   model,
		log:     log.With().Str("component", "api").Logger(),
	}

	s.setupRouter()
	return s
}

// setupRouter configures all HTTP routes
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Global middleware (no timeout here - added selectively below)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health and spec endpoints stay outside the timeout group
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/openapi.json", s.handleOpenAPISpec)

	// MCP SSE endpoint is mounted via AddMCPServer, without the timeout
	// middleware - SSE connections must stay open indefinitely.

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Post("/movies", s.handleAddMovie)
		r.Post("/movies/import", s.handleImportMovies)
		r.Get("/movies/{id}", s.handleGetMovie)
		r.Delete("/movies/{id}", s.handleDeleteMovie)
		r.Get("/movies/{id}/similar", s.handleSimilarMovies)
		r.Get("/search", s.handleSearch)
		r.Get("/users/{userID}/recommendations", s.handleRecommendations)
		r.Post("/users/{userID}/interactions", s.handleInteraction)
		r.Get("/status", s.handleStatus)
	})

	s.router = r
}

// requestLogger is a chi middleware logging one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// Serve starts the HTTP server and blocks until Shutdown.
func (s *Server) Serve() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info().Str("addr", addr).Msg("starting HTTP server")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// AddMCPServer mounts the MCP SSE transport on the HTTP server.
func (s *Server) AddMCPServer(mcpServer *server.MCPServer) {
	s.sseServer = server.NewSSEServer(
		mcpServer,
		server.WithBasePath("/mcp"),
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
		server.WithKeepAlive(true),
		server.WithKeepAliveInterval(15*time.Second),
	)

	s.router.Mount("/mcp", s.sseServer)
	s.log.Info().Str("endpoint", "/mcp/sse").Msg("MCP SSE transport mounted")
}

// handleHealth returns 200 OK if the server is running.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	successResponse(w, map[string]string{"status": "healthy"})
}

// handleReady checks whether the store answers queries.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := s.store.GetStats(ctx); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	successResponse(w, map[string]string{"status": "ready"})
}

// errorResponse writes a JSON error response
func errorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// successResponse writes a JSON success response
func successResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(data)
}
