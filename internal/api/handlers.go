package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/moodcue/moodcue/internal/embedding"
	"github.com/moodcue/moodcue/internal/models"
)

const (
	defaultSearchK    = 10
	defaultSimilarK   = 5
	defaultRecommendK = 10
)

// writeError maps domain errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	var berr *models.BatchError

	switch {
	case errors.Is(err, models.ErrNotFound):
		errorResponse(w, http.StatusNotFound, err.Error())
	case errors.As(err, &verr), errors.As(err, &berr):
		errorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, embedding.ErrUnavailable), errors.Is(err, models.ErrIndexUnavailable):
		errorResponse(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		errorResponse(w, http.StatusInternalServerError, err.Error())
	}
}

// intQuery parses a positive integer query parameter, falling back to def.
func intQuery(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// handleAddMovie ingests a single movie.
func (s *Server) handleAddMovie(w http.ResponseWriter, r *http.Request) {
	var ext models.ExternalMovie
	if err := json.NewDecoder(r.Body).Decode(&ext); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	movie, err := s.engine.IngestMovie(r.Context(), ext)
	if err != nil {
		s.writeError(w, err)
		return
	}

	successResponse(w, movie)
}

// handleImportMovies ingests a batch of external movies.
func (s *Server) handleImportMovies(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Movies []models.ExternalMovie `json:"movies"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Movies) == 0 {
		errorResponse(w, http.StatusBadRequest, "movies is required")
		return
	}

	enhanced, err := s.engine.ImportMovies(r.Context(), req.Movies)
	if err != nil {
		s.writeError(w, err)
		return
	}

	successResponse(w, map[string]interface{}{
		"imported": len(enhanced),
		"movies":   enhanced,
	})
}

// handleGetMovie returns a single movie by ID.
func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	movie, err := s.store.GetMovie(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	successResponse(w, movie)
}

// handleDeleteMovie removes a movie.
func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteMovie(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	successResponse(w, map[string]string{"status": "deleted"})
}

// handleSimilarMovies returns the nearest neighbors of a stored movie.
func (s *Server) handleSimilarMovies(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	k := intQuery(r, "k", defaultSimilarK)

	hits, err := s.engine.SimilarToMovie(r.Context(), id, k)
	if err != nil {
		s.writeError(w, err)
		return
	}

	successResponse(w, map[string]interface{}{
		"movie_id": id,
		"results":  hits,
		"count":    len(hits),
	})
}

// handleSearch runs a text similarity search over the catalog.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		errorResponse(w, http.StatusBadRequest, "q is required")
		return
	}

	filter := models.MovieFilter{MoodTag: r.URL.Query().Get("mood")}
	if raw := r.URL.Query().Get("min_rating"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errorResponse(w, http.StatusBadRequest, "invalid min_rating")
			return
		}
		filter.MinRating = v
	}

	hits, err := s.engine.SearchByText(r.Context(), q, intQuery(r, "k", defaultSearchK), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}

	successResponse(w, map[string]interface{}{
		"query":   q,
		"results": hits,
		"count":   len(hits),
	})
}

// handleRecommendations returns personalized (or fallback) recommendations.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	mood := r.URL.Query().Get("mood")

	movies, err := s.engine.Recommend(r.Context(), userID, mood, intQuery(r, "k", defaultRecommendK))
	if err != nil {
		s.writeError(w, err)
		return
	}

	successResponse(w, map[string]interface{}{
		"user_id": userID,
		"results": movies,
		"count":   len(movies),
	})
}

// handleInteraction records one conversation turn for the preference
// aggregator.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		Mood      string `json:"mood,omitempty"`
		Utterance string `json:"utterance,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	updated, err := s.tracker.Observe(r.Context(), userID, req.Mood, req.Utterance)
	if err != nil {
		s.writeError(w, err)
		return
	}

	successResponse(w, map[string]interface{}{
		"recorded":            true,
		"preferences_updated": updated,
	})
}

// handleStatus reports collection sizes and the embedding model in use.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	successResponse(w, map[string]interface{}{
		"movies_count":    stats.Movies,
		"users_count":     stats.Users,
		"embedding_model": s.model,
		"embedding_dim":   models.EmbeddingDim,
	})
}
