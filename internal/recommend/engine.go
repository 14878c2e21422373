package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/moodcue/moodcue/internal/embedding"
	"github.com/moodcue/moodcue/internal/models"
)

// defaultQuery is the preference query used when a user record carries no
// mood and no favorite genres.
const defaultQuery = "推荐电影"

// Store is the persistence and similarity surface the engine needs.
type Store interface {
	GetMovie(ctx context.Context, id string) (*models.MovieRecord, error)
	InsertMovie(ctx context.Context, m *models.MovieRecord) error
	BatchInsertMovies(ctx context.Context, movies []*models.MovieRecord) error
	SearchMovies(ctx context.Context, vec []float32, k int, f models.MovieFilter) ([]models.ScoredMovie, error)
	PopularMovies(ctx context.Context, limit int) ([]models.MovieRecord, error)
	GetUserPreference(ctx context.Context, userID string) (*models.UserPreferenceRecord, error)
}

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Engine composes the store and the embedding backend into the retrieval
// operations the dialogue layer calls.
type Engine struct {
	store    Store
	embedder Embedder
	log      zerolog.Logger
}

// NewEngine creates a recommendation engine.
func NewEngine(store Store, embedder Embedder, log zerolog.Logger) *Engine {
	return &Engine{
		store:    store,
		embedder: embedder,
		log:      log.With().Str("component", "recommend").Logger(),
	}
}

// SearchByText embeds the query and runs a filtered cosine top-K. Unlike
// Recommend, failures here surface to the caller: an explicit search with a
// dead backend is an error, not a silent popularity list.
func (e *Engine) SearchByText(ctx context.Context, query string, k int, f models.MovieFilter) ([]models.ScoredMovie, error) {
	if query == "" || k <= 0 {
		return nil, nil
	}

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := e.store.SearchMovies(ctx, vec, k, f)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return hits, nil
}

// SimilarToMovie finds the k movies most similar to a stored one, using its
// stored embedding without re-embedding. The movie itself never appears in
// its own results. An unknown ID yields an empty result, not an error.
func (e *Engine) SimilarToMovie(ctx context.Context, movieID string, k int) ([]models.ScoredMovie, error) {
	if k <= 0 {
		return nil, nil
	}

	movie, err := e.store.GetMovie(ctx, movieID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load movie: %w", err)
	}
	if len(movie.Embedding) == 0 {
		return nil, nil
	}

	// Fetch one extra: the movie matches itself at similarity 1.
	hits, err := e.store.SearchMovies(ctx, movie.Embedding, k+1, models.MovieFilter{})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]models.ScoredMovie, 0, k)
	for _, h := range hits {
		if h.ID == movieID {
			continue
		}
		out = append(out, h)
		if len(out) == k {
			break
		}
	}

	return out, nil
}

// Recommend produces up to k movies for a user. With no stored preference
// record the deterministic popularity fallback answers. With one, a query is
// built from the current mood and the user's favorite genres and searched
// with the user's rating floor; if the embedding backend or the index is
// down, the call degrades to the same popularity fallback rather than
// failing the conversation turn.
func (e *Engine) Recommend(ctx context.Context, userID, mood string, k int) ([]models.MovieRecord, error) {
	if k <= 0 {
		return nil, nil
	}

	rec, err := e.store.GetUserPreference(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return e.Popular(ctx, k)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	query := preferenceQuery(mood, rec.Preferences.FavoriteGenres)

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		if errors.Is(err, embedding.ErrUnavailable) {
			e.log.Warn().Str("user_id", userID).Msg("embedding backend down, using popularity fallback")
			return e.Popular(ctx, k)
		}
		return nil, fmt.Errorf("failed to embed preference query: %w", err)
	}

	filter := models.MovieFilter{MinRating: rec.Preferences.RatingRange.Lower}
	hits, err := e.store.SearchMovies(ctx, vec, k, filter)
	if err != nil {
		if errors.Is(err, models.ErrIndexUnavailable) {
			e.log.Warn().Str("user_id", userID).Msg("index unavailable, using popularity fallback")
			return e.Popular(ctx, k)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]models.MovieRecord, len(hits))
	for i, h := range hits {
		out[i] = h.MovieRecord
	}

	return out, nil
}

// Popular returns the deterministic non-vector fallback list.
func (e *Engine) Popular(ctx context.Context, k int) ([]models.MovieRecord, error) {
	if k <= 0 {
		return nil, nil
	}
	movies, err := e.store.PopularMovies(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("failed to load popular movies: %w", err)
	}
	return movies, nil
}

// preferenceQuery builds the search text for a preference-driven
// recommendation: current mood first, then the stored genres.
func preferenceQuery(mood string, genres []string) string {
	var parts []string
	if mood != "" {
		parts = append(parts, "情绪："+mood)
	}
	if len(genres) > 0 {
		parts = append(parts, "类型："+strings.Join(genres, ", "))
	}
	if len(parts) == 0 {
		return defaultQuery
	}
	return strings.Join(parts, ". ")
}
