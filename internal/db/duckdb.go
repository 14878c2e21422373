package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/moodcue/moodcue/internal/models"
)

// Store wraps DuckDB operations for the movie and user-preference
// collections. It is both the record store and the similarity index: cosine
// ranking runs inside DuckDB via the VSS extension, so metadata predicates
// always apply before top-K truncation.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore opens (or creates) a DuckDB database at dbPath and sets up the
// schema.
func NewStore(dbPath string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:  db,
		log: log.With().Str("component", "db").Logger(),
	}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize sets up the database schema and extensions
func (s *Store) initialize() error {
	schema := fmt.Sprintf(`
		-- Install and load VSS extension
		INSTALL vss;
		LOAD vss;

		-- insert_seq gives every write a monotone position so that
		-- similarity ties resolve by insertion order.
		CREATE SEQUENCE IF NOT EXISTS movies_insert_seq;

		CREATE TABLE IF NOT EXISTS movies (
			movie_id VARCHAR PRIMARY KEY,
			title VARCHAR NOT NULL,
			director VARCHAR,
			year VARCHAR,
			rating FLOAT,
			popularity FLOAT,
			genres VARCHAR[],
			overview TEXT,
			mood_tag VARCHAR,
			embedding FLOAT[%d],
			added_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			insert_seq BIGINT DEFAULT nextval('movies_insert_seq')
		);

		CREATE INDEX IF NOT EXISTS idx_movies_rating ON movies (rating);
		CREATE INDEX IF NOT EXISTS idx_movies_mood_tag ON movies (mood_tag);

		CREATE TABLE IF NOT EXISTS user_preferences (
			user_id VARCHAR PRIMARY KEY,
			favorite_genres VARCHAR[],
			mood_preferences VARCHAR[],
			rating_min FLOAT,
			rating_max FLOAT,
			interaction_count BIGINT,
			embedding FLOAT[%d],
			last_updated TIMESTAMPTZ
		);
	`, models.EmbeddingDim, models.EmbeddingDim)

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	// Try to create HNSW index (will fail if already exists, which is fine)
	_, _ = s.db.Exec("CREATE INDEX IF NOT EXISTS idx_movies_embedding ON movies USING HNSW (embedding)")

	return nil
}

const movieColumns = `movie_id, title, director, year, rating, popularity, genres, overview, mood_tag, embedding, added_at`

// InsertMovie adds a movie to the store. An existing ID is an upsert: the
// old row, embedding included, is fully superseded.
func (s *Store) InsertMovie(ctx context.Context, m *models.MovieRecord) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.AddedAt.IsZero() {
		m.AddedAt = time.Now()
	}
	if err := m.Validate(); err != nil {
		return err
	}

	query := `
		INSERT OR REPLACE INTO movies (` + movieColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.Title, m.Director, m.Year, m.Rating, m.Popularity,
		listJSON(m.Genres), m.Overview, m.MoodTag, vectorJSON(m.Embedding), m.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert movie: %w", err)
	}

	return nil
}

// BatchInsertMovies inserts all movies in a single transaction. Validation
// runs first over the whole batch; if any record is malformed, a BatchError
// reporting the failing indices is returned and nothing is written. On
// success every record is queryable as soon as the call returns.
func (s *Store) BatchInsertMovies(ctx context.Context, movies []*models.MovieRecord) error {
	if len(movies) == 0 {
		return nil
	}

	failed := make(map[int]error)
	for i, m := range movies {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.AddedAt.IsZero() {
			m.AddedAt = time.Now()
		}
		if err := m.Validate(); err != nil {
			failed[i] = err
		}
	}
	if len(failed) > 0 {
		return &models.BatchError{Failed: failed}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT OR REPLACE INTO movies (` + movieColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, m := range movies {
		_, err := tx.ExecContext(ctx, query,
			m.ID, m.Title, m.Director, m.Year, m.Rating, m.Popularity,
			listJSON(m.Genres), m.Overview, m.MoodTag, vectorJSON(m.Embedding), m.AddedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert movie %d (%s): %w", i, m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	s.log.Debug().Int("count", len(movies)).Msg("batch inserted movies")
	return nil
}

// GetMovie retrieves a single movie by ID.
func (s *Store) GetMovie(ctx context.Context, id string) (*models.MovieRecord, error) {
	query := `SELECT ` + movieColumns + ` FROM movies WHERE movie_id = ?`

	row := s.db.QueryRowContext(ctx, query, id)
	m, err := scanMovie(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: movie %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get movie: %w", err)
	}

	return m, nil
}

// DeleteMovie removes a movie from the store.
func (s *Store) DeleteMovie(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM movies WHERE movie_id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete movie: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: movie %s", models.ErrNotFound, id)
	}

	return nil
}

// ScanMovies returns movies matching the filter in insertion order.
func (s *Store) ScanMovies(ctx context.Context, f models.MovieFilter, limit int) ([]models.MovieRecord, error) {
	var conditions []string
	var args []interface{}

	query := `SELECT ` + movieColumns + ` FROM movies WHERE 1=1`

	if f.MinRating > 0 {
		conditions = append(conditions, "rating >= ?")
		args = append(args, f.MinRating)
	}
	if f.MoodTag != "" {
		conditions = append(conditions, "mood_tag = ?")
		args = append(args, f.MoodTag)
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY insert_seq ASC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan movies: %w", err)
	}
	defer rows.Close()

	return scanMovies(rows)
}

// PopularMovies returns the deterministic popularity fallback list: movies
// rated 7.0 or higher, ordered by (rating, popularity) descending. No vector
// math is involved, so the result is independent of the embedding backend.
func (s *Store) PopularMovies(ctx context.Context, limit int) ([]models.MovieRecord, error) {
	query := `
		SELECT ` + movieColumns + `
		FROM movies
		WHERE rating >= 7.0
		ORDER BY rating DESC, popularity DESC, insert_seq ASC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query popular movies: %w", err)
	}
	defer rows.Close()

	return scanMovies(rows)
}

// SearchMovies runs a cosine top-K query over the movie collection.
// Similarity is clamped to [0,1], descending, ties broken by insertion
// order. The filter participates in the WHERE clause, so truncation to k
// happens only over qualifying rows. Fewer than k qualifying rows returns
// all that qualify.
func (s *Store) SearchMovies(ctx context.Context, vec []float32, k int, f models.MovieFilter) ([]models.ScoredMovie, error) {
	if k <= 0 || len(vec) == 0 {
		return nil, nil
	}

	vecJSON, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query vector: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT `+movieColumns+`,
		       array_cosine_similarity(embedding, %s::FLOAT[%d]) AS sim
		FROM movies
		WHERE embedding IS NOT NULL
	`, string(vecJSON), models.EmbeddingDim)

	var args []interface{}
	if f.MinRating > 0 {
		query += " AND rating >= ?"
		args = append(args, f.MinRating)
	}
	if f.MoodTag != "" {
		query += " AND mood_tag = ?"
		args = append(args, f.MoodTag)
	}

	query += fmt.Sprintf(" ORDER BY sim DESC, insert_seq ASC LIMIT %d", k)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var hits []models.ScoredMovie
	for rows.Next() {
		var m models.MovieRecord
		var genresRaw, embeddingRaw interface{}
		var sim float64

		err := rows.Scan(
			&m.ID, &m.Title, &m.Director, &m.Year, &m.Rating, &m.Popularity,
			&genresRaw, &m.Overview, &m.MoodTag, &embeddingRaw, &m.AddedAt, &sim,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
		}

		m.Genres = toStringList(genresRaw)
		m.Embedding = toFloat32List(embeddingRaw)

		hits = append(hits, models.ScoredMovie{
			MovieRecord: m,
			Similarity:  clamp01(sim),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIndexUnavailable, err)
	}

	return hits, nil
}

// SaveUserPreference replaces the stored preference record for a user. The
// single INSERT OR REPLACE statement leaves no window in which a concurrent
// reader can observe the record missing or half-written.
func (s *Store) SaveUserPreference(ctx context.Context, rec *models.UserPreferenceRecord) error {
	if rec.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = time.Now()
	}

	query := `
		INSERT OR REPLACE INTO user_preferences (
			user_id, favorite_genres, mood_preferences,
			rating_min, rating_max, interaction_count, embedding, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.UserID,
		listJSON(rec.Preferences.FavoriteGenres),
		listJSON(rec.Preferences.MoodPreferences),
		rec.Preferences.RatingRange.Lower,
		rec.Preferences.RatingRange.Upper,
		rec.InteractionCount,
		vectorJSON(rec.Embedding),
		rec.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to save user preference: %w", err)
	}

	return nil
}

// GetUserPreference retrieves a user's preference record.
func (s *Store) GetUserPreference(ctx context.Context, userID string) (*models.UserPreferenceRecord, error) {
	query := `
		SELECT user_id, favorite_genres, mood_preferences,
		       rating_min, rating_max, interaction_count, embedding, last_updated
		FROM user_preferences
		WHERE user_id = ?
	`

	var rec models.UserPreferenceRecord
	var genresRaw, moodsRaw, embeddingRaw interface{}

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&rec.UserID, &genresRaw, &moodsRaw,
		&rec.Preferences.RatingRange.Lower, &rec.Preferences.RatingRange.Upper,
		&rec.InteractionCount, &embeddingRaw, &rec.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user preference: %w", err)
	}

	rec.Preferences.FavoriteGenres = toStringList(genresRaw)
	rec.Preferences.MoodPreferences = toStringList(moodsRaw)
	rec.Embedding = toFloat32List(embeddingRaw)

	return &rec, nil
}

// DeleteUserPreference removes a user's preference record.
func (s *Store) DeleteUserPreference(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM user_preferences WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to delete user preference: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
	}

	return nil
}

// CountMovies returns the number of movies in the catalog.
func (s *Store) CountMovies(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM movies").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count movies: %w", err)
	}
	return n, nil
}

// Stats summarizes collection sizes.
type Stats struct {
	Movies int64 `json:"movies_count"`
	Users  int64 `json:"users_count"`
}

// GetStats returns collection counts.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM movies").Scan(&stats.Movies); err != nil {
		return nil, fmt.Errorf("failed to count movies: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM user_preferences").Scan(&stats.Users); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	return stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Helper functions for value conversion and row scanning

// listJSON converts a string slice to JSON for the DuckDB VARCHAR[] type,
// NULL when empty.
func listJSON(list []string) interface{} {
	if len(list) == 0 {
		return nil
	}
	data, _ := json.Marshal(list)
	return string(data)
}

// vectorJSON converts an embedding to JSON for the DuckDB FLOAT[] type,
// NULL when empty.
func vectorJSON(vec []float32) interface{} {
	if len(vec) == 0 {
		return nil
	}
	data, _ := json.Marshal(vec)
	return string(data)
}

// toStringList parses a VARCHAR[] column - DuckDB returns it as []interface{}
func toStringList(raw interface{}) []string {
	if raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case []interface{}:
		out := make([]string, len(v))
		for i, item := range v {
			if s, ok := item.(string); ok {
				out[i] = s
			}
		}
		return out
	case []string:
		return v
	}
	return nil
}

// toFloat32List parses a FLOAT[] column - DuckDB returns it as []interface{}
// with float32 elements
func toFloat32List(raw interface{}) []float32 {
	if raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case []interface{}:
		out := make([]float32, len(v))
		for i, item := range v {
			if f, ok := item.(float32); ok {
				out[i] = f
			}
		}
		return out
	case []float32:
		return v
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMovie(row rowScanner) (*models.MovieRecord, error) {
	var m models.MovieRecord
	var genresRaw, embeddingRaw interface{}

	err := row.Scan(
		&m.ID, &m.Title, &m.Director, &m.Year, &m.Rating, &m.Popularity,
		&genresRaw, &m.Overview, &m.MoodTag, &embeddingRaw, &m.AddedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Genres = toStringList(genresRaw)
	m.Embedding = toFloat32List(embeddingRaw)

	return &m, nil
}

func scanMovies(rows *sql.Rows) ([]models.MovieRecord, error) {
	var movies []models.MovieRecord

	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return movies, nil
}
