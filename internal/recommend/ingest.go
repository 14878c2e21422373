package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/moodcue/moodcue/internal/models"
)

// IngestMovie normalizes, embeds and stores one externally supplied movie.
// Ingestion requires a vector, so an embedding failure surfaces instead of
// storing a record the index can never rank.
func (e *Engine) IngestMovie(ctx context.Context, ext models.ExternalMovie) (*models.MovieRecord, error) {
	m := ext.Normalize()
	if err := m.Validate(); err != nil {
		return nil, err
	}

	vec, err := e.embedder.Embed(ctx, models.BuildMovieText(m))
	if err != nil {
		return nil, fmt.Errorf("failed to embed movie: %w", err)
	}
	m.Embedding = vec

	if err := e.store.InsertMovie(ctx, &m); err != nil {
		return nil, err
	}

	e.log.Debug().Str("movie_id", m.ID).Str("title", m.Title).Msg("ingested movie")
	return &m, nil
}

// ImportMovies ingests a batch of external movies. The batch is deduplicated
// by title, annotated against the existing catalog, then embedded and stored
// in one transaction. The returned slice is the enhanced view of what was
// stored, ordered by catalog affinity.
func (e *Engine) ImportMovies(ctx context.Context, exts []models.ExternalMovie) ([]models.EnhancedMovie, error) {
	if len(exts) == 0 {
		return nil, nil
	}

	normalized := make([]models.MovieRecord, 0, len(exts))
	for _, ext := range exts {
		normalized = append(normalized, ext.Normalize())
	}
	deduped := Deduplicate(normalized)
	if len(deduped) == 0 {
		return nil, nil
	}

	enhanced, err := e.EnhanceImported(ctx, deduped)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(deduped))
	for i, m := range deduped {
		texts[i] = models.BuildMovieText(m)
	}
	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed batch: %w", err)
	}

	records := make([]*models.MovieRecord, len(deduped))
	for i := range deduped {
		m := deduped[i]
		m.Embedding = vecs[i]
		records[i] = &m
	}
	if err := e.store.BatchInsertMovies(ctx, records); err != nil {
		return nil, err
	}

	e.log.Info().Int("imported", len(records)).Int("received", len(exts)).Msg("imported movies")
	return enhanced, nil
}

// Deduplicate removes duplicate titles from a batch. Matching is
// case-insensitive and exact; the first occurrence wins and untitled records
// are dropped.
func Deduplicate(movies []models.MovieRecord) []models.MovieRecord {
	seen := make(map[string]bool, len(movies))
	out := make([]models.MovieRecord, 0, len(movies))

	for _, m := range movies {
		if m.Title == "" {
			continue
		}
		key := strings.ToLower(m.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}

	return out
}

// EnhanceImported annotates each imported movie with its closest catalog
// neighbor (matched title and similarity) and reorders the batch by that
// affinity, so the dialogue layer can lead with titles resembling what
// users already respond to. If the embedding backend or the index is down,
// the annotation is skipped and the batch is ordered by rating and
// popularity instead. Input records are never mutated.
func (e *Engine) EnhanceImported(ctx context.Context, movies []models.MovieRecord) ([]models.EnhancedMovie, error) {
	if len(movies) == 0 {
		return nil, nil
	}

	out := make([]models.EnhancedMovie, len(movies))
	for i, m := range movies {
		out[i] = models.EnhancedMovie{MovieRecord: m}
	}

	texts := make([]string, len(movies))
	for i, m := range movies {
		texts[i] = models.BuildMovieText(models.MovieRecord{Title: m.Title, Overview: m.Overview})
	}

	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		e.log.Warn().Err(err).Msg("enhancement unavailable, ordering by rating")
		return sortByRating(out), nil
	}

	for i := range out {
		hits, err := e.store.SearchMovies(ctx, vecs[i], 1, models.MovieFilter{})
		if err != nil {
			e.log.Warn().Err(err).Msg("enhancement unavailable, ordering by rating")
			return sortByRating(out), nil
		}
		if len(hits) > 0 {
			out[i].MatchedTitle = hits[0].Title
			out[i].MatchScore = hits[0].Similarity
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].MatchScore > out[b].MatchScore
	})

	return out, nil
}

func sortByRating(movies []models.EnhancedMovie) []models.EnhancedMovie {
	sort.SliceStable(movies, func(a, b int) bool {
		if movies[a].Rating != movies[b].Rating {
			return movies[a].Rating > movies[b].Rating
		}
		return movies[a].Popularity > movies[b].Popularity
	})
	for i := range movies {
		movies[i].MatchedTitle = ""
		movies[i].MatchScore = 0
	}
	return movies
}
