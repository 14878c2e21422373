package models

import "time"

// EmbeddingDim is the dimensionality of the sentence-embedding model
// (paraphrase-multilingual-MiniLM-L12-v2).
const EmbeddingDim = 384

// MovieRecord is the canonical movie representation. Records from external
// sources are normalized into this shape at the ingestion boundary; nothing
// downstream branches on source-specific field names.
type MovieRecord struct {
	ID         string    `json:"id"`
	Title      string    `json:"title" validate:"required"`
	Director   string    `json:"director,omitempty"`
	Overview   string    `json:"overview,omitempty"`
	Genres     []string  `json:"genres,omitempty"`
	Year       string    `json:"year,omitempty"`
	Rating     float64   `json:"rating" validate:"gte=0,lte=10"`
	Popularity float64   `json:"popularity,omitempty"`
	MoodTag    string    `json:"mood_tag,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
	AddedAt    time.Time `json:"added_at"`
}

// ScoredMovie is a movie annotated with its cosine similarity to a query,
// normalized to [0,1].
type ScoredMovie struct {
	MovieRecord
	Similarity float64 `json:"similarity"`
}

// EnhancedMovie is an imported movie annotated with its best catalog match.
type EnhancedMovie struct {
	MovieRecord
	MatchedTitle string  `json:"matched_title,omitempty"`
	MatchScore   float64 `json:"match_score,omitempty"`
}

// MovieFilter restricts similarity search and scans. Filtering is applied
// before top-K truncation, never after.
type MovieFilter struct {
	MinRating float64
	MoodTag   string
}

// ExternalMovie is the attribute shape supplied by external movie-data
// sources. Field aliases (vote_average, release_date, tags) coexist with the
// canonical names; Normalize resolves them once.
type ExternalMovie struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Director    string   `json:"director,omitempty"`
	Overview    string   `json:"overview,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Year        string   `json:"year,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	VoteAverage float64  `json:"vote_average,omitempty"`
	Popularity  float64  `json:"popularity,omitempty"`
	MoodTag     string   `json:"mood_tag,omitempty"`
}

// Normalize maps an external attribute record to the canonical MovieRecord.
// Canonical names win over aliases when both are present.
func (e ExternalMovie) Normalize() MovieRecord {
	m := MovieRecord{
		ID:         e.ID,
		Title:      e.Title,
		Director:   e.Director,
		Overview:   e.Overview,
		Genres:     append([]string(nil), e.Genres...),
		Year:       e.Year,
		Rating:     e.Rating,
		Popularity: e.Popularity,
		MoodTag:    e.MoodTag,
	}
	if len(m.Genres) == 0 && len(e.Tags) > 0 {
		m.Genres = append([]string(nil), e.Tags...)
	}
	if m.Year == "" {
		m.Year = e.ReleaseDate
	}
	if m.Rating == 0 {
		m.Rating = e.VoteAverage
	}
	return m
}
