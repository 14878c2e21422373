package recommend

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/moodcue/moodcue/internal/embedding"
	"github.com/moodcue/moodcue/internal/models"
)

type fakeStore struct {
	movies     map[string]*models.MovieRecord
	prefs      map[string]*models.UserPreferenceRecord
	searchHits []models.ScoredMovie
	searchErr  error
	popular    []models.MovieRecord

	lastK      int
	lastFilter models.MovieFilter
	inserted   []*models.MovieRecord
}

func (f *fakeStore) GetMovie(_ context.Context, id string) (*models.MovieRecord, error) {
	if m, ok := f.movies[id]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: movie %s", models.ErrNotFound, id)
}

func (f *fakeStore) InsertMovie(_ context.Context, m *models.MovieRecord) error {
	f.inserted = append(f.inserted, m)
	return nil
}

func (f *fakeStore) BatchInsertMovies(_ context.Context, movies []*models.MovieRecord) error {
	f.inserted = append(f.inserted, movies...)
	return nil
}

func (f *fakeStore) SearchMovies(_ context.Context, _ []float32, k int, filter models.MovieFilter) ([]models.ScoredMovie, error) {
	f.lastK = k
	f.lastFilter = filter
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if k < len(f.searchHits) {
		return f.searchHits[:k], nil
	}
	return f.searchHits, nil
}

func (f *fakeStore) PopularMovies(_ context.Context, limit int) ([]models.MovieRecord, error) {
	if limit < len(f.popular) {
		return f.popular[:limit], nil
	}
	return f.popular, nil
}

func (f *fakeStore) GetUserPreference(_ context.Context, userID string) (*models.UserPreferenceRecord, error) {
	if p, ok := f.prefs[userID]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
}

type fakeEmbedder struct {
	err   error
	texts []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, texts...)
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = make([]float32, models.EmbeddingDim)
	}
	return vecs, nil
}

func newTestEngine(store *fakeStore, emb *fakeEmbedder) *Engine {
	return NewEngine(store, emb, zerolog.Nop())
}

func scored(id string, sim float64) models.ScoredMovie {
	return models.ScoredMovie{
		MovieRecord: models.MovieRecord{ID: id, Title: id},
		Similarity:  sim,
	}
}

func TestSearchByText(t *testing.T) {
	t.Run("returns scored hits", func(t *testing.T) {
		store := &fakeStore{searchHits: []models.ScoredMovie{scored("a", 0.9), scored("b", 0.7)}}
		engine := newTestEngine(store, &fakeEmbedder{})

		hits, err := engine.SearchByText(context.Background(), "治愈的电影", 5, models.MovieFilter{MinRating: 7.0})
		if err != nil {
			t.Fatalf("SearchByText failed: %v", err)
		}
		if len(hits) != 2 || hits[0].ID != "a" {
			t.Errorf("got %+v", hits)
		}
		if store.lastFilter.MinRating != 7.0 {
			t.Errorf("filter not forwarded: %+v", store.lastFilter)
		}
	})

	t.Run("embedding failure surfaces", func(t *testing.T) {
		engine := newTestEngine(&fakeStore{}, &fakeEmbedder{err: embedding.ErrUnavailable})

		_, err := engine.SearchByText(context.Background(), "q", 5, models.MovieFilter{})
		if !errors.Is(err, embedding.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("index failure surfaces", func(t *testing.T) {
		store := &fakeStore{searchErr: models.ErrIndexUnavailable}
		engine := newTestEngine(store, &fakeEmbedder{})

		_, err := engine.SearchByText(context.Background(), "q", 5, models.MovieFilter{})
		if !errors.Is(err, models.ErrIndexUnavailable) {
			t.Fatalf("expected ErrIndexUnavailable, got %v", err)
		}
	})
}

func TestSimilarToMovie(t *testing.T) {
	vec := make([]float32, models.EmbeddingDim)
	vec[0] = 1

	t.Run("excludes the movie itself", func(t *testing.T) {
		store := &fakeStore{
			movies: map[string]*models.MovieRecord{
				"m1": {ID: "m1", Title: "起点", Embedding: vec},
			},
			searchHits: []models.ScoredMovie{scored("m1", 1.0), scored("m2", 0.8), scored("m3", 0.6)},
		}
		engine := newTestEngine(store, &fakeEmbedder{})

		hits, err := engine.SimilarToMovie(context.Background(), "m1", 2)
		if err != nil {
			t.Fatalf("SimilarToMovie failed: %v", err)
		}
		if store.lastK != 3 {
			t.Errorf("expected k+1 fetch, got k=%d", store.lastK)
		}
		if len(hits) != 2 {
			t.Fatalf("expected 2 hits, got %d", len(hits))
		}
		for _, h := range hits {
			if h.ID == "m1" {
				t.Error("movie appeared in its own results")
			}
		}
	})

	t.Run("unknown id is empty result, not error", func(t *testing.T) {
		engine := newTestEngine(&fakeStore{}, &fakeEmbedder{})

		hits, err := engine.SimilarToMovie(context.Background(), "nope", 5)
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if hits != nil {
			t.Errorf("expected empty result, got %+v", hits)
		}
	})

	t.Run("does not re-embed", func(t *testing.T) {
		store := &fakeStore{
			movies: map[string]*models.MovieRecord{"m1": {ID: "m1", Title: "x", Embedding: vec}},
		}
		emb := &fakeEmbedder{err: embedding.ErrUnavailable}
		engine := newTestEngine(store, emb)

		if _, err := engine.SimilarToMovie(context.Background(), "m1", 3); err != nil {
			t.Fatalf("stored-vector search must not touch the backend: %v", err)
		}
	})
}

func TestRecommend(t *testing.T) {
	popular := []models.MovieRecord{{ID: "p1", Title: "热门一", Rating: 9.0}}

	t.Run("unknown user falls back to popular", func(t *testing.T) {
		store := &fakeStore{popular: popular}
		engine := newTestEngine(store, &fakeEmbedder{})

		got, err := engine.Recommend(context.Background(), "stranger", "", 5)
		if err != nil {
			t.Fatalf("Recommend failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != "p1" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("preference record drives a filtered search", func(t *testing.T) {
		store := &fakeStore{
			prefs: map[string]*models.UserPreferenceRecord{
				"u1": {
					UserID: "u1",
					Preferences: models.UserPreferences{
						FavoriteGenres: []string{"治愈", "喜剧"},
						RatingRange:    models.RatingRange{Lower: 7.0, Upper: 10.0},
					},
				},
			},
			searchHits: []models.ScoredMovie{scored("a", 0.9)},
		}
		emb := &fakeEmbedder{}
		engine := newTestEngine(store, emb)

		got, err := engine.Recommend(context.Background(), "u1", "孤独", 5)
		if err != nil {
			t.Fatalf("Recommend failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != "a" {
			t.Errorf("got %+v", got)
		}
		if store.lastFilter.MinRating != 7.0 {
			t.Errorf("rating floor not applied: %+v", store.lastFilter)
		}
		if len(emb.texts) != 1 || emb.texts[0] != "情绪：孤独. 类型：治愈, 喜剧" {
			t.Errorf("query text: got %v", emb.texts)
		}
	})

	t.Run("embedding outage degrades to popular", func(t *testing.T) {
		store := &fakeStore{
			prefs:   map[string]*models.UserPreferenceRecord{"u1": {UserID: "u1"}},
			popular: popular,
		}
		engine := newTestEngine(store, &fakeEmbedder{err: embedding.ErrUnavailable})

		got, err := engine.Recommend(context.Background(), "u1", "开心", 5)
		if err != nil {
			t.Fatalf("Recommend failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != "p1" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("index outage degrades to popular", func(t *testing.T) {
		store := &fakeStore{
			prefs:     map[string]*models.UserPreferenceRecord{"u1": {UserID: "u1"}},
			searchErr: fmt.Errorf("%w: duckdb exploded", models.ErrIndexUnavailable),
			popular:   popular,
		}
		engine := newTestEngine(store, &fakeEmbedder{})

		got, err := engine.Recommend(context.Background(), "u1", "", 5)
		if err != nil {
			t.Fatalf("Recommend failed: %v", err)
		}
		if len(got) != 1 || got[0].ID != "p1" {
			t.Errorf("got %+v", got)
		}
	})
}

func TestPreferenceQuery(t *testing.T) {
	cases := []struct {
		name   string
		mood   string
		genres []string
		want   string
	}{
		{"mood and genres", "孤独", []string{"治愈"}, "情绪：孤独. 类型：治愈"},
		{"mood only", "开心", nil, "情绪：开心"},
		{"genres only", "", []string{"动作", "科幻"}, "类型：动作, 科幻"},
		{"nothing", "", nil, "推荐电影"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := preferenceQuery(tc.mood, tc.genres); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
