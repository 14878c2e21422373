package prefs

import (
	"context"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/moodcue/moodcue/internal/models"
)

type fakeStore struct {
	saved []*models.UserPreferenceRecord
}

func (f *fakeStore) SaveUserPreference(_ context.Context, rec *models.UserPreferenceRecord) error {
	f.saved = append(f.saved, rec)
	return nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, models.EmbeddingDim), nil
}

func TestExtractMood(t *testing.T) {
	cases := []struct {
		utterance string
		want      string
	}{
		{"我今天一个人在家", "孤独"},
		{"想看点温暖的东西", "治愈"},
		{"最近工作压力好大", "压力"},
		{"今天特别开心", "开心"},
		{"有点难过", "悲伤"},
		{"来点刺激的", "动作"},
		{"想看情侣看的电影", "浪漫"},
		{"随便推荐一部", ""},
	}

	for _, tc := range cases {
		t.Run(tc.utterance, func(t *testing.T) {
			if got := ExtractMood(tc.utterance); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestObserveCadence(t *testing.T) {
	store := &fakeStore{}
	tracker := NewTracker(store, fakeEmbedder{}, zerolog.Nop())
	ctx := context.Background()

	for i := 1; i <= 12; i++ {
		materialized, err := tracker.Observe(ctx, "u1", "治愈", "想看点温暖的")
		if err != nil {
			t.Fatalf("Observe %d failed: %v", i, err)
		}
		want := i%5 == 0
		if materialized != want {
			t.Errorf("interaction %d: materialized=%v, want %v", i, materialized, want)
		}
	}

	if len(store.saved) != 2 {
		t.Fatalf("expected 2 materializations in 12 turns, got %d", len(store.saved))
	}
	if store.saved[0].InteractionCount != 5 || store.saved[1].InteractionCount != 10 {
		t.Errorf("counts: %d, %d", store.saved[0].InteractionCount, store.saved[1].InteractionCount)
	}
	if len(store.saved[1].Embedding) != models.EmbeddingDim {
		t.Error("materialized record missing embedding")
	}
	if store.saved[1].Preferences.RatingRange != (models.RatingRange{Lower: 7.0, Upper: 10.0}) {
		t.Errorf("rating range: %+v", store.saved[1].Preferences.RatingRange)
	}
}

func TestObserveGenreExtraction(t *testing.T) {
	store := &fakeStore{}
	tracker := NewTracker(store, fakeEmbedder{}, zerolog.Nop())
	ctx := context.Background()

	utterances := []string{
		"想看科幻片，最好有机器人",
		"或者搞笑一点的",
		"再来点科幻的",
		"悬疑推理也行",
		"随便",
	}
	for _, u := range utterances {
		if _, err := tracker.Observe(ctx, "u1", "", u); err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
	}

	if len(store.saved) != 1 {
		t.Fatalf("expected 1 materialization, got %d", len(store.saved))
	}
	got := store.saved[0].Preferences.FavoriteGenres
	want := []string{"科幻", "喜剧", "悬疑"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("genres: got %v, want %v (grow-only, first-seen order)", got, want)
	}
}

func TestObserveMoodWindow(t *testing.T) {
	store := &fakeStore{}
	tracker := NewTracker(store, fakeEmbedder{}, zerolog.Nop())
	ctx := context.Background()

	// 15 turns: first 5 all 孤独, then 10 alternating 治愈/开心. The window
	// covers only the last 10, so 孤独 must age out.
	moods := []string{"孤独", "孤独", "孤独", "孤独", "孤独"}
	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			moods = append(moods, "治愈")
		} else {
			moods = append(moods, "开心")
		}
	}
	for _, mood := range moods {
		if _, err := tracker.Observe(ctx, "u1", mood, ""); err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
	}

	last := store.saved[len(store.saved)-1]
	want := []string{"治愈", "开心"}
	if !reflect.DeepEqual(last.Preferences.MoodPreferences, want) {
		t.Errorf("mood window: got %v, want %v", last.Preferences.MoodPreferences, want)
	}
}

func TestObserveExtractsMoodWhenUnspecified(t *testing.T) {
	store := &fakeStore{}
	tracker := NewTracker(store, fakeEmbedder{}, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := tracker.Observe(ctx, "u1", "", "最近压力很大"); err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
	}

	got := store.saved[0].Preferences.MoodPreferences
	if !reflect.DeepEqual(got, []string{"压力"}) {
		t.Errorf("got %v", got)
	}
}

func TestObserveSessionsAreIndependent(t *testing.T) {
	store := &fakeStore{}
	tracker := NewTracker(store, fakeEmbedder{}, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := tracker.Observe(ctx, "a", "开心", ""); err != nil {
			t.Fatal(err)
		}
		if _, err := tracker.Observe(ctx, "b", "悲伤", ""); err != nil {
			t.Fatal(err)
		}
	}

	if got := tracker.InteractionCount("a"); got != 4 {
		t.Errorf("user a count: %d", got)
	}
	if len(store.saved) != 0 {
		t.Errorf("no user reached the cadence, but %d records saved", len(store.saved))
	}
}

func TestRecentMoods(t *testing.T) {
	got := recentMoods([]string{"a", "b", "a", "c", "b"})
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("got %v", got)
	}
}
