package prefs

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/moodcue/moodcue/internal/models"
)

// materializeEvery is the interaction cadence at which a user's in-memory
// signals are written through to the store.
const materializeEvery = 5

// moodWindow bounds how many recent moods feed a materialized record.
const moodWindow = 10

type keywordEntry struct {
	label    string
	keywords []string
}

// moodVocabulary maps conversational keywords to mood labels. Order matters:
// the first matching entry wins, so extraction is deterministic.
var moodVocabulary = []keywordEntry{
	{"孤独", []string{"孤独", "一个人", "陌生城市", "独自"}},
	{"治愈", []string{"治愈", "温暖", "感动", "心情不好"}},
	{"压力", []string{"压力", "焦虑", "紧张", "累"}},
	{"开心", []string{"开心", "快乐", "爽", "搞笑"}},
	{"悲伤", []string{"难过", "悲伤", "失落", "沮丧"}},
	{"动作", []string{"动作", "刺激", "打斗", "激动"}},
	{"浪漫", []string{"浪漫", "爱情", "情侣", "恋爱"}},
}

// genreVocabulary maps conversational keywords to genre labels.
var genreVocabulary = []keywordEntry{
	{"动作", []string{"动作", "打斗", "激动", "刺激"}},
	{"喜剧", []string{"搞笑", "幽默", "轻松", "开心"}},
	{"爱情", []string{"爱情", "浪漫", "情侣", "恋爱"}},
	{"科幻", []string{"科幻", "未来", "太空", "机器人"}},
	{"悬疑", []string{"悬疑", "推理", "犯罪", "侦探"}},
	{"治愈", []string{"治愈", "温暖", "感动", "温馨"}},
}

// ExtractMood returns the mood label triggered by an utterance, or "" when
// no keyword matches. Keyword matching is the degraded-mode helper; vector
// search remains the primary signal.
func ExtractMood(utterance string) string {
	for _, entry := range moodVocabulary {
		for _, kw := range entry.keywords {
			if strings.Contains(utterance, kw) {
				return entry.label
			}
		}
	}
	return ""
}

// session is the in-memory signal accumulator for one user. moodHistory is
// append-only; genres grow and never shrink within a session.
type session struct {
	moodHistory  []string
	genres       []string
	genreSeen    map[string]bool
	interactions int64
}

// Store is the persistence surface the tracker writes through to.
type Store interface {
	SaveUserPreference(ctx context.Context, rec *models.UserPreferenceRecord) error
}

// Embedder turns preference text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Tracker accumulates per-user taste signals across conversation turns and
// materializes them into stored preference records on a fixed cadence.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*session
	store    Store
	embedder Embedder
	log      zerolog.Logger
}

// NewTracker creates a preference tracker.
func NewTracker(store Store, embedder Embedder, log zerolog.Logger) *Tracker {
	return &Tracker{
		sessions: make(map[string]*session),
		store:    store,
		embedder: embedder,
		log:      log.With().Str("component", "prefs").Logger(),
	}
}

// Observe records one conversation turn for a user. The mood (when known)
// and any genre keywords in the utterance update the in-memory session on
// every call; every fifth interaction the aggregate is materialized through
// the text builder and embedding backend into the store. The returned bool
// reports whether a materialization happened.
//
// The mod-5 check runs under the tracker lock but the write-through does
// not, so two overlapping turns for one user can race past a cadence
// boundary. Preference records are advisory; the next materialization
// corrects any skew.
func (t *Tracker) Observe(ctx context.Context, userID, mood, utterance string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("user_id is required")
	}

	t.mu.Lock()
	s, ok := t.sessions[userID]
	if !ok {
		s = &session{genreSeen: make(map[string]bool)}
		t.sessions[userID] = s
	}

	if mood == "" {
		mood = ExtractMood(utterance)
	}
	if mood != "" {
		s.moodHistory = append(s.moodHistory, mood)
	}
	for _, entry := range genreVocabulary {
		if s.genreSeen[entry.label] {
			continue
		}
		for _, kw := range entry.keywords {
			if strings.Contains(utterance, kw) {
				s.genreSeen[entry.label] = true
				s.genres = append(s.genres, entry.label)
				break
			}
		}
	}
	s.interactions++

	materialize := s.interactions%materializeEvery == 0
	var rec *models.UserPreferenceRecord
	if materialize {
		rec = &models.UserPreferenceRecord{
			UserID: userID,
			Preferences: models.UserPreferences{
				FavoriteGenres:  append([]string(nil), s.genres...),
				MoodPreferences: recentMoods(s.moodHistory),
				RatingRange:     models.RatingRange{Lower: 7.0, Upper: 10.0},
			},
			InteractionCount: s.interactions,
		}
	}
	t.mu.Unlock()

	if !materialize {
		return false, nil
	}

	vec, err := t.embedder.Embed(ctx, models.BuildPreferenceText(rec.Preferences))
	if err != nil {
		return false, fmt.Errorf("failed to embed preferences: %w", err)
	}
	rec.Embedding = vec

	if err := t.store.SaveUserPreference(ctx, rec); err != nil {
		return false, fmt.Errorf("failed to save preferences: %w", err)
	}

	t.log.Debug().Str("user_id", userID).Int64("interactions", rec.InteractionCount).
		Msg("materialized user preferences")
	return true, nil
}

// InteractionCount reports the in-memory turn count for a user.
func (t *Tracker) InteractionCount(userID string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[userID]; ok {
		return s.interactions
	}
	return 0
}

// recentMoods deduplicates the last moodWindow entries, preserving first-seen
// order within the window.
func recentMoods(history []string) []string {
	if len(history) > moodWindow {
		history = history[len(history)-moodWindow:]
	}

	seen := make(map[string]bool, len(history))
	out := make([]string, 0, len(history))
	for _, mood := range history {
		if seen[mood] {
			continue
		}
		seen[mood] = true
		out = append(out, mood)
	}
	return out
}
