package models

import "time"

// RatingRange is an inclusive rating window; Lower <= Upper.
type RatingRange struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// UserPreferences holds the aggregated taste signals for one user.
// MoodPreferences is recency-bounded: only the last ten observed moods are
// materialized.
type UserPreferences struct {
	FavoriteGenres  []string    `json:"favorite_genres,omitempty"`
	MoodPreferences []string    `json:"mood_preferences,omitempty"`
	RatingRange     RatingRange `json:"rating_range"`
}

// UserPreferenceRecord is the persisted form of a user's preferences. At
// most one record exists per user; a re-save fully replaces the prior one.
type UserPreferenceRecord struct {
	UserID           string          `json:"user_id"`
	Preferences      UserPreferences `json:"preferences"`
	InteractionCount int64           `json:"interaction_count"`
	Embedding        []float32       `json:"embedding,omitempty"`
	LastUpdated      time.Time       `json:"last_updated"`
}
