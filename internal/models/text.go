package models

import (
	"fmt"
	"strings"
)

// BuildMovieText projects a movie record into the single descriptive string
// used as embedding input. Pure and order-stable: identical records always
// yield byte-identical text. Empty fields are omitted, not zero-filled.
// Labels are kept in Chinese to match the multilingual embedding model's
// training data for this catalog.
func BuildMovieText(m MovieRecord) string {
	var parts []string

	if m.Title != "" {
		parts = append(parts, "电影："+m.Title)
	}
	if len(m.Genres) > 0 {
		parts = append(parts, "类型："+strings.Join(m.Genres, ", "))
	}
	if m.Director != "" {
		parts = append(parts, "导演："+m.Director)
	}
	if m.Overview != "" {
		parts = append(parts, "简介："+m.Overview)
	}
	if m.Year != "" {
		parts = append(parts, "年份："+m.Year)
	}
	if m.MoodTag != "" {
		parts = append(parts, "情绪："+m.MoodTag)
	}

	return strings.Join(parts, ". ")
}

// BuildPreferenceText projects aggregated user preferences into embedding
// input, with the same determinism guarantees as BuildMovieText.
func BuildPreferenceText(p UserPreferences) string {
	var parts []string

	if len(p.FavoriteGenres) > 0 {
		parts = append(parts, "喜欢的类型："+strings.Join(p.FavoriteGenres, ", "))
	}
	if len(p.MoodPreferences) > 0 {
		parts = append(parts, "情绪偏好："+strings.Join(p.MoodPreferences, ", "))
	}
	if p.RatingRange.Upper > 0 {
		parts = append(parts, fmt.Sprintf("评分范围：%g-%g", p.RatingRange.Lower, p.RatingRange.Upper))
	}

	return strings.Join(parts, ". ")
}
