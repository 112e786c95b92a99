package content

import (
	"slices"
	"strings"
)

// Kind represents the type of a content item
type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
	// KindAll is only meaningful as a search filter.
	KindAll Kind = ""
)

// ParseKind maps loose user and provider spellings onto a Kind.
func ParseKind(value string) Kind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "movie", "movies", "film":
		return KindMovie
	case "series", "tv", "show", "shows", "episode":
		return KindSeries
	default:
		return KindAll
	}
}

// Placeholder values used whenever a source record lacks the field.
const (
	PlaceholderPoster   = "https://images.unsplash.com/photo-1440404653325-ab127d49abc1?q=80&w=2070&auto=format&fit=crop"
	PlaceholderSynopsis = "No synopsis available for this title."
	PlaceholderDirector = "Unknown"
	PlaceholderRuntime  = "N/A"
	Unrated             = "unrated"
)

// Item is the uniform content model produced by providers and the generator.
type Item struct {
	ID        string   `json:"id"`
	Kind      Kind     `json:"kind"`
	Title     string   `json:"title"`
	Year      string   `json:"year"`
	Rating    string   `json:"rating"`
	Synopsis  string   `json:"synopsis"`
	PosterURL string   `json:"poster_url"`
	Genres    []string `json:"genres,omitempty"`
	Director  string   `json:"director"`
	Cast      []string `json:"cast,omitempty"`
	Runtime   string   `json:"runtime"`
}

// Clone returns a deep copy so callers never share slices with cached values.
func (i Item) Clone() Item {
	i.Genres = slices.Clone(i.Genres)
	i.Cast = slices.Clone(i.Cast)
	return i
}

// Normalize fills every placeholder field and returns the result.
func (i Item) Normalize() Item {
	i.Title = strings.TrimSpace(i.Title)
	i.PosterURL = PosterOrPlaceholder(i.PosterURL)
	if rating := strings.TrimSpace(i.Rating); rating == "" || strings.EqualFold(rating, "n/a") {
		i.Rating = Unrated
	}
	if strings.TrimSpace(i.Synopsis) == "" || strings.EqualFold(i.Synopsis, "n/a") {
		i.Synopsis = PlaceholderSynopsis
	}
	if strings.TrimSpace(i.Director) == "" || strings.EqualFold(i.Director, "n/a") {
		i.Director = PlaceholderDirector
	}
	if strings.TrimSpace(i.Runtime) == "" {
		i.Runtime = PlaceholderRuntime
	}
	if i.Kind != KindSeries {
		i.Kind = KindMovie
	}
	return i
}

// HasArt reports whether a poster value points at a usable image.
func HasArt(poster string) bool {
	poster = strings.TrimSpace(poster)
	if poster == "" || strings.EqualFold(poster, "n/a") {
		return false
	}
	return strings.HasPrefix(poster, "https://") || strings.HasPrefix(poster, "http://")
}

// PosterOrPlaceholder returns the poster when usable, otherwise the placeholder.
func PosterOrPlaceholder(poster string) string {
	if HasArt(poster) {
		return strings.TrimSpace(poster)
	}
	return PlaceholderPoster
}

// CloneItems deep copies a slice of items.
func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for idx, item := range items {
		out[idx] = item.Clone()
	}
	return out
}

// Provenance tags which path produced a search result.
type Provenance string

const (
	ProvenancePrimary  Provenance = "primary"
	ProvenanceFallback Provenance = "fallback"
)

// Degraded reports whether the result came from the generator.
func (p Provenance) Degraded() bool {
	return p == ProvenanceFallback
}
