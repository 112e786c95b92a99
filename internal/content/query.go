package content

import (
	"cmp"
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// DefaultTerm is searched when the query text is empty and is the
// target of the empty-result retry.
const DefaultTerm = "2024"

// minTermLength is the shortest term the search endpoint accepts reliably.
const minTermLength = 3

// Mood is a curated category keyword offered by the browse surfaces.
type Mood struct {
	Name string `json:"name"`
	Term string `json:"term"`
}

// Moods lists the curated keywords in display order.
var Moods = []Mood{
	{Name: "Adrenaline", Term: "action"},
	{Name: "Noir", Term: "noir"},
	{Name: "Cerebral", Term: "sci-fi"},
	{Name: "Zen", Term: "slice of life"},
	{Name: "Eerie", Term: "horror"},
	{Name: "Popular", Term: "2024"},
	{Name: "Trending", Term: "2025"},
	{Name: "Cinema", Term: "movie"},
	{Name: "Series", Term: "series"},
}

// MoodTerm returns the internal term for a mood keyword, matched case-insensitively.
func MoodTerm(text string) (string, bool) {
	text = strings.TrimSpace(text)
	for _, mood := range Moods {
		if strings.EqualFold(mood.Name, text) {
			return mood.Term, true
		}
	}
	return "", false
}

// FindMoods returns the moods whose name fuzzily contains text, closest
// first. Empty text returns every mood.
func FindMoods(text string) []Mood {
	text = strings.TrimSpace(text)
	if text == "" {
		return slices.Clone(Moods)
	}
	names := make([]string, len(Moods))
	for idx, mood := range Moods {
		names[idx] = mood.Name
	}
	ranks := fuzzy.RankFindFold(text, names)
	slices.SortStableFunc(ranks, func(a, b fuzzy.Rank) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.OriginalIndex, b.OriginalIndex)
	})
	found := make([]Mood, 0, len(ranks))
	for _, rank := range ranks {
		found = append(found, Moods[rank.OriginalIndex])
	}
	return found
}

// Query is a caller search request before normalization.
type Query struct {
	Text  string `json:"text"`
	Kind  Kind   `json:"kind,omitempty"`
	Year  string `json:"year,omitempty"`
	Genre string `json:"genre,omitempty"`
}

// Normalized is the canonical form of a Query used for provider calls and cache keys.
type Normalized struct {
	// Base is the resolved text before the genre and length adjustments.
	Base  string
	Term  string
	Kind  Kind
	Year  string
	Genre string
}

// IsDefault reports whether the query already resolved to the default term.
func (n Normalized) IsDefault() bool {
	return n.Base == DefaultTerm
}

// Normalize resolves empty text to the default term, substitutes mood
// keywords and folds the genre filter into the provider term.
func (q Query) Normalize() Normalized {
	base := collapse(q.Text)
	if term, ok := MoodTerm(base); ok {
		base = term
	}
	if base == "" {
		base = DefaultTerm
	}
	base = strings.ToLower(base)

	genre := strings.ToLower(collapse(q.Genre))
	term := base
	if genre != "" && !strings.Contains(term, genre) {
		term = term + " " + genre
	}
	if len([]rune(term)) < minTermLength {
		term += " movie"
	}

	kind := q.Kind
	if kind != KindMovie && kind != KindSeries {
		kind = KindAll
	}

	return Normalized{
		Base:  base,
		Term:  term,
		Kind:  kind,
		Year:  strings.TrimSpace(q.Year),
		Genre: genre,
	}
}

// DefaultQuery is the fallback query used when a search ranks nothing. Only
// the kind filter survives.
func (q Query) DefaultQuery() Query {
	return Query{Text: DefaultTerm, Kind: q.Kind}
}

func collapse(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
