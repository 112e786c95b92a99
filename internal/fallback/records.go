package fallback

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/omdb"
)

// record is one generated title as the model returns it. The model is not
// trusted to respect types, so scalars accept strings or numbers.
type record struct {
	Title    looseString `json:"title"`
	Year     looseString `json:"year"`
	Rating   looseString `json:"rating"`
	Synopsis looseString `json:"synopsis"`
	Genres   looseList   `json:"genres"`
	Director looseString `json:"director"`
	Cast     looseList   `json:"cast"`
	Runtime  looseString `json:"runtime"`
	Kind     looseString `json:"kind"`
}

type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*s = looseString(n.String())
		return nil
	}
	// Objects, arrays and booleans carry nothing usable.
	*s = ""
	return nil
}

type looseList []string

func (l *looseList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*l = splitList(v)
		return nil
	}
	var raw []looseString
	if err := json.Unmarshal(data, &raw); err != nil {
		*l = nil
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if v != "" {
			out = append(out, string(v))
		}
	}
	*l = out
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseRecords accepts a bare array, an array inside markdown fences, or an
// object wrapping the array under "items" or "movies".
func parseRecords(text string) ([]record, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var records []record
	if err := json.Unmarshal([]byte(cleaned), &records); err == nil {
		return records, nil
	}

	var wrapped struct {
		Items  []record `json:"items"`
		Movies []record `json:"movies"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err != nil {
		snippet := cleaned
		if len(snippet) > 120 {
			snippet = snippet[:120]
		}
		return nil, fmt.Errorf("%w: %v (raw: %s)", ErrMalformedOutput, err, snippet)
	}
	if len(wrapped.Items) > 0 {
		return wrapped.Items, nil
	}
	return wrapped.Movies, nil
}

// toItems validates records, dropping untitled and duplicate entries and
// capping the batch at limit.
func toItems(records []record, kind content.Kind, limit int) []content.Item {
	items := make([]content.Item, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		title := string(r.Title)
		if title == "" {
			continue
		}
		year := releaseYear(string(r.Year))
		id := SyntheticID(title, year)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		itemKind := content.ParseKind(string(r.Kind))
		if itemKind == content.KindAll {
			itemKind = kind
		}

		items = append(items, content.Item{
			ID:       id,
			Kind:     itemKind,
			Title:    title,
			Year:     year,
			Rating:   normalizeRating(string(r.Rating)),
			Synopsis: string(r.Synopsis),
			// Generated records never carry trustworthy art.
			PosterURL: content.PlaceholderPoster,
			Genres:    []string(r.Genres),
			Director:  string(r.Director),
			Cast:      []string(r.Cast),
			Runtime:   string(r.Runtime),
		}.Normalize())

		if limit > 0 && len(items) == limit {
			break
		}
	}
	return items
}

// SyntheticID derives a stable identifier from the title text so the same
// generated title always maps to the same id.
func SyntheticID(title, year string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(title)) + "|" + strings.TrimSpace(year)))
	return "gen-" + hex.EncodeToString(sum[:])[:12]
}

// releaseYear keeps the leading year of ranges like "1990–1991". Digit
// runs shorter than a year are dropped.
func releaseYear(value string) string {
	if year := omdb.FirstYear(value); len(year) == 4 {
		return year
	}
	return ""
}

func normalizeRating(value string) string {
	value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "/10"))
	rating, err := strconv.ParseFloat(value, 64)
	if err != nil || rating <= 0 || rating > 10 {
		return content.Unrated
	}
	return strconv.FormatFloat(rating, 'f', 1, 64)
}
