package discovery

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/marquee/internal/provider"
)

// yearWeight keeps the year a tie breaker: a full rating point always
// outweighs any release year.
const yearWeight = 1000

// Score is the ranking value of an item. Unparseable ratings count as zero.
func Score(item content.Item) float64 {
	rating, err := strconv.ParseFloat(item.Rating, 64)
	if err != nil {
		rating = 0
	}
	return rating + float64(yearOf(item.Year))/yearWeight
}

type scored struct {
	item  content.Item
	score float64
}

// rank orders items by descending score. Equal scores keep provider order.
func rank(items []content.Item) []content.Item {
	entries := make([]scored, len(items))
	for idx, item := range items {
		entries[idx] = scored{item: item, score: Score(item)}
	}
	slices.SortStableFunc(entries, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})
	out := make([]content.Item, len(entries))
	for idx, entry := range entries {
		out[idx] = entry.item
	}
	return out
}

// dedupe keeps the first item for each kind and id.
func dedupe(items []content.Item) []content.Item {
	out := items[:0]
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		key := string(item.Kind) + ":" + item.ID
		if item.ID == "" {
			key = string(item.Kind) + ":title:" + item.Title + ":" + item.Year
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func candidateKey(c provider.Candidate) string {
	if c.ID == "" {
		return string(c.Kind) + ":title:" + c.Title + ":" + c.Year
	}
	return string(c.Kind) + ":" + c.ID
}

// yearOf reads the leading four digit year, so "1990–1991" scores as 1990.
func yearOf(value string) int {
	if len(value) < 4 {
		return 0
	}
	year, err := strconv.Atoi(value[:4])
	if err != nil || year < 0 {
		return 0
	}
	return year
}
