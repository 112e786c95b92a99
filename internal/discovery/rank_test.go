package discovery

import (
	"math"
	"testing"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/google/go-cmp/cmp"
)

func TestScore(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		item content.Item
		want float64
	}{
		"rating and year": {item: content.Item{Rating: "8.2", Year: "1982"}, want: 8.2 + 1.982},
		"range year":      {item: content.Item{Rating: "7.0", Year: "1990–1991"}, want: 7 + 1.990},
		"unrated":         {item: content.Item{Rating: content.Unrated, Year: "2000"}, want: 2},
		"no year":         {item: content.Item{Rating: "5.5"}, want: 5.5},
		"junk year":       {item: content.Item{Rating: "5.5", Year: "n/a1"}, want: 5.5},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := Score(tc.item); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Score() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRankIsStable(t *testing.T) {
	t.Parallel()

	items := []content.Item{
		{ID: "a", Rating: "7.0", Year: "2000"},
		{ID: "b", Rating: "9.0", Year: "1990"},
		{ID: "c", Rating: "7.0", Year: "2000"},
		{ID: "d", Rating: "7.0", Year: "2001"},
		{ID: "e", Rating: content.Unrated, Year: "2024"},
	}

	var got []string
	for _, item := range rank(items) {
		got = append(got, item.ID)
	}
	if diff := cmp.Diff([]string{"b", "d", "a", "c", "e"}, got); diff != "" {
		t.Fatalf("rank() order mismatch (-want +got):\n%s", diff)
	}
}

func TestDedupe(t *testing.T) {
	t.Parallel()

	items := []content.Item{
		{ID: "1", Kind: content.KindMovie, Title: "first"},
		{ID: "1", Kind: content.KindSeries, Title: "series shares the id"},
		{ID: "1", Kind: content.KindMovie, Title: "duplicate"},
		{Kind: content.KindMovie, Title: "untitled id", Year: "2000"},
		{Kind: content.KindMovie, Title: "untitled id", Year: "2000"},
	}

	var got []string
	for _, item := range dedupe(items) {
		got = append(got, item.Title)
	}
	if diff := cmp.Diff([]string{"first", "series shares the id", "untitled id"}, got); diff != "" {
		t.Fatalf("dedupe() mismatch (-want +got):\n%s", diff)
	}
}
