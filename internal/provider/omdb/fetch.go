package omdb

import (
	"strconv"
	"strings"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/marquee/internal/provider"
	"github.com/Digital-Shane/omdb"
)

func searchToPage(number int, resp *omdb.SearchResponse) *provider.Page {
	page := &provider.Page{Number: number}
	if resp == nil {
		return page
	}
	page.TotalResults, _ = strconv.Atoi(resp.TotalResults)
	page.Candidates = make([]provider.Candidate, 0, len(resp.Search))
	for _, hit := range resp.Search {
		page.Candidates = append(page.Candidates, provider.Candidate{
			ID:        strings.TrimSpace(hit.ImdbID),
			Title:     hit.Title,
			Year:      omdb.FirstYear(hit.Year),
			Kind:      kindOf(hit.Type),
			PosterURL: hit.Poster,
		})
	}
	return page
}

// record is the subset of the OMDb movie, series and episode results that
// becomes a content item.
type record struct {
	kind       content.Kind
	title      string
	year       string
	runtime    string
	genre      string
	director   string
	actors     string
	plot       string
	poster     string
	imdbRating string
	imdbID     string
}

func resultToItem(result any) (content.Item, bool) {
	var rec record
	switch r := result.(type) {
	case omdb.MovieResult:
		rec = record{content.KindMovie, r.Title, r.Year, r.Runtime, r.Genre, r.Director, r.Actors, r.Plot, r.Poster, r.ImdbRating, r.ImdbID}
	case *omdb.MovieResult:
		return resultToItem(*r)
	case omdb.SeriesResult:
		rec = record{content.KindSeries, r.Title, r.Year, r.Runtime, r.Genre, r.Director, r.Actors, r.Plot, r.Poster, r.ImdbRating, r.ImdbID}
	case *omdb.SeriesResult:
		return resultToItem(*r)
	case omdb.EpisodeResult:
		// Episodes play through their series.
		id := r.SeriesID
		if id == "" {
			id = r.ImdbID
		}
		rec = record{content.KindSeries, r.Title, r.Year, r.Runtime, r.Genre, r.Director, r.Actors, r.Plot, r.Poster, r.ImdbRating, id}
	default:
		return content.Item{}, false
	}
	return rec.item(), true
}

func (r record) item() content.Item {
	item := content.Item{
		ID:        r.imdbID,
		Kind:      r.kind,
		Title:     r.title,
		Year:      omdb.FirstYear(r.year),
		Rating:    formatRating(omdb.ParseRating(r.imdbRating)),
		Synopsis:  r.plot,
		PosterURL: r.poster,
		Genres:    cleanList(r.genre),
		Director:  joinList(r.director),
		Cast:      cleanList(r.actors),
		Runtime:   r.runtime,
	}
	return item.Normalize()
}

func kindOf(omdbType string) content.Kind {
	if strings.EqualFold(omdbType, "series") || strings.EqualFold(omdbType, "episode") {
		return content.KindSeries
	}
	return content.KindMovie
}

func formatRating(rating float32) string {
	if rating <= 0 {
		return content.Unrated
	}
	return strconv.FormatFloat(float64(rating), 'f', 1, 32)
}

// cleanList splits OMDb comma lists and drops "N/A".
func cleanList(value string) []string {
	if strings.EqualFold(strings.TrimSpace(value), "n/a") {
		return nil
	}
	return omdb.SplitAndTrim(value)
}

func joinList(value string) string {
	values := cleanList(value)
	if len(values) == 0 {
		return ""
	}
	return strings.Join(values, ", ")
}
