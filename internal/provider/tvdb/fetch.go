package tvdb

import (
	"strconv"
	"strings"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/marquee/internal/provider"
	tvdbapi "github.com/dashotv/tvdb"
	"github.com/dashotv/tvdb/openapi/models/shared"
)

type hit struct {
	id     int64
	kind   content.Kind
	title  string
	year   string
	poster string
}

// toHit keeps movie and series results. People, companies and episodes
// are skipped.
func toHit(result shared.SearchResult) (hit, bool) {
	var kind content.Kind
	switch strings.ToLower(pointerToString(result.Type)) {
	case "movie":
		kind = content.KindMovie
	case "series":
		kind = content.KindSeries
	default:
		return hit{}, false
	}

	id := parseInt64(pointerToString(result.TvdbID))
	if id == 0 {
		id = parseInt64(pointerToString(result.ID))
	}
	if id == 0 {
		return hit{}, false
	}
	return hit{
		id:     id,
		kind:   kind,
		title:  firstNonEmpty(pointerToString(result.Name), pointerToString(result.NameTranslated), pointerToString(result.Title)),
		year:   pointerToString(result.Year),
		poster: pointerToString(result.ImageURL),
	}, true
}

func searchToPage(number int, resp *tvdbapi.GetSearchResultsResponse) *provider.Page {
	page := &provider.Page{Number: number}
	if resp == nil {
		return page
	}
	for _, result := range resp.Data {
		h, ok := toHit(result)
		if !ok {
			continue
		}
		page.Candidates = append(page.Candidates, provider.Candidate{
			ID:        qualifiedID(h.kind, h.id),
			Title:     h.title,
			Year:      h.year,
			Kind:      h.kind,
			PosterURL: h.poster,
		})
	}
	page.TotalResults = len(page.Candidates)
	return page
}

// record is the subset of an extended movie or series that becomes a
// content item.
type record struct {
	kind     content.Kind
	title    string
	year     string
	overview string
	runtime  int64
	genres   []string
	imdbID   string
}

func seriesRecord(resp *tvdbapi.GetSeriesExtendedResponse) record {
	series := resp.Data
	rec := record{
		kind:     content.KindSeries,
		title:    pointerToString(series.Name),
		year:     pointerToString(series.Year),
		overview: pointerToString(series.Overview),
		runtime:  pointerToInt64(series.AverageRuntime),
		imdbID:   findRemoteID(series.RemoteIds, "imdb"),
	}
	for _, g := range series.Genres {
		if name := pointerToString(g.Name); name != "" {
			rec.genres = append(rec.genres, name)
		}
	}
	return rec
}

func movieRecord(resp *tvdbapi.GetMovieExtendedResponse) record {
	movie := resp.Data
	rec := record{
		kind:    content.KindMovie,
		title:   pointerToString(movie.Name),
		year:    pointerToString(movie.Year),
		runtime: pointerToInt64(movie.Runtime),
		imdbID:  findRemoteID(movie.RemoteIds, "imdb"),
	}
	for _, g := range movie.Genres {
		if name := pointerToString(g.Name); name != "" {
			rec.genres = append(rec.genres, name)
		}
	}
	return rec
}

// item builds the content item. The IMDb id is preferred because the
// embed servers resolve it; TVDB scores are popularity, not ratings.
func (r record) item(tvdbID int64) content.Item {
	id := r.imdbID
	if id == "" {
		id = qualifiedID(r.kind, tvdbID)
	}
	item := content.Item{
		ID:       id,
		Kind:     r.kind,
		Title:    r.title,
		Year:     r.year,
		Rating:   content.Unrated,
		Synopsis: r.overview,
		Genres:   r.genres,
	}
	if r.runtime > 0 {
		item.Runtime = strconv.FormatInt(r.runtime, 10) + " min"
	}
	return item.Normalize()
}

func findRemoteID(ids []shared.RemoteID, source string) string {
	needle := strings.ToLower(strings.TrimSpace(source))
	for _, remote := range ids {
		sourceName := strings.ToLower(pointerToString(remote.SourceName))
		if strings.Contains(sourceName, needle) {
			return pointerToString(remote.ID)
		}
	}
	return ""
}

func pointerToString(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func pointerToInt64(value *int64) int64 {
	if value == nil {
		return 0
	}
	return *value
}

func parseInt64(value string) int64 {
	parsed, _ := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	return parsed
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
