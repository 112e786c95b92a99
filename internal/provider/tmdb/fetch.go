package tmdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/marquee/internal/provider"
	"github.com/ryanbradynd05/go-tmdb"
)

// SearchPage searches movies, series or both. With no kind filter the movie
// hits come first.
func (p *Provider) SearchPage(ctx context.Context, apiKey string, request provider.PageRequest) (*provider.Page, error) {
	if strings.TrimSpace(request.Term) == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "search requires a term",
		}
	}
	client, err := p.client(apiKey)
	if err != nil {
		return nil, err
	}
	number := request.Page
	if number < 1 {
		number = 1
	}

	page := &provider.Page{Number: number}

	if request.Kind != content.KindSeries {
		options := map[string]string{"language": p.language, "page": strconv.Itoa(number)}
		if request.Year != "" {
			options["year"] = request.Year
		}
		results, err := await(ctx, func() (*tmdb.MovieSearchResults, error) {
			return client.SearchMovie(request.Term, options)
		})
		if err != nil {
			return nil, p.mapError(err)
		}
		if results != nil {
			page.TotalResults += int(results.TotalResults)
			for _, movie := range results.Results {
				page.Candidates = append(page.Candidates, provider.Candidate{
					ID:        strconv.Itoa(movie.ID),
					Title:     movie.Title,
					Year:      yearOf(movie.ReleaseDate),
					Kind:      content.KindMovie,
					PosterURL: posterURL(movie.PosterPath),
				})
			}
		}
	}

	if request.Kind != content.KindMovie {
		options := map[string]string{"language": p.language, "page": strconv.Itoa(number)}
		if request.Year != "" {
			options["first_air_date_year"] = request.Year
		}
		results, err := await(ctx, func() (*tmdb.TvSearchResults, error) {
			return client.SearchTv(request.Term, options)
		})
		if err != nil {
			return nil, p.mapError(err)
		}
		if results != nil {
			page.TotalResults += int(results.TotalResults)
			for _, show := range results.Results {
				page.Candidates = append(page.Candidates, provider.Candidate{
					ID:        strconv.Itoa(show.ID),
					Title:     show.Name,
					Year:      yearOf(show.FirstAirDate),
					Kind:      content.KindSeries,
					PosterURL: posterURL(show.PosterPath),
				})
			}
		}
	}

	return page, nil
}

// Detail fetches full movie or series info, resolving a title to an id first
// when needed.
func (p *Provider) Detail(ctx context.Context, apiKey string, request provider.DetailRequest) (*content.Item, error) {
	client, err := p.client(apiKey)
	if err != nil {
		return nil, err
	}

	id, err := p.resolveID(ctx, client, request)
	if err != nil {
		return nil, err
	}
	options := map[string]string{"language": p.language}

	if request.Kind == content.KindSeries {
		show, err := await(ctx, func() (*tmdb.TV, error) {
			return client.GetTvInfo(id, options)
		})
		if err != nil {
			return nil, p.mapError(err)
		}
		if show == nil {
			return nil, p.notFound(request)
		}
		item := tvToItem(show)
		return &item, nil
	}

	movie, err := await(ctx, func() (*tmdb.Movie, error) {
		return client.GetMovieInfo(id, options)
	})
	if err != nil {
		return nil, p.mapError(err)
	}
	if movie == nil {
		return nil, p.notFound(request)
	}
	item := movieToItem(movie)
	return &item, nil
}

func (p *Provider) resolveID(ctx context.Context, client TMDBClient, request provider.DetailRequest) (int, error) {
	if request.ID != "" {
		id, err := strconv.Atoi(request.ID)
		if err != nil {
			return 0, &provider.ProviderError{
				Provider: providerName,
				Code:     provider.CodeInvalidRequest,
				Message:  fmt.Sprintf("invalid TMDB id %q", request.ID),
			}
		}
		return id, nil
	}
	if strings.TrimSpace(request.Title) == "" {
		return 0, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "detail lookup requires a title or a TMDB ID",
		}
	}

	options := map[string]string{"language": p.language}
	if request.Kind == content.KindSeries {
		if request.Year != "" {
			options["first_air_date_year"] = request.Year
		}
		results, err := await(ctx, func() (*tmdb.TvSearchResults, error) {
			return client.SearchTv(request.Title, options)
		})
		if err != nil {
			return 0, p.mapError(err)
		}
		if results == nil || len(results.Results) == 0 {
			return 0, p.notFound(request)
		}
		return results.Results[0].ID, nil
	}

	if request.Year != "" {
		options["year"] = request.Year
	}
	results, err := await(ctx, func() (*tmdb.MovieSearchResults, error) {
		return client.SearchMovie(request.Title, options)
	})
	if err != nil {
		return 0, p.mapError(err)
	}
	if results == nil || len(results.Results) == 0 {
		return 0, p.notFound(request)
	}
	return results.Results[0].ID, nil
}

func (p *Provider) notFound(request provider.DetailRequest) error {
	return &provider.ProviderError{
		Provider: providerName,
		Code:     provider.CodeNotFound,
		Message:  fmt.Sprintf("no TMDB match for %q", request.Title),
	}
}

// Conversion functions

func movieToItem(movie *tmdb.Movie) content.Item {
	genres := make([]string, 0, len(movie.Genres))
	for _, g := range movie.Genres {
		genres = append(genres, g.Name)
	}

	runtime := ""
	if movie.Runtime > 0 {
		runtime = fmt.Sprintf("%d min", int(movie.Runtime))
	}

	return content.Item{
		ID:        strconv.Itoa(movie.ID),
		Kind:      content.KindMovie,
		Title:     movie.Title,
		Year:      yearOf(movie.ReleaseDate),
		Rating:    formatRating(movie.VoteAverage),
		Synopsis:  movie.Overview,
		PosterURL: posterURL(movie.PosterPath),
		Genres:    genres,
		Runtime:   runtime,
	}.Normalize()
}

func tvToItem(show *tmdb.TV) content.Item {
	genres := make([]string, 0, len(show.Genres))
	for _, g := range show.Genres {
		genres = append(genres, g.Name)
	}

	runtime := ""
	if len(show.EpisodeRunTime) > 0 && show.EpisodeRunTime[0] > 0 {
		runtime = fmt.Sprintf("%d min", show.EpisodeRunTime[0])
	}

	return content.Item{
		ID:        strconv.Itoa(show.ID),
		Kind:      content.KindSeries,
		Title:     show.Name,
		Year:      yearOf(show.FirstAirDate),
		Rating:    formatRating(show.VoteAverage),
		Synopsis:  show.Overview,
		PosterURL: posterURL(show.PosterPath),
		Genres:    genres,
		Runtime:   runtime,
	}.Normalize()
}
