package tvdb

import (
	"context"
	"errors"
	"testing"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/marquee/internal/provider"
	tvdbapi "github.com/dashotv/tvdb"
	"github.com/dashotv/tvdb/openapi/models/operations"
	"github.com/dashotv/tvdb/openapi/models/shared"
	"github.com/google/go-cmp/cmp"
)

// mockTVDBClient implements TVDBClient for testing
type mockTVDBClient struct {
	searchFunc func(request operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error)
	seriesFunc func(id float64) (*tvdbapi.GetSeriesExtendedResponse, error)
	movieFunc  func(id float64) (*tvdbapi.GetMovieExtendedResponse, error)
}

func (m *mockTVDBClient) GetSearchResults(request operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error) {
	if m.searchFunc != nil {
		return m.searchFunc(request)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTVDBClient) GetSeriesExtended(id float64, _ *operations.GetSeriesExtendedQueryParamMeta, _ *bool) (*tvdbapi.GetSeriesExtendedResponse, error) {
	if m.seriesFunc != nil {
		return m.seriesFunc(id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockTVDBClient) GetMovieExtended(id float64, _ *operations.QueryParamMeta, _ *bool) (*tvdbapi.GetMovieExtendedResponse, error) {
	if m.movieFunc != nil {
		return m.movieFunc(id)
	}
	return nil, errors.New("not implemented")
}

func newTestProvider(mock *mockTVDBClient, logins *[]string) *Provider {
	p := New()
	p.login = func(apiKey string) (TVDBClient, error) {
		if logins != nil {
			*logins = append(*logins, apiKey)
		}
		return mock, nil
	}
	return p
}

func ptr[T any](v T) *T {
	return &v
}

func TestSearchPageKeepsMoviesAndSeries(t *testing.T) {
	var got operations.GetSearchResultsRequest
	mock := &mockTVDBClient{
		searchFunc: func(request operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error) {
			got = request
			return &tvdbapi.GetSearchResultsResponse{Data: []shared.SearchResult{
				{TvdbID: ptr("121361"), Name: ptr("Game of Thrones"), Year: ptr("2011"), Type: ptr("series"), ImageURL: ptr("https://artworks.thetvdb.com/got.jpg")},
				{TvdbID: ptr("7"), Name: ptr("Peter Dinklage"), Type: ptr("person")},
				{ID: ptr("12"), NameTranslated: ptr("Thrones Movie"), Year: ptr("2019"), Type: ptr("movie")},
			}}, nil
		},
	}
	p := newTestProvider(mock, nil)

	page, err := p.SearchPage(context.Background(), "key", provider.PageRequest{Term: "thrones", Year: "2011"})
	if err != nil {
		t.Fatalf("SearchPage() error = %v", err)
	}

	if got.Query == nil || *got.Query != "thrones" {
		t.Errorf("query = %v, want thrones", got.Query)
	}
	if got.Type != nil {
		t.Errorf("type = %q, want unset for all kinds", *got.Type)
	}
	if got.Year == nil || *got.Year != 2011 {
		t.Errorf("year = %v, want 2011", got.Year)
	}

	want := []provider.Candidate{
		{ID: "series:121361", Title: "Game of Thrones", Year: "2011", Kind: content.KindSeries, PosterURL: "https://artworks.thetvdb.com/got.jpg"},
		{ID: "movie:12", Title: "Thrones Movie", Year: "2019", Kind: content.KindMovie},
	}
	if diff := cmp.Diff(want, page.Candidates); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}
	if page.TotalResults != 2 || page.Number != 1 {
		t.Errorf("page = %d of %d results, want 1 of 2", page.Number, page.TotalResults)
	}
}

func TestSearchPageFiltersByKind(t *testing.T) {
	var gotType string
	mock := &mockTVDBClient{
		searchFunc: func(request operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error) {
			if request.Type != nil {
				gotType = *request.Type
			}
			return &tvdbapi.GetSearchResultsResponse{}, nil
		},
	}
	p := newTestProvider(mock, nil)

	if _, err := p.SearchPage(context.Background(), "key", provider.PageRequest{Term: "dark", Kind: content.KindSeries}); err != nil {
		t.Fatalf("SearchPage() error = %v", err)
	}
	if gotType != "series" {
		t.Errorf("type = %q, want series", gotType)
	}
}

func TestSearchPageBeyondFirstIsEmpty(t *testing.T) {
	mock := &mockTVDBClient{
		searchFunc: func(operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error) {
			t.Fatal("second page should not query TVDB")
			return nil, nil
		},
	}
	p := newTestProvider(mock, nil)

	page, err := p.SearchPage(context.Background(), "key", provider.PageRequest{Term: "dark", Page: 2})
	if err != nil {
		t.Fatalf("SearchPage() error = %v", err)
	}
	if page.Number != 2 || len(page.Candidates) != 0 {
		t.Errorf("page = %+v, want empty page 2", page)
	}
}

func TestSearchPageRejectsEmptyTerm(t *testing.T) {
	p := newTestProvider(&mockTVDBClient{}, nil)

	_, err := p.SearchPage(context.Background(), "key", provider.PageRequest{Term: "  "})
	var perr *provider.ProviderError
	if !errors.As(err, &perr) || perr.Code != provider.CodeInvalidRequest {
		t.Fatalf("error = %v, want %s", err, provider.CodeInvalidRequest)
	}
}

func TestLoginOncePerKey(t *testing.T) {
	var logins []string
	mock := &mockTVDBClient{
		searchFunc: func(operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error) {
			return &tvdbapi.GetSearchResultsResponse{}, nil
		},
	}
	p := newTestProvider(mock, &logins)

	for _, key := range []string{"a", "b", "a"} {
		if _, err := p.SearchPage(context.Background(), key, provider.PageRequest{Term: "x"}); err != nil {
			t.Fatalf("SearchPage(%q) error = %v", key, err)
		}
	}
	if diff := cmp.Diff([]string{"a", "b"}, logins); diff != "" {
		t.Errorf("logins mismatch (-want +got):\n%s", diff)
	}
}

func TestAuthFailureForgetsLogin(t *testing.T) {
	var logins []string
	calls := 0
	mock := &mockTVDBClient{
		searchFunc: func(operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("401 Unauthorized")
			}
			return &tvdbapi.GetSearchResultsResponse{}, nil
		},
	}
	p := newTestProvider(mock, &logins)

	_, err := p.SearchPage(context.Background(), "key", provider.PageRequest{Term: "x"})
	var perr *provider.ProviderError
	if !errors.As(err, &perr) || perr.Code != provider.CodeAuthFailed {
		t.Fatalf("error = %v, want %s", err, provider.CodeAuthFailed)
	}
	if _, err := p.SearchPage(context.Background(), "key", provider.PageRequest{Term: "x"}); err != nil {
		t.Fatalf("second SearchPage() error = %v", err)
	}
	if len(logins) != 2 {
		t.Errorf("logins = %v, want a fresh login after the auth failure", logins)
	}
}

func TestMissingKeyFailsAuth(t *testing.T) {
	p := newTestProvider(&mockTVDBClient{}, nil)

	_, err := p.Detail(context.Background(), "", provider.DetailRequest{ID: "series:1"})
	var perr *provider.ProviderError
	if !errors.As(err, &perr) || perr.Code != provider.CodeAuthFailed {
		t.Fatalf("error = %v, want %s", err, provider.CodeAuthFailed)
	}
}

func TestDetailSeriesByQualifiedID(t *testing.T) {
	var gotID float64
	mock := &mockTVDBClient{
		seriesFunc: func(id float64) (*tvdbapi.GetSeriesExtendedResponse, error) {
			gotID = id
			return &tvdbapi.GetSeriesExtendedResponse{Data: &shared.SeriesExtendedRecord{
				Name:           ptr("Game of Thrones"),
				Year:           ptr("2011"),
				Overview:       ptr("Nine noble families fight."),
				Score:          ptr(float64(985000)),
				AverageRuntime: ptr(int64(60)),
				Genres:         []shared.GenreBaseRecord{{Name: ptr("Drama")}, {Name: ptr(" ")}},
				RemoteIds: []shared.RemoteID{
					{SourceName: ptr("TheMovieDB.com"), ID: ptr("1399")},
					{SourceName: ptr("IMDB"), ID: ptr("tt0944947")},
				},
			}}, nil
		},
	}
	p := newTestProvider(mock, nil)

	item, err := p.Detail(context.Background(), "key", provider.DetailRequest{ID: "series:121361"})
	if err != nil {
		t.Fatalf("Detail() error = %v", err)
	}
	if gotID != 121361 {
		t.Errorf("series id = %v, want 121361", gotID)
	}

	want := content.Item{
		ID:       "tt0944947",
		Kind:     content.KindSeries,
		Title:    "Game of Thrones",
		Year:     "2011",
		Rating:   content.Unrated,
		Synopsis: "Nine noble families fight.",
		Genres:   []string{"Drama"},
		Runtime:  "60 min",
	}.Normalize()
	if diff := cmp.Diff(want, *item); diff != "" {
		t.Errorf("item mismatch (-want +got):\n%s", diff)
	}
}

func TestDetailMovieWithoutIMDbKeepsQualifiedID(t *testing.T) {
	mock := &mockTVDBClient{
		movieFunc: func(float64) (*tvdbapi.GetMovieExtendedResponse, error) {
			return &tvdbapi.GetMovieExtendedResponse{Data: &shared.MovieExtendedRecord{
				Name:    ptr("Arrival"),
				Year:    ptr("2016"),
				Runtime: ptr(int64(116)),
			}}, nil
		},
	}
	p := newTestProvider(mock, nil)

	item, err := p.Detail(context.Background(), "key", provider.DetailRequest{ID: "movie:42"})
	if err != nil {
		t.Fatalf("Detail() error = %v", err)
	}
	if item.ID != "movie:42" || item.Kind != content.KindMovie || item.Runtime != "116 min" {
		t.Errorf("item = %+v", item)
	}
}

func TestDetailFallsBackToTitleSearch(t *testing.T) {
	var gotID float64
	mock := &mockTVDBClient{
		searchFunc: func(request operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error) {
			if request.Query == nil || *request.Query != "Dark" {
				t.Errorf("query = %v, want Dark", request.Query)
			}
			return &tvdbapi.GetSearchResultsResponse{Data: []shared.SearchResult{
				{TvdbID: ptr("5"), Name: ptr("Dark"), Type: ptr("movie")},
				{TvdbID: ptr("334824"), Name: ptr("Dark"), Type: ptr("series")},
			}}, nil
		},
		seriesFunc: func(id float64) (*tvdbapi.GetSeriesExtendedResponse, error) {
			gotID = id
			return &tvdbapi.GetSeriesExtendedResponse{Data: &shared.SeriesExtendedRecord{Name: ptr("Dark")}}, nil
		},
	}
	p := newTestProvider(mock, nil)

	item, err := p.Detail(context.Background(), "key", provider.DetailRequest{Title: "Dark", Kind: content.KindSeries})
	if err != nil {
		t.Fatalf("Detail() error = %v", err)
	}
	if gotID != 334824 || item.ID != "series:334824" {
		t.Errorf("detail fetched %v as %q, want series 334824", gotID, item.ID)
	}
}

func TestDetailNotFound(t *testing.T) {
	mock := &mockTVDBClient{
		movieFunc: func(float64) (*tvdbapi.GetMovieExtendedResponse, error) {
			return &tvdbapi.GetMovieExtendedResponse{}, nil
		},
		searchFunc: func(operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error) {
			return &tvdbapi.GetSearchResultsResponse{}, nil
		},
	}
	p := newTestProvider(mock, nil)

	for name, request := range map[string]provider.DetailRequest{
		"empty record": {ID: "movie:1"},
		"no hits":      {Title: "Nothing Here"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Detail(context.Background(), "key", request)
			var perr *provider.ProviderError
			if !errors.As(err, &perr) || perr.Code != provider.CodeNotFound {
				t.Fatalf("error = %v, want %s", err, provider.CodeNotFound)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	tests := map[string]struct {
		kind content.Kind
		id   int64
		ok   bool
	}{
		"series:81189": {content.KindSeries, 81189, true},
		"movie:12":     {content.KindMovie, 12, true},
		"tt0944947":    {ok: false},
		"person:3":     {ok: false},
		"series:abc":   {ok: false},
		"movie:0":      {ok: false},
	}
	for input, tc := range tests {
		kind, id, ok := parseID(input)
		if kind != tc.kind || id != tc.id || ok != tc.ok {
			t.Errorf("parseID(%q) = %q, %d, %v", input, kind, id, ok)
		}
	}
}

func TestMapError(t *testing.T) {
	p := New()
	tests := []struct {
		err        error
		code       string
		retry      bool
		retryAfter int
	}{
		{errors.New("401 Unauthorized"), provider.CodeAuthFailed, false, 0},
		{errors.New("invalid apikey"), provider.CodeAuthFailed, false, 0},
		{errors.New("429 Too Many Requests"), provider.CodeRateLimited, true, 5},
		{errors.New("404 not found"), provider.CodeNotFound, false, 0},
		{errors.New("503 Service Unavailable"), provider.CodeUnavailable, true, 30},
		{errors.New("boom"), provider.CodeUnknown, false, 0},
	}
	for _, tc := range tests {
		var perr *provider.ProviderError
		if !errors.As(p.mapError(tc.err), &perr) {
			t.Fatalf("mapError(%v) is not a ProviderError", tc.err)
		}
		if perr.Code != tc.code || perr.Retry != tc.retry || perr.RetryAfter != tc.retryAfter || perr.Provider != providerName {
			t.Errorf("mapError(%v) = %+v", tc.err, perr)
		}
	}

	if err := p.mapError(context.Canceled); !errors.Is(err, context.Canceled) {
		t.Errorf("mapError(canceled) = %v, want context.Canceled", err)
	}
}
