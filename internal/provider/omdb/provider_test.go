package omdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/marquee/internal/provider"
	"github.com/google/go-cmp/cmp"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(fn roundTripFunc) *http.Client {
	return &http.Client{Transport: fn}
}

func jsonResponse(status int, body string) *http.Response {
	resp := &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp
}

func TestSearchPage(t *testing.T) {
	var gotQuery map[string]string
	prov := New(newTestClient(func(req *http.Request) (*http.Response, error) {
		gotQuery = map[string]string{}
		for k := range req.URL.Query() {
			gotQuery[k] = req.URL.Query().Get(k)
		}
		return jsonResponse(200, `{
			"Search": [
				{"Title": "Alien", "Year": "1979", "imdbID": "tt0078748", "Type": "movie", "Poster": "https://img.example/alien.jpg"},
				{"Title": "Alien Worlds", "Year": "2020–", "imdbID": "tt11084896", "Type": "series", "Poster": "N/A"}
			],
			"totalResults": "42",
			"Response": "True"
		}`), nil
	}))

	page, err := prov.SearchPage(context.Background(), "key-1", provider.PageRequest{
		Term: "alien",
		Kind: content.KindMovie,
		Year: "1979",
		Page: 2,
	})
	if err != nil {
		t.Fatalf("SearchPage() error = %v", err)
	}

	wantQuery := map[string]string{"s": "alien", "type": "movie", "y": "1979", "page": "2", "apikey": "key-1"}
	if diff := cmp.Diff(wantQuery, gotQuery); diff != "" {
		t.Fatalf("query mismatch (-want +got):\n%s", diff)
	}

	want := &provider.Page{
		Number:       2,
		TotalResults: 42,
		Candidates: []provider.Candidate{
			{ID: "tt0078748", Title: "Alien", Year: "1979", Kind: content.KindMovie, PosterURL: "https://img.example/alien.jpg"},
			{ID: "tt11084896", Title: "Alien Worlds", Year: "2020", Kind: content.KindSeries, PosterURL: "N/A"},
		},
	}
	if diff := cmp.Diff(want, page); diff != "" {
		t.Fatalf("SearchPage() mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchPageErrors(t *testing.T) {
	tests := map[string]struct {
		status   int
		body     string
		wantCode string
	}{
		"invalid key":   {status: 401, body: `{"Response":"False","Error":"Invalid API key!"}`, wantCode: provider.CodeAuthFailed},
		"not found":     {status: 200, body: `{"Response":"False","Error":"Movie not found!"}`, wantCode: provider.CodeNotFound},
		"limit reached": {status: 200, body: `{"Response":"False","Error":"Request limit reached!"}`, wantCode: provider.CodeRateLimited},
		"server error":  {status: 503, body: `<html>down</html>`, wantCode: provider.CodeUnavailable},
		"throttled":     {status: 429, body: ``, wantCode: provider.CodeRateLimited},
		"unknown":       {status: 200, body: `{"Response":"False","Error":"Too many results."}`, wantCode: provider.CodeUnknown},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			prov := New(newTestClient(func(*http.Request) (*http.Response, error) {
				return jsonResponse(tc.status, tc.body), nil
			}))

			_, err := prov.SearchPage(context.Background(), "key", provider.PageRequest{Term: "x", Page: 1})
			var perr *provider.ProviderError
			if !errors.As(err, &perr) {
				t.Fatalf("SearchPage() error = %v, want ProviderError", err)
			}
			if perr.Code != tc.wantCode {
				t.Fatalf("Code = %q, want %q", perr.Code, tc.wantCode)
			}
		})
	}
}

func TestSearchPageRequiresKeyAndTerm(t *testing.T) {
	prov := New(newTestClient(func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	}))

	_, err := prov.SearchPage(context.Background(), "", provider.PageRequest{Term: "x"})
	if provider.Classify(err) != provider.FailureRotatable {
		t.Fatalf("missing key error = %v, want rotatable", err)
	}
	_, err = prov.SearchPage(context.Background(), "key", provider.PageRequest{Term: " "})
	var perr *provider.ProviderError
	if !errors.As(err, &perr) || perr.Code != provider.CodeInvalidRequest {
		t.Fatalf("blank term error = %v, want INVALID_REQUEST", err)
	}
}

func TestSearchPageTransportErrorIsSystemic(t *testing.T) {
	prov := New(newTestClient(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: lookup www.omdbapi.com: no such host")
	}))

	_, err := prov.SearchPage(context.Background(), "key", provider.PageRequest{Term: "x", Page: 1})
	if err == nil {
		t.Fatal("SearchPage() error = nil")
	}
	if provider.Classify(err) != provider.FailureSystemic {
		t.Fatalf("transport error classified as %v", provider.Classify(err))
	}
}

func TestDetailByID(t *testing.T) {
	var gotQuery string
	prov := New(newTestClient(func(req *http.Request) (*http.Response, error) {
		gotQuery = req.URL.RawQuery
		return jsonResponse(200, `{
			"Title": "Interstellar",
			"Year": "2014",
			"Runtime": "169 min",
			"Genre": "Adventure, Drama, Sci-Fi",
			"Director": "Christopher Nolan",
			"Actors": "Matthew McConaughey, Anne Hathaway, Jessica Chastain",
			"Plot": "A team of explorers travel through a wormhole in space.",
			"Poster": "https://img.example/interstellar.jpg",
			"imdbRating": "8.7",
			"imdbID": "tt0816692",
			"Type": "movie",
			"Response": "True"
		}`), nil
	}))

	item, err := prov.Detail(context.Background(), "key", provider.DetailRequest{ID: "tt0816692", Title: "ignored"})
	if err != nil {
		t.Fatalf("Detail() error = %v", err)
	}
	if !strings.Contains(gotQuery, "i=tt0816692") || strings.Contains(gotQuery, "t=") {
		t.Fatalf("detail query = %q, want lookup by id only", gotQuery)
	}

	want := &content.Item{
		ID:        "tt0816692",
		Kind:      content.KindMovie,
		Title:     "Interstellar",
		Year:      "2014",
		Rating:    "8.7",
		Synopsis:  "A team of explorers travel through a wormhole in space.",
		PosterURL: "https://img.example/interstellar.jpg",
		Genres:    []string{"Adventure", "Drama", "Sci-Fi"},
		Director:  "Christopher Nolan",
		Cast:      []string{"Matthew McConaughey", "Anne Hathaway", "Jessica Chastain"},
		Runtime:   "169 min",
	}
	if diff := cmp.Diff(want, item); diff != "" {
		t.Fatalf("Detail() mismatch (-want +got):\n%s", diff)
	}
}

func TestDetailByTitleFillsPlaceholders(t *testing.T) {
	var gotQuery string
	prov := New(newTestClient(func(req *http.Request) (*http.Response, error) {
		gotQuery = req.URL.RawQuery
		return jsonResponse(200, `{
			"Title": "Dark",
			"Year": "2017–2020",
			"Runtime": "N/A",
			"Genre": "Crime, Drama, Mystery",
			"Director": "N/A",
			"Actors": "Louis Hofmann",
			"Plot": "N/A",
			"Poster": "N/A",
			"imdbRating": "N/A",
			"imdbID": "tt5753856",
			"Type": "series",
			"Response": "True"
		}`), nil
	}))

	item, err := prov.Detail(context.Background(), "key", provider.DetailRequest{Title: "Dark", Kind: content.KindSeries})
	if err != nil {
		t.Fatalf("Detail() error = %v", err)
	}
	if !strings.Contains(gotQuery, "t=Dark") || !strings.Contains(gotQuery, "type=series") || !strings.Contains(gotQuery, "plot=full") {
		t.Fatalf("detail query = %q, want title lookup", gotQuery)
	}
	if item.Kind != content.KindSeries || item.Year != "2017" {
		t.Fatalf("Kind/Year = %q/%q", item.Kind, item.Year)
	}
	if item.PosterURL != content.PlaceholderPoster {
		t.Fatalf("PosterURL = %q, want placeholder", item.PosterURL)
	}
	if item.Rating != content.Unrated || item.Director != content.PlaceholderDirector || item.Synopsis != content.PlaceholderSynopsis {
		t.Fatalf("placeholders not applied: %+v", item)
	}
}

func TestDetailNotFound(t *testing.T) {
	prov := New(newTestClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"Response":"False","Error":"Incorrect IMDb ID."}`), nil
	}))

	_, err := prov.Detail(context.Background(), "key", provider.DetailRequest{ID: "tt0"})
	if err == nil {
		t.Fatal("Detail() error = nil")
	}
	if _, err := prov.Detail(context.Background(), "key", provider.DetailRequest{}); err == nil {
		t.Fatal("Detail() without id or title should fail")
	}
}

func TestDetailEpisodeMapsToSeries(t *testing.T) {
	prov := New(newTestClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, `{
			"Title": "Pilot",
			"Year": "2008",
			"imdbRating": "9.0",
			"imdbID": "tt0959621",
			"seriesID": "tt0903747",
			"Season": "1",
			"Episode": "1",
			"Type": "episode",
			"Poster": "https://img.example/pilot.jpg",
			"Response": "True"
		}`), nil
	}))

	item, err := prov.Detail(context.Background(), "key", provider.DetailRequest{ID: "tt0959621"})
	if err != nil {
		t.Fatalf("Detail() error = %v", err)
	}
	if item.ID != "tt0903747" || item.Kind != content.KindSeries {
		t.Fatalf("episode mapped to %s/%s, want series tt0903747", item.ID, item.Kind)
	}
}

func TestDetailRejectsSeasonListing(t *testing.T) {
	prov := New(newTestClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"Title":"Breaking Bad","Season":"1","Episodes":[{"Title":"Pilot","Episode":"1"}],"Response":"True"}`), nil
	}))

	_, err := prov.Detail(context.Background(), "key", provider.DetailRequest{ID: "tt0903747"})
	var perr *provider.ProviderError
	if !errors.As(err, &perr) || perr.Code != provider.CodeNotFound {
		t.Fatalf("Detail() error = %v, want NOT_FOUND", err)
	}
}
