package tvdb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/marquee/internal/provider"
	tvdbapi "github.com/dashotv/tvdb"
	"github.com/dashotv/tvdb/openapi/models/operations"
)

const providerName = "tvdb"

// TVDBClient captures the dashotv client methods used by this backend.
type TVDBClient interface {
	GetSearchResults(request operations.GetSearchResultsRequest) (*tvdbapi.GetSearchResultsResponse, error)
	GetSeriesExtended(id float64, meta *operations.GetSeriesExtendedQueryParamMeta, short *bool) (*tvdbapi.GetSeriesExtendedResponse, error)
	GetMovieExtended(id float64, meta *operations.QueryParamMeta, short *bool) (*tvdbapi.GetMovieExtendedResponse, error)
}

// Provider implements provider.Backend for TheTVDB. Each credential node
// logs in once and keeps its bearer token until an auth failure.
type Provider struct {
	login func(apiKey string) (TVDBClient, error)

	mu      sync.Mutex
	clients map[string]TVDBClient
}

// New creates a TVDB backend.
func New() *Provider {
	return &Provider{
		login: func(apiKey string) (TVDBClient, error) {
			return tvdbapi.Login(apiKey)
		},
		clients: make(map[string]TVDBClient),
	}
}

// Factory adapts New to the backend registry.
func Factory(provider.BackendOptions) (provider.Backend, error) {
	return New(), nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Description returns a human readable description of the provider.
func (p *Provider) Description() string {
	return "TheTVDB (TVDB) search and detail lookups"
}

func (p *Provider) client(apiKey string) (TVDBClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeAuthFailed,
			Message:  "TVDB authentication failed: no api key",
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[apiKey]; ok {
		return c, nil
	}
	c, err := p.login(apiKey)
	if err != nil {
		return nil, p.mapError(err)
	}
	p.clients[apiKey] = c
	return c, nil
}

// forget drops the cached login for apiKey after an auth failure.
func (p *Provider) forget(apiKey string, err error) error {
	var perr *provider.ProviderError
	if errors.As(err, &perr) && perr.Code == provider.CodeAuthFailed {
		p.mu.Lock()
		delete(p.clients, strings.TrimSpace(apiKey))
		p.mu.Unlock()
	}
	return err
}

// SearchPage runs a title search. TVDB answers a search in one page, so
// pages after the first are empty.
func (p *Provider) SearchPage(ctx context.Context, apiKey string, request provider.PageRequest) (*provider.Page, error) {
	term := strings.TrimSpace(request.Term)
	if term == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "search requires a term",
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	number := max(request.Page, 1)
	if number > 1 {
		return &provider.Page{Number: number}, nil
	}

	c, err := p.client(apiKey)
	if err != nil {
		return nil, err
	}
	resp, err := c.GetSearchResults(searchRequest(term, request.Kind, request.Year))
	if err != nil {
		return nil, p.forget(apiKey, p.mapError(err))
	}
	return searchToPage(number, resp), nil
}

// Detail fetches the extended record for a kind qualified TVDB id, or
// for the first search hit of the requested kind.
func (p *Provider) Detail(ctx context.Context, apiKey string, request provider.DetailRequest) (*content.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := p.client(apiKey)
	if err != nil {
		return nil, err
	}

	kind, id, ok := parseID(request.ID)
	if !ok {
		query := strings.TrimSpace(request.ID)
		if query == "" {
			query = strings.TrimSpace(request.Title)
		}
		if query == "" {
			return nil, &provider.ProviderError{
				Provider: providerName,
				Code:     provider.CodeInvalidRequest,
				Message:  "detail lookup requires a title or an id",
			}
		}
		kind, id, err = p.lookup(c, query, request)
		if err != nil {
			return nil, p.forget(apiKey, err)
		}
	}

	var item content.Item
	switch kind {
	case content.KindSeries:
		meta := operations.GetSeriesExtendedQueryParamMetaTranslations
		resp, err := c.GetSeriesExtended(float64(id), &meta, nil)
		if err != nil {
			return nil, p.forget(apiKey, p.mapError(err))
		}
		if resp == nil || resp.Data == nil {
			return nil, notFound("series", id)
		}
		item = seriesRecord(resp).item(id)
	default:
		meta := operations.QueryParamMetaTranslations
		resp, err := c.GetMovieExtended(float64(id), &meta, nil)
		if err != nil {
			return nil, p.forget(apiKey, p.mapError(err))
		}
		if resp == nil || resp.Data == nil {
			return nil, notFound("movie", id)
		}
		item = movieRecord(resp).item(id)
	}
	return &item, nil
}

func (p *Provider) lookup(c TVDBClient, query string, request provider.DetailRequest) (content.Kind, int64, error) {
	resp, err := c.GetSearchResults(searchRequest(query, request.Kind, request.Year))
	if err != nil {
		return "", 0, p.mapError(err)
	}
	if resp != nil {
		for _, result := range resp.Data {
			hit, ok := toHit(result)
			if !ok || (request.Kind != content.KindAll && hit.kind != request.Kind) {
				continue
			}
			return hit.kind, hit.id, nil
		}
	}
	return "", 0, &provider.ProviderError{
		Provider: providerName,
		Code:     provider.CodeNotFound,
		Message:  fmt.Sprintf("no results found for %q", query),
	}
}

func searchRequest(query string, kind content.Kind, year string) operations.GetSearchResultsRequest {
	req := operations.GetSearchResultsRequest{Query: &query}
	if kind != content.KindAll {
		searchType := string(kind)
		req.Type = &searchType
	}
	if yr, err := strconv.Atoi(strings.TrimSpace(year)); err == nil {
		yf := float64(yr)
		req.Year = &yf
	}
	return req
}

// qualifiedID names a TVDB record. Movie and series ids overlap.
func qualifiedID(kind content.Kind, id int64) string {
	return string(kind) + ":" + strconv.FormatInt(id, 10)
}

func parseID(value string) (content.Kind, int64, bool) {
	prefix, number, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return "", 0, false
	}
	kind := content.Kind(prefix)
	if kind != content.KindMovie && kind != content.KindSeries {
		return "", 0, false
	}
	id, err := strconv.ParseInt(number, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, false
	}
	return kind, id, true
}

func notFound(what string, id int64) error {
	return &provider.ProviderError{
		Provider: providerName,
		Code:     provider.CodeNotFound,
		Message:  fmt.Sprintf("%s %d not found", what, id),
	}
}

func (p *Provider) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var perr *provider.ProviderError
	if errors.As(err, &perr) {
		return err
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "401"), strings.Contains(lower, "unauthorized"), strings.Contains(lower, "apikey"):
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeAuthFailed, Message: "TVDB authentication failed: " + msg}
	case strings.Contains(lower, "429"), strings.Contains(lower, "too many"):
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeRateLimited, Message: msg, Retry: true, RetryAfter: 5}
	case strings.Contains(lower, "404"), strings.Contains(lower, "not found"):
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeNotFound, Message: msg}
	case strings.Contains(lower, "503"), strings.Contains(lower, "unavailable"):
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeUnavailable, Message: msg, Retry: true, RetryAfter: 30}
	default:
		return &provider.ProviderError{Provider: providerName, Code: provider.CodeUnknown, Message: msg}
	}
}
