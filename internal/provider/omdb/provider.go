package omdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/marquee/internal/provider"
	"github.com/Digital-Shane/omdb"
)

const providerName = "omdb"

// Provider implements provider.Backend for OMDb.
type Provider struct {
	httpClient *http.Client
}

// New creates a new OMDb backend. A nil client gets a default with a
// conservative timeout.
func New(httpClient *http.Client) *Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Provider{httpClient: httpClient}
}

// Factory adapts New to the backend registry.
func Factory(opts provider.BackendOptions) (provider.Backend, error) {
	return New(opts.HTTPClient), nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Description returns a human readable description of the provider.
func (p *Provider) Description() string {
	return "Open Movie Database (OMDb) search and detail lookups"
}

// client builds an OMDb client for one credential node. The library keeps
// no state beyond the key and the transport.
func (p *Provider) client(apiKey string) *omdb.Client {
	return omdb.NewClient(strings.TrimSpace(apiKey), p.httpClient)
}

// SearchPage runs a paged title search.
func (p *Provider) SearchPage(ctx context.Context, apiKey string, request provider.PageRequest) (*provider.Page, error) {
	if strings.TrimSpace(request.Term) == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "search requires a term",
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page := max(request.Page, 1)

	resp, err := p.client(apiKey).SearchByText(omdb.QueryData{
		Title:      request.Term,
		Year:       request.Year,
		SearchType: searchType(request.Kind),
		Page:       strconv.Itoa(page),
	})
	if err != nil {
		return nil, p.mapError(err)
	}
	return searchToPage(page, resp), nil
}

// Detail looks a record up by IMDb id, falling back to an exact title match.
func (p *Provider) Detail(ctx context.Context, apiKey string, request provider.DetailRequest) (*content.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result any
	var err error
	switch {
	case request.ID != "":
		result, err = p.client(apiKey).SearchByImdbID(omdb.QueryData{ImdbID: request.ID})
	case strings.TrimSpace(request.Title) != "":
		result, err = p.client(apiKey).SearchByTitle(omdb.QueryData{
			Title:      request.Title,
			Year:       request.Year,
			SearchType: searchType(request.Kind),
			Plot:       "full",
		})
	default:
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeInvalidRequest,
			Message:  "detail lookup requires a title or an IMDb ID",
		}
	}
	if err != nil {
		return nil, p.mapError(err)
	}

	item, ok := resultToItem(result)
	if !ok {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeNotFound,
			Message:  fmt.Sprintf("no movie or series record for %q", request.ID+request.Title),
		}
	}
	return &item, nil
}

func (p *Provider) mapStatus(status int, msg string) error {
	switch {
	case status == http.StatusUnauthorized:
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeAuthFailed,
			Message:  "OMDb authentication failed: " + msg,
		}
	case status == http.StatusTooManyRequests:
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeRateLimited,
			Message:    msg,
			Retry:      true,
			RetryAfter: 5,
		}
	case status >= http.StatusInternalServerError:
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeUnavailable,
			Message:    "OMDb unavailable: " + msg,
			Retry:      true,
			RetryAfter: 30,
		}
	default:
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeUnknown,
			Message:  msg,
		}
	}
}

func (p *Provider) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// Transport failures stay unwrapped so callers can see net.Error.
		return err
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	// The client reports non-200 responses as "http Status = <code>".
	if rest, ok := strings.CutPrefix(lower, "http status = "); ok {
		if status, convErr := strconv.Atoi(strings.TrimSpace(rest)); convErr == nil {
			return p.mapStatus(status, msg)
		}
	}

	switch {
	case strings.Contains(lower, "invalid api key"), strings.Contains(lower, "missing omdb api key"), strings.Contains(lower, "no api key"):
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeAuthFailed,
			Message:  "OMDb authentication failed: " + msg,
			Retry:    false,
		}
	case strings.Contains(lower, "not found"), strings.Contains(lower, "incorrect imdb id"):
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeNotFound,
			Message:  msg,
			Retry:    false,
		}
	case strings.Contains(lower, "limit reached"), strings.Contains(lower, "too many requests"):
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeRateLimited,
			Message:    msg,
			Retry:      true,
			RetryAfter: 5,
		}
	default:
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeUnknown,
			Message:  msg,
			Retry:    false,
		}
	}
}

func searchType(kind content.Kind) string {
	switch kind {
	case content.KindMovie:
		return "movie"
	case content.KindSeries:
		return "series"
	default:
		return ""
	}
}
