package tmdb

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/marquee/internal/provider"
	"github.com/ryanbradynd05/go-tmdb"
)

const (
	providerName = "tmdb"
	imageBaseURL = "https://image.tmdb.org/t/p/w500"
)

// TMDBClient interface for testing (matches *tmdb.TMDb exactly)
type TMDBClient interface {
	SearchMovie(name string, options map[string]string) (*tmdb.MovieSearchResults, error)
	SearchTv(name string, options map[string]string) (*tmdb.TvSearchResults, error)
	GetMovieInfo(id int, options map[string]string) (*tmdb.Movie, error)
	GetTvInfo(id int, options map[string]string) (*tmdb.TV, error)
}

// Provider implements provider.Backend for TMDB. go-tmdb binds the API key
// at construction, so one client is kept per credential node.
type Provider struct {
	language  string
	newClient func(apiKey string) TMDBClient

	mu      sync.Mutex
	clients map[string]TMDBClient
}

// New creates a new TMDB backend
func New(language string) *Provider {
	if language == "" {
		language = "en-US"
	}
	return &Provider{
		language: language,
		newClient: func(apiKey string) TMDBClient {
			return tmdb.Init(tmdb.Config{
				APIKey:   apiKey,
				Proxies:  nil,
				UseProxy: false,
			})
		},
		clients: make(map[string]TMDBClient),
	}
}

// Factory adapts New to the backend registry.
func Factory(opts provider.BackendOptions) (provider.Backend, error) {
	return New(opts.Language), nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Description returns the provider description
func (p *Provider) Description() string {
	return "The Movie Database (TMDB) search and detail lookups"
}

func (p *Provider) client(apiKey string) (TMDBClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeAuthFailed,
			Message:  "TMDB authentication failed: no api key",
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[apiKey]; ok {
		return c, nil
	}
	c := p.newClient(apiKey)
	p.clients[apiKey] = c
	return c, nil
}

// mapError maps TMDB errors to provider errors
func (p *Provider) mapError(err error) error {
	if err == nil {
		return nil
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "401") || strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "invalid api key") {
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeAuthFailed,
			Message:  "TMDB authentication failed: " + err.Error(),
			Retry:    false,
		}
	}
	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeRateLimited,
			Message:    "TMDB rate limit exceeded",
			Retry:      true,
			RetryAfter: 10,
		}
	}
	if strings.Contains(errStr, "404") || strings.Contains(errStr, "could not be found") {
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeNotFound,
			Message:  "TMDB resource not found",
		}
	}
	if strings.Contains(errStr, "503") || strings.Contains(errStr, "unavailable") {
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeUnavailable,
			Message:    "TMDB service unavailable",
			Retry:      true,
			RetryAfter: 30,
		}
	}

	return &provider.ProviderError{
		Provider: providerName,
		Code:     provider.CodeUnknown,
		Message:  "TMDB error: " + err.Error(),
		Retry:    false,
	}
}

// await runs a blocking go-tmdb call, giving up when ctx is done. The
// library has no context support.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{value: v, err: err}
	}()
	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func posterURL(path string) string {
	if path == "" {
		return ""
	}
	return imageBaseURL + path
}

func yearOf(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}

func formatRating(vote float32) string {
	if vote <= 0 {
		return content.Unrated
	}
	return fmt.Sprintf("%.1f", vote)
}
