package fallback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/avast/retry-go/v4"
)

const (
	geminiBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel     = "gemini-2.0-flash"
	defaultBatchSize = 10
)

var (
	// ErrDisabled is returned by generators with no credentials.
	ErrDisabled = errors.New("fallback generator disabled")
	// ErrMalformedOutput means the model answered with something unparseable.
	ErrMalformedOutput = errors.New("malformed generator output")
)

// Request describes what the generator should invent records for.
type Request struct {
	Query string
	Kind  content.Kind
}

// Generator produces synthetic content records. A non-nil error always
// comes with an empty result.
type Generator interface {
	Generate(ctx context.Context, request Request) ([]content.Item, error)
	Similar(ctx context.Context, seed content.Item) ([]content.Item, error)
}

// Disabled is the Generator used when no API key is configured.
type Disabled struct{}

func (Disabled) Generate(context.Context, Request) ([]content.Item, error) {
	return nil, ErrDisabled
}

func (Disabled) Similar(context.Context, content.Item) ([]content.Item, error) {
	return nil, ErrDisabled
}

// GeminiOptions configure a Gemini generator.
type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	BatchSize  int
	Attempts   uint
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// Gemini generates records through the Gemini generateContent API.
type Gemini struct {
	apiKey    string
	model     string
	baseURL   string
	httpc     *http.Client
	batchSize int
	attempts  uint
	delay     time.Duration
	logger    *slog.Logger
}

// NewGemini returns a Gemini generator, or Disabled when opts has no key.
func NewGemini(opts GeminiOptions) Generator {
	if strings.TrimSpace(opts.APIKey) == "" {
		return Disabled{}
	}
	g := &Gemini{
		apiKey:    strings.TrimSpace(opts.APIKey),
		model:     opts.Model,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		httpc:     opts.HTTPClient,
		batchSize: opts.BatchSize,
		attempts:  opts.Attempts,
		delay:     opts.RetryDelay,
		logger:    opts.Logger,
	}
	if g.model == "" {
		g.model = defaultModel
	}
	if g.baseURL == "" {
		g.baseURL = geminiBaseURL
	}
	if g.httpc == nil {
		g.httpc = &http.Client{Timeout: 30 * time.Second}
	}
	if g.batchSize <= 0 {
		g.batchSize = defaultBatchSize
	}
	if g.attempts == 0 {
		g.attempts = 3
	}
	if g.delay <= 0 {
		g.delay = 500 * time.Millisecond
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// geminiRequest is the request body for the Gemini generateContent API.
type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

// geminiResponse is the response from the Gemini generateContent API.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// Generate asks the model for a batch of titles matching the query.
func (g *Gemini) Generate(ctx context.Context, request Request) ([]content.Item, error) {
	audience := "movies and TV series"
	switch request.Kind {
	case content.KindMovie:
		audience = "movies"
	case content.KindSeries:
		audience = "TV series"
	}
	prompt := fmt.Sprintf(`You are an expert film curator. List exactly %d real %s that match the search "%s".
%s`, g.batchSize, audience, request.Query, recordFormat)

	return g.run(ctx, prompt, request.Kind)
}

// Similar asks the model for titles thematically close to seed.
func (g *Gemini) Similar(ctx context.Context, seed content.Item) ([]content.Item, error) {
	prompt := fmt.Sprintf(`You are an expert film curator. Recommend exactly %d movies or TV series strictly similar to "%s" (%s). Focus on thematic and stylistic parallels and do not include "%s" itself.
%s`, g.batchSize, seed.Title, seed.Year, seed.Title, recordFormat)

	items, err := g.run(ctx, prompt, content.KindAll)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, item := range items {
		if !strings.EqualFold(item.Title, seed.Title) {
			out = append(out, item)
		}
	}
	return out, nil
}

const recordFormat = `Respond with ONLY a JSON array, no other text. Each object must have these fields:
- "title": the exact title
- "year": the release year
- "rating": IMDb style rating out of 10, or "N/A"
- "synopsis": one or two sentences
- "genres": array of genre names
- "director": director or creator
- "cast": array of up to four lead actors
- "runtime": for example "124 min"
- "kind": either "movie" or "series"`

func (g *Gemini) run(ctx context.Context, prompt string, kind content.Kind) ([]content.Item, error) {
	text, err := g.complete(ctx, prompt)
	if err != nil {
		g.logger.Warn("generator request failed", slog.String("model", g.model), slog.Any("error", err))
		return nil, err
	}
	records, err := parseRecords(text)
	if err != nil {
		g.logger.Warn("generator output rejected", slog.String("model", g.model), slog.Any("error", err))
		return nil, err
	}
	items := toItems(records, kind, g.batchSize)
	if len(items) == 0 {
		return nil, fmt.Errorf("no usable records: %w", ErrMalformedOutput)
	}
	return items, nil
}

// complete sends one prompt and returns the first candidate text. Throttling
// and server errors are retried with backoff.
func (g *Gemini) complete(ctx context.Context, prompt string) (string, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:      0.7,
			MaxOutputTokens:  4096,
			ResponseMIMEType: "application/json",
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}

	var text string
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create gemini request: %w", err))
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := g.httpc.Do(req)
			if err != nil {
				if ctx.Err() != nil {
					return retry.Unrecoverable(ctx.Err())
				}
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return fmt.Errorf("gemini request failed: status %d", resp.StatusCode)
			}
			if resp.StatusCode >= 400 {
				detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return retry.Unrecoverable(fmt.Errorf("gemini API error %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))))
			}

			var decoded geminiResponse
			if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode gemini response: %w", err))
			}
			if decoded.Error != nil {
				return retry.Unrecoverable(fmt.Errorf("gemini API error: %s", decoded.Error.Message))
			}
			if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
				return retry.Unrecoverable(fmt.Errorf("empty response: %w", ErrMalformedOutput))
			}
			text = decoded.Candidates[0].Content.Parts[0].Text
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(g.attempts),
		retry.Delay(g.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Debug("retrying generator request", slog.Uint64("attempt", uint64(n+1)), slog.Any("error", err))
		}),
	)
	if err != nil {
		return "", err
	}
	return text, nil
}
