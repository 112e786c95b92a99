package discovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/Digital-Shane/marquee/internal/cache"
	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/marquee/internal/fallback"
	"github.com/Digital-Shane/marquee/internal/provider"
	"github.com/sourcegraph/conc/pool"
)

const (
	defaultPages            = 2
	maxPages                = 3
	defaultRotationRetries  = 1
	defaultConcurrency      = 8
	defaultCacheTTL         = time.Hour
	defaultFallbackTTL      = 5 * time.Minute
	defaultGeneratorTimeout = 30 * time.Second

	// maxDefaultRetries bounds the empty-result retry with the default query.
	maxDefaultRetries = 1
)

// Options tune a Service. Zero values select the defaults.
type Options struct {
	// Pages fetched per search, capped at 3.
	Pages int
	// RotationRetries is how many times a rotatable failure is retried on
	// the next node. Negative disables rotation.
	RotationRetries int
	// KeepArtless keeps candidates that have no usable poster.
	KeepArtless bool
	// MaxCandidates caps candidates sent to enrichment. Zero is unbounded.
	MaxCandidates    int
	Concurrency      int
	CacheTTL         time.Duration
	FallbackTTL      time.Duration
	GeneratorTimeout time.Duration
	Logger           *slog.Logger
}

// Result is the outcome of a search. It always carries a provenance, even
// when Items is empty.
type Result struct {
	Items      []content.Item     `json:"items"`
	Provenance content.Provenance `json:"provenance"`
	Cached     bool               `json:"cached"`
	Query      content.Normalized `json:"-"`
	// Generation identifies the Search call that produced the result.
	Generation uint64 `json:"generation"`
}

// cachedResult is what a search stores in the cache.
type cachedResult struct {
	Items      []content.Item     `json:"items"`
	Provenance content.Provenance `json:"provenance"`
}

// Service resolves queries into ranked content. It never returns an error;
// every failure degrades to the generator or an empty result.
type Service struct {
	client    *provider.Client
	generator fallback.Generator
	cache     *cache.Cache
	opts      Options
	logger    *slog.Logger

	generations *generations
}

// New creates a Service. A nil generator disables the fallback path and a
// nil cache selects a private in-memory one.
func New(client *provider.Client, generator fallback.Generator, store *cache.Cache, opts Options) *Service {
	if generator == nil {
		generator = fallback.Disabled{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if store == nil {
		store = cache.New(cache.Options{Logger: opts.Logger})
	}
	if opts.Pages <= 0 {
		opts.Pages = defaultPages
	}
	if opts.Pages > maxPages {
		opts.Pages = maxPages
	}
	switch {
	case opts.RotationRetries == 0:
		opts.RotationRetries = defaultRotationRetries
	case opts.RotationRetries < 0:
		opts.RotationRetries = 0
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.FallbackTTL <= 0 {
		opts.FallbackTTL = defaultFallbackTTL
	}
	if opts.GeneratorTimeout <= 0 {
		opts.GeneratorTimeout = defaultGeneratorTimeout
	}

	return &Service{
		client:    client,
		generator: generator,
		cache:     store,
		opts:      opts,
		logger:    opts.Logger.With(slog.String("component", "discovery")),

		generations: newGenerations(maxScopes),
	}
}

// IsCurrent reports whether no Search or Similar call in the shared
// empty scope has started since the one that returned generation.
func (s *Service) IsCurrent(generation uint64) bool {
	return s.IsCurrentIn("", generation)
}

// IsCurrentIn is IsCurrent for the scope set with WithScope.
func (s *Service) IsCurrentIn(scope string, generation uint64) bool {
	return s.generations.current(scope, generation)
}

// Search resolves q. When every candidate fails enrichment the default
// query is tried once before giving up.
func (s *Service) Search(ctx context.Context, q content.Query) Result {
	generation := s.generations.next(ScopeFrom(ctx))

	query := q
	for retries := 0; ; retries++ {
		result := s.search(ctx, query.Normalize())
		result.Generation = generation

		if len(result.Items) > 0 || result.Provenance != content.ProvenancePrimary ||
			result.Query.IsDefault() || retries >= maxDefaultRetries {
			return result
		}
		s.logger.Info("search ranked nothing, retrying with default query",
			slog.String("term", result.Query.Term))
		query = q.DefaultQuery()
	}
}

func (s *Service) search(ctx context.Context, n content.Normalized) Result {
	if s.client == nil {
		return s.runFallback(ctx, n, nil)
	}

	key := s.key(n, s.client.Node())
	var hit cachedResult
	if s.cache.Get(key, &hit) {
		s.logger.Debug("search served from cache", slog.String("key", key))
		return Result{Items: hit.Items, Provenance: hit.Provenance, Cached: true, Query: n}
	}

	candidates, node, failure := s.collect(ctx, n)
	if len(candidates) == 0 {
		s.logger.Info("primary provider produced no candidates",
			slog.String("term", n.Term),
			slog.String("failure", failure.String()))
		return s.runFallback(ctx, n, &node)
	}

	items := rank(dedupe(s.enrich(ctx, node, candidates)))
	result := Result{Items: items, Provenance: content.ProvenancePrimary, Query: n}
	if len(items) > 0 {
		s.store(s.key(n, node), result, s.opts.CacheTTL)
	}
	s.logger.Debug("search complete",
		slog.String("term", n.Term),
		slog.Int("candidates", len(candidates)),
		slog.Int("items", len(items)),
		slog.Int("node", node))
	return result
}

// collect fetches candidate pages, rotating nodes on rotatable failures.
// It returns the candidates, the node that served them and the failure
// class that ended the last attempt.
func (s *Service) collect(ctx context.Context, n content.Normalized) ([]provider.Candidate, int, provider.Failure) {
	attempts := 1 + s.opts.RotationRetries
	if count := s.client.NodeCount(); attempts > count {
		attempts = count
	}

	node := s.client.Node()
	failure := provider.FailureNone
	for attempt := 0; attempt < attempts; attempt++ {
		pages, errs := s.fetchPages(ctx, node, n)
		if candidates := s.merge(pages); len(candidates) > 0 {
			return candidates, node, provider.FailureNone
		}

		failure = worst(errs)
		if failure != provider.FailureRotatable {
			break
		}
		if attempt+1 < attempts {
			node = s.client.RotateFrom(node)
		}
	}
	return nil, node, failure
}

// fetchPages fetches every page concurrently and waits for all of them.
// Results are indexed by page so merge order does not depend on timing.
func (s *Service) fetchPages(ctx context.Context, node int, n content.Normalized) ([]*provider.Page, []error) {
	pages := make([]*provider.Page, s.opts.Pages)
	errs := make([]error, s.opts.Pages)

	p := pool.New().WithMaxGoroutines(min(s.opts.Concurrency, s.opts.Pages))
	for idx := range pages {
		p.Go(func() {
			pages[idx], errs[idx] = s.client.FetchPage(ctx, node, provider.PageRequest{
				Term: n.Term,
				Kind: n.Kind,
				Year: n.Year,
				Page: idx + 1,
			})
		})
	}
	p.Wait()
	return pages, errs
}

// merge flattens pages in order, keeping the first occurrence of each id.
func (s *Service) merge(pages []*provider.Page) []provider.Candidate {
	var out []provider.Candidate
	seen := make(map[string]struct{})
	for _, page := range pages {
		if page == nil {
			continue
		}
		for _, candidate := range page.Candidates {
			if !s.opts.KeepArtless && !content.HasArt(candidate.PosterURL) {
				continue
			}
			key := candidateKey(candidate)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, candidate)
			if s.opts.MaxCandidates > 0 && len(out) == s.opts.MaxCandidates {
				return out
			}
		}
	}
	return out
}

// enrich fetches details for every candidate. Failed lookups are dropped.
func (s *Service) enrich(ctx context.Context, node int, candidates []provider.Candidate) []content.Item {
	details := make([]content.Item, len(candidates))
	ok := make([]bool, len(candidates))

	p := pool.New().WithMaxGoroutines(s.opts.Concurrency)
	for idx, candidate := range candidates {
		p.Go(func() {
			item, err := s.client.FetchDetail(ctx, node, provider.DetailFor(candidate))
			if err != nil {
				return
			}
			details[idx] = mergeCandidate(item, candidate)
			ok[idx] = true
		})
	}
	p.Wait()

	items := make([]content.Item, 0, len(candidates))
	for idx, item := range details {
		if ok[idx] {
			items = append(items, item)
		}
	}
	if dropped := len(candidates) - len(items); dropped > 0 {
		s.logger.Debug("dropped candidates that failed enrichment", slog.Int("dropped", dropped))
	}
	return items
}

// mergeCandidate fills gaps in a detail record from its search hit.
func mergeCandidate(item content.Item, candidate provider.Candidate) content.Item {
	if item.ID == "" {
		item.ID = candidate.ID
	}
	if item.PosterURL == content.PlaceholderPoster {
		item.PosterURL = content.PosterOrPlaceholder(candidate.PosterURL)
	}
	if item.Kind != content.KindSeries && candidate.Kind == content.KindSeries {
		item.Kind = content.KindSeries
	}
	return item
}

func (s *Service) runFallback(ctx context.Context, n content.Normalized, node *int) Result {
	ctx, cancel := context.WithTimeout(ctx, s.opts.GeneratorTimeout)
	defer cancel()

	items, err := s.generator.Generate(ctx, fallback.Request{Query: n.Term, Kind: n.Kind})
	if err != nil {
		s.logger.Warn("fallback generator failed", slog.String("term", n.Term), slog.Any("error", err))
		items = nil
	}
	result := Result{Items: items, Provenance: content.ProvenanceFallback, Query: n}
	if len(items) > 0 && node != nil {
		s.store(s.key(n, *node), result, s.opts.FallbackTTL)
	}
	return result
}

func (s *Service) store(key string, result Result, ttl time.Duration) {
	err := s.cache.Set(key, cachedResult{Items: result.Items, Provenance: result.Provenance}, ttl)
	if err != nil {
		s.logger.Warn("failed to cache search result", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Service) key(n content.Normalized, node int) string {
	return cache.Key{
		Backend: s.client.Backend(),
		Query:   n.Term,
		Kind:    string(n.Kind),
		Year:    n.Year,
		Genre:   n.Genre,
		Node:    node,
	}.String()
}

// worst picks the failure class that decides recovery for a failed attempt.
// A single systemic page error outweighs any number of rotatable ones.
func worst(errs []error) provider.Failure {
	failure := provider.FailureNone
	for _, err := range errs {
		switch provider.Classify(err) {
		case provider.FailureSystemic:
			return provider.FailureSystemic
		case provider.FailureRotatable:
			failure = provider.FailureRotatable
		}
	}
	return failure
}
