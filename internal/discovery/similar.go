package discovery

import (
	"context"
	"log/slog"

	"github.com/Digital-Shane/marquee/internal/content"
)

// Similar recommends titles close to seed. Recommendations only come from
// the generator, so the result is always tagged fallback.
func (s *Service) Similar(ctx context.Context, seed content.Item) Result {
	generation := s.generations.next(ScopeFrom(ctx))
	key := similarKey(seed)

	var hit cachedResult
	if s.cache.Get(key, &hit) {
		return Result{Items: hit.Items, Provenance: hit.Provenance, Cached: true, Generation: generation}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.GeneratorTimeout)
	defer cancel()

	items, err := s.generator.Similar(ctx, seed)
	if err != nil {
		s.logger.Warn("similar titles unavailable", slog.String("title", seed.Title), slog.Any("error", err))
		items = nil
	}
	result := Result{Items: items, Provenance: content.ProvenanceFallback, Generation: generation}
	if len(items) > 0 {
		s.store(key, result, s.opts.CacheTTL)
	}
	return result
}

func similarKey(seed content.Item) string {
	id := seed.ID
	if id == "" {
		id = seed.Title + "|" + seed.Year
	}
	return "similar:" + string(seed.Kind) + ":" + id
}
