package discovery

import (
	"context"
	"sync/atomic"

	csmap "github.com/mhmtszr/concurrent-swiss-map"
)

// maxScopes bounds how many callers have their latest generation tracked.
const maxScopes = 4096

type scopeKey struct{}

// WithScope tags ctx with the caller a search belongs to. A search only
// supersedes earlier searches in the same scope. Untagged contexts share
// the empty scope.
func WithScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFrom returns the scope set by WithScope.
func ScopeFrom(ctx context.Context) string {
	scope, _ := ctx.Value(scopeKey{}).(string)
	return scope
}

// generations issues process-unique generation numbers and remembers the
// newest one per scope.
type generations struct {
	counter atomic.Uint64
	latest  *csmap.CsMap[string, uint64]
	limit   int
}

func newGenerations(limit int) *generations {
	return &generations{latest: csmap.Create[string, uint64](), limit: limit}
}

func (g *generations) next(scope string) uint64 {
	generation := g.counter.Add(1)
	if !g.latest.Has(scope) && g.latest.Count() >= g.limit {
		g.latest.Clear()
	}
	g.latest.SetIf(scope, func(previous uint64, found bool) (uint64, bool) {
		return generation, !found || generation > previous
	})
	return generation
}

func (g *generations) current(scope string, generation uint64) bool {
	latest, ok := g.latest.Load(scope)
	return ok && latest == generation
}
