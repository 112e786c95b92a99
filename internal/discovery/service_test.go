package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Digital-Shane/marquee/internal/cache"
	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/marquee/internal/fallback"
	"github.com/Digital-Shane/marquee/internal/provider"
	"github.com/google/go-cmp/cmp"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBackend struct {
	search func(apiKey string, request provider.PageRequest) (*provider.Page, error)
	detail func(apiKey string, request provider.DetailRequest) (*content.Item, error)

	searches atomic.Int32
	details  atomic.Int32

	mu   sync.Mutex
	keys []string
}

func (f *fakeBackend) Name() string        { return "fake" }
func (f *fakeBackend) Description() string { return "test backend" }

func (f *fakeBackend) SearchPage(ctx context.Context, apiKey string, request provider.PageRequest) (*provider.Page, error) {
	f.searches.Add(1)
	f.mu.Lock()
	f.keys = append(f.keys, apiKey)
	f.mu.Unlock()
	return f.search(apiKey, request)
}

func (f *fakeBackend) Detail(ctx context.Context, apiKey string, request provider.DetailRequest) (*content.Item, error) {
	f.details.Add(1)
	if f.detail == nil {
		return &content.Item{ID: request.ID, Title: request.Title, Year: request.Year, Rating: "7.0"}, nil
	}
	return f.detail(apiKey, request)
}

func (f *fakeBackend) usedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, key := range f.keys {
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	slices.Sort(out)
	return out
}

type fakeGenerator struct {
	items []content.Item
	err   error
	calls atomic.Int32
}

func (g *fakeGenerator) Generate(ctx context.Context, request fallback.Request) ([]content.Item, error) {
	g.calls.Add(1)
	if g.err != nil {
		return nil, g.err
	}
	return content.CloneItems(g.items), nil
}

func (g *fakeGenerator) Similar(ctx context.Context, seed content.Item) ([]content.Item, error) {
	return g.Generate(ctx, fallback.Request{Query: seed.Title})
}

func generated(titles ...string) []content.Item {
	items := make([]content.Item, len(titles))
	for idx, title := range titles {
		items[idx] = content.Item{
			ID:        fallback.SyntheticID(title, ""),
			Title:     title,
			PosterURL: content.PlaceholderPoster,
		}.Normalize()
	}
	return items
}

func candidate(id string) provider.Candidate {
	return provider.Candidate{ID: id, Title: "Title " + id, Year: "2001", Kind: content.KindMovie, PosterURL: "https://img.example/" + id + ".jpg"}
}

func authError() error {
	return &provider.ProviderError{Provider: "fake", Code: provider.CodeAuthFailed, Message: "Invalid API key!"}
}

type fixture struct {
	backend   *fakeBackend
	generator *fakeGenerator
	client    *provider.Client
	cache     *cache.Cache
	service   *Service
}

func newFixture(t *testing.T, backend *fakeBackend, nodes []string, opts Options) *fixture {
	t.Helper()
	client, err := provider.NewClient(backend, provider.ClientOptions{
		Nodes:   nodes,
		Timeout: 50 * time.Millisecond,
		Logger:  quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	store := cache.New(cache.Options{Logger: quietLogger()})
	gen := &fakeGenerator{items: generated("Generated A", "Generated B")}
	opts.Logger = quietLogger()
	return &fixture{
		backend:   backend,
		generator: gen,
		client:    client,
		cache:     store,
		service:   New(client, gen, store, opts),
	}
}

// eerieBackend serves 24 raw candidates over two pages with three ids
// repeated on page two, and fails detail lookups for two ids.
func eerieBackend() *fakeBackend {
	return &fakeBackend{
		search: func(apiKey string, request provider.PageRequest) (*provider.Page, error) {
			if request.Term != "horror" {
				return &provider.Page{Number: request.Page}, nil
			}
			var ids []int
			switch request.Page {
			case 1:
				ids = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
			case 2:
				ids = []int{13, 1, 14, 15, 2, 16, 17, 18, 3, 19, 20, 21}
			}
			page := &provider.Page{Number: request.Page, TotalResults: 24}
			for _, id := range ids {
				page.Candidates = append(page.Candidates, candidate(fmt.Sprintf("tt%02d", id)))
			}
			return page, nil
		},
		detail: func(apiKey string, request provider.DetailRequest) (*content.Item, error) {
			if request.ID == "tt05" || request.ID == "tt17" {
				return nil, &provider.ProviderError{Code: provider.CodeNotFound, Message: "Incorrect IMDb ID."}
			}
			var n int
			_, _ = fmt.Sscanf(request.ID, "tt%d", &n)
			return &content.Item{
				ID:     request.ID,
				Title:  request.Title,
				Year:   fmt.Sprintf("%d", 1990+n),
				Rating: fmt.Sprintf("%.1f", float64(n%5)+5),
			}, nil
		},
	}
}

func TestSearchEerieScenario(t *testing.T) {
	t.Parallel()

	f := newFixture(t, eerieBackend(), []string{"k1", "k2"}, Options{})

	first := f.service.Search(context.Background(), content.Query{Text: "Eerie"})
	if first.Provenance != content.ProvenancePrimary || first.Cached {
		t.Fatalf("first search provenance = %q cached = %v", first.Provenance, first.Cached)
	}
	if len(first.Items) != 19 {
		t.Fatalf("len(items) = %d, want 19", len(first.Items))
	}
	if first.Query.Term != "horror" {
		t.Fatalf("Term = %q, want mood resolved to horror", first.Query.Term)
	}

	ids := map[string]bool{}
	for _, item := range first.Items {
		if ids[item.ID] {
			t.Fatalf("duplicate id %s", item.ID)
		}
		ids[item.ID] = true
		if !strings.HasPrefix(item.PosterURL, "https://img.example/") {
			t.Fatalf("item %s poster = %q, want candidate art", item.ID, item.PosterURL)
		}
	}
	if ids["tt05"] || ids["tt17"] {
		t.Fatal("items that failed enrichment were returned")
	}
	sorted := slices.IsSortedFunc(first.Items, func(a, b content.Item) int {
		switch sa, sb := Score(a), Score(b); {
		case sa > sb:
			return -1
		case sa < sb:
			return 1
		}
		return 0
	})
	if !sorted {
		t.Fatal("items are not ranked by score")
	}

	var stored cachedResult
	key := cache.Key{Backend: "fake", Query: "horror", Node: 0, Schema: cache.SchemaVersion}.String()
	if !f.cache.Get(key, &stored) || len(stored.Items) != 19 {
		t.Fatalf("cache entry %s missing or wrong size", key)
	}

	searches, details := f.backend.searches.Load(), f.backend.details.Load()
	second := f.service.Search(context.Background(), content.Query{Text: "eerie"})
	if !second.Cached {
		t.Fatal("second search was not served from cache")
	}
	if f.backend.searches.Load() != searches || f.backend.details.Load() != details {
		t.Fatal("second search reached the provider")
	}
	if diff := cmp.Diff(first.Items, second.Items); diff != "" {
		t.Fatalf("cached items mismatch (-want +got):\n%s", diff)
	}
	if f.generator.calls.Load() != 0 {
		t.Fatal("generator called on a healthy search")
	}
}

func TestSearchRotatesOnAuthFailure(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		search: func(apiKey string, request provider.PageRequest) (*provider.Page, error) {
			if apiKey == "bad" {
				return nil, authError()
			}
			return &provider.Page{Candidates: []provider.Candidate{candidate(fmt.Sprintf("p%d", request.Page))}}, nil
		},
	}
	f := newFixture(t, backend, []string{"bad", "good"}, Options{})

	result := f.service.Search(context.Background(), content.Query{Text: "heist"})
	if result.Provenance != content.ProvenancePrimary || len(result.Items) != 2 {
		t.Fatalf("result = %+v, want two primary items", result)
	}
	if f.client.Node() != 1 {
		t.Fatalf("Node() = %d, want rotation to persist", f.client.Node())
	}

	searches := backend.searches.Load()
	again := f.service.Search(context.Background(), content.Query{Text: "heist"})
	if !again.Cached || backend.searches.Load() != searches {
		t.Fatal("result was not cached under the serving node")
	}
}

func TestConcurrentSearchesRotateOnce(t *testing.T) {
	t.Parallel()

	// Both searches must have sent their first attempt to the bad node
	// before either one sees the failure.
	var arrived atomic.Int32
	ready := make(chan struct{})
	backend := &fakeBackend{
		search: func(apiKey string, request provider.PageRequest) (*provider.Page, error) {
			if apiKey == "bad" {
				if arrived.Add(1) == 2 {
					close(ready)
				}
				select {
				case <-ready:
				case <-time.After(time.Second):
				}
				return nil, authError()
			}
			return &provider.Page{Candidates: []provider.Candidate{candidate(request.Term)}}, nil
		},
	}
	client, err := provider.NewClient(backend, provider.ClientOptions{
		Nodes:   []string{"bad", "good"},
		Timeout: 2 * time.Second,
		Logger:  quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	svc := New(client, &fakeGenerator{items: generated("Generated")}, nil, Options{Pages: 1, Logger: quietLogger()})

	terms := []string{"heist", "noir"}
	results := make([]Result, len(terms))
	var wg sync.WaitGroup
	for idx, term := range terms {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[idx] = svc.Search(context.Background(), content.Query{Text: term})
		}()
	}
	wg.Wait()

	for idx, result := range results {
		if result.Provenance != content.ProvenancePrimary || len(result.Items) != 1 {
			t.Errorf("search %q = %+v, want one primary item", terms[idx], result)
		}
	}
	if client.Node() != 1 {
		t.Fatalf("Node() = %d after both searches, want the healthy node 1", client.Node())
	}
}

func TestSearchKeepsKindsApartForSharedIDs(t *testing.T) {
	t.Parallel()

	shared := func(kind content.Kind) provider.Candidate {
		return provider.Candidate{ID: "550", Title: "Title 550", Kind: kind, PosterURL: "https://img.example/550.jpg"}
	}
	backend := &fakeBackend{
		search: func(_ string, request provider.PageRequest) (*provider.Page, error) {
			switch {
			case strings.Contains(request.Term, "fight"):
				return &provider.Page{Candidates: []provider.Candidate{shared(content.KindMovie)}}, nil
			case strings.Contains(request.Term, "mixed"):
				return &provider.Page{Candidates: []provider.Candidate{
					shared(content.KindMovie), shared(content.KindSeries), shared(content.KindMovie),
				}}, nil
			default:
				return &provider.Page{Candidates: []provider.Candidate{shared(content.KindSeries)}}, nil
			}
		},
		detail: func(_ string, request provider.DetailRequest) (*content.Item, error) {
			if request.Kind == content.KindSeries {
				return &content.Item{ID: request.ID, Kind: content.KindSeries, Title: "Some Show", Rating: "7.5"}, nil
			}
			return &content.Item{ID: request.ID, Kind: content.KindMovie, Title: "Fight Club", Rating: "8.8"}, nil
		},
	}
	f := newFixture(t, backend, []string{"a"}, Options{Pages: 1})

	movies := f.service.Search(context.Background(), content.Query{Text: "fight", Kind: content.KindMovie})
	if len(movies.Items) != 1 || movies.Items[0].Title != "Fight Club" {
		t.Fatalf("movie search = %+v, want Fight Club", movies.Items)
	}
	series := f.service.Search(context.Background(), content.Query{Text: "show", Kind: content.KindSeries})
	if len(series.Items) != 1 || series.Items[0].Title != "Some Show" || series.Items[0].Kind != content.KindSeries {
		t.Fatalf("series search = %+v, want Some Show", series.Items)
	}

	mixed := f.service.Search(context.Background(), content.Query{Text: "mixed"})
	var got []string
	for _, item := range mixed.Items {
		got = append(got, string(item.Kind)+":"+item.ID+":"+item.Title)
	}
	if diff := cmp.Diff([]string{"movie:550:Fight Club", "series:550:Some Show"}, got); diff != "" {
		t.Fatalf("mixed search mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchGenerationsAreScoped(t *testing.T) {
	t.Parallel()

	f := newFixture(t, eerieBackend(), []string{"a"}, Options{})
	alice := WithScope(context.Background(), "alice")
	bob := WithScope(context.Background(), "bob")

	first := f.service.Search(alice, content.Query{Text: "eerie"})
	other := f.service.Similar(bob, content.Item{Title: "Heat"})
	if !f.service.IsCurrentIn("alice", first.Generation) {
		t.Fatal("another scope superseded alice's search")
	}
	if !f.service.IsCurrentIn("bob", other.Generation) {
		t.Fatal("bob's latest call is not current")
	}
	if f.service.IsCurrentIn("bob", first.Generation) {
		t.Fatal("alice's generation reported current for bob")
	}

	again := f.service.Search(alice, content.Query{Text: "eerie"})
	if f.service.IsCurrentIn("alice", first.Generation) || !f.service.IsCurrentIn("alice", again.Generation) {
		t.Fatal("alice's newer search did not supersede her first one")
	}
}

func TestSearchAttemptsBoundedByNodes(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		nodes        []string
		retries      int
		wantAttempts int
	}{
		"default retries once":         {nodes: []string{"a", "b", "c"}, wantAttempts: 2},
		"retries capped at node count": {nodes: []string{"a", "b", "c"}, retries: 10, wantAttempts: 3},
		"single node never rotates":    {nodes: []string{"a"}, retries: 3, wantAttempts: 1},
		"rotation disabled":            {nodes: []string{"a", "b"}, retries: -1, wantAttempts: 1},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			backend := &fakeBackend{
				search: func(string, provider.PageRequest) (*provider.Page, error) {
					return nil, authError()
				},
			}
			f := newFixture(t, backend, tc.nodes, Options{RotationRetries: tc.retries})

			result := f.service.Search(context.Background(), content.Query{Text: "anything"})
			if result.Provenance != content.ProvenanceFallback {
				t.Fatalf("Provenance = %q, want fallback", result.Provenance)
			}
			if got := int(backend.searches.Load()); got != tc.wantAttempts*defaultPages {
				t.Fatalf("page calls = %d, want %d", got, tc.wantAttempts*defaultPages)
			}
			if got := len(backend.usedKeys()); got != tc.wantAttempts {
				t.Fatalf("distinct nodes = %d, want %d", got, tc.wantAttempts)
			}
			if f.generator.calls.Load() != 1 {
				t.Fatalf("generator calls = %d, want 1", f.generator.calls.Load())
			}
		})
	}
}

func TestSearchSystemicFailureSkipsRotation(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		search: func(string, provider.PageRequest) (*provider.Page, error) {
			return nil, &provider.ProviderError{Code: provider.CodeUnavailable, Message: "service unavailable"}
		},
	}
	f := newFixture(t, backend, []string{"a", "b"}, Options{})

	result := f.service.Search(context.Background(), content.Query{Text: "noir"})
	if result.Provenance != content.ProvenanceFallback {
		t.Fatalf("Provenance = %q, want fallback", result.Provenance)
	}
	if diff := cmp.Diff(generated("Generated A", "Generated B"), result.Items); diff != "" {
		t.Fatalf("fallback items mismatch (-want +got):\n%s", diff)
	}
	if f.client.Node() != 0 {
		t.Fatal("systemic failure rotated the node")
	}
	if backend.searches.Load() != defaultPages {
		t.Fatalf("page calls = %d, want one attempt", backend.searches.Load())
	}
}

func TestSearchFallbackFailureIsEmpty(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		search: func(string, provider.PageRequest) (*provider.Page, error) {
			return &provider.Page{}, nil
		},
	}
	f := newFixture(t, backend, []string{"a"}, Options{})
	f.generator.err = errors.New("quota exhausted")

	result := f.service.Search(context.Background(), content.Query{Text: "void"})
	if len(result.Items) != 0 || result.Provenance != content.ProvenanceFallback {
		t.Fatalf("result = %+v, want empty fallback", result)
	}
}

func TestSearchHungProviderIsBounded(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	backend := &fakeBackend{
		search: func(string, provider.PageRequest) (*provider.Page, error) {
			<-release
			return &provider.Page{}, nil
		},
	}
	f := newFixture(t, backend, []string{"a", "b"}, Options{})

	start := time.Now()
	result := f.service.Search(context.Background(), content.Query{Text: "slow"})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Search took %v with hung provider", elapsed)
	}
	if result.Provenance != content.ProvenanceFallback {
		t.Fatalf("Provenance = %q, want fallback", result.Provenance)
	}
}

func TestSearchRetriesDefaultQueryOnce(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		search: func(_ string, request provider.PageRequest) (*provider.Page, error) {
			prefix := "x"
			if request.Term == content.DefaultTerm {
				prefix = "d"
			}
			return &provider.Page{Candidates: []provider.Candidate{candidate(fmt.Sprintf("%s%d", prefix, request.Page))}}, nil
		},
		detail: func(_ string, request provider.DetailRequest) (*content.Item, error) {
			if strings.HasPrefix(request.ID, "x") {
				return nil, errors.New("Error getting data.")
			}
			return &content.Item{ID: request.ID, Title: request.Title, Rating: "6.0"}, nil
		},
	}
	f := newFixture(t, backend, []string{"a"}, Options{})

	result := f.service.Search(context.Background(), content.Query{Text: "obscure", Kind: content.KindMovie})
	if result.Query.Term != content.DefaultTerm || result.Query.Kind != content.KindMovie {
		t.Fatalf("Query = %+v, want default term with kind kept", result.Query)
	}
	if len(result.Items) != 2 || result.Provenance != content.ProvenancePrimary {
		t.Fatalf("result = %+v, want default query items", result)
	}
}

func TestSearchDefaultQueryIsNotRetried(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{
		search: func(_ string, request provider.PageRequest) (*provider.Page, error) {
			return &provider.Page{Candidates: []provider.Candidate{candidate("z")}}, nil
		},
		detail: func(string, provider.DetailRequest) (*content.Item, error) {
			return nil, errors.New("Error getting data.")
		},
	}
	f := newFixture(t, backend, []string{"a"}, Options{Pages: 1})

	result := f.service.Search(context.Background(), content.Query{})
	if len(result.Items) != 0 || result.Provenance != content.ProvenancePrimary {
		t.Fatalf("result = %+v, want empty primary", result)
	}
	if backend.searches.Load() != 1 {
		t.Fatalf("page calls = %d, want 1", backend.searches.Load())
	}
}

func TestSearchArtFilter(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		keepArtless bool
		want        []string
	}{
		"artless dropped": {want: []string{"art"}},
		"artless kept":    {keepArtless: true, want: []string{"art", "bare"}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			backend := &fakeBackend{
				search: func(string, provider.PageRequest) (*provider.Page, error) {
					bare := candidate("bare")
					bare.PosterURL = "N/A"
					return &provider.Page{Candidates: []provider.Candidate{candidate("art"), bare}}, nil
				},
			}
			f := newFixture(t, backend, []string{"a"}, Options{Pages: 1, KeepArtless: tc.keepArtless})

			result := f.service.Search(context.Background(), content.Query{Text: "posters"})
			var got []string
			for _, item := range result.Items {
				got = append(got, item.ID)
				if item.PosterURL == "" {
					t.Fatalf("item %s has no poster", item.ID)
				}
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSearchGenerations(t *testing.T) {
	t.Parallel()

	f := newFixture(t, eerieBackend(), []string{"a"}, Options{})

	first := f.service.Search(context.Background(), content.Query{Text: "eerie"})
	if !f.service.IsCurrent(first.Generation) {
		t.Fatal("latest search is not current")
	}
	second := f.service.Search(context.Background(), content.Query{Text: "eerie"})
	if second.Generation <= first.Generation {
		t.Fatalf("generations not increasing: %d then %d", first.Generation, second.Generation)
	}
	if f.service.IsCurrent(first.Generation) {
		t.Fatal("superseded search still reported current")
	}
}

func TestSearchWithoutClientUsesGenerator(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{items: generated("Only")}
	svc := New(nil, gen, nil, Options{Logger: quietLogger()})

	result := svc.Search(context.Background(), content.Query{Text: "x"})
	if result.Provenance != content.ProvenanceFallback || len(result.Items) != 1 {
		t.Fatalf("result = %+v", result)
	}
}

func TestSimilarCachesRecommendations(t *testing.T) {
	t.Parallel()

	f := newFixture(t, eerieBackend(), []string{"a"}, Options{})
	seed := content.Item{ID: "tt01", Kind: content.KindMovie, Title: "Heat"}

	first := f.service.Similar(context.Background(), seed)
	second := f.service.Similar(context.Background(), seed)
	if first.Provenance != content.ProvenanceFallback || len(first.Items) != 2 {
		t.Fatalf("Similar() = %+v", first)
	}
	if !second.Cached || f.generator.calls.Load() != 1 {
		t.Fatalf("second Similar cached = %v, generator calls = %d", second.Cached, f.generator.calls.Load())
	}
}
