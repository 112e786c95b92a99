package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Digital-Shane/marquee/internal/content"
	csmap "github.com/mhmtszr/concurrent-swiss-map"
)

const (
	defaultTimeout   = 8 * time.Second
	defaultMemoTTL   = 30 * time.Minute
	defaultMemoLimit = 2048
)

// ClientOptions configure a Client.
type ClientOptions struct {
	// Nodes are the credentials tried in order.
	Nodes         []string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	// MemoTTL bounds how long an enriched record is reused; MemoLimit
	// bounds how many are held.
	MemoTTL   time.Duration
	MemoLimit int
	Logger    *slog.Logger
}

// Client queries a Backend with one of several credential nodes. The node
// cursor is shared by every caller of the client; a rotation is visible to
// the very next call.
type Client struct {
	backend Backend
	nodes   []string
	timeout time.Duration
	limiter *rateLimiter
	logger  *slog.Logger

	mu     sync.Mutex
	cursor int

	// details memoizes enriched records across searches and nodes.
	details   *csmap.CsMap[string, memoEntry]
	memoTTL   time.Duration
	memoLimit int
	now       func() time.Time
}

type memoEntry struct {
	item   content.Item
	stored time.Time
}

// NewClient creates a client over backend. Blank nodes are ignored.
func NewClient(backend Backend, opts ClientOptions) (*Client, error) {
	if backend == nil {
		return nil, fmt.Errorf("nil backend: %w", ErrNotConfigured)
	}
	nodes := make([]string, 0, len(opts.Nodes))
	for _, node := range opts.Nodes {
		if node = strings.TrimSpace(node); node != "" {
			nodes = append(nodes, node)
		}
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%s has no api keys: %w", backend.Name(), ErrNotConfigured)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	memoTTL := opts.MemoTTL
	if memoTTL <= 0 {
		memoTTL = defaultMemoTTL
	}
	memoLimit := opts.MemoLimit
	if memoLimit <= 0 {
		memoLimit = defaultMemoLimit
	}

	return &Client{
		backend:   backend,
		nodes:     nodes,
		timeout:   timeout,
		limiter:   newRateLimiter(opts.RatePerSecond, opts.Burst),
		logger:    logger.With(slog.String("provider", backend.Name())),
		details:   csmap.Create[string, memoEntry](),
		memoTTL:   memoTTL,
		memoLimit: memoLimit,
		now:       time.Now,
	}, nil
}

// Backend returns the backend name.
func (c *Client) Backend() string {
	return c.backend.Name()
}

// NodeCount returns the number of credential nodes.
func (c *Client) NodeCount() int {
	return len(c.nodes)
}

// Node returns the current node index.
func (c *Client) Node() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Rotate advances to the next node, wrapping, and returns the new index.
func (c *Client) Rotate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advance()
}

// RotateFrom advances past failed only while it is still the current node
// and returns the node to use next. Callers that saw the same node fail
// concurrently move the cursor once.
func (c *Client) RotateFrom(failed int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursor != c.normalize(failed) {
		return c.cursor
	}
	return c.advance()
}

func (c *Client) advance() int {
	from := c.cursor
	c.cursor = (c.cursor + 1) % len(c.nodes)
	c.logger.Info("rotated provider node", slog.Int("from", from), slog.Int("to", c.cursor))
	return c.cursor
}

// FetchPage fetches one search page using the given node.
func (c *Client) FetchPage(ctx context.Context, node int, request PageRequest) (*Page, error) {
	key := c.nodes[c.normalize(node)]
	page, err := call(ctx, c, func(ctx context.Context) (*Page, error) {
		return c.backend.SearchPage(ctx, key, request)
	})
	if err != nil {
		c.logger.Debug("page fetch failed",
			slog.Int("node", node),
			slog.Int("page", request.Page),
			slog.String("term", request.Term),
			slog.String("class", Classify(err).String()),
			slog.Any("error", err))
		return nil, err
	}
	if page == nil {
		page = &Page{Number: request.Page}
	}
	return page, nil
}

// FetchDetail fetches the full record for a candidate using the given node.
// Successful records are memoized; a memoized record never costs a call.
func (c *Client) FetchDetail(ctx context.Context, node int, request DetailRequest) (content.Item, error) {
	memo := request.memoKey(c.backend.Name())
	if item, ok := c.recall(memo); ok {
		return item.Clone(), nil
	}

	key := c.nodes[c.normalize(node)]
	item, err := call(ctx, c, func(ctx context.Context) (*content.Item, error) {
		return c.backend.Detail(ctx, key, request)
	})
	if err != nil {
		c.logger.Debug("detail fetch failed",
			slog.Int("node", node),
			slog.String("id", request.ID),
			slog.String("title", request.Title),
			slog.Any("error", err))
		return content.Item{}, err
	}
	if item == nil {
		return content.Item{}, &ProviderError{Provider: c.backend.Name(), Code: CodeNotFound, Message: "empty detail record"}
	}

	normalized := item.Normalize()
	c.remember(memo, normalized)
	return normalized.Clone(), nil
}

// MemoSize reports how many detail records are memoized.
func (c *Client) MemoSize() int {
	return c.details.Count()
}

func (c *Client) recall(key string) (content.Item, bool) {
	entry, ok := c.details.Load(key)
	if !ok {
		return content.Item{}, false
	}
	if c.now().Sub(entry.stored) >= c.memoTTL {
		c.details.Delete(key)
		return content.Item{}, false
	}
	return entry.item, true
}

func (c *Client) remember(key string, item content.Item) {
	now := c.now()
	if !c.details.Has(key) && c.details.Count() >= c.memoLimit {
		c.pruneMemo(now)
	}
	c.details.Store(key, memoEntry{item: item, stored: now})
}

// pruneMemo drops expired records and clears the memo when it is still full.
func (c *Client) pruneMemo(now time.Time) {
	var expired []string
	c.details.Range(func(key string, entry memoEntry) bool {
		if now.Sub(entry.stored) >= c.memoTTL {
			expired = append(expired, key)
		}
		return false
	})
	for _, key := range expired {
		c.details.Delete(key)
	}
	if c.details.Count() >= c.memoLimit {
		c.logger.Debug("detail memo full", slog.Int("limit", c.memoLimit))
		c.details.Clear()
	}
}

func (c *Client) normalize(node int) int {
	if node < 0 {
		return 0
	}
	return node % len(c.nodes)
}

type outcome[T any] struct {
	value T
	err   error
}

// call runs fn under the per-call timeout. The result is abandoned when the
// deadline passes even if fn ignores its context.
func call[T any](ctx context.Context, c *Client, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.wait(ctx); err != nil {
		return zero, fmt.Errorf("%s rate limit wait: %w", c.backend.Name(), err)
	}

	done := make(chan outcome[T], 1)
	go func() {
		value, err := fn(ctx)
		done <- outcome[T]{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		return zero, fmt.Errorf("%s request aborted: %w", c.backend.Name(), ctx.Err())
	}
}
