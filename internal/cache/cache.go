package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// DefaultTTL selects the cache-wide default expiration.
	DefaultTTL time.Duration = 0
	// NoExpiration keeps the entry until it is evicted or overwritten.
	NoExpiration time.Duration = -1

	defaultMaxEntries = 512
)

// Mirror is a durable byte store that backs the in-memory layer.
type Mirror interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// Options configure a Cache.
type Options struct {
	DefaultTTL time.Duration
	MaxEntries int
	Mirror     Mirror
	Logger     *slog.Logger
	// Now is used for mirror expiry checks.
	Now func() time.Time
}

// Cache is a bounded key/value store with per entry TTL and an optional
// durable mirror. Expiry is lazy: an expired entry is removed by the Get
// that observes it.
type Cache struct {
	memory     *gocache.Cache
	mirror     Mirror
	defaultTTL time.Duration
	maxEntries int
	logger     *slog.Logger
	now        func() time.Time

	// mu serializes eviction with insertion.
	mu sync.Mutex
}

// envelope is the stored form of a value in memory and in the mirror.
type envelope struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt int64           `json:"expires_at,omitempty"`
}

func (e envelope) expired(now time.Time) bool {
	return e.ExpiresAt > 0 && now.UnixNano() >= e.ExpiresAt
}

// New creates a cache. A zero cleanup interval keeps go-cache from starting
// its janitor goroutine.
func New(opts Options) *Cache {
	ttl := opts.DefaultTTL
	if ttl == 0 {
		ttl = NoExpiration
	}
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		memory:     gocache.New(gocache.NoExpiration, 0),
		mirror:     opts.Mirror,
		defaultTTL: ttl,
		maxEntries: maxEntries,
		logger:     logger,
		now:        now,
	}
}

// Get decodes the value stored under key into dest. It reports false when the
// key is absent, expired or undecodable.
func (c *Cache) Get(key string, dest any) bool {
	if raw, ok := c.memory.Get(key); ok {
		env := raw.(envelope)
		if !env.expired(c.now()) {
			return json.Unmarshal(env.Value, dest) == nil
		}
	}
	// go-cache keeps expired items until swept; drop them here.
	c.memory.Delete(key)

	env, ok := c.readMirror(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(env.Value, dest); err != nil {
		return false
	}
	c.remember(key, env)
	return true
}

// Set stores value under key. A ttl of DefaultTTL applies the cache default,
// NoExpiration stores it without expiry. Only encoding failures are returned;
// mirror failures are logged and ignored.
func (c *Cache) Set(key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value %q: %w", key, err)
	}
	if ttl == DefaultTTL {
		ttl = c.defaultTTL
	}
	env := envelope{Value: payload}
	if ttl > 0 {
		env.ExpiresAt = c.now().Add(ttl).UnixNano()
	}

	c.remember(key, env)

	if c.mirror != nil {
		data, err := json.Marshal(env)
		if err == nil {
			err = c.mirror.Put(key, data)
		}
		if err != nil {
			c.logger.Warn("cache mirror write failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return nil
}

// Delete removes key from memory and the mirror.
func (c *Cache) Delete(key string) {
	c.memory.Delete(key)
	if c.mirror != nil {
		if err := c.mirror.Delete(key); err != nil {
			c.logger.Warn("cache mirror delete failed", slog.String("key", key), slog.Any("error", err))
		}
	}
}

// Len returns the number of entries held in memory.
func (c *Cache) Len() int {
	return c.memory.ItemCount()
}

func (c *Cache) readMirror(key string) (envelope, bool) {
	if c.mirror == nil {
		return envelope{}, false
	}
	data, ok, err := c.mirror.Get(key)
	if err != nil {
		c.logger.Warn("cache mirror read failed", slog.String("key", key), slog.Any("error", err))
		return envelope{}, false
	}
	if !ok {
		return envelope{}, false
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("cache mirror entry unreadable", slog.String("key", key), slog.Any("error", err))
		return envelope{}, false
	}
	if env.expired(c.now()) {
		if err := c.mirror.Delete(key); err != nil {
			c.logger.Warn("cache mirror delete failed", slog.String("key", key), slog.Any("error", err))
		}
		return envelope{}, false
	}
	return env, true
}

// remember inserts into memory, evicting the entry closest to expiry when full.
func (c *Cache) remember(key string, env envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.memory.Get(key); !exists && c.memory.ItemCount() >= c.maxEntries {
		c.evictOne()
	}
	c.memory.Set(key, env, gocache.NoExpiration)
}

func (c *Cache) evictOne() {
	victim := ""
	soonest := int64(math.MaxInt64)
	now := c.now()
	for key, item := range c.memory.Items() {
		env, ok := item.Object.(envelope)
		if !ok || env.expired(now) {
			victim = key
			break
		}
		expiresAt := env.ExpiresAt
		if expiresAt == 0 {
			expiresAt = math.MaxInt64
		}
		if victim == "" || expiresAt < soonest {
			victim = key
			soonest = expiresAt
		}
	}
	if victim != "" {
		c.memory.Delete(victim)
	}
}
