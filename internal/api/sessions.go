package api

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Digital-Shane/marquee/internal/playback"
	gocache "github.com/patrickmn/go-cache"
)

const (
	defaultSessionTTL  = 2 * time.Hour
	defaultMaxSessions = 256
)

var errTooManySessions = errors.New("too many open playback sessions")

// sessionStore holds the open playback sessions. A session that sees no
// request for ttl is closed, which persists its resume position.
type sessionStore struct {
	mu    sync.Mutex
	items *gocache.Cache
	max   int
}

func newSessionStore(ttl time.Duration, max int, logger *slog.Logger) *sessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if max <= 0 {
		max = defaultMaxSessions
	}
	items := gocache.New(ttl, min(ttl/2, time.Minute))
	items.OnEvicted(func(id string, value any) {
		session, ok := value.(*playback.Session)
		if !ok {
			return
		}
		if err := session.Close(); err == nil {
			logger.Info("closed idle playback session", slog.String("session", id))
		}
	})
	return &sessionStore{items: items, max: max}
}

func (st *sessionStore) add(id string, session *playback.Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.items.ItemCount() >= st.max {
		st.items.DeleteExpired()
		if st.items.ItemCount() >= st.max {
			return errTooManySessions
		}
	}
	st.items.SetDefault(id, session)
	return nil
}

// get returns the session and restarts its idle timer.
func (st *sessionStore) get(id string) (*playback.Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	value, ok := st.items.Get(id)
	if !ok {
		return nil, false
	}
	session := value.(*playback.Session)
	st.items.SetDefault(id, session)
	return session, true
}

// remove drops the session. The eviction hook closes it.
func (st *sessionStore) remove(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.items.Get(id); !ok {
		return false
	}
	st.items.Delete(id)
	return true
}

func (st *sessionStore) count() int {
	return st.items.ItemCount()
}
