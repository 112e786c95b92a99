package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/marquee/internal/stream"
)

var (
	// ErrSessionClosed is returned by every operation on a closed session.
	ErrSessionClosed = errors.New("playback session closed")
	// ErrUnknownServer is returned when a server id is not in the registry.
	ErrUnknownServer = stream.ErrUnknownServer
)

// State is the lifecycle position of a session.
type State int

const (
	StateInit State = iota
	StatePlaying
	// StateReselect is held only while a replacement server is chosen.
	StateReselect
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StatePlaying:
		return "playing"
	case StateReselect:
		return "reselect"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ManagerOptions configure a Manager.
type ManagerOptions struct {
	Registry *stream.Registry
	// Store defaults to an in-memory store.
	Store  ResumeStore
	Logger *slog.Logger
}

// Manager opens playback sessions and answers resume queries.
type Manager struct {
	registry *stream.Registry
	store    ResumeStore
	logger   *slog.Logger
}

// NewManager creates a Manager.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Registry == nil {
		opts.Registry = stream.Default()
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		registry: opts.Registry,
		store:    opts.Store,
		logger:   opts.Logger.With(slog.String("component", "playback")),
	}
}

// Registry returns the server registry sessions play from.
func (m *Manager) Registry() *stream.Registry {
	return m.registry
}

// ResumeState returns the last persisted position for contentID of the
// given kind. KindAll looks for a series first, then a movie.
func (m *Manager) ResumeState(kind content.Kind, contentID string) (ResumeState, bool) {
	if kind != content.KindAll {
		return m.store.Load(kind, contentID)
	}
	for _, k := range []content.Kind{content.KindSeries, content.KindMovie} {
		if state, ok := m.store.Load(k, contentID); ok {
			return state, true
		}
	}
	return ResumeState{}, false
}

// Open starts a session for item, resuming the stored position when one
// exists. A stored server that is no longer registered is replaced by the
// best available one.
func (m *Manager) Open(item content.Item) (*Session, error) {
	if item.ID == "" {
		return nil, errors.New("content item has no id")
	}

	s := &Session{
		manager: m,
		item:    item.Clone(),
		season:  1,
		episode: 1,
		broken:  make(map[string]bool),
		state:   StateInit,
	}
	if s.item.Kind != content.KindSeries {
		s.item.Kind = content.KindMovie
	}

	server := m.registry.Best(nil)
	if resume, ok := m.store.Load(s.item.Kind, s.item.ID); ok {
		s.season = max(resume.Season, 1)
		s.episode = max(resume.Episode, 1)
		if stored, ok := m.registry.Get(resume.ServerID); ok {
			server = stored
		}
		m.logger.Debug("resuming playback",
			slog.String("content_id", item.ID),
			slog.Int("season", s.season),
			slog.Int("episode", s.episode),
			slog.String("server", server.ID))
	}
	s.server = server
	s.state = StatePlaying
	s.persist()
	return s, nil
}

// Session tracks one title being played. It is safe for concurrent use.
type Session struct {
	manager *Manager

	mu      sync.Mutex
	item    content.Item
	season  int
	episode int
	server  stream.Server
	broken  map[string]bool
	state   State
}

// Snapshot is a point in time copy of a session.
type Snapshot struct {
	Item     content.Item  `json:"item"`
	Season   int           `json:"season"`
	Episode  int           `json:"episode"`
	Server   stream.Server `json:"server"`
	Broken   []string      `json:"broken"`
	State    string        `json:"state"`
	EmbedURL string        `json:"embed_url"`
}

// ReportBroken marks a server as failing; an empty id means the active
// server. When the active server is broken the best remaining one takes
// over. Once every server is broken the set is cleared.
func (s *Session) ReportBroken(serverID string) (stream.Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return stream.Server{}, ErrSessionClosed
	}

	if serverID == "" {
		serverID = s.server.ID
	}
	if _, ok := s.manager.registry.Get(serverID); !ok {
		return stream.Server{}, fmt.Errorf("%w: %q", ErrUnknownServer, serverID)
	}

	s.broken[serverID] = true
	activeBroken := s.broken[s.server.ID]
	if len(s.broken) >= s.manager.registry.Len() {
		s.manager.logger.Info("every server reported broken, clearing",
			slog.String("content_id", s.item.ID))
		clear(s.broken)
	}

	if activeBroken {
		s.state = StateReselect
		previous := s.server.ID
		s.server = s.manager.registry.Best(s.broken)
		s.state = StatePlaying
		s.manager.logger.Info("switched streaming server",
			slog.String("content_id", s.item.ID),
			slog.String("from", previous),
			slog.String("to", s.server.ID))
	}
	s.persist()
	return s.server, nil
}

// SelectServer makes serverID the active server. An explicit choice takes
// the server out of the broken set.
func (s *Session) SelectServer(serverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}

	server, ok := s.manager.registry.Get(serverID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownServer, serverID)
	}
	delete(s.broken, server.ID)
	s.server = server
	s.persist()
	return nil
}

// SetEpisode moves to season and episode, each clamped to at least 1.
func (s *Session) SetEpisode(season, episode int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	s.season = max(season, 1)
	s.episode = max(episode, 1)
	s.persist()
	return nil
}

// NextEpisode advances one episode within the current season. There is no
// upper bound; the provider does not report episode counts.
func (s *Session) NextEpisode() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	s.episode++
	s.persist()
	return nil
}

// PreviousEpisode steps back one episode, stopping at episode 1.
func (s *Session) PreviousEpisode() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	s.episode = max(s.episode-1, 1)
	s.persist()
	return nil
}

// Close ends the session after persisting its final position.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	s.persist()
	s.state = StateClosed
	return nil
}

// EmbedURL returns the URL for the current server and episode.
func (s *Session) EmbedURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server.URL(s.item, s.season, s.episode)
}

// Item returns the content being played.
func (s *Session) Item() content.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.item.Clone()
}

// Snapshot copies the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	broken := make([]string, 0, len(s.broken))
	for _, server := range s.manager.registry.List() {
		if s.broken[server.ID] {
			broken = append(broken, server.ID)
		}
	}
	return Snapshot{
		Item:     s.item.Clone(),
		Season:   s.season,
		Episode:  s.episode,
		Server:   s.server,
		Broken:   broken,
		State:    s.state.String(),
		EmbedURL: s.server.URL(s.item, s.season, s.episode),
	}
}

// persist saves the resume tuple. The caller holds s.mu.
func (s *Session) persist() {
	state := ResumeState{
		ContentID: s.item.ID,
		Kind:      s.item.Kind,
		Season:    s.season,
		Episode:   s.episode,
		ServerID:  s.server.ID,
	}
	if err := s.manager.store.Save(state); err != nil {
		s.manager.logger.Warn("failed to persist resume state",
			slog.String("content_id", s.item.ID),
			slog.Any("error", err))
	}
}
