package stream

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/sahilm/fuzzy"
)

// ErrUnknownServer is returned when an id or name matches no server.
var ErrUnknownServer = errors.New("unknown streaming server")

// Tier ranks how reliable a server has proven to be. Higher is better.
type Tier int

const (
	TierVariable Tier = iota + 1
	TierMedium
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierVariable:
		return "variable"
	default:
		return "unknown"
	}
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "high":
		*t = TierHigh
	case "medium":
		*t = TierMedium
	case "variable":
		*t = TierVariable
	default:
		return fmt.Errorf("unknown tier %q", text)
	}
	return nil
}

// Server is an embed host. Templates use {id}, {season} and {episode}.
type Server struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Tier           Tier   `json:"tier"`
	MovieTemplate  string `json:"-"`
	SeriesTemplate string `json:"-"`
}

// URL builds the embed URL for item. Season and episode are only used for
// series and are clamped to at least 1.
func (s Server) URL(item content.Item, season, episode int) string {
	id := url.PathEscape(item.ID)
	if item.Kind != content.KindSeries {
		return strings.ReplaceAll(s.MovieTemplate, "{id}", id)
	}
	return strings.NewReplacer(
		"{id}", id,
		"{season}", strconv.Itoa(max(season, 1)),
		"{episode}", strconv.Itoa(max(episode, 1)),
	).Replace(s.SeriesTemplate)
}

// DefaultServers is the built-in server table in preference order.
var DefaultServers = []Server{
	{ID: "vidsrc-to", Name: "VidSrc.to", Tier: TierHigh,
		MovieTemplate:  "https://vidsrc.to/embed/movie/{id}",
		SeriesTemplate: "https://vidsrc.to/embed/tv/{id}/{season}/{episode}"},
	{ID: "vidsrc-me", Name: "VidSrc.me", Tier: TierHigh,
		MovieTemplate:  "https://vidsrc.me/embed/movie?tmdb={id}",
		SeriesTemplate: "https://vidsrc.me/embed/tv?tmdb={id}&sea={season}&epi={episode}"},
	{ID: "vidlink", Name: "VidLink.pro", Tier: TierHigh,
		MovieTemplate:  "https://vidlink.pro/movie/{id}",
		SeriesTemplate: "https://vidlink.pro/tv/{id}/{season}/{episode}"},
	{ID: "embed-su", Name: "Embed.su", Tier: TierMedium,
		MovieTemplate:  "https://embed.su/embed/movie/{id}",
		SeriesTemplate: "https://embed.su/embed/tv/{id}/{season}/{episode}"},
	{ID: "vidsrc-icu", Name: "VidSrc.icu", Tier: TierMedium,
		MovieTemplate:  "https://vidsrc.icu/embed/movie/{id}",
		SeriesTemplate: "https://vidsrc.icu/embed/tv/{id}/{season}/{episode}"},
	{ID: "autoembed", Name: "AutoEmbed.cc", Tier: TierMedium,
		MovieTemplate:  "https://autoembed.cc/embed/movie/{id}",
		SeriesTemplate: "https://autoembed.cc/embed/tv/{id}/{season}/{episode}"},
}

// Registry is an immutable, ordered server table.
type Registry struct {
	servers []Server
	byID    map[string]int
}

// NewRegistry builds a registry over servers. Duplicate ids are rejected.
func NewRegistry(servers []Server) (*Registry, error) {
	if len(servers) == 0 {
		return nil, errors.New("server table is empty")
	}
	r := &Registry{
		servers: make([]Server, len(servers)),
		byID:    make(map[string]int, len(servers)),
	}
	for idx, server := range servers {
		if server.ID == "" {
			return nil, fmt.Errorf("server %d has no id", idx)
		}
		if _, dup := r.byID[server.ID]; dup {
			return nil, fmt.Errorf("duplicate server id %q", server.ID)
		}
		r.servers[idx] = server
		r.byID[server.ID] = idx
	}
	return r, nil
}

// Default returns a registry over DefaultServers.
func Default() *Registry {
	r, err := NewRegistry(DefaultServers)
	if err != nil {
		panic(err)
	}
	return r
}

// List returns the servers in table order.
func (r *Registry) List() []Server {
	out := make([]Server, len(r.servers))
	copy(out, r.servers)
	return out
}

// Len returns the number of servers.
func (r *Registry) Len() int {
	return len(r.servers)
}

// Get looks a server up by exact id.
func (r *Registry) Get(id string) (Server, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return Server{}, false
	}
	return r.servers[idx], true
}

// URLFor builds the embed URL for item on the given server.
func (r *Registry) URLFor(serverID string, item content.Item, season, episode int) (string, error) {
	server, ok := r.Get(serverID)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownServer, serverID)
	}
	return server.URL(item, season, episode), nil
}

// Best picks the server to play on: the first server of the highest tier
// not in broken, else the first server not in broken, else the first server.
func (r *Registry) Best(broken map[string]bool) Server {
	best := -1
	for idx, server := range r.servers {
		if broken[server.ID] {
			continue
		}
		if best < 0 || server.Tier > r.servers[best].Tier {
			best = idx
		}
	}
	if best < 0 {
		return r.servers[0]
	}
	return r.servers[best]
}

// Resolve maps user input onto a server: exact id first, then a
// case-insensitive id or name, then the best fuzzy match.
func (r *Registry) Resolve(input string) (Server, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Server{}, fmt.Errorf("%w: empty name", ErrUnknownServer)
	}
	if server, ok := r.Get(input); ok {
		return server, nil
	}
	for _, server := range r.servers {
		if strings.EqualFold(server.ID, input) || strings.EqualFold(server.Name, input) {
			return server, nil
		}
	}

	targets := make([]string, len(r.servers))
	for idx, server := range r.servers {
		targets[idx] = strings.ToLower(server.Name + " " + server.ID)
	}
	matches := fuzzy.Find(strings.ToLower(input), targets)
	if len(matches) == 0 {
		return Server{}, fmt.Errorf("%w: %q", ErrUnknownServer, input)
	}
	return r.servers[matches[0].Index], nil
}
