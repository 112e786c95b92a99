package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Digital-Shane/marquee/internal/content"
	"github.com/Digital-Shane/marquee/internal/discovery"
	"github.com/Digital-Shane/marquee/internal/playback"
	"github.com/Digital-Shane/marquee/internal/stream"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Searcher is the discovery surface the API needs.
type Searcher interface {
	Search(ctx context.Context, q content.Query) discovery.Result
	Similar(ctx context.Context, seed content.Item) discovery.Result
	IsCurrentIn(scope string, generation uint64) bool
}

// ClientHeader names the caller whose searches supersede each other. The
// "client" query parameter is accepted as well; callers that send neither
// share one scope.
const ClientHeader = "X-Marquee-Client"

var _ Searcher = (*discovery.Service)(nil)

// Server exposes search and playback over JSON.
type Server struct {
	search   Searcher
	playback *playback.Manager
	logger   *slog.Logger
	router   *mux.Router

	sessions *sessionStore
}

type settings struct {
	sessionTTL  time.Duration
	maxSessions int
}

// Option tunes a Server.
type Option func(*settings)

// WithSessionTTL closes sessions that see no request for ttl.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *settings) { s.sessionTTL = ttl }
}

// WithMaxSessions caps how many sessions may be open at once.
func WithMaxSessions(max int) Option {
	return func(s *settings) { s.maxSessions = max }
}

// New creates the API server and registers its routes.
func New(search Searcher, manager *playback.Manager, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	var cfg settings
	for _, opt := range opts {
		opt(&cfg)
	}
	logger = logger.With(slog.String("component", "api"))
	s := &Server{
		search:   search,
		playback: manager,
		logger:   logger,
		router:   mux.NewRouter(),
		sessions: newSessionStore(cfg.sessionTTL, cfg.maxSessions, logger),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router.PathPrefix("/api").Subrouter()
	r.Use(s.logRequests)

	r.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/similar", s.handleSimilar).Methods(http.MethodPost)
	r.HandleFunc("/moods", s.handleMoods).Methods(http.MethodGet)
	r.HandleFunc("/servers", s.handleServers).Methods(http.MethodGet)

	r.HandleFunc("/sessions", s.handleOpenSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", s.handleCloseSession).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}/broken", s.handleBroken).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/server", s.handleSelectServer).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/episode", s.handleSetEpisode).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/next", s.handleNext).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/previous", s.handlePrevious).Methods(http.MethodPost)

	r.HandleFunc("/resume/{contentID}", s.handleResume).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SessionCount returns the number of open sessions.
func (s *Server) SessionCount() int {
	return s.sessions.count()
}

// SearchResponse is the body of GET /api/search.
type SearchResponse struct {
	Items      []content.Item     `json:"items"`
	Provenance content.Provenance `json:"provenance"`
	Degraded   bool               `json:"degraded"`
	Cached     bool               `json:"cached"`
	Term       string             `json:"term"`
	Generation uint64             `json:"generation"`
	// Stale is set when a newer search from the same client started before
	// this one finished.
	Stale bool `json:"stale"`
}

func clientScope(r *http.Request) string {
	if scope := strings.TrimSpace(r.Header.Get(ClientHeader)); scope != "" {
		return scope
	}
	return strings.TrimSpace(r.URL.Query().Get("client"))
}

func (s *Server) searchResponse(scope string, result discovery.Result) SearchResponse {
	items := result.Items
	if items == nil {
		items = []content.Item{}
	}
	return SearchResponse{
		Items:      items,
		Provenance: result.Provenance,
		Degraded:   result.Provenance.Degraded(),
		Cached:     result.Cached,
		Term:       result.Query.Term,
		Generation: result.Generation,
		Stale:      !s.search.IsCurrentIn(scope, result.Generation),
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := content.Query{
		Text:  params.Get("q"),
		Kind:  content.ParseKind(params.Get("kind")),
		Year:  params.Get("year"),
		Genre: params.Get("genre"),
	}
	scope := clientScope(r)
	result := s.search.Search(discovery.WithScope(r.Context(), scope), query)
	writeJSON(w, http.StatusOK, s.searchResponse(scope, result))
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	var seed content.Item
	if !decode(w, r, &seed) {
		return
	}
	if strings.TrimSpace(seed.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	scope := clientScope(r)
	result := s.search.Similar(discovery.WithScope(r.Context(), scope), seed)
	writeJSON(w, http.StatusOK, s.searchResponse(scope, result))
}

func (s *Server) handleMoods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, content.FindMoods(r.URL.Query().Get("q")))
}

func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.playback.Registry().List())
}

// SessionResponse wraps a session snapshot with its handle.
type SessionResponse struct {
	ID      string            `json:"id"`
	Session playback.Snapshot `json:"session"`
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Item content.Item `json:"item"`
	}
	if !decode(w, r, &body) {
		return
	}

	session, err := s.playback.Open(body.Item)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := uuid.NewString()
	if err := s.sessions.add(id, session); err != nil {
		_ = session.Close()
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	s.logger.Info("opened playback session", slog.String("session", id), slog.String("content_id", body.Item.ID))
	writeJSON(w, http.StatusCreated, SessionResponse{ID: id, Session: session.Snapshot()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(*playback.Session) error { return nil })
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.remove(mux.Vars(r)["id"]) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type serverBody struct {
	ServerID string `json:"server_id"`
}

func (s *Server) handleBroken(w http.ResponseWriter, r *http.Request) {
	var body serverBody
	if r.ContentLength != 0 && !decode(w, r, &body) {
		return
	}
	s.withSession(w, r, func(session *playback.Session) error {
		_, err := session.ReportBroken(body.ServerID)
		return err
	})
}

func (s *Server) handleSelectServer(w http.ResponseWriter, r *http.Request) {
	var body serverBody
	if !decode(w, r, &body) {
		return
	}
	s.withSession(w, r, func(session *playback.Session) error {
		return session.SelectServer(body.ServerID)
	})
}

func (s *Server) handleSetEpisode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Season  int `json:"season"`
		Episode int `json:"episode"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.withSession(w, r, func(session *playback.Session) error {
		return session.SetEpisode(body.Season, body.Episode)
	})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, (*playback.Session).NextEpisode)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, (*playback.Session).PreviousEpisode)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	contentID := strings.TrimSpace(mux.Vars(r)["contentID"])
	state, ok := s.playback.ResumeState(content.ParseKind(r.URL.Query().Get("kind")), contentID)
	if !ok {
		writeError(w, http.StatusNotFound, "no resume state for "+strconv.Quote(contentID))
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// withSession runs op against the session named in the path and answers
// with its snapshot.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, op func(*playback.Session) error) {
	id := mux.Vars(r)["id"]
	session, ok := s.sessions.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	if err := op(session); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, stream.ErrUnknownServer):
			status = http.StatusBadRequest
		case errors.Is(err, playback.ErrSessionClosed):
			status = http.StatusGone
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{ID: id, Session: session.Snapshot()})
}

func decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)))
	})
}
