package playback

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Digital-Shane/marquee/internal/cache"
	"github.com/Digital-Shane/marquee/internal/content"
)

// ResumeState is the persisted playback position for one title. Movies
// and series keep separate id spaces, so the kind is part of the key.
type ResumeState struct {
	ContentID string       `json:"content_id"`
	Kind      content.Kind `json:"kind"`
	Season    int          `json:"season"`
	Episode   int          `json:"episode"`
	ServerID  string       `json:"server_id"`
}

// ResumeStore persists resume tuples keyed by kind and content id. Saves
// for the same key overwrite each other; the last write wins.
type ResumeStore interface {
	Load(kind content.Kind, contentID string) (ResumeState, bool)
	Save(state ResumeState) error
}

func resumeKey(kind content.Kind, contentID string) string {
	return "resume:" + string(kind) + ":" + contentID
}

// MemoryStore keeps resume tuples for the life of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]ResumeState
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]ResumeState)}
}

func (s *MemoryStore) Load(kind content.Kind, contentID string) (ResumeState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[resumeKey(kind, contentID)]
	return state, ok
}

func (s *MemoryStore) Save(state ResumeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[resumeKey(state.Kind, state.ContentID)] = state
	return nil
}

// MirrorStore writes resume tuples as JSON into a durable mirror, normally
// the bolt "resume" bucket.
type MirrorStore struct {
	mirror cache.Mirror
}

// NewMirrorStore creates a store over mirror.
func NewMirrorStore(mirror cache.Mirror) *MirrorStore {
	return &MirrorStore{mirror: mirror}
}

// Load returns the stored tuple. Unreadable entries count as absent.
func (s *MirrorStore) Load(kind content.Kind, contentID string) (ResumeState, bool) {
	data, ok, err := s.mirror.Get(resumeKey(kind, contentID))
	if err != nil || !ok {
		return ResumeState{}, false
	}
	var state ResumeState
	if err := json.Unmarshal(data, &state); err != nil || state.ContentID != contentID || state.Kind != kind {
		return ResumeState{}, false
	}
	return state, true
}

func (s *MirrorStore) Save(state ResumeState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode resume state: %w", err)
	}
	if err := s.mirror.Put(resumeKey(state.Kind, state.ContentID), data); err != nil {
		return fmt.Errorf("save resume state for %s: %w", state.ContentID, err)
	}
	return nil
}
