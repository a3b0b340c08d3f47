// internal/store/memory.go
//
// In-memory registry of game sessions.
// Each session owns one game.Engine; nothing here is persisted.
//
// Characteristics:
//   - Stores *Session values keyed by ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Idle sessions are swept on a cron schedule (see janitor.go).
//   - Errors are returned for missing session IDs on Get().

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Chious/fm-hangman-game/internal/cue"
	"github.com/Chious/fm-hangman-game/internal/game"
)

var ErrNotFound = errors.New("session not found")

// Session is one player's game: an engine plus the hub its cues fan out through.
type Session struct {
	ID        string
	PlayerID  string
	Daily     bool
	Engine    *game.Engine
	Cues      *cue.Hub
	CreatedAt time.Time

	mu         sync.Mutex
	lastSeen   time.Time
	closers    map[int]func()
	nextCloser int
}

// NewSession wraps e under a fresh random ID.
func NewSession(playerID string, daily bool, e *game.Engine, hub *cue.Hub) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		PlayerID:  playerID,
		Daily:     daily,
		Engine:    e,
		Cues:      hub,
		CreatedAt: now,
		lastSeen:  now,
	}
}

// OnClose registers fn to run when the session is dropped from the store.
// Call the returned func to unregister fn before that happens.
func (s *Session) OnClose(fn func()) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closers == nil {
		s.closers = make(map[int]func())
	}
	id := s.nextCloser
	s.nextCloser++
	s.closers[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.closers, id)
		s.mu.Unlock()
	}
}

// LastSeen reports the last time the session was touched.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(t time.Time) {
	s.mu.Lock()
	s.lastSeen = t
	s.mu.Unlock()
}

// close stops the engine's timers and runs the registered closers.
func (s *Session) close() {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()
	for _, fn := range closers {
		fn()
	}
	if s.Engine != nil {
		s.Engine.Reset()
	}
}

// Store defines the registry interface for game sessions.
type Store interface {
	// Save adds or replaces a session.
	Save(ctx context.Context, s *Session) error

	// Get retrieves a session by ID and marks it as seen.
	// Returns ErrNotFound if the session is unknown.
	Get(ctx context.Context, id string) (*Session, error)

	// Touch marks a live session as seen without returning it.
	// Returns ErrNotFound if the session is unknown.
	Touch(ctx context.Context, id string) error

	// Delete drops a session and closes it.
	Delete(ctx context.Context, id string) error

	// Sweep closes and drops sessions not seen since before cutoff.
	Sweep(cutoff time.Time) int

	// Len reports the number of live sessions.
	Len() int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex        // guards sessions map
	sessions map[string]*Session // keyed by Session.ID
	now      func() time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*Session), now: time.Now}
}

// Save adds or updates the session in the map.
func (m *memory) Save(ctx context.Context, s *Session) error {
	s.touch(m.now())
	m.mu.Lock()
	old := m.sessions[s.ID]
	m.sessions[s.ID] = s
	m.mu.Unlock()
	if old != nil && old != s {
		old.close()
	}
	return nil
}

// Get looks up a session by ID.
func (m *memory) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(m.now())
	return s, nil
}

func (m *memory) Touch(ctx context.Context, id string) error {
	_, err := m.Get(ctx, id)
	return err
}

func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.close()
	return nil
}

func (m *memory) Sweep(cutoff time.Time) int {
	var stale []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range stale {
		s.close()
	}
	return len(stale)
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
