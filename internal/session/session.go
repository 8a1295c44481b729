// Package session holds per-conversation short-term memory: an ordered,
// bounded history of turns keyed by an opaque identifier.
//
// Sessions live only in process memory. There is no persistence and no
// teardown guarantee; an unknown id reads as a fresh, empty session and
// is never an error.
package session

import (
	"sync"

	"github.com/google/uuid"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultMaxTurns keeps two user/assistant exchanges.
const DefaultMaxTurns = 4

// Turn is one (role, text) entry in a conversation.
type Turn struct {
	Role    string
	Content string
}

// Store manages bounded conversation histories.
//
// Safe for concurrent use. Histories under different ids are independent;
// the caller serializes concurrent queries within one id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
	maxTurns int
}

// NewStore creates a session store keeping at most maxTurns turns per
// session. maxTurns <= 0 falls back to DefaultMaxTurns.
func NewStore(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{
		sessions: make(map[string][]Turn),
		maxTurns: maxTurns,
	}
}

// Create generates a fresh session identifier. The session itself
// materializes on first append.
func (s *Store) Create() string {
	return uuid.NewString()
}

// History returns a copy of the session's turns, oldest first. Unknown
// ids yield an empty history.
func (s *Store) History(id string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Turn(nil), s.sessions[id]...)
}

// Append adds a turn, creating the session implicitly. When the history
// exceeds the cap the oldest turns are dropped first.
func (s *Store) Append(id, role, content string) {
	if id == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.sessions[id], Turn{Role: role, Content: content})
	if excess := len(turns) - s.maxTurns; excess > 0 {
		turns = append([]Turn(nil), turns[excess:]...)
	}
	s.sessions[id] = turns
}

// AddExchange appends a user query and its answer as one unit.
func (s *Store) AddExchange(id, query, answer string) {
	s.Append(id, RoleUser, query)
	s.Append(id, RoleAssistant, answer)
}

// Clear removes a session's history.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
