// Package memory holds the per-user session memory used to give the
// completion API conversational context. It is process-lifetime state: it is
// lost on restart and is not shared across server instances.
package memory

import (
	"sync"

	"github.com/akinsayesokpah82-rgb/chatkin/internal/llm"
)

// AnonymousUser is the memory key used when a chat request carries no userId.
const AnonymousUser = "anonymous"

// Store keeps a bounded, ordered message list per user key. Mutations for a
// given user are serialized through that user's lock, so concurrent requests
// for the same user cannot lose updates in the read-append-truncate cycle.
type Store struct {
	mu    sync.Mutex // guards users map
	limit int
	users map[string]*userMemory
}

type userMemory struct {
	mu       sync.Mutex
	messages []llm.Message
}

func NewStore(limit int) *Store {
	return &Store{
		limit: limit,
		users: make(map[string]*userMemory),
	}
}

// Limit returns the retention cap per user.
func (s *Store) Limit() int { return s.limit }

func (s *Store) user(userID string) *userMemory {
	s.mu.Lock()
	defer s.mu.Unlock()
	um, ok := s.users[userID]
	if !ok {
		um = &userMemory{}
		s.users[userID] = um
	}
	return um
}

// Recall returns a copy of the retained messages for userID, oldest first.
func (s *Store) Recall(userID string) []llm.Message {
	um := s.user(userID)
	um.mu.Lock()
	defer um.mu.Unlock()
	cp := make([]llm.Message, len(um.messages))
	copy(cp, um.messages)
	return cp
}

// Remember appends messages for userID, dropping the oldest entries once the
// retained length exceeds the store limit.
func (s *Store) Remember(userID string, messages ...llm.Message) {
	um := s.user(userID)
	um.mu.Lock()
	defer um.mu.Unlock()
	um.messages = append(um.messages, messages...)
	if excess := len(um.messages) - s.limit; excess > 0 {
		um.messages = append(um.messages[:0:0], um.messages[excess:]...)
	}
}

// Forget clears the retained messages for userID.
func (s *Store) Forget(userID string) {
	um := s.user(userID)
	um.mu.Lock()
	defer um.mu.Unlock()
	um.messages = um.messages[:0]
}
