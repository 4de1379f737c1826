// Package unread keeps per-(user, conversation) pending-message counters.
// Counters are atomics behind a short map lock, so increment and reset on
// the same key serialize without a global lock spanning unrelated users.
package unread

import (
	"sync"
	"sync/atomic"
)

type Store struct {
	mu    sync.RWMutex
	users map[string]map[string]*atomic.Int64 // user id -> conversation id -> count
}

func New() *Store {
	return &Store{users: make(map[string]map[string]*atomic.Int64)}
}

func (s *Store) counter(userID, conversationID string) *atomic.Int64 {
	s.mu.RLock()
	c := s.users[userID][conversationID]
	s.mu.RUnlock()
	if c != nil {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users[userID] == nil {
		s.users[userID] = make(map[string]*atomic.Int64)
	}
	if c = s.users[userID][conversationID]; c == nil {
		c = new(atomic.Int64)
		s.users[userID][conversationID] = c
	}
	return c
}

// Increment bumps the counter and returns the new value.
func (s *Store) Increment(userID, conversationID string) int64 {
	return s.counter(userID, conversationID).Add(1)
}

// Reset zeroes the counter. Resetting a key with no prior entry creates the
// zero entry, so repeated resets are idempotent.
func (s *Store) Reset(userID, conversationID string) {
	s.counter(userID, conversationID).Store(0)
}

// Count returns the current value for one key.
func (s *Store) Count(userID, conversationID string) int64 {
	s.mu.RLock()
	c := s.users[userID][conversationID]
	s.mu.RUnlock()
	if c == nil {
		return 0
	}
	return c.Load()
}

// Snapshot returns every tracked conversation count for a user.
func (s *Store) Snapshot(userID string) map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.users[userID]))
	for conversationID, c := range s.users[userID] {
		out[conversationID] = c.Load()
	}
	return out
}
