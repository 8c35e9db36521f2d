package domain

import (
	"sync"
	"time"
)

// Session is one authenticated client connection on this instance. The
// username never changes after the handshake.
type Session struct {
	ID          string
	Username    string
	ConnectedAt time.Time

	mu           sync.RWMutex
	lastActiveAt time.Time
}

func NewSession(id, username string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Username:     username,
		ConnectedAt:  now,
		lastActiveAt: now,
	}
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
}

func (s *Session) LastActiveAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActiveAt
}
