package history

import (
	"context"
	"sync"
	"time"
)

// MemoryStore provides in-memory conversation storage.
// Sessions expire after a period of inactivity; each session keeps at most
// maxTurns recent turns.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	maxTurns int
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

type session struct {
	turns     []Turn
	createdAt time.Time
	updatedAt time.Time
}

// NewMemoryStore creates a new in-memory conversation store.
func NewMemoryStore(maxTurns int, ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*session),
		maxTurns: maxTurns,
		ttl:      ttl,
		stop:     make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// NewDefaultMemoryStore creates a store with sensible defaults:
// 10 turns per session, 1 hour idle TTL.
func NewDefaultMemoryStore() *MemoryStore {
	return NewMemoryStore(10, time.Hour)
}

// Append records a completed turn.
func (s *MemoryStore) Append(_ context.Context, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[turn.SessionID]
	if !exists {
		sess = &session{createdAt: time.Now()}
		s.sessions[turn.SessionID] = sess
	}

	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	sess.turns = append(sess.turns, turn)
	sess.updatedAt = time.Now()

	// Trim old turns if exceeding max (keep recent ones)
	if len(sess.turns) > s.maxTurns {
		sess.turns = sess.turns[len(sess.turns)-s.maxTurns:]
	}
	return nil
}

// Recent returns up to limit turns for the session, most-recent-last.
func (s *MemoryStore) Recent(_ context.Context, sessionID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[sessionID]
	if !exists || limit <= 0 {
		return nil, nil
	}

	turns := sess.turns
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// ClearSession removes a conversation from memory.
func (s *MemoryStore) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Close stops the background cleanup loop.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, sess := range s.sessions {
		if now.Sub(sess.updatedAt) > s.ttl {
			delete(s.sessions, id)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
