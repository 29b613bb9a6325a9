package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the default in-process store. Expired sessions are swept
// lazily on access rather than by a background timer.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	opts     Options
	now      func() time.Time
}

type memorySession struct {
	turns   []Turn
	touched time.Time
}

func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		opts:     opts.withDefaults(),
		now:      time.Now,
	}
}

func (s *MemoryStore) History(_ context.Context, sessionID string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	sess.touched = s.now()
	out := make([]Turn, len(sess.turns))
	copy(out, sess.turns)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, turns ...Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &memorySession{}
		s.sessions[sessionID] = sess
	}
	sess.turns = append(sess.turns, turns...)
	if len(sess.turns) > s.opts.MaxTurns {
		sess.turns = sess.turns[len(sess.turns)-s.opts.MaxTurns:]
	}
	sess.touched = s.now()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) sweepLocked() {
	cutoff := s.now().Add(-s.opts.Timeout)
	for id, sess := range s.sessions {
		if sess.touched.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
