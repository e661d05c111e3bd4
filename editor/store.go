// ABOUTME: In-memory session store with TTL cleanup and capacity limits
// ABOUTME: Thread-safe storage for managing active editor sessions

package editor

import (
	"sync"
	"time"

	"github.com/2389-research/topoedit/history"
	"github.com/2389-research/topoedit/topo"
	"github.com/google/uuid"
)

type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxSessions int
	ttl         time.Duration
	historyOpts []history.Option
	now         func() time.Time
}

// NewStore creates a new session store. The history options apply to every
// session the store creates.
func NewStore(maxSessions int, ttl time.Duration, historyOpts ...history.Option) *Store {
	return &Store{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		ttl:         ttl,
		historyOpts: historyOpts,
		now:         time.Now,
	}
}

// Create opens a new session over doc, which may be nil for an empty canvas.
func (s *Store) Create(doc *topo.Document) (*Session, *topo.LoadReport, error) {
	sess, report, err := NewSession(uuid.New().String(), doc, s.historyOpts...)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check capacity
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		// Evict oldest session
		var oldestID string
		var oldestTime time.Time
		for id, other := range s.sessions {
			if oldestTime.IsZero() || other.LastAccess.Before(oldestTime) {
				oldestID = id
				oldestTime = other.LastAccess
			}
		}
		delete(s.sessions, oldestID)
	}

	now := s.now()
	sess.CreatedAt = now
	sess.LastAccess = now
	s.sessions[sess.ID] = sess
	return sess, report, nil
}

// Get retrieves a session by ID and updates its LastAccess time
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}

	sess.LastAccess = s.now()
	return sess, true
}

// Delete closes a session. It reports whether the session existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Len returns the number of open sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Cleanup removes sessions idle for longer than the TTL and returns how
// many were removed.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	cutoff := s.now().Add(-s.ttl)
	for id, sess := range s.sessions {
		if sess.LastAccess.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartCleanup starts a background cleanup goroutine and returns a stop function
func (s *Store) StartCleanup(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				s.Cleanup()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
