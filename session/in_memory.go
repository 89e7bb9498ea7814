package session

import (
	"sync"
	"time"

	"github.com/ArnBdev/oneagent/core"
	"github.com/ArnBdev/oneagent/logging"
)

// InMemoryStore is a volatile core.SessionStore implementation keeping
// sessions in a process local map. It is safe for concurrent access. Each
// returned session is cloned to prevent external mutation of internal state.
//
// Expired entries are reported as expired on read but are only removed by
// the background sweep (or an explicit Delete), never implicitly.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
	sliding  bool
	now      func() time.Time
	logger   logging.Logger

	sweepStop chan struct{}
	sweepOnce sync.Once
}

// InMemoryOptions configures an InMemoryStore.
type InMemoryOptions struct {
	// Sliding extends expiry by the original TTL remainder policy: each
	// Touch pushes expiry forward by the session's initial TTL.
	Sliding bool
	// Clock overrides the time source (tests).
	Clock func() time.Time
	// Logger receives sweep activity. Defaults to NoOpLogger.
	Logger logging.Logger
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore(optFns ...func(o *InMemoryOptions)) *InMemoryStore {
	opts := InMemoryOptions{Clock: time.Now, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{
		sessions:  make(map[string]*core.Session),
		sliding:   opts.Sliding,
		now:       opts.Clock,
		logger:    opts.Logger,
		sweepStop: make(chan struct{}),
	}
}

// Create generates a session with a fresh random identifier, retrying on
// the astronomically unlikely collision with a live identifier.
func (s *InMemoryStore) Create(ttl time.Duration) (core.Session, error) {
	if ttl <= 0 {
		return core.Session{}, core.NewError(core.KindInvalidInput, "session.create", "non-positive ttl")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		sess := core.NewSession(s.now(), ttl)
		if _, exists := s.sessions[sess.ID]; exists {
			continue
		}
		stored := sess.Clone()
		s.sessions[sess.ID] = &stored
		return sess, nil
	}
}

// Get returns the session, a KindExpired error for entries past their TTL,
// or KindNotFound. Expired entries are left in place for the sweep.
func (s *InMemoryStore) Get(id string) (core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return core.Session{}, core.NewError(core.KindNotFound, "session.get", id)
	}
	if !sess.Active(s.now()) {
		return core.Session{}, core.NewError(core.KindExpired, "session.get", id)
	}
	return sess.Clone(), nil
}

// Touch refreshes last-access on an active session, extending expiry when
// the store uses a sliding window.
func (s *InMemoryStore) Touch(id string) (core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return core.Session{}, core.NewError(core.KindNotFound, "session.touch", id)
	}
	now := s.now()
	if !sess.Active(now) {
		return core.Session{}, core.NewError(core.KindExpired, "session.touch", id)
	}
	if s.sliding {
		ttl := sess.Expires.Sub(sess.LastAccess)
		sess.Expires = now.Add(ttl)
	}
	sess.LastAccess = now.UTC()
	return sess.Clone(), nil
}

// Delete removes the session so an immediately subsequent Get reports
// KindNotFound.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return core.NewError(core.KindNotFound, "session.delete", id)
	}
	delete(s.sessions, id)
	return nil
}

// Sweep removes every expired entry and returns how many were reclaimed.
func (s *InMemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	reclaimed := 0
	for id, sess := range s.sessions {
		if !sess.Active(now) {
			delete(s.sessions, id)
			reclaimed++
		}
	}
	return reclaimed
}

// StartSweeper launches a background goroutine reclaiming expired entries at
// the given interval until Close is called.
func (s *InMemoryStore) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.sweepStop:
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					s.logger.Debug("session sweep reclaimed entries", "count", n)
				}
			}
		}
	}()
}

// Close stops the background sweeper. Safe to call multiple times.
func (s *InMemoryStore) Close() {
	s.sweepOnce.Do(func() { close(s.sweepStop) })
}

// Len returns the number of stored sessions, expired entries included.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
