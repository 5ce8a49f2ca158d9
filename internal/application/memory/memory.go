// Package memory keeps the bounded per-session conversation window.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ntarekp/teamSynth/internal/domain/conversation"
	"github.com/Ntarekp/teamSynth/internal/infrastructure/metrics"
)

const (
	// DefaultWindow is the number of turns kept per session.
	DefaultWindow = 10
	// DefaultIdleTTL drops in-process sessions nobody has written to for this long.
	DefaultIdleTTL = 24 * time.Hour

	sweepInterval = time.Minute
)

var ErrEmptySession = errors.New("session id is required")

// Service serializes appends per session and reads the recent window.
type Service struct {
	store  conversation.Store
	window int
	logger zerolog.Logger

	locksMu sync.Mutex
	locks   map[string]*sessionLock
}

// sessionLock is dropped from the map once nobody holds or waits on it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewService creates a memory service over store with the given window size.
func NewService(store conversation.Store, window int, logger zerolog.Logger) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Service{
		store:  store,
		window: window,
		logger: logger.With().Str("service", "memory").Logger(),
		locks:  make(map[string]*sessionLock),
	}
}

// Window returns the capacity of each session.
func (s *Service) Window() int {
	return s.window
}

// Lock acquires the session mutex and returns its release func.
func (s *Service) Lock(sessionID string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.locksMu.Unlock()
	}
}

func (s *Service) heldLocks() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.locks)
}

// Recent returns the session's turns, oldest first.
func (s *Service) Recent(ctx context.Context, sessionID string) ([]conversation.Turn, error) {
	if sessionID == "" {
		return nil, ErrEmptySession
	}
	metrics.MemoryOperations.WithLabelValues("read").Inc()
	return s.store.Window(ctx, sessionID, s.window)
}

// Append adds turns and evicts the oldest beyond the window. The caller must
// hold the session lock when it needs read-modify-write atomicity.
func (s *Service) Append(ctx context.Context, sessionID string, turns ...conversation.Turn) error {
	if sessionID == "" {
		return ErrEmptySession
	}
	metrics.MemoryOperations.WithLabelValues("append").Inc()
	if err := s.store.Append(ctx, sessionID, s.window, turns...); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to append turns")
		return err
	}
	return nil
}

// InProcessStore keeps session windows in memory. Sessions idle for longer
// than the TTL are dropped, the way the Redis store lets keys expire.
type InProcessStore struct {
	mu        sync.RWMutex
	sessions  map[string]*session
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type session struct {
	turns   []conversation.Turn
	touched time.Time
}

// NewInProcessStore creates an empty in-memory store with DefaultIdleTTL.
func NewInProcessStore() *InProcessStore {
	return &InProcessStore{
		sessions: make(map[string]*session),
		idleTTL:  DefaultIdleTTL,
		now:      time.Now,
	}
}

func (s *InProcessStore) Append(_ context.Context, sessionID string, limit int, turns ...conversation.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweep(now)

	sess, ok := s.sessions[sessionID]
	if !ok || s.expired(sess, now) {
		sess = &session{}
		s.sessions[sessionID] = sess
	}
	all := append(sess.turns, turns...)
	if limit > 0 && len(all) > limit {
		trimmed := make([]conversation.Turn, limit)
		copy(trimmed, all[len(all)-limit:])
		all = trimmed
	}
	sess.turns = all
	sess.touched = now
	return nil
}

func (s *InProcessStore) Window(_ context.Context, sessionID string, limit int) ([]conversation.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok || s.expired(sess, s.now()) {
		return []conversation.Turn{}, nil
	}
	all := sess.turns
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]conversation.Turn, len(all))
	copy(out, all)
	return out, nil
}

// Len returns the number of sessions currently held.
func (s *InProcessStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *InProcessStore) expired(sess *session, now time.Time) bool {
	return s.idleTTL > 0 && now.Sub(sess.touched) > s.idleTTL
}

// sweep drops idle sessions, at most once per sweepInterval. Callers hold mu.
func (s *InProcessStore) sweep(now time.Time) {
	if s.idleTTL <= 0 || now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
		}
	}
}
