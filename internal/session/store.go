package session

import (
	"context"
	"sync"
	"time"

	"github.com/campusbot/campusbot/internal/log"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in a conversation.
type Turn struct {
	Role    Role
	Content string
}

// Defaults for session retention.
const (
	// DefaultMaxPairs bounds how many user/assistant pairs a session keeps;
	// older pairs are dropped first.
	DefaultMaxPairs = 50

	// DefaultTTL is how long an idle session survives before eviction.
	DefaultTTL = 30 * time.Minute

	// DefaultSweepInterval is how often the janitor scans for expired sessions.
	DefaultSweepInterval = 5 * time.Minute
)

// Config holds session store settings. Zero values use the defaults above.
type Config struct {
	MaxPairs int
	TTL      time.Duration
}

type entry struct {
	turns    []Turn
	lastSeen time.Time
}

// Store is the process-wide session table.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry

	maxPairs int
	ttl      time.Duration
	logger   log.Logger
}

// New creates a session store.
func New(cfg Config, logger log.Logger) *Store {
	if cfg.MaxPairs <= 0 {
		cfg.MaxPairs = DefaultMaxPairs
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		sessions: make(map[string]*entry),
		maxPairs: cfg.MaxPairs,
		ttl:      cfg.TTL,
		logger:   logger,
	}
}

// History returns a copy of the session's turns in order, empty for an
// unseen session. Reading refreshes the session's idle timer.
func (s *Store) History(id string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil
	}
	e.lastSeen = time.Now()

	turns := make([]Turn, len(e.turns))
	copy(turns, e.turns)
	return turns
}

// Append records a user turn and its assistant reply as one atomic pair.
// The session is created on first use. When the pair cap is exceeded, the
// oldest pairs are dropped.
func (s *Store) Append(id, userContent, assistantContent string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		e = &entry{}
		s.sessions[id] = e
	}

	e.turns = append(e.turns,
		Turn{Role: RoleUser, Content: userContent},
		Turn{Role: RoleAssistant, Content: assistantContent},
	)
	if limit := s.maxPairs * 2; len(e.turns) > limit {
		e.turns = e.turns[len(e.turns)-limit:]
	}
	e.lastSeen = time.Now()
}

// Reset clears the session's history. Resetting an unseen session is a no-op.
func (s *Store) Reset(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports how many sessions are currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// StartJanitor sweeps expired sessions every interval until ctx is done.
// interval <= 0 uses DefaultSweepInterval. Call once at startup.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.evictExpired(time.Now()); n > 0 {
					s.logger.Debug("evicted idle sessions", "count", n)
				}
			}
		}
	}()
}

// evictExpired removes sessions idle longer than the TTL and returns how
// many were dropped.
func (s *Store) evictExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.sessions {
		if now.Sub(e.lastSeen) > s.ttl {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}
