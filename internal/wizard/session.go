package wizard

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/veloclub/ridebot/internal/ride"
)

// Step is a position in the wizard's input sequence.
type Step int

const (
	StepTitle Step = iota
	StepCategory
	StepDate
	StepMeetingPoint
	StepRoute
	StepDistance
	StepDuration
	StepSpeed
	StepInfo
	StepConfirm
)

// Session is the ephemeral per-(user, chat) state of one wizard run. Sessions
// live only in process memory; nothing is persisted before Confirm succeeds.
type Session struct {
	UserID   int64
	ChatID   int64
	ThreadID int

	Step  Step
	Draft ride.Draft

	// IsUpdate and RideID are set when the session edits an existing ride.
	IsUpdate bool
	RideID   uint

	ExpiresAt time.Time
}

type sessionKey struct {
	userID int64
	chatID int64
}

// SessionStore holds active wizard sessions keyed by (user, chat). At most one
// session exists per key; Put silently supersedes any prior one. Expired
// sessions are dropped lazily on access and periodically by SweepExpired.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[sessionKey]*Session
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewSessionStore creates a session store with the given inactivity window.
func NewSessionStore(ttl time.Duration, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SessionStore{
		sessions: make(map[sessionKey]*Session),
		ttl:      ttl,
		logger:   logger.With("component", "wizard_sessions"),
		now:      time.Now,
	}
}

// Get returns the active session for the key, or nil. An expired session is
// discarded and reported as absent.
func (s *SessionStore) Get(userID, chatID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey{userID: userID, chatID: chatID}
	session, ok := s.sessions[key]
	if !ok {
		return nil
	}
	if s.now().After(session.ExpiresAt) {
		delete(s.sessions, key)
		s.logger.Debug("Discarded expired wizard session", "user_id", userID, "chat_id", chatID)
		return nil
	}
	return session
}

// Put stores the session and refreshes its expiry, superseding any existing
// session for the same (user, chat).
func (s *SessionStore) Put(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.ExpiresAt = s.now().Add(s.ttl)
	s.sessions[sessionKey{userID: session.UserID, chatID: session.ChatID}] = session
}

// Delete removes the session for the key, reporting whether one existed.
func (s *SessionStore) Delete(userID, chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey{userID: userID, chatID: chatID}
	_, ok := s.sessions[key]
	delete(s.sessions, key)
	return ok
}

// SweepExpired drops every expired session and returns how many were removed.
// Wired as a scheduled task so abandoned sessions do not linger until the next
// access.
func (s *SessionStore) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, key)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("Swept expired wizard sessions", "count", removed)
	}
	return removed
}

// Len returns the number of stored sessions, expired or not.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
