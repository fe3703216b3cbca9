package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

type entry struct {
	session  *domain.ConversationSession
	lastSeen time.Time
}

// Store keeps conversation windows in process memory. Sessions are lost on
// restart.
type Store struct {
	mu       sync.Mutex
	maxTurns int
	sessions map[string]*entry
	now      func() time.Time
}

func New(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = domain.DefaultMaxSessionTurns
	}
	return &Store{
		maxTurns: maxTurns,
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

func (s *Store) Snapshot(_ context.Context, sessionID string) ([]domain.ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return []domain.ConversationTurn{}, nil
	}
	e.lastSeen = s.now()
	return e.session.Snapshot(), nil
}

func (s *Store) AppendExchange(_ context.Context, sessionID, question, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		e = &entry{session: domain.NewConversationSession(s.maxTurns)}
		s.sessions[sessionID] = e
	}
	e.session.Append(question, answer)
	e.lastSeen = s.now()
	return nil
}

func (s *Store) Reset(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *Store) PurgeIdle(_ context.Context, idle time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	purged := 0
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			purged++
		}
	}
	return purged, nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
