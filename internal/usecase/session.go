package usecase

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"finbot/internal/domain"
)

// Session is one conversation. Turns are only ever appended.
type Session struct {
	ID        string
	CreatedAt time.Time

	// turn serialises Assistant.Invoke calls on the same session.
	turn sync.Mutex

	mu    sync.RWMutex
	turns []domain.Turn
	now   func() time.Time
}

// NewSession creates an empty session with a random ID.
func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		now:       time.Now,
	}
}

// Append adds a turn stamped with the current time. Timestamps never go backwards
// within a session.
func (s *Session) Append(role domain.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(role, content)
}

func (s *Session) appendLocked(role domain.Role, content string) {
	ts := s.now()
	if n := len(s.turns); n > 0 && ts.Before(s.turns[n-1].CreatedAt) {
		ts = s.turns[n-1].CreatedAt
	}
	s.turns = append(s.turns, domain.Turn{Role: role, Content: content, CreatedAt: ts})
}

// commit appends a user question and its answer as one unit.
func (s *Session) commit(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(domain.RoleUser, question)
	s.appendLocked(domain.RoleAssistant, answer)
}

// Turns returns a copy of the full transcript.
func (s *Session) Turns() []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Turn(nil), s.turns...)
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Window returns at most the last n turns, or all of them when n <= 0. A window never
// starts with an assistant turn, so it may hold n-1 turns.
func (s *Session) Window(n int) []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
		if turns[0].Role == domain.RoleAssistant {
			turns = turns[1:]
		}
	}
	return append([]domain.Turn(nil), turns...)
}

// SessionStore keeps sessions in memory for the HTTP surface.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

func (s *SessionStore) Create() *Session {
	sess := NewSession()
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
