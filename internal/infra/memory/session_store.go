package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"live-session-engine/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Every document is cloned on the way in and out so callers never share state with the store.
type SessionStore struct {
	mu        sync.RWMutex
	sessions  map[string]*domain.Session
	codes     map[string]string
	responses map[string][]domain.Response
	activity  map[string]map[string]time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:  make(map[string]*domain.Session),
		codes:     make(map[string]string),
		responses: make(map[string][]domain.Response),
		activity:  make(map[string]map[string]time.Time),
	}
}

func (s *SessionStore) Create(_ context.Context, sess *domain.Session) error {
	code := domain.NormalizeCode(sess.Code)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[code]; taken {
		return domain.ErrDuplicateCode
	}
	s.sessions[sess.ID] = sess.Clone()
	s.codes[code] = sess.ID
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

func (s *SessionStore) GetByCode(ctx context.Context, code string) (*domain.Session, error) {
	s.mu.RLock()
	id, ok := s.codes[domain.NormalizeCode(code)]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.Get(ctx, id)
}

func (s *SessionStore) Update(_ context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	draft := sess.Clone()
	if err := fn(draft); err != nil {
		return nil, err
	}
	s.sessions[id] = draft
	return draft.Clone(), nil
}

func (s *SessionStore) AppendResponse(_ context.Context, sessionID string, r domain.Response, check func(*domain.Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if check != nil {
		if err := check(sess.Clone()); err != nil {
			return err
		}
	}
	s.responses[sessionID] = append(s.responses[sessionID], r)
	return nil
}

func (s *SessionStore) Responses(_ context.Context, sessionID string) ([]domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, domain.ErrSessionNotFound
	}
	return append([]domain.Response(nil), s.responses[sessionID]...), nil
}

func (s *SessionStore) Touch(_ context.Context, sessionID, participantID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	marks, ok := s.activity[sessionID]
	if !ok {
		marks = make(map[string]time.Time)
		s.activity[sessionID] = marks
	}
	if at.After(marks[participantID]) {
		marks[participantID] = at
	}
	return nil
}

func (s *SessionStore) Activity(_ context.Context, sessionID string) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time, len(s.activity[sessionID]))
	for id, at := range s.activity[sessionID] {
		out[id] = at
	}
	return out, nil
}

func (s *SessionStore) ListLive(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id, sess := range s.sessions {
		if !sess.Ended() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
