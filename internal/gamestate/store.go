package gamestate

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"
)

// Store holds sessions and instances. Handlers receive it by injection.
type Store interface {
	GetSession(id string) (*Session, error)
	// CreateSession stores s under s.ID, replacing any previous record.
	CreateSession(s *Session) error
	UpdateSession(id string, fn func(*Session)) error
	TouchSession(id string, at time.Time) error
	DeleteSession(id string) error
	ListSessions() ([]Session, error)

	GetInstance(id string) (*Instance, error)
	// PutInstance stores inst under inst.ID, replacing any previous record.
	PutInstance(inst *Instance) error
	AssociateInstance(instanceID, sessionID string) (*Instance, error)

	// ExpireIdle deletes sessions last touched before cutoff and returns
	// their ids.
	ExpireIdle(cutoff time.Time) ([]string, error)
}

// MemoryStore is a mutex-guarded in-process Store.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	instances map[string]*Instance
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]*Session),
		instances: make(map[string]*Instance),
	}
}

func (m *MemoryStore) GetSession(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) CreateSession(s *Session) error {
	if s == nil || s.ID == "" {
		return errors.New("session id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

func (m *MemoryStore) UpdateSession(id string, fn func(*Session)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	fn(s)
	s.ID = id
	return nil
}

func (m *MemoryStore) TouchSession(id string, at time.Time) error {
	return m.UpdateSession(id, func(s *Session) {
		s.LastTouchedAt = at
	})
}

func (m *MemoryStore) DeleteSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

// ListSessions returns sessions oldest first.
func (m *MemoryStore) ListSessions() ([]Session, error) {
	m.mu.RLock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *cloneSession(s))
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) GetInstance(id string) (*Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	if !ok {
		return nil, &StateError{Kind: "instance", ID: id, Op: "read", Reason: "instance does not exist"}
	}
	cpy := *inst
	return &cpy, nil
}

func (m *MemoryStore) PutInstance(inst *Instance) error {
	if inst == nil || inst.ID == "" {
		return errors.New("instance id is required")
	}
	cpy := *inst
	m.mu.Lock()
	m.instances[inst.ID] = &cpy
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) AssociateInstance(instanceID, sessionID string) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[instanceID]
	if !ok {
		return nil, &StateError{
			Kind:   "instance",
			ID:     instanceID,
			Op:     "associate with session " + sessionID,
			Reason: "instance metadata was never requested",
		}
	}
	inst.SessionID = sessionID
	inst.UpdatedAt = time.Now().UTC()
	cpy := *inst
	return &cpy, nil
}

func (m *MemoryStore) ExpireIdle(cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []string
	for id, s := range m.sessions {
		if s.LastTouchedAt.Before(cutoff) {
			expired = append(expired, id)
			delete(m.sessions, id)
		}
	}
	sort.Strings(expired)
	return expired, nil
}

func cloneSession(s *Session) *Session {
	cpy := *s
	if s.Attributes != nil {
		cpy.Attributes = make(map[string]json.RawMessage, len(s.Attributes))
		for k, v := range s.Attributes {
			cpy.Attributes[k] = v
		}
	}
	return &cpy
}
