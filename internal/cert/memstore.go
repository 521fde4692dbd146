package cert

import (
	"context"
	"sync"
)

// memoryStore backs tests and single-process dev runs with the same
// active-(user,course) uniqueness the SQL store enforces.
type memoryStore struct {
	mu         sync.Mutex
	byID       map[string]Certificate
	recipients map[string]string // userID -> display name
	courses    map[string]string // courseID -> title
}

func NewMemoryStore() *memoryStore {
	return &memoryStore{
		byID:       map[string]Certificate{},
		recipients: map[string]string{},
		courses:    map[string]string{},
	}
}

// SetDisplayStrings seeds the lookup tables used at issue time.
func (m *memoryStore) SetDisplayStrings(userID, recipient, courseID, title string) {
	m.mu.Lock()
	m.recipients[userID] = recipient
	m.courses[courseID] = title
	m.mu.Unlock()
}

func (m *memoryStore) Insert(_ context.Context, c Certificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.byID {
		if e.UserID == c.UserID && e.CourseID == c.CourseID && !e.Revoked {
			return ErrDuplicate
		}
	}
	m.byID[c.ID] = c
	return nil
}

func (m *memoryStore) GetActive(_ context.Context, userID, courseID string) (Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byID {
		if c.UserID == userID && c.CourseID == courseID && !c.Revoked {
			return c, nil
		}
	}
	return Certificate{}, ErrNotFound
}

func (m *memoryStore) GetByID(_ context.Context, id string) (Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return Certificate{}, ErrNotFound
	}
	return c, nil
}

func (m *memoryStore) GetByNumber(_ context.Context, number string) (Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byID {
		if c.Number == number {
			return c, nil
		}
	}
	return Certificate{}, ErrNotFound
}

func (m *memoryStore) Revoke(_ context.Context, id, reason string, now int64) (Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return Certificate{}, ErrNotFound
	}
	if !c.Revoked {
		c.Revoked = true
		c.RevokedAt = &now
		c.RevokeReason = reason
		m.byID[id] = c
	}
	return c, nil
}

func (m *memoryStore) DisplayStrings(_ context.Context, userID, courseID string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recipient, ok := m.recipients[userID]
	if !ok {
		recipient = userID
	}
	title, ok := m.courses[courseID]
	if !ok {
		return "", "", ErrNotFound
	}
	return recipient, title, nil
}
