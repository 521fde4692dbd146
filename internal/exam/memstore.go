package exam

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// memoryStore is a Store for tests and single-process dev runs. It
// enforces the same (course, user, attempt_no) uniqueness and the same
// conditional finalize as the SQL store.
type memoryStore struct {
	mu       sync.Mutex
	courses  map[string]Course
	exams    map[string]Definition
	attempts map[string]Attempt
	slots    map[string]struct{} // course|user|attempt_no
}

func NewMemoryStore() Store {
	return &memoryStore{
		courses:  map[string]Course{},
		exams:    map[string]Definition{},
		attempts: map[string]Attempt{},
		slots:    map[string]struct{}{},
	}
}

func slotKey(courseID, userID string, n int) string {
	return fmt.Sprintf("%s|%s|%d", courseID, userID, n)
}

func (m *memoryStore) PutCourse(_ context.Context, c Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[c.ID] = c
	return nil
}

func (m *memoryStore) GetCourse(_ context.Context, id string) (Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return Course{}, ErrCourseNotFound
	}
	return c, nil
}

func (m *memoryStore) PutExam(_ context.Context, d Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[d.CourseID]; !ok {
		return ErrCourseNotFound
	}
	m.exams[d.CourseID] = cloneDefinition(d)
	return nil
}

func (m *memoryStore) GetExam(_ context.Context, courseID string) (Definition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.exams[courseID]
	if !ok {
		return Definition{}, ErrExamNotConfigured
	}
	return cloneDefinition(d), nil
}

func (m *memoryStore) CreateAttempt(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := slotKey(a.CourseID, a.UserID, a.AttemptNo)
	if _, taken := m.slots[key]; taken {
		return ErrDuplicateAttempt
	}
	m.slots[key] = struct{}{}
	m.attempts[a.ID] = cloneAttempt(a)
	return nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	return cloneAttempt(a), nil
}

func (m *memoryStore) CountAttempts(_ context.Context, courseID, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.attempts {
		if a.CourseID == courseID && a.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) SaveAnswers(_ context.Context, attemptID string, answers AnswerSet) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	if a.Terminal() {
		return Attempt{}, ErrAttemptNotActive
	}
	if a.Answers == nil {
		a.Answers = AnswerSet{}
	}
	for k, v := range answers {
		a.Answers[k] = v
	}
	m.attempts[attemptID] = a
	return cloneAttempt(a), nil
}

func (m *memoryStore) FinalizeAttempt(_ context.Context, a Attempt) (Attempt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.attempts[a.ID]
	if !ok {
		return Attempt{}, false, ErrAttemptNotFound
	}
	if cur.Terminal() {
		return cloneAttempt(cur), false, nil
	}
	m.attempts[a.ID] = cloneAttempt(a)
	return cloneAttempt(a), true, nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts ListOpts) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Attempt
	for _, a := range m.attempts {
		if opts.CourseID != "" && a.CourseID != opts.CourseID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, cloneAttempt(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt > out[j].StartedAt })
	return out, nil
}

func (m *memoryStore) ListOverdue(_ context.Context, now int64, graceSec int, limit int) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Attempt
	for _, a := range m.attempts {
		if a.Status == StatusInProgress && a.Deadline+int64(graceSec) < now {
			out = append(out, cloneAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline < out[j].Deadline })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneDefinition(d Definition) Definition {
	out := d
	out.Questions = make([]Question, len(d.Questions))
	copy(out.Questions, d.Questions)
	return out
}

func cloneAttempt(a Attempt) Attempt {
	out := a
	out.Questions = make([]Question, len(a.Questions))
	copy(out.Questions, a.Questions)
	out.Answers = AnswerSet{}
	for k, v := range a.Answers {
		out.Answers[k] = v
	}
	return out
}
