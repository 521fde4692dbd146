package exam

import (
	"context"
	"sync"
	"time"
)

// Bank resolves a course's exam definition, validating the question
// pool on every read-miss. Results are cached with a TTL; the cache is
// an explicit component with an invalidation hook rather than package
// state, so course publishes can evict stale entries.
type Bank struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]bankEntry
}

type bankEntry struct {
	def     Definition
	fetched time.Time
}

func NewBank(store Store, ttl time.Duration) *Bank {
	return &Bank{
		store:   store,
		ttl:     ttl,
		now:     time.Now,
		entries: map[string]bankEntry{},
	}
}

// Load returns the validated definition for courseID. Propagates
// ErrExamNotConfigured from the store and a ValidationError for
// malformed question pools.
func (b *Bank) Load(ctx context.Context, courseID string) (Definition, error) {
	b.mu.Lock()
	if e, ok := b.entries[courseID]; ok && b.now().Sub(e.fetched) < b.ttl {
		b.mu.Unlock()
		return cloneDefinition(e.def), nil
	}
	b.mu.Unlock()

	d, err := b.store.GetExam(ctx, courseID)
	if err != nil {
		return Definition{}, err
	}
	if err := ValidateDefinition(d); err != nil {
		return Definition{}, err
	}

	b.mu.Lock()
	b.entries[courseID] = bankEntry{def: cloneDefinition(d), fetched: b.now()}
	b.mu.Unlock()
	return d, nil
}

// Invalidate evicts a course's cached definition. Called on publish.
func (b *Bank) Invalidate(courseID string) {
	b.mu.Lock()
	delete(b.entries, courseID)
	b.mu.Unlock()
}

// ValidateDefinition checks a definition before publish or use.
func ValidateDefinition(d Definition) error {
	if d.TimeLimitSec <= 0 {
		return validationErrorf("time limit must be positive")
	}
	if d.PassingScore < 0 || d.PassingScore > 100 {
		return validationErrorf("passing score must be 0-100, got %d", d.PassingScore)
	}
	if d.MaxAttempts < 1 {
		return validationErrorf("max attempts must be at least 1")
	}
	if len(d.Questions) == 0 {
		return validationErrorf("exam has no questions")
	}
	seen := map[string]bool{}
	for i, q := range d.Questions {
		if q.ID == "" {
			return validationErrorf("question %d has no id", i)
		}
		if seen[q.ID] {
			return validationErrorf("duplicate question id %q", q.ID)
		}
		seen[q.ID] = true
		switch q.Type {
		case TypeMCQSingle, TypeMCQMulti:
			if len(q.Options) < 2 {
				return validationErrorf("question %q has fewer than 2 options", q.ID)
			}
		case TypeTrueFalse:
			if len(q.Options) != 2 {
				return validationErrorf("true/false question %q must have exactly 2 options", q.ID)
			}
		default:
			return validationErrorf("question %q has unknown type %q", q.ID, q.Type)
		}
		if len(q.Correct) == 0 {
			return validationErrorf("question %q has no correct answer", q.ID)
		}
		if q.Type != TypeMCQMulti && len(q.Correct) != 1 {
			return validationErrorf("question %q must have exactly one correct answer", q.ID)
		}
		for _, c := range q.Correct {
			if c < 0 || c >= len(q.Options) {
				return validationErrorf("question %q correct index %d out of range", q.ID, c)
			}
		}
		if q.Points <= 0 {
			return validationErrorf("question %q must have positive points", q.ID)
		}
	}
	return nil
}
