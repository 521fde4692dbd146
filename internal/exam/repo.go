package exam

import (
	"context"
	"errors"
)

// ErrDuplicateAttempt is returned by Store.CreateAttempt when the
// (course, user, attempt_no) slot is already taken. The service treats
// it as a lost race and re-checks the attempt count.
var ErrDuplicateAttempt = errors.New("attempt number already taken")

type Course struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

type ListOpts struct {
	CourseID string
	UserID   string
	Status   string // optional: in_progress|submitted|expired
	Limit    int
	Offset   int
}

type Store interface {
	PutCourse(ctx context.Context, c Course) error
	GetCourse(ctx context.Context, id string) (Course, error)

	PutExam(ctx context.Context, d Definition) error
	// GetExam returns the full definition including answer keys.
	// Callers serving students must strip them.
	GetExam(ctx context.Context, courseID string) (Definition, error)

	// CreateAttempt persists a new attempt. The unique index on
	// (course_id, user_id, attempt_no) is the attempt-limit serialization
	// point: a losing racer gets ErrDuplicateAttempt.
	CreateAttempt(ctx context.Context, a Attempt) error
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	CountAttempts(ctx context.Context, courseID, userID string) (int, error)
	SaveAnswers(ctx context.Context, attemptID string, answers AnswerSet) (Attempt, error)

	// FinalizeAttempt moves an attempt into a terminal state. The update
	// is conditional on status still being in_progress; applied=false
	// means another finalizer won and the stored row is returned instead.
	FinalizeAttempt(ctx context.Context, a Attempt) (out Attempt, applied bool, err error)

	ListAttempts(ctx context.Context, opts ListOpts) ([]Attempt, error)
	// ListOverdue returns in_progress attempts whose deadline (plus the
	// given grace) has passed at `now` (unix seconds).
	ListOverdue(ctx context.Context, now int64, graceSec int, limit int) ([]Attempt, error)
}
