package exam

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/certlane/certlane/internal/grading"
	"github.com/certlane/certlane/internal/notify"
	"github.com/certlane/certlane/internal/purchase"
)

// CertificateIssuer is implemented by the cert package. Issuance
// conflicts are absorbed there; an error here is a real fault and is
// logged, never surfaced to the submitting user.
type CertificateIssuer interface {
	IssueIfEligible(ctx context.Context, a Attempt) error
}

// Service is the attempt manager: it drives the
// in_progress -> {submitted|expired} state machine, enforces the
// attempt limit and purchase precondition, and hands terminal attempts
// to the scoring engine and certificate issuer.
type Service struct {
	store     Store
	bank      *Bank
	engine    *grading.Engine
	purchases purchase.Verifier
	issuer    CertificateIssuer
	notifier  notify.Notifier
	graceSec  int
	now       func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Option func(*Service)

func WithIssuer(i CertificateIssuer) Option { return func(s *Service) { s.issuer = i } }
func WithNotifier(n notify.Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithGrace sets the server-side slack, in seconds, added to the
// deadline before a submission is treated as expired. Covers network
// latency between the client countdown hitting zero and the request
// landing.
func WithGrace(sec int) Option { return func(s *Service) { s.graceSec = sec } }

// WithClock overrides the time source. Tests use this.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithRandSeed makes question shuffling deterministic. Tests use this.
func WithRandSeed(seed int64) Option {
	return func(s *Service) { s.rng = rand.New(rand.NewSource(seed)) }
}

func NewService(store Store, bank *Bank, purchases purchase.Verifier, opts ...Option) *Service {
	s := &Service{
		store:     store,
		bank:      bank,
		engine:    grading.NewEngine(),
		purchases: purchases,
		graceSec:  30,
		now:       time.Now,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// StartAttempt begins a new timed sitting. The purchase check and the
// attempt limit are preconditions; the limit is serialized through the
// store's unique (course, user, attempt_no) slot so two racing starts
// for the last slot yield exactly one winner.
func (s *Service) StartAttempt(ctx context.Context, userID, courseID string) (Attempt, error) {
	ok, err := s.purchases.HasCompletedPurchase(ctx, userID, courseID)
	if err != nil {
		return Attempt{}, fmt.Errorf("verify purchase: %w", err)
	}
	if !ok {
		return Attempt{}, ErrPurchaseRequired
	}

	def, err := s.bank.Load(ctx, courseID)
	if err != nil {
		return Attempt{}, err
	}

	// A lost slot race means another start of ours or a concurrent call
	// took attempt_no; recount and try the next slot until the limit.
	for tries := 0; tries <= def.MaxAttempts; tries++ {
		prior, err := s.store.CountAttempts(ctx, courseID, userID)
		if err != nil {
			return Attempt{}, err
		}
		if prior >= def.MaxAttempts {
			return Attempt{}, ErrAttemptLimit
		}
		now := s.now().Unix()
		a := Attempt{
			ID:        uuid.NewString(),
			CourseID:  courseID,
			UserID:    userID,
			AttemptNo: prior + 1,
			Status:    StatusInProgress,
			Questions: s.questionSet(def),
			Answers:   AnswerSet{},
			StartedAt: now,
			Deadline:  now + int64(def.TimeLimitSec),
		}
		err = s.store.CreateAttempt(ctx, a)
		if errors.Is(err, ErrDuplicateAttempt) {
			continue
		}
		if err != nil {
			return Attempt{}, err
		}
		return a, nil
	}
	return Attempt{}, ErrAttemptLimit
}

// SaveAnswers merge-persists partial answers while the attempt is in
// progress, so a force-expired attempt still grades what the user had
// entered before disconnecting.
func (s *Service) SaveAnswers(ctx context.Context, userID, attemptID string, answers AnswerSet) (Attempt, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.UserID != userID {
		return Attempt{}, ErrAttemptForbidden
	}
	if a.Terminal() {
		return Attempt{}, ErrAttemptNotActive
	}
	return s.store.SaveAnswers(ctx, attemptID, answers)
}

// SubmitAttempt finalizes a sitting. A repeat call on a terminal
// attempt returns the stored result unchanged; grading runs exactly
// once per attempt. The server clock is the timing authority: the
// client-reported elapsed time can only shorten the user's window,
// never extend it.
func (s *Service) SubmitAttempt(ctx context.Context, userID, attemptID string, answers AnswerSet, elapsedSec int) (Attempt, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.UserID != userID {
		return Attempt{}, ErrAttemptForbidden
	}
	if a.Terminal() {
		return a, nil
	}

	if a.Answers == nil {
		a.Answers = AnswerSet{}
	}
	for k, v := range answers {
		a.Answers[k] = v
	}

	now := s.now().Unix()
	elapsed := int(now - a.StartedAt)
	if elapsedSec > elapsed {
		elapsed = elapsedSec
	}
	limit := int(a.Deadline - a.StartedAt)
	status := StatusSubmitted
	if now > a.Deadline+int64(s.graceSec) || elapsed > limit+s.graceSec {
		status = StatusExpired
	}
	return s.finalize(ctx, a, status, elapsed)
}

// ExpireOverdueAttempts force-submits in_progress attempts whose
// deadline has passed, grading whatever answers were saved. Safe to run
// concurrently with user submissions: the conditional finalize makes
// double-processing a no-op.
func (s *Service) ExpireOverdueAttempts(ctx context.Context) (int, error) {
	overdue, err := s.store.ListOverdue(ctx, s.now().Unix(), s.graceSec, 100)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range overdue {
		limit := int(a.Deadline - a.StartedAt)
		if _, err := s.finalize(ctx, a, StatusExpired, limit); err != nil {
			log.Printf("expire attempt %s: %v", a.ID, err)
			continue
		}
		n++
	}
	return n, nil
}

func (s *Service) GetAttempt(ctx context.Context, attemptID string) (Attempt, error) {
	return s.store.GetAttempt(ctx, attemptID)
}

func (s *Service) ListAttempts(ctx context.Context, opts ListOpts) ([]Attempt, error) {
	return s.store.ListAttempts(ctx, opts)
}

func (s *Service) finalize(ctx context.Context, a Attempt, status string, elapsedSec int) (Attempt, error) {
	def, err := s.bank.Load(ctx, a.CourseID)
	if err != nil {
		return Attempt{}, fmt.Errorf("load exam for grading: %w", err)
	}
	sum := s.engine.Grade(gradingQuestions(a.Questions), gradingResponses(a.Answers), def.PassingScore)

	now := s.now().Unix()
	a.Status = status
	a.Score = &sum.Score
	a.Passed = &sum.Passed
	a.SubmittedAt = &now
	a.ElapsedSec = &elapsedSec

	stored, applied, err := s.store.FinalizeAttempt(ctx, a)
	if err != nil {
		return Attempt{}, err
	}
	if !applied {
		// a concurrent submit or sweep won; its result stands
		return stored, nil
	}

	if sum.Passed && s.issuer != nil {
		if err := s.issuer.IssueIfEligible(ctx, stored); err != nil {
			log.Printf("issue certificate for attempt %s: %v", stored.ID, err)
		}
	}
	s.emit(ctx, stored, sum.Passed)
	return stored, nil
}

func (s *Service) emit(ctx context.Context, a Attempt, passed bool) {
	if s.notifier == nil {
		return
	}
	event := notify.EventExamFailed
	switch {
	case passed:
		event = notify.EventExamPassed
	case a.Status == StatusExpired:
		event = notify.EventAttemptExpired
	}
	s.notifier.Notify(ctx, a.UserID, event, map[string]any{
		"attempt_id": a.ID,
		"course_id":  a.CourseID,
		"score":      derefInt(a.Score),
	})
}

// questionSet snapshots the pool for one attempt, shuffled when the
// definition asks for it.
func (s *Service) questionSet(def Definition) []Question {
	qs := make([]Question, len(def.Questions))
	copy(qs, def.Questions)
	if def.Shuffle {
		s.rngMu.Lock()
		s.rng.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
		s.rngMu.Unlock()
	}
	return qs
}

func gradingQuestions(qs []Question) []grading.Q {
	out := make([]grading.Q, 0, len(qs))
	for _, q := range qs {
		out = append(out, grading.Q{ID: q.ID, Type: q.Type, Points: q.Points, Correct: q.Correct})
	}
	return out
}

func gradingResponses(answers AnswerSet) map[string]grading.Response {
	out := make(map[string]grading.Response, len(answers))
	for id, a := range answers {
		out[id] = grading.Response{Selected: a.Selected, Value: a.Value}
	}
	return out
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
