package cert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/certlane/certlane/internal/exam"
	"github.com/certlane/certlane/internal/notify"
)

// Issuer mints at most one active certificate per (user, course). The
// store's partial uniqueness is the serialization point: the loser of a
// concurrent issuance detects ErrDuplicate and returns the winner's
// certificate instead of erroring.
type Issuer struct {
	store    Store
	notifier notify.Notifier
	now      func() time.Time
}

type IssuerOption func(*Issuer)

func WithNotifier(n notify.Notifier) IssuerOption { return func(i *Issuer) { i.notifier = n } }
func WithClock(now func() time.Time) IssuerOption { return func(i *Issuer) { i.now = now } }

func NewIssuer(store Store, opts ...IssuerOption) *Issuer {
	i := &Issuer{store: store, now: time.Now}
	for _, o := range opts {
		o(i)
	}
	return i
}

// IssueIfEligible satisfies the attempt manager's issuer hook.
func (i *Issuer) IssueIfEligible(ctx context.Context, a exam.Attempt) error {
	_, err := i.Issue(ctx, a)
	return err
}

// Issue returns the certificate for a passing attempt, minting one only
// if no active certificate exists for (user, course). A second passing
// attempt for an already-certified course returns the original
// certificate unchanged.
func (i *Issuer) Issue(ctx context.Context, a exam.Attempt) (Certificate, error) {
	if a.Passed == nil || !*a.Passed {
		return Certificate{}, ErrNotEligible
	}

	existing, err := i.store.GetActive(ctx, a.UserID, a.CourseID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Certificate{}, err
	}

	recipient, title, err := i.store.DisplayStrings(ctx, a.UserID, a.CourseID)
	if err != nil {
		return Certificate{}, fmt.Errorf("resolve display strings: %w", err)
	}
	number, err := NewNumber()
	if err != nil {
		return Certificate{}, err
	}
	c := Certificate{
		ID:            uuid.NewString(),
		Number:        number,
		UserID:        a.UserID,
		CourseID:      a.CourseID,
		AttemptID:     a.ID,
		RecipientName: recipient,
		CourseTitle:   title,
		IssuedAt:      i.now().Unix(),
	}
	err = i.store.Insert(ctx, c)
	if errors.Is(err, ErrDuplicate) {
		// lost the race; the winner's certificate is the answer
		return i.store.GetActive(ctx, a.UserID, a.CourseID)
	}
	if err != nil {
		return Certificate{}, err
	}

	if i.notifier != nil {
		i.notifier.Notify(ctx, a.UserID, notify.EventCertificateIssued, map[string]any{
			"certificate_id": c.ID,
			"number":         c.Number,
			"course_id":      c.CourseID,
		})
	}
	return c, nil
}

// Revoke invalidates an issued certificate, keeping the record as an
// audit trail. Repeat calls return the already-revoked certificate.
func (i *Issuer) Revoke(ctx context.Context, certificateID, reason string) (Certificate, error) {
	return i.store.Revoke(ctx, certificateID, reason, i.now().Unix())
}
