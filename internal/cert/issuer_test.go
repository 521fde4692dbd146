package cert

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/certlane/certlane/internal/exam"
)

func passedAttempt(id, userID, courseID string) exam.Attempt {
	passed := true
	score := 85
	return exam.Attempt{
		ID:       id,
		UserID:   userID,
		CourseID: courseID,
		Status:   exam.StatusSubmitted,
		Score:    &score,
		Passed:   &passed,
	}
}

func newTestIssuer() (*Issuer, *memoryStore) {
	store := NewMemoryStore()
	store.SetDisplayStrings("u1", "Ada Lovelace", "c1", "Intro to Engines")
	issuer := NewIssuer(store, WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }))
	return issuer, store
}

func TestIssueMintsOnce(t *testing.T) {
	ctx := context.Background()
	issuer, _ := newTestIssuer()

	c, err := issuer.Issue(ctx, passedAttempt("a1", "u1", "c1"))
	if err != nil {
		t.Fatal(err)
	}
	if c.RecipientName != "Ada Lovelace" || c.CourseTitle != "Intro to Engines" {
		t.Fatalf("display strings not frozen: %q / %q", c.RecipientName, c.CourseTitle)
	}
	if !strings.HasPrefix(c.Number, "CL-") {
		t.Fatalf("number %q lacks prefix", c.Number)
	}
	if c.AttemptID != "a1" || c.IssuedAt != 1_700_000_000 {
		t.Fatalf("unexpected certificate: %+v", c)
	}

	// A later passing attempt returns the original, not a second mint.
	again, err := issuer.Issue(ctx, passedAttempt("a2", "u1", "c1"))
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != c.ID || again.AttemptID != "a1" {
		t.Fatalf("second pass minted a new certificate: %+v", again)
	}
}

func TestIssueRequiresPass(t *testing.T) {
	ctx := context.Background()
	issuer, _ := newTestIssuer()

	a := passedAttempt("a1", "u1", "c1")
	failed := false
	a.Passed = &failed
	if _, err := issuer.Issue(ctx, a); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("err=%v, want ErrNotEligible", err)
	}
	a.Passed = nil // ungraded attempt
	if _, err := issuer.Issue(ctx, a); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("err=%v, want ErrNotEligible", err)
	}
}

// racingStore simulates losing the uniqueness race: the pre-insert
// existence check misses, then the insert collides with a certificate
// written in between.
type racingStore struct {
	Store
	winner Certificate
	raced  bool
}

func (r *racingStore) GetActive(ctx context.Context, userID, courseID string) (Certificate, error) {
	if !r.raced {
		r.raced = true
		return Certificate{}, ErrNotFound
	}
	return r.Store.GetActive(ctx, userID, courseID)
}

func (r *racingStore) Insert(ctx context.Context, c Certificate) error {
	if err := r.Store.Insert(ctx, r.winner); err != nil {
		return err
	}
	return r.Store.Insert(ctx, c)
}

func TestIssueLosesRaceReturnsWinner(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	mem.SetDisplayStrings("u1", "Ada Lovelace", "c1", "Intro to Engines")
	winner := Certificate{
		ID: "winner", Number: "CL-AAAAA-AAAAA-AAAAA-AAAAA",
		UserID: "u1", CourseID: "c1", AttemptID: "other",
		RecipientName: "Ada Lovelace", CourseTitle: "Intro to Engines", IssuedAt: 1,
	}
	issuer := NewIssuer(&racingStore{Store: mem, winner: winner})

	c, err := issuer.Issue(ctx, passedAttempt("a1", "u1", "c1"))
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != "winner" {
		t.Fatalf("got certificate %q, want the race winner's", c.ID)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	issuer, _ := newTestIssuer()

	c, err := issuer.Issue(ctx, passedAttempt("a1", "u1", "c1"))
	if err != nil {
		t.Fatal(err)
	}
	r1, err := issuer.Revoke(ctx, c.ID, "academic misconduct")
	if err != nil {
		t.Fatal(err)
	}
	if !r1.Revoked || r1.RevokeReason != "academic misconduct" || r1.RevokedAt == nil {
		t.Fatalf("revoke incomplete: %+v", r1)
	}
	r2, err := issuer.Revoke(ctx, c.ID, "different reason")
	if err != nil {
		t.Fatal(err)
	}
	if r2.RevokeReason != "academic misconduct" || *r2.RevokedAt != *r1.RevokedAt {
		t.Fatalf("repeat revoke rewrote the record: %+v", r2)
	}
}

func TestRevokeUnknownCertificate(t *testing.T) {
	issuer, _ := newTestIssuer()
	if _, err := issuer.Revoke(context.Background(), "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestReissueAfterRevoke(t *testing.T) {
	ctx := context.Background()
	issuer, _ := newTestIssuer()

	c, err := issuer.Issue(ctx, passedAttempt("a1", "u1", "c1"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := issuer.Revoke(ctx, c.ID, "clerical error"); err != nil {
		t.Fatal(err)
	}
	// A fresh passing attempt after revocation earns a new certificate.
	fresh, err := issuer.Issue(ctx, passedAttempt("a2", "u1", "c1"))
	if err != nil {
		t.Fatal(err)
	}
	if fresh.ID == c.ID || fresh.Number == c.Number {
		t.Fatalf("re-issue reused the revoked certificate: %+v", fresh)
	}
}

func TestNewNumberFormat(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		n, err := NewNumber()
		if err != nil {
			t.Fatal(err)
		}
		parts := strings.Split(n, "-")
		if len(parts) != 5 || parts[0] != "CL" {
			t.Fatalf("bad shape: %q", n)
		}
		for _, p := range parts[1:] {
			if len(p) != 5 {
				t.Fatalf("bad group length in %q", n)
			}
		}
		if seen[n] {
			t.Fatalf("duplicate number %q", n)
		}
		seen[n] = true
	}
}
