package exam

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/certlane/certlane/internal/db"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return NewSQLStore(dbh)
}

func TestSQLStoreExamRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	if _, err := store.GetCourse(ctx, "c1"); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("err=%v, want ErrCourseNotFound", err)
	}
	if err := store.PutCourse(ctx, Course{ID: "c1", Title: "Test Course"}); err != nil {
		t.Fatal(err)
	}
	c, err := store.GetCourse(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if c.Title != "Test Course" || c.CreatedAt == 0 {
		t.Fatalf("got %+v", c)
	}

	if _, err := store.GetExam(ctx, "c1"); !errors.Is(err, ErrExamNotConfigured) {
		t.Fatalf("err=%v, want ErrExamNotConfigured", err)
	}
	def := validDefinition("c1")
	if err := store.PutExam(ctx, def); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetExam(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.TimeLimitSec != def.TimeLimitSec || got.PassingScore != def.PassingScore {
		t.Fatalf("got %+v", got)
	}
	if len(got.Questions) != len(def.Questions) || got.Questions[2].Points != 2 {
		t.Fatalf("questions did not round-trip: %+v", got.Questions)
	}

	// Republish overwrites.
	def.PassingScore = 90
	if err := store.PutExam(ctx, def); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetExam(ctx, "c1")
	if got.PassingScore != 90 {
		t.Fatalf("republish not applied: %d", got.PassingScore)
	}
}

func seedAttempt(t *testing.T, store Store, id string, no int) Attempt {
	t.Helper()
	a := Attempt{
		ID:        id,
		CourseID:  "c1",
		UserID:    "u1",
		AttemptNo: no,
		Status:    StatusInProgress,
		Questions: validDefinition("c1").Questions,
		Answers:   AnswerSet{},
		StartedAt: 1000,
		Deadline:  1000 + 1800,
	}
	if err := store.CreateAttempt(context.Background(), a); err != nil {
		t.Fatalf("create attempt %s: %v", id, err)
	}
	return a
}

func TestSQLStoreAttemptSlotUnique(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	if err := store.PutCourse(ctx, Course{ID: "c1", Title: "T"}); err != nil {
		t.Fatal(err)
	}

	seedAttempt(t, store, "a1", 1)
	dup := Attempt{
		ID: "a2", CourseID: "c1", UserID: "u1", AttemptNo: 1,
		Status: StatusInProgress, Questions: nil, Answers: AnswerSet{},
		StartedAt: 2000, Deadline: 3800,
	}
	if err := store.CreateAttempt(ctx, dup); !errors.Is(err, ErrDuplicateAttempt) {
		t.Fatalf("err=%v, want ErrDuplicateAttempt", err)
	}

	n, err := store.CountAttempts(ctx, "c1", "u1")
	if err != nil || n != 1 {
		t.Fatalf("count=%d err=%v", n, err)
	}
}

func TestSQLStoreAnswersAndFinalize(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	if err := store.PutCourse(ctx, Course{ID: "c1", Title: "T"}); err != nil {
		t.Fatal(err)
	}
	a := seedAttempt(t, store, "a1", 1)

	yes := true
	saved, err := store.SaveAnswers(ctx, a.ID, AnswerSet{"q2": {Value: &yes}})
	if err != nil {
		t.Fatal(err)
	}
	if v := saved.Answers["q2"].Value; v == nil || !*v {
		t.Fatalf("answer lost: %+v", saved.Answers)
	}
	// Merge keeps earlier answers.
	saved, err = store.SaveAnswers(ctx, a.ID, AnswerSet{"q1": {Selected: []int{1}}})
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Answers) != 2 {
		t.Fatalf("merge dropped answers: %+v", saved.Answers)
	}

	score, passed := 50, false
	now := int64(2000)
	elapsed := 1000
	fin := saved
	fin.Status = StatusSubmitted
	fin.Score = &score
	fin.Passed = &passed
	fin.SubmittedAt = &now
	fin.ElapsedSec = &elapsed

	out, applied, err := store.FinalizeAttempt(ctx, fin)
	if err != nil || !applied {
		t.Fatalf("applied=%v err=%v", applied, err)
	}
	if out.Status != StatusSubmitted || out.Score == nil || *out.Score != 50 {
		t.Fatalf("got %+v", out)
	}

	// Second finalize loses and returns the stored row.
	late := fin
	hundred := 100
	late.Score = &hundred
	out, applied, err = store.FinalizeAttempt(ctx, late)
	if err != nil {
		t.Fatal(err)
	}
	if applied || *out.Score != 50 {
		t.Fatalf("conditional finalize broke: applied=%v score=%d", applied, *out.Score)
	}

	// Terminal attempts reject further saves.
	if _, err := store.SaveAnswers(ctx, a.ID, AnswerSet{"q3": {Selected: []int{0}}}); !errors.Is(err, ErrAttemptNotActive) {
		t.Fatalf("err=%v, want ErrAttemptNotActive", err)
	}
}

func TestSQLStoreListOverdue(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	if err := store.PutCourse(ctx, Course{ID: "c1", Title: "T"}); err != nil {
		t.Fatal(err)
	}
	a := seedAttempt(t, store, "a1", 1) // deadline 2800

	overdue, err := store.ListOverdue(ctx, 2800+31, 30, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(overdue) != 1 || overdue[0].ID != a.ID {
		t.Fatalf("got %+v", overdue)
	}
	// Inside the grace window nothing is overdue.
	overdue, err = store.ListOverdue(ctx, 2800+20, 30, 10)
	if err != nil || len(overdue) != 0 {
		t.Fatalf("overdue=%v err=%v", overdue, err)
	}
}

func TestSQLStoreListAttemptsFilters(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	if err := store.PutCourse(ctx, Course{ID: "c1", Title: "T"}); err != nil {
		t.Fatal(err)
	}
	seedAttempt(t, store, "a1", 1)
	seedAttempt(t, store, "a2", 2)

	got, err := store.ListAttempts(ctx, ListOpts{CourseID: "c1", UserID: "u1"})
	if err != nil || len(got) != 2 {
		t.Fatalf("got %d err=%v", len(got), err)
	}
	got, err = store.ListAttempts(ctx, ListOpts{UserID: "nobody"})
	if err != nil || len(got) != 0 {
		t.Fatalf("got %d err=%v", len(got), err)
	}
	got, err = store.ListAttempts(ctx, ListOpts{Status: StatusInProgress, Limit: 1})
	if err != nil || len(got) != 1 {
		t.Fatalf("got %d err=%v", len(got), err)
	}
}
