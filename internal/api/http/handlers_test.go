package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	authmw "github.com/certlane/certlane/internal/auth/middleware"
	"github.com/certlane/certlane/internal/cert"
	"github.com/certlane/certlane/internal/exam"
	"github.com/certlane/certlane/internal/purchase"
	"github.com/certlane/certlane/internal/rbac"
)

type env struct {
	router    chi.Router
	svc       *exam.Service
	store     exam.Store
	bank      *exam.Bank
	purchases *purchase.MemoryStore
}

// as wraps a request with the identity the JWT middleware would attach.
func as(r *http.Request, userID, role string) *http.Request {
	ctx := authmw.WithSubject(r.Context(), userID)
	ctx = rbac.WithRole(ctx, role)
	return r.WithContext(ctx)
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := exam.NewMemoryStore()
	bank := exam.NewBank(store, time.Hour)
	purchases := purchase.NewMemoryStore()
	svc := exam.NewService(store, bank, purchases, exam.WithRandSeed(1))

	certStore := cert.NewMemoryStore()

	r := chi.NewRouter()
	r.Put("/courses/{courseID}", UpsertCourseHandler(store))
	r.Post("/courses/{courseID}/exam", PublishExamHandler(store, bank))
	r.Get("/courses/{courseID}/exam", GetExamHandler(bank))
	r.Post("/courses/{courseID}/attempts", StartAttemptHandler(svc))
	r.Put("/attempts/{attemptID}/answers", SaveAnswersHandler(svc))
	r.Post("/attempts/{attemptID}/submit", SubmitAttemptHandler(svc))
	r.Get("/attempts/{attemptID}", GetAttemptHandler(svc))
	r.Get("/attempts", ListAttemptsHandler(svc))
	r.Get("/verify/{certificateNumber}", VerifyHandler(cert.NewVerificationService(certStore)))

	return &env{
		router:    r,
		svc:       svc,
		store:     store,
		bank:      bank,
		purchases: purchases,
	}
}

func (e *env) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func publishBody() []byte {
	body, _ := json.Marshal(map[string]any{
		"time_limit_minutes": 30,
		"passing_score":      70,
		"max_attempts":       3,
		"questions": []map[string]any{
			{"id": "q1", "type": "mcq_single", "prompt": "pick", "options": []string{"a", "b"}, "correct": []int{1}},
			{"id": "q2", "type": "true_false", "prompt": "yes?", "options": []string{"True", "False"}, "correct": []int{0}},
		},
	})
	return body
}

func (e *env) publish(t *testing.T, courseID string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/courses/"+courseID,
		bytes.NewReader([]byte(`{"title":"Test Course"}`)))
	if rec := e.do(t, as(req, "staff1", "staff")); rec.Code != http.StatusOK {
		t.Fatalf("upsert course: %d %s", rec.Code, rec.Body)
	}
	req = httptest.NewRequest(http.MethodPost, "/courses/"+courseID+"/exam",
		bytes.NewReader(publishBody()))
	if rec := e.do(t, as(req, "staff1", "staff")); rec.Code != http.StatusOK {
		t.Fatalf("publish exam: %d %s", rec.Code, rec.Body)
	}
}

func TestPublishRejectsInvalidPool(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodPut, "/courses/c1",
		bytes.NewReader([]byte(`{"title":"Test"}`)))
	e.do(t, as(req, "staff1", "staff"))

	body, _ := json.Marshal(map[string]any{
		"time_limit_minutes": 30,
		"max_attempts":       1,
		"questions": []map[string]any{
			// correct index out of range
			{"id": "q1", "type": "mcq_single", "prompt": "pick", "options": []string{"a", "b"}, "correct": []int{5}},
		},
	})
	req = httptest.NewRequest(http.MethodPost, "/courses/c1/exam", bytes.NewReader(body))
	rec := e.do(t, as(req, "staff1", "staff"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422: %s", rec.Code, rec.Body)
	}
}

func TestGetExamStripsKeys(t *testing.T) {
	e := newEnv(t)
	e.publish(t, "c1")

	req := httptest.NewRequest(http.MethodGet, "/courses/c1/exam", nil)
	rec := e.do(t, as(req, "u1", "student"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var d exam.Definition
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatal(err)
	}
	for _, q := range d.Questions {
		if q.Correct != nil {
			t.Fatalf("answer key leaked for %s", q.ID)
		}
	}
}

func TestStartWithoutPurchaseIs402(t *testing.T) {
	e := newEnv(t)
	e.publish(t, "c1")

	req := httptest.NewRequest(http.MethodPost, "/courses/c1/attempts", nil)
	rec := e.do(t, as(req, "u1", "student"))
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status %d, want 402: %s", rec.Code, rec.Body)
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "purchase_required" {
		t.Fatalf("error kind %q", body["error"])
	}
}

func TestAttemptFlowOverHTTP(t *testing.T) {
	e := newEnv(t)
	e.publish(t, "c1")
	e.purchases.Grant("u1", "c1")

	req := httptest.NewRequest(http.MethodPost, "/courses/c1/attempts", nil)
	rec := e.do(t, as(req, "u1", "student"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("start: %d %s", rec.Code, rec.Body)
	}
	var a exam.Attempt
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatal(err)
	}
	for _, q := range a.Questions {
		if q.Correct != nil {
			t.Fatalf("start leaked the key for %s", q.ID)
		}
	}

	save := []byte(`{"answers":{"q1":{"selected":[1]}}}`)
	req = httptest.NewRequest(http.MethodPut, "/attempts/"+a.ID+"/answers", bytes.NewReader(save))
	if rec := e.do(t, as(req, "u1", "student")); rec.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rec.Code, rec.Body)
	}

	submit := []byte(`{"answers":{"q2":{"value":true}},"elapsed_sec":60}`)
	req = httptest.NewRequest(http.MethodPost, "/attempts/"+a.ID+"/submit", bytes.NewReader(submit))
	rec = e.do(t, as(req, "u1", "student"))
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body)
	}
	var done exam.Attempt
	if err := json.Unmarshal(rec.Body.Bytes(), &done); err != nil {
		t.Fatal(err)
	}
	if done.Status != exam.StatusSubmitted || done.Score == nil || *done.Score != 100 {
		t.Fatalf("got %+v", done)
	}
}

func TestSubmitMalformedAnswerIs422(t *testing.T) {
	e := newEnv(t)
	e.publish(t, "c1")
	e.purchases.Grant("u1", "c1")

	req := httptest.NewRequest(http.MethodPost, "/courses/c1/attempts", nil)
	rec := e.do(t, as(req, "u1", "student"))
	var a exam.Attempt
	_ = json.Unmarshal(rec.Body.Bytes(), &a)

	// both shapes on one answer
	bad := []byte(`{"answers":{"q1":{"selected":[0],"value":true}}}`)
	req = httptest.NewRequest(http.MethodPost, "/attempts/"+a.ID+"/submit", bytes.NewReader(bad))
	rec = e.do(t, as(req, "u1", "student"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422: %s", rec.Code, rec.Body)
	}
}

func TestGetAttemptAccess(t *testing.T) {
	e := newEnv(t)
	e.publish(t, "c1")
	e.purchases.Grant("u1", "c1")

	a, err := e.svc.StartAttempt(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		user, role string
		want       int
	}{
		{"u1", "student", http.StatusOK},        // owner
		{"u2", "student", http.StatusForbidden}, // someone else's attempt
		{"t1", "staff", http.StatusOK},          // attempt:view-all
		{"root", "admin", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/attempts/"+a.ID, nil)
		rec := e.do(t, as(req, tc.user, tc.role))
		if rec.Code != tc.want {
			t.Errorf("%s/%s: status %d, want %d", tc.user, tc.role, rec.Code, tc.want)
		}
	}
}

func TestListAttemptsScopedToStudent(t *testing.T) {
	e := newEnv(t)
	e.publish(t, "c1")
	e.purchases.Grant("u1", "c1")
	e.purchases.Grant("u2", "c1")

	if _, err := e.svc.StartAttempt(context.Background(), "u1", "c1"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.StartAttempt(context.Background(), "u2", "c1"); err != nil {
		t.Fatal(err)
	}

	// A student asking for someone else's rows gets their own anyway.
	req := httptest.NewRequest(http.MethodGet, "/attempts?user_id=u2", nil)
	rec := e.do(t, as(req, "u1", "student"))
	var mine []exam.Attempt
	if err := json.Unmarshal(rec.Body.Bytes(), &mine); err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].UserID != "u1" {
		t.Fatalf("student list not scoped: %+v", mine)
	}

	req = httptest.NewRequest(http.MethodGet, "/attempts?course_id=c1", nil)
	rec = e.do(t, as(req, "t1", "staff"))
	var all []exam.Attempt
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("staff list returned %d rows, want 2", len(all))
	}
}

func TestVerifyEndpoint(t *testing.T) {
	certStore := cert.NewMemoryStore()
	if err := certStore.Insert(context.Background(), cert.Certificate{
		ID: "id1", Number: "CL-AAAAA-AAAAA-AAAAA-AAAAA",
		UserID: "u1", CourseID: "c1",
		RecipientName: "Ada Lovelace", CourseTitle: "Test Course", IssuedAt: 42,
	}); err != nil {
		t.Fatal(err)
	}
	r := chi.NewRouter()
	r.Get("/verify/{certificateNumber}", VerifyHandler(cert.NewVerificationService(certStore)))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/verify/CL-AAAAA-AAAAA-AAAAA-AAAAA", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var res cert.VerifyResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Status != cert.StatusValid || res.Details == nil || res.Details.RecipientName != "Ada Lovelace" {
		t.Fatalf("res=%+v", res)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/verify/CL-ZZZZZ-ZZZZZ-ZZZZZ-ZZZZZ", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown number status %d, want 200", rec.Code)
	}
	res = cert.VerifyResult{}
	_ = json.Unmarshal(rec.Body.Bytes(), &res)
	if res.Status != cert.StatusNotFound || res.Details != nil {
		t.Fatalf("res=%+v", res)
	}
}
