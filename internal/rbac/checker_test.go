package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckerHas(t *testing.T) {
	c := NewChecker(nil)
	tests := []struct {
		role, perm string
		want       bool
	}{
		{"student", "attempt:create", true},
		{"student", "exam:publish", false},
		{"student", "attempt:view-all", false},
		{"staff", "exam:publish", true},
		{"staff", "attempt:view-all", true},
		{"staff", "cert:revoke", false},
		{"admin", "cert:revoke", true},
		{"admin", "anything:at-all", true},
		{"", "exam:view", false},
		{"ghost", "exam:view", false},
	}
	for _, tc := range tests {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Errorf("Has(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestCheckerWildcardPrefix(t *testing.T) {
	c := NewChecker(map[string][]string{"ops": {"attempt:*"}})
	if !c.Has("ops", "attempt:view-all") {
		t.Fatal("prefix wildcard did not match")
	}
	if c.Has("ops", "exam:view") {
		t.Fatal("prefix wildcard matched outside its prefix")
	}
}

func TestCheckerAny(t *testing.T) {
	c := NewChecker(nil)
	if !c.Any("student", "attempt:view-own", "attempt:view-all") {
		t.Fatal("Any missed a held permission")
	}
	if c.Any("student", "exam:publish", "users:list") {
		t.Fatal("Any granted unheld permissions")
	}
}

func TestRequireMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := Require("exam:publish")(next)

	cases := []struct {
		role string
		want int
	}{
		{"staff", http.StatusNoContent},
		{"admin", http.StatusNoContent},
		{"student", http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/courses/c1/exam", nil)
		if tc.role != "" {
			req = req.WithContext(WithRole(req.Context(), tc.role))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("role %q: status %d, want %d", tc.role, rec.Code, tc.want)
		}
	}
}

func TestRoleRoundTrip(t *testing.T) {
	ctx := WithRole(context.Background(), "staff")
	if got := RoleFromContext(ctx); got != "staff" {
		t.Fatalf("got %q", got)
	}
	if got := RoleFromContext(context.Background()); got != "" {
		t.Fatalf("empty context produced role %q", got)
	}
}
