package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChecker_Has(t *testing.T) {
	c := NewChecker(map[string][]string{
		"grader": {"submission:*"},
		"root":   {"*"},
		"viewer": {PermAssessmentView},
	})
	cases := []struct {
		role, perm string
		want       bool
	}{
		{"grader", PermSubmissionEvaluate, true},
		{"grader", PermAssessmentView, false},
		{"root", PermUsersManage, true},
		{"viewer", PermAssessmentView, true},
		{"viewer", PermAssessmentCreate, false},
		{"nobody", PermAssessmentView, false},
	}
	for _, tc := range cases {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Errorf("Has(%q,%q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)
	if c.Has("student", PermSubmissionEvaluate) {
		t.Error("students must not evaluate")
	}
	if !c.Has("instructor", PermSubmissionEvaluate) {
		t.Error("instructors evaluate")
	}
	if c.Has("instructor", PermUsersManage) {
		t.Error("only admins manage users")
	}
	if !c.Has("admin", PermUsersManage) {
		t.Error("admin wildcard")
	}
}

func TestRequire(t *testing.T) {
	h := Require(PermSubmissionEvaluate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for _, tc := range []struct {
		role string
		want int
	}{
		{"", http.StatusForbidden},
		{"student", http.StatusForbidden},
		{"instructor", http.StatusNoContent},
	} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if tc.role != "" {
			req = req.WithContext(WithPrincipal(req.Context(), Principal{Subject: "u", Role: tc.role}))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("role %q: code %d, want %d", tc.role, rec.Code, tc.want)
		}
	}
}
