package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-assess/internal/account"
	"github.com/mind-engage/mindengage-assess/internal/eventlog"
	"github.com/mind-engage/mindengage-assess/internal/rbac"
)

type recorder struct{ events []eventlog.Event }

func (r *recorder) Append(_ context.Context, e eventlog.Event) error {
	r.events = append(r.events, e)
	return nil
}

func newTestService(t *testing.T) (*Service, account.Store, *recorder) {
	t.Helper()
	users := account.NewInMemoryStore()
	rec := &recorder{}
	return NewService("test-secret", time.Hour, users, WithBcryptCost(bcrypt.MinCost), WithEvents(rec)), users, rec
}

func seedUser(t *testing.T, s *Service, users account.Store, email, pw string, active bool) account.User {
	t.Helper()
	hash, err := s.HashPassword(pw)
	if err != nil {
		t.Fatal(err)
	}
	u, err := users.Create(context.Background(), account.User{Name: "Jane Smith", Email: email, PasswordHash: hash, Role: account.RoleInstructor, Active: active})
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestIssueAndParse(t *testing.T) {
	s, _, _ := newTestService(t)
	tok, exp, err := s.Issue(account.User{ID: "u1", Name: "John", Role: account.RoleStudent, InstituteCode: "INST1"})
	if err != nil {
		t.Fatal(err)
	}
	if d := time.Until(exp); d < 59*time.Minute || d > time.Hour+time.Second {
		t.Fatalf("expiry %v", d)
	}
	c, err := s.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Subject != "u1" || c.Role != "student" || c.Name != "John" || c.InstituteCode != "INST1" {
		t.Fatalf("claims: %+v", c)
	}

	other := NewService("other-secret", time.Hour, nil)
	if _, err := other.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign signature accepted: %v", err)
	}
}

func TestParse_Expired(t *testing.T) {
	s, _, _ := newTestService(t)
	past := time.Now().Add(-2 * time.Hour)
	s.now = func() time.Time { return past }
	tok, _, err := s.Issue(account.User{ID: "u1", Role: account.RoleStudent})
	if err != nil {
		t.Fatal(err)
	}
	s.now = time.Now
	if _, err := s.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token accepted: %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	s, users, rec := newTestService(t)
	active := seedUser(t, s, users, "instructor@example.com", "password123", true)
	seedUser(t, s, users, "suspended@example.com", "password123", false)
	ctx := context.Background()

	u, err := s.Authenticate(ctx, "Instructor@Example.com", "password123")
	if err != nil || u.ID != active.ID {
		t.Fatalf("login: %+v %v", u, err)
	}
	if len(rec.events) != 1 || rec.events[0].Type != eventlog.UserLoggedIn {
		t.Fatalf("events: %+v", rec.events)
	}
	if _, err := s.Authenticate(ctx, "instructor@example.com", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad password: %v", err)
	}
	if _, err := s.Authenticate(ctx, "ghost@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: %v", err)
	}
	if _, err := s.Authenticate(ctx, "suspended@example.com", "password123"); !errors.Is(err, ErrSuspended) {
		t.Fatalf("suspended: %v", err)
	}
	if _, err := s.Authenticate(ctx, "suspended@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("suspended with wrong password: %v", err)
	}
}

func TestRegister(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()
	u, err := s.Register(ctx, Registration{Name: " Amy ", Email: "amy@example.com", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	if u.Role != account.RoleStudent || !u.Active || u.Name != "Amy" {
		t.Fatalf("registered: %+v", u)
	}
	if _, err := s.Register(ctx, Registration{Name: "Amy", Email: "AMY@example.com", Password: "secret1"}); !errors.Is(err, account.ErrEmailTaken) {
		t.Fatalf("duplicate: %v", err)
	}
	if _, err := s.Register(ctx, Registration{Name: "Eve", Email: "eve@example.com", Password: "secret1", Role: account.RoleAdmin}); !errors.Is(err, account.ErrInvalid) {
		t.Fatalf("admin signup: %v", err)
	}
	if _, err := s.Register(ctx, Registration{Name: "Bob", Email: "bob@example.com", Password: "123"}); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak password: %v", err)
	}
}

func TestLoginHandler(t *testing.T) {
	s, users, _ := newTestService(t)
	seedUser(t, s, users, "instructor@example.com", "password123", true)
	seedUser(t, s, users, "suspended@example.com", "password123", false)

	cases := []struct {
		body string
		want int
	}{
		{`{"email":"instructor@example.com","password":"password123"}`, http.StatusOK},
		{`{"email":"instructor@example.com","password":"x"}`, http.StatusUnauthorized},
		{`{"email":"suspended@example.com","password":"password123"}`, http.StatusForbidden},
		{`{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		LoginHandler(s)(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tc.body)))
		if rec.Code != tc.want {
			t.Errorf("%s: code %d, want %d (%s)", tc.body, rec.Code, tc.want, rec.Body.String())
		}
		if rec.Code == http.StatusOK {
			var out tokenResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil || out.AccessToken == "" {
				t.Errorf("token body: %s", rec.Body.String())
			}
			if bytes.Contains(rec.Body.Bytes(), []byte("$2a$")) {
				t.Errorf("response leaks password hash: %s", rec.Body.String())
			}
		}
	}
}

func TestJWTMiddleware(t *testing.T) {
	s, _, _ := newTestService(t)
	tok, _, _ := s.Issue(account.User{ID: "u9", Role: account.RoleInstructor, Name: "Jane"})

	var got rbac.Principal
	h := JWTMiddleware(s)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = rbac.PrincipalFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing bearer: %d", rec.Code)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || got.Subject != "u9" || got.Role != "instructor" || got.Name != "Jane" {
		t.Fatalf("principal %+v code %d", got, rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimit(ctx, 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes %v", codes)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("other client throttled: %d", rec.Code)
	}
}
