package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mind-engage/mindengage-assess/internal/account"
	"github.com/mind-engage/mindengage-assess/internal/eventlog"
)

type brokenLog struct{}

func (brokenLog) Append(context.Context, eventlog.Event) error { return errors.New("disk full") }

func TestUpdateUserLogsEventFailure(t *testing.T) {
	users := account.NewInMemoryStore()
	u, err := users.Create(context.Background(), account.User{Name: "Ann", Email: "ann@example.com", Role: account.RoleStudent, Active: true})
	if err != nil {
		t.Fatal(err)
	}
	core, logs := observer.New(zapcore.WarnLevel)

	r := chi.NewRouter()
	r.Patch("/users/{id}", UpdateUserHandler(users, brokenLog{}, zap.New(core)))
	req := httptest.NewRequest(http.MethodPatch, "/users/"+u.ID, strings.NewReader(`{"name":"Ann B"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	entries := logs.FilterMessage("event log append failed").All()
	if len(entries) != 1 {
		t.Fatalf("warn entries = %d", len(entries))
	}
	if got := entries[0].ContextMap()["error"]; got != "disk full" {
		t.Fatalf("logged error = %v", got)
	}
}

func TestActiveAdminsSkipsSuspended(t *testing.T) {
	ctx := context.Background()
	users := account.NewInMemoryStore()
	for _, u := range []account.User{
		{Email: "a@example.com", Role: account.RoleAdmin, Active: true},
		{Email: "b@example.com", Role: account.RoleAdmin, Active: false},
		{Email: "c@example.com", Role: account.RoleStudent, Active: true},
	} {
		if _, err := users.Create(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	n, err := activeAdmins(ctx, users)
	if err != nil || n != 1 {
		t.Fatalf("active admins = %d, %v", n, err)
	}
	a, _ := users.GetByEmail(ctx, "a@example.com")
	b, _ := users.GetByEmail(ctx, "b@example.com")
	if last, _ := lastAdmin(ctx, users, a); !last {
		t.Fatal("sole active admin not reported as last")
	}
	if last, _ := lastAdmin(ctx, users, b); last {
		t.Fatal("suspended admin reported as last")
	}
}
