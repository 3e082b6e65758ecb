package seed

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-assess/internal/account"
	"github.com/mind-engage/mindengage-assess/internal/assessment"
)

type plainHasher struct{}

func (plainHasher) HashPassword(pw string) (string, error) { return "hashed:" + pw, nil }

func TestDemo_Idempotent(t *testing.T) {
	ctx := context.Background()
	users := account.NewInMemoryStore()
	store := assessment.NewInMemoryStore()

	wrote, err := Demo(ctx, users, store, plainHasher{}, zap.NewNop())
	if err != nil || !wrote {
		t.Fatalf("first seed: %v %v", wrote, err)
	}
	wrote, err = Demo(ctx, users, store, plainHasher{}, zap.NewNop())
	if err != nil || wrote {
		t.Fatalf("second seed: %v %v", wrote, err)
	}

	all, _ := users.List(ctx, account.ListOpts{})
	if len(all) != len(demoUsers) {
		t.Fatalf("users %d", len(all))
	}
	john, _ := users.GetByEmail(ctx, "student@example.com")
	if john.PasswordHash != "hashed:"+DemoPassword || !john.Active {
		t.Fatalf("john: %+v", john)
	}

	open, _ := store.ListAssessments(ctx, assessment.ListOpts{StudentID: john.ID, Status: assessment.StatusActive})
	if len(open) != 3 {
		t.Fatalf("john sees %d active assessments, want 3", len(open))
	}
	alice, _ := users.GetByEmail(ctx, "alice@student.com")
	open, _ = store.ListAssessments(ctx, assessment.ListOpts{StudentID: alice.ID, Status: assessment.StatusActive})
	if len(open) != 2 {
		t.Fatalf("alice sees %d active assessments, want 2", len(open))
	}
}
