package account_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mind-engage/mindengage-assess/internal/account"
	"github.com/mind-engage/mindengage-assess/internal/db"
)

func stores(t *testing.T) map[string]account.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dbh, err := db.Open(context.Background(), db.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return map[string]account.Store{
		"memory": account.NewInMemoryStore(),
		"sqlite": account.NewSQLStore(dbh),
	}
}

func TestStore_Users(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u, err := st.Create(ctx, account.User{Name: "John Doe", Email: " Student@Example.com", PasswordHash: "h", Role: account.RoleStudent, Active: true})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if u.Email != "student@example.com" {
				t.Fatalf("email not normalized: %q", u.Email)
			}
			if _, err := st.Create(ctx, account.User{Name: "Dup", Email: "student@example.com", Role: account.RoleStudent}); !errors.Is(err, account.ErrEmailTaken) {
				t.Fatalf("duplicate email: %v", err)
			}
			if _, err := st.Create(ctx, account.User{Name: "Jane", Email: "instructor@example.com", Role: account.RoleInstructor, Active: true}); err != nil {
				t.Fatalf("create 2: %v", err)
			}

			got, err := st.GetByEmail(ctx, "STUDENT@example.com")
			if err != nil || got.ID != u.ID || !got.Active || got.PasswordHash != "h" {
				t.Fatalf("get by email: %+v %v", got, err)
			}

			off := false
			upd, err := st.Update(ctx, u.ID, account.Patch{Active: &off})
			if err != nil || upd.Active {
				t.Fatalf("suspend: %+v %v", upd, err)
			}
			got, _ = st.Get(ctx, u.ID)
			if got.Active || got.Name != "John Doe" {
				t.Fatalf("update not persisted: %+v", got)
			}

			students, _ := st.List(ctx, account.ListOpts{Role: account.RoleStudent})
			all, _ := st.List(ctx, account.ListOpts{})
			if len(students) != 1 || len(all) != 2 {
				t.Fatalf("list: students=%d all=%d", len(students), len(all))
			}

			if err := st.Delete(ctx, u.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := st.Get(ctx, u.ID); !errors.Is(err, account.ErrNotFound) {
				t.Fatalf("get deleted: %v", err)
			}
		})
	}
}
