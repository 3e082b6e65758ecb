package http

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-assess/internal/account"
	"github.com/mind-engage/mindengage-assess/internal/assessment"
	"github.com/mind-engage/mindengage-assess/internal/auth"
	"github.com/mind-engage/mindengage-assess/internal/eventlog"
	"github.com/mind-engage/mindengage-assess/internal/rbac"
)

// GET /users?role=&limit=&offset=
func ListUsersHandler(users account.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.List(r.Context(), account.ListOpts{
			Role:   account.Role(strings.TrimSpace(r.URL.Query().Get("role"))),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 100),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// activeAdmins counts admins who can still sign in.
func activeAdmins(ctx context.Context, users account.Store) (int, error) {
	n := 0
	for off := 0; ; off += 500 {
		page, err := users.List(ctx, account.ListOpts{Role: account.RoleAdmin, Limit: 500, Offset: off})
		if err != nil {
			return 0, err
		}
		for _, u := range page {
			if u.Active {
				n++
			}
		}
		if len(page) < 500 {
			return n, nil
		}
	}
}

// lastAdmin reports whether u is the only active admin left.
func lastAdmin(ctx context.Context, users account.Store, u account.User) (bool, error) {
	if u.Role != account.RoleAdmin || !u.Active {
		return false, nil
	}
	n, err := activeAdmins(ctx, users)
	if err != nil {
		return false, err
	}
	return n <= 1, nil
}

// PATCH /users/{id}  { "name", "role", "institute_code", "active" }
// Suspending or demoting the last admin is refused.
func UpdateUserHandler(users account.Store, events eventlog.Appender, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var p account.Patch
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		p.PasswordHash = nil
		if p.Role != nil && !p.Role.Valid() {
			http.Error(w, "invalid role", http.StatusBadRequest)
			return
		}
		cur, err := users.Get(r.Context(), id)
		if err != nil {
			httpError(w, err)
			return
		}
		demote := p.Role != nil && *p.Role != account.RoleAdmin
		suspend := p.Active != nil && !*p.Active
		if demote || suspend {
			last, err := lastAdmin(r.Context(), users, cur)
			if err != nil {
				httpError(w, err)
				return
			}
			if last {
				http.Error(w, "cannot demote or suspend the last admin", http.StatusBadRequest)
				return
			}
		}
		out, err := users.Update(r.Context(), id, p)
		if err != nil {
			httpError(w, err)
			return
		}
		if events != nil {
			err := events.Append(r.Context(), eventlog.Event{
				Type:  eventlog.UserUpdated,
				Key:   id,
				Actor: rbac.SubjectFromContext(r.Context()),
				Data:  eventlog.JSON(map[string]any{"role": out.Role, "active": out.Active}),
			})
			if err != nil {
				log.Warn("event log append failed", zap.String("type", string(eventlog.UserUpdated)), zap.String("key", id), zap.Error(err))
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// DELETE /users/{id}
func DeleteUserHandler(users account.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		cur, err := users.Get(r.Context(), id)
		if err != nil {
			httpError(w, err)
			return
		}
		last, err := lastAdmin(r.Context(), users, cur)
		if err != nil {
			httpError(w, err)
			return
		}
		if last {
			http.Error(w, "cannot delete the last admin", http.StatusBadRequest)
			return
		}
		if err := users.Delete(r.Context(), id); err != nil {
			httpError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /users/{id}/export returns the account and every submission it made
// as a downloadable JSON document.
func ExportUserHandler(users account.Store, svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := users.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, err)
			return
		}
		var subs []assessment.Submission
		for off := 0; ; off += 500 {
			page, err := svc.Store().ListSubmissions(r.Context(), assessment.SubmissionListOpts{StudentID: u.ID, Limit: 500, Offset: off})
			if err != nil {
				httpError(w, err)
				return
			}
			subs = append(subs, page...)
			if len(page) < 500 {
				break
			}
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "user_"+u.ID+".json"))
		writeJSON(w, http.StatusOK, map[string]any{"user": u, "submissions": subs})
	}
}

type importRow struct {
	Name          string       `json:"name"`
	Email         string       `json:"email"`
	Role          account.Role `json:"role"`
	InstituteCode string       `json:"institute_code,omitempty"`
	Password      string       `json:"password,omitempty"`
}

// POST /users/bulk  JSON array body, or multipart file= holding CSV or JSON.
// Existing emails are updated and keep their role unless the row names one;
// new ones need a password. Every row is checked before anything is written.
func BulkImportUsersHandler(users account.Store, authSvc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rows []importRow
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				http.Error(w, "file required", http.StatusBadRequest)
				return
			}
			defer f.Close()
			rows, err = decodeImport(f)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		} else if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			http.Error(w, "expected JSON array or multipart file", http.StatusBadRequest)
			return
		}

		for i, row := range rows {
			if (row.Role != "" && !row.Role.Valid()) || account.NormalizeEmail(row.Email) == "" {
				http.Error(w, fmt.Sprintf("row %d: email and a valid role are required", i+1), http.StatusBadRequest)
				return
			}
		}

		plan, err := planImport(r.Context(), users, authSvc, rows)
		if err != nil {
			httpError(w, err)
			return
		}
		inserted, updated, err := applyImport(r.Context(), users, plan)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"inserted": inserted, "updated": updated})
	}
}

type importOp struct {
	id    string // empty for a new account
	patch account.Patch
	user  account.User
}

// planImport resolves every row against the store, hashes passwords and
// refuses imports that would leave no active admin.
func planImport(ctx context.Context, users account.Store, authSvc *auth.Service, rows []importRow) ([]importOp, error) {
	admins := -1
	demoted := map[string]bool{}
	seen := map[string]bool{}
	ops := make([]importOp, 0, len(rows))
	for i, row := range rows {
		email := account.NormalizeEmail(row.Email)
		if seen[email] {
			return nil, fmt.Errorf("%w: row %d: duplicate email %s", account.ErrInvalid, i+1, email)
		}
		seen[email] = true
		var hash *string
		if row.Password != "" {
			h, err := authSvc.HashPassword(row.Password)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d (%s): %v", account.ErrInvalid, i+1, row.Email, err)
			}
			hash = &h
		}
		cur, err := users.GetByEmail(ctx, row.Email)
		switch {
		case err == nil:
			p := account.Patch{PasswordHash: hash}
			if row.Role != "" {
				role := row.Role
				p.Role = &role
			}
			if row.Name != "" {
				name := row.Name
				p.Name = &name
			}
			if row.InstituteCode != "" {
				code := row.InstituteCode
				p.InstituteCode = &code
			}
			if p.Role != nil && *p.Role != account.RoleAdmin && cur.Role == account.RoleAdmin && cur.Active && !demoted[cur.ID] {
				if admins < 0 {
					if admins, err = activeAdmins(ctx, users); err != nil {
						return nil, err
					}
				}
				if admins <= 1 {
					return nil, fmt.Errorf("%w: row %d: cannot demote the last admin %s", account.ErrInvalid, i+1, cur.Email)
				}
				admins--
				demoted[cur.ID] = true
			}
			ops = append(ops, importOp{id: cur.ID, patch: p})
		case errors.Is(err, account.ErrNotFound):
			if hash == nil {
				return nil, fmt.Errorf("%w: row %d: password required for new user %s", account.ErrInvalid, i+1, row.Email)
			}
			role := row.Role
			if role == "" {
				role = account.RoleStudent
			}
			ops = append(ops, importOp{user: account.User{
				Name:          row.Name,
				Email:         row.Email,
				PasswordHash:  *hash,
				Role:          role,
				InstituteCode: row.InstituteCode,
				Active:        true,
			}})
		default:
			return nil, err
		}
	}
	return ops, nil
}

func applyImport(ctx context.Context, users account.Store, ops []importOp) (inserted, updated int, err error) {
	for _, op := range ops {
		if op.id != "" {
			if _, err := users.Update(ctx, op.id, op.patch); err != nil {
				return inserted, updated, fmt.Errorf("after %d inserted, %d updated: %w", inserted, updated, err)
			}
			updated++
			continue
		}
		if _, err := users.Create(ctx, op.user); err != nil {
			return inserted, updated, fmt.Errorf("after %d inserted, %d updated: %w", inserted, updated, err)
		}
		inserted++
	}
	return inserted, updated, nil
}

// decodeImport sniffs JSON versus CSV by the first non-space byte.
func decodeImport(f io.Reader) ([]importRow, error) {
	b, err := io.ReadAll(io.LimitReader(f, 10<<20))
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return nil, errors.New("empty file")
	}
	if trimmed[0] == '[' {
		var rows []importRow
		if err := json.Unmarshal([]byte(trimmed), &rows); err != nil {
			return nil, fmt.Errorf("bad json: %w", err)
		}
		return rows, nil
	}
	return parseCSV(strings.NewReader(trimmed))
}

func parseCSV(r io.Reader) ([]importRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := idx["email"]; !ok {
		return nil, errors.New("missing column: email")
	}
	col := func(rec []string, name string) string {
		if i, ok := idx[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	var rows []importRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, importRow{
			Name:          col(rec, "name"),
			Email:         col(rec, "email"),
			Role:          account.Role(strings.ToLower(col(rec, "role"))),
			InstituteCode: col(rec, "institute_code"),
			Password:      col(rec, "password"),
		})
	}
	return rows, nil
}
