package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SQLStore struct{ db *sql.DB }

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

const userCols = `id,name,email,password_hash,role,institute_code,active,created_at`

func (s *SQLStore) Create(ctx context.Context, u User) (User, error) {
	u.Email = NormalizeEmail(u.Email)
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (`+userCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.InstituteCode, boolInt(u.Active), u.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (User, error) {
	return s.one(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id)
}

func (s *SQLStore) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.one(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, NormalizeEmail(email))
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]User, error) {
	limit, offset := clampPage(opts.Limit, opts.Offset)
	var (
		rows *sql.Rows
		err  error
	)
	if opts.Role == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+userCols+` FROM users ORDER BY email LIMIT $1 OFFSET $2`, limit, offset)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+userCols+` FROM users WHERE role=$1 ORDER BY email LIMIT $2 OFFSET $3`,
			string(opts.Role), limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLStore) Update(ctx context.Context, id string, p Patch) (User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	u = p.Apply(u)
	_, err = s.db.ExecContext(ctx, `UPDATE users SET name=$1, role=$2, institute_code=$3, active=$4, password_hash=$5 WHERE id=$6`,
		u.Name, string(u.Role), u.InstituteCode, boolInt(u.Active), u.PasswordHash, id)
	if err != nil {
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) one(ctx context.Context, q string, arg any) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(r scanner) (User, error) {
	var (
		u       User
		role    string
		active  int
		created int64
	)
	if err := r.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.InstituteCode, &active, &created); err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	u.Active = active != 0
	u.CreatedAt = time.Unix(created, 0).UTC()
	return u, nil
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite
		strings.Contains(msg, "duplicate key value") // postgres
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
