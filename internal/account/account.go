package account

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("user already exists with this email")
	ErrInvalid    = errors.New("invalid user")
)

type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleInstructor || r == RoleAdmin
}

type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Role          Role      `json:"role"`
	InstituteCode string    `json:"institute_code,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

type Patch struct {
	Name          *string `json:"name,omitempty"`
	Role          *Role   `json:"role,omitempty"`
	InstituteCode *string `json:"institute_code,omitempty"`
	Active        *bool   `json:"active,omitempty"`
	PasswordHash  *string `json:"-"`
}

func (p Patch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.InstituteCode != nil {
		u.InstituteCode = *p.InstituteCode
	}
	if p.Active != nil {
		u.Active = *p.Active
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	return u
}

type ListOpts struct {
	Role   Role
	Limit  int
	Offset int
}

type Store interface {
	Create(ctx context.Context, u User) (User, error)
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, opts ListOpts) ([]User, error)
	Update(ctx context.Context, id string, p Patch) (User, error)
	Delete(ctx context.Context, id string) error
}

// NormalizeEmail lower-cases and trims an address for lookups.
func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
