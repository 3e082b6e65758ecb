package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-assess/internal/account"
	"github.com/mind-engage/mindengage-assess/internal/rbac"
)

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        account.User `json:"user"`
}

func (s *Service) respondWithToken(w http.ResponseWriter, status int, u account.User) {
	tok, exp, err := s.Issue(u)
	if err != nil {
		http.Error(w, "issue token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: tok, ExpiresAt: exp, User: u})
}

// POST /auth/login  { "email": "...", "password": "..." }
func LoginHandler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		u, err := s.Authenticate(r.Context(), req.Email, req.Password)
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		case errors.Is(err, ErrSuspended):
			http.Error(w, "account suspended, contact your administrator", http.StatusForbidden)
			return
		case err != nil:
			http.Error(w, "login failed", http.StatusInternalServerError)
			return
		}
		s.respondWithToken(w, http.StatusOK, u)
	}
}

// POST /auth/signup  { "name", "email", "password", "role", "institute_code" }
func SignupHandler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reg Registration
		if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		u, err := s.Register(r.Context(), reg)
		switch {
		case errors.Is(err, account.ErrEmailTaken):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case errors.Is(err, account.ErrInvalid), errors.Is(err, ErrWeakPassword):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			http.Error(w, "signup failed", http.StatusInternalServerError)
			return
		}
		s.respondWithToken(w, http.StatusCreated, u)
	}
}

// GET /me
func MeHandler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := s.users.Get(r.Context(), rbac.SubjectFromContext(r.Context()))
		if errors.Is(err, account.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(u)
	}
}

// POST /me/password  { "old_password", "new_password" }
func ChangePasswordHandler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OldPassword string `json:"old_password"`
			NewPassword string `json:"new_password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		err := s.ChangePassword(r.Context(), rbac.SubjectFromContext(r.Context()), req.OldPassword, req.NewPassword)
		switch {
		case errors.Is(err, account.ErrNotFound):
			http.Error(w, "user not found", http.StatusNotFound)
		case errors.Is(err, ErrInvalidCredentials):
			http.Error(w, "incorrect old password", http.StatusForbidden)
		case errors.Is(err, ErrWeakPassword):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// JWTMiddleware verifies the bearer token and puts the caller into the
// request context.
func JWTMiddleware(s *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			c, err := s.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			ctx := rbac.WithPrincipal(r.Context(), rbac.Principal{
				Subject:       c.Subject,
				Role:          c.Role,
				Name:          c.Name,
				InstituteCode: c.InstituteCode,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
