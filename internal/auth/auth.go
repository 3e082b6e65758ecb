package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-assess/internal/account"
	"github.com/mind-engage/mindengage-assess/internal/eventlog"
	"github.com/mind-engage/mindengage-assess/internal/metrics"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSuspended          = errors.New("account suspended")
	ErrInvalidToken       = errors.New("invalid token")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
)

const issuer = "mindengage-assess"

type Claims struct {
	Role          string `json:"role"`
	Name          string `json:"name,omitempty"`
	InstituteCode string `json:"institute_code,omitempty"`
	jwt.RegisteredClaims
}

type Service struct {
	hmac   []byte
	ttl    time.Duration
	cost   int
	users  account.Store
	events eventlog.Appender
	log    *zap.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(c int) Option { return func(s *Service) { s.cost = c } }

func WithEvents(a eventlog.Appender) Option { return func(s *Service) { s.events = a } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(secret string, ttl time.Duration, users account.Store, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	s := &Service{
		hmac:  []byte(secret),
		ttl:   ttl,
		cost:  12,
		users: users,
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Issue signs a token for u valid for the configured lifetime.
func (s *Service) Issue(u account.User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := &Claims{
		Role:          string(u.Role),
		Name:          u.Name,
		InstituteCode: u.InstituteCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.hmac)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

func (s *Service) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.hmac, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

func (s *Service) HashPassword(pw string) (string, error) {
	if len(pw) < 6 {
		return "", ErrWeakPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), s.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Authenticate checks email and password. Suspended accounts are refused
// only after the password matches.
func (s *Service) Authenticate(ctx context.Context, email, password string) (account.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, account.ErrNotFound) {
		metrics.LoginAttempts.WithLabelValues("unknown").Inc()
		return account.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return account.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		metrics.LoginAttempts.WithLabelValues("bad_password").Inc()
		return account.User{}, ErrInvalidCredentials
	}
	if !u.Active {
		metrics.LoginAttempts.WithLabelValues("suspended").Inc()
		return account.User{}, ErrSuspended
	}
	metrics.LoginAttempts.WithLabelValues("ok").Inc()
	s.record(ctx, eventlog.UserLoggedIn, u.ID, u.ID, map[string]any{"role": u.Role})
	return u, nil
}

type Registration struct {
	Name          string       `json:"name"`
	Email         string       `json:"email"`
	Password      string       `json:"password"`
	Role          account.Role `json:"role"`
	InstituteCode string       `json:"institute_code,omitempty"`
}

// Register creates an active account. Self-service signup cannot create
// admins.
func (s *Service) Register(ctx context.Context, reg Registration) (account.User, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	if reg.Name == "" || account.NormalizeEmail(reg.Email) == "" {
		return account.User{}, fmt.Errorf("%w: name and email are required", account.ErrInvalid)
	}
	if reg.Role == "" {
		reg.Role = account.RoleStudent
	}
	if reg.Role != account.RoleStudent && reg.Role != account.RoleInstructor {
		return account.User{}, fmt.Errorf("%w: role %q", account.ErrInvalid, reg.Role)
	}
	hash, err := s.HashPassword(reg.Password)
	if err != nil {
		return account.User{}, err
	}
	u, err := s.users.Create(ctx, account.User{
		Name:          reg.Name,
		Email:         reg.Email,
		PasswordHash:  hash,
		Role:          reg.Role,
		InstituteCode: reg.InstituteCode,
		Active:        true,
	})
	if err != nil {
		return account.User{}, err
	}
	s.record(ctx, eventlog.UserRegistered, u.ID, u.ID, map[string]any{"role": u.Role})
	return u, nil
}

func (s *Service) ChangePassword(ctx context.Context, userID, oldPw, newPw string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPw)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := s.HashPassword(newPw)
	if err != nil {
		return err
	}
	_, err = s.users.Update(ctx, userID, account.Patch{PasswordHash: &hash})
	return err
}

func (s *Service) record(ctx context.Context, typ, key, actor string, data any) {
	if s.events == nil {
		return
	}
	if err := s.events.Append(ctx, eventlog.Event{Type: typ, Key: key, Actor: actor, Data: eventlog.JSON(data)}); err != nil {
		s.log.Warn("append event", zap.String("type", typ), zap.Error(err))
	}
}
