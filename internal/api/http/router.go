package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-assess/internal/account"
	"github.com/mind-engage/mindengage-assess/internal/assessment"
	"github.com/mind-engage/mindengage-assess/internal/auth"
	"github.com/mind-engage/mindengage-assess/internal/eventlog"
	"github.com/mind-engage/mindengage-assess/internal/logging"
	"github.com/mind-engage/mindengage-assess/internal/metrics"
	"github.com/mind-engage/mindengage-assess/internal/rbac"
	"github.com/mind-engage/mindengage-assess/internal/session"
)

type Deps struct {
	Auth        *auth.Service
	Assessments *assessment.Service
	Users       account.Store
	Sessions    *session.Manager
	Events      *eventlog.Repo // optional; /logs is not mounted without it
	Log         *zap.Logger
	Ready       func(ctx context.Context) error
}

type Options struct {
	CORSOrigins       []string
	AuthRatePerMinute int
	EnableSignup      bool
	RequestTimeout    time.Duration
}

// NewRouter wires every route. ctx bounds background work such as the rate
// limiter's cleanup loop.
func NewRouter(ctx context.Context, d Deps, o Options) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	var events eventlog.Appender
	if d.Events != nil {
		events = d.Events
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.Requests(d.Log), metrics.Middleware, middleware.Recoverer)
	r.Use(middleware.Timeout(o.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   o.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	limit := auth.RateLimit(ctx, o.AuthRatePerMinute, time.Minute)
	r.With(limit).Post("/auth/login", auth.LoginHandler(d.Auth))
	if o.EnableSignup {
		r.With(limit).Post("/auth/signup", auth.SignupHandler(d.Auth))
	}

	// Protected API (JWT → principal in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))

		pr.Get("/me", auth.MeHandler(d.Auth))
		pr.Post("/me/password", auth.ChangePasswordHandler(d.Auth))

		editAssessment := rbac.RequireAny(rbac.PermAssessmentEditOwn, rbac.PermAssessmentEditAny)
		pr.With(rbac.Require(rbac.PermAssessmentView)).
			Get("/assessments", ListAssessmentsHandler(d.Assessments))
		pr.With(rbac.Require(rbac.PermAssessmentCreate)).
			Post("/assessments", CreateAssessmentHandler(d.Assessments))
		pr.With(rbac.Require(rbac.PermAssessmentView)).
			Get("/assessments/{id}", GetAssessmentHandler(d.Assessments))
		pr.With(editAssessment).
			Patch("/assessments/{id}", UpdateAssessmentHandler(d.Assessments))
		pr.With(editAssessment).
			Delete("/assessments/{id}", DeleteAssessmentHandler(d.Assessments))

		// Student flow
		pr.With(rbac.Require(rbac.PermSessionTake)).
			Post("/assessments/{id}/sessions", StartSessionHandler(d.Assessments, d.Sessions))
		pr.Route("/sessions/{sessionID}", func(sr chi.Router) {
			sr.Use(rbac.Require(rbac.PermSessionTake))
			sr.Get("/", GetSessionHandler(d.Sessions))
			sr.Delete("/", DiscardSessionHandler(d.Sessions))
			sr.Put("/answers/{questionID}", SaveDraftHandler(d.Sessions))
			sr.Post("/navigate", NavigateHandler(d.Sessions))
			sr.Post("/submit", SubmitSessionHandler(d.Sessions))
		})

		viewSubmissions := rbac.RequireAny(rbac.PermSubmissionViewOwn, rbac.PermSubmissionViewAll)
		pr.With(viewSubmissions).
			Get("/submissions", ListSubmissionsHandler(d.Assessments))
		pr.With(viewSubmissions).
			Get("/submissions/{id}", GetSubmissionHandler(d.Assessments))
		pr.With(rbac.Require(rbac.PermSubmissionEvaluate)).
			Post("/submissions/{id}/evaluate", EvaluateSubmissionHandler(d.Assessments))
		pr.With(rbac.Require(rbac.PermStatsView)).
			Get("/stats", StatsHandler(d.Assessments))

		// Users (instructors list, admins manage)
		pr.With(rbac.Require(rbac.PermUsersList)).
			Get("/users", ListUsersHandler(d.Users))
		pr.With(rbac.Require(rbac.PermUsersManage)).
			Post("/users/bulk", BulkImportUsersHandler(d.Users, d.Auth))
		pr.With(rbac.Require(rbac.PermUsersManage)).
			Patch("/users/{id}", UpdateUserHandler(d.Users, events, d.Log))
		pr.With(rbac.Require(rbac.PermUsersManage)).
			Delete("/users/{id}", DeleteUserHandler(d.Users))
		pr.With(rbac.Require(rbac.PermUsersManage)).
			Get("/users/{id}/export", ExportUserHandler(d.Users, d.Assessments))

		if d.Events != nil {
			pr.With(rbac.Require(rbac.PermActivityView)).
				Get("/logs", ListActivityHandler(d.Events))
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", metrics.Handler())
	return r
}
