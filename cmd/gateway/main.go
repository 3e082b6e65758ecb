package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-assess/internal/account"
	api "github.com/mind-engage/mindengage-assess/internal/api/http"
	"github.com/mind-engage/mindengage-assess/internal/assessment"
	"github.com/mind-engage/mindengage-assess/internal/auth"
	"github.com/mind-engage/mindengage-assess/internal/config"
	"github.com/mind-engage/mindengage-assess/internal/db"
	"github.com/mind-engage/mindengage-assess/internal/eventlog"
	"github.com/mind-engage/mindengage-assess/internal/logging"
	"github.com/mind-engage/mindengage-assess/internal/metrics"
	"github.com/mind-engage/mindengage-assess/internal/seed"
	"github.com/mind-engage/mindengage-assess/internal/session"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("gateway stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	metrics.Init()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		return err
	}
	defer dbh.Close()

	users := account.NewSQLStore(dbh)
	events := eventlog.NewRepo(dbh, cfg.SiteID)
	assessments := assessment.NewService(assessment.NewSQLStore(dbh), events, logger.Named("assessment"))
	authSvc := auth.NewService(cfg.AuthHMACSecret, cfg.TokenTTL, users,
		auth.WithEvents(events), auth.WithLogger(logger.Named("auth")))

	if cfg.SeedDemo {
		if _, err := seed.Demo(ctx, users, assessments.Store(), authSvc, logger); err != nil {
			return err
		}
	}

	sessions := session.NewManager(assessments.RecordSubmission, session.WithLogger(logger.Named("session")))
	defer sessions.Close()

	handler := api.NewRouter(ctx, api.Deps{
		Auth:        authSvc,
		Assessments: assessments,
		Users:       users,
		Sessions:    sessions,
		Events:      events,
		Log:         logger.Named("http"),
		Ready:       dbh.PingContext,
	}, api.Options{
		CORSOrigins:       cfg.CORSOrigins(),
		AuthRatePerMinute: cfg.AuthRatePerMinute,
		EnableSignup:      cfg.EnableSignup,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("mode", string(cfg.Mode)),
			zap.String("db", cfg.DBDriver))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Int("live_sessions", sessions.Len()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
