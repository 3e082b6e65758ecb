// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "assess_sessions_active",
		Help: "Assessment sessions currently in progress",
	})

	AutoSubmits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assess_auto_submits_total",
		Help: "Sessions submitted because their timer ran out",
	})

	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assess_submissions_total",
			Help: "Stored submissions by initial status",
		},
		[]string{"status"},
	)

	Evaluations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assess_evaluations_total",
		Help: "Submissions finalized by an instructor",
	})

	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assess_login_attempts_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)
)

var once sync.Once

// Init registers the collectors with the default registry. Safe to call more
// than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			SessionsActive,
			AutoSubmits,
			Submissions,
			Evaluations,
			LoginAttempts,
		)
	})
}

// Middleware records request count and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler { return promhttp.Handler() }
