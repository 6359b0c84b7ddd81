package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values shared by the domain counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "adminportal_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adminportal_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adminportal_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// LoginAttempts counts authentication attempts by credential source and outcome.
	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adminportal_login_attempts_total",
			Help: "Authentication attempts by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	// OTPVerifications counts one-time code checks by operation type and outcome.
	OTPVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adminportal_otp_verifications_total",
			Help: "One-time code verifications by operation type and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	// Invitations counts invitation lifecycle events (created, resent, accepted, rejected).
	Invitations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adminportal_invitation_events_total",
			Help: "Invitation lifecycle events.",
		},
		[]string{"event"},
	)

	// LegacyPasswordComparisons counts verifications against non-digest stored credentials.
	LegacyPasswordComparisons = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adminportal_legacy_password_comparisons_total",
		Help: "Password verifications that fell back to plaintext comparison.",
	})

	// SweptRows counts rows deleted by the expiry sweeper.
	SweptRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adminportal_swept_rows_total",
			Help: "Expired rows deleted by the sweeper.",
		},
		[]string{"table"},
	)
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		LoginAttempts, OTPVerifications, Invitations, LegacyPasswordComparisons, SweptRows,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records request count, latency and in-flight gauge labelled by
// the matched chi route pattern, so path parameters do not explode cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
