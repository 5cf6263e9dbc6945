// Package metrics exports Prometheus counters for authentication, password
// resets, cart mutations and HTTP latency.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketplace"

type Metrics struct {
	AuthFailures         *prometheus.CounterVec
	AuthorizationDenied  prometheus.Counter
	ResetRequests        prometheus.Counter
	ResetCompleted       prometheus.Counter
	NotificationFailures prometheus.Counter
	CartMutations        *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	StoreCacheLookups    *prometheus.CounterVec
}

// NewMetrics registers every collector with reg. Tests pass a fresh
// prometheus.NewRegistry so repeated construction does not panic.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Requests rejected before an identity was established",
			},
			[]string{"reason"},
		),
		AuthorizationDenied: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "authorization_denied_total",
				Help:      "Requests denied by the role gate",
			},
		),
		ResetRequests: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "password_reset_requests_total",
				Help:      "Reset tokens issued",
			},
		),
		ResetCompleted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "password_reset_completed_total",
				Help:      "Passwords changed through a reset token",
			},
		),
		NotificationFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_failures_total",
				Help:      "Outbound notifications that could not be delivered",
			},
		),
		CartMutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cart_mutations_total",
				Help:      "Committed cart mutations by operation",
			},
			[]string{"op"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		StoreCacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_cache_lookups_total",
				Help:      "Top-stores cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) RecordAuthFailure(reason string) {
	m.AuthFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordCartMutation(op string) {
	m.CartMutations.WithLabelValues(op).Inc()
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.StoreCacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the collectors registered with g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
