package web

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for proxied requests.
const (
	outcomeOK = "ok"
)

// Metrics collects front-end counters on a private registry so tests can
// build as many servers as they like.
type Metrics struct {
	registry        *prometheus.Registry
	proxyRequests   *prometheus.CounterVec
	backendDuration prometheus.Histogram
	staleAnswers    prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		proxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "psy_proxy_requests_total",
			Help: "Proxied chat requests by outcome.",
		}, []string{"outcome"}),
		backendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "psy_backend_request_duration_seconds",
			Help:    "Latency of calls to the inference backend.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		staleAnswers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "psy_stale_answers_total",
			Help: "Backend answers discarded because a newer question was issued.",
		}),
	}
	m.registry.MustRegister(m.proxyRequests, m.backendDuration, m.staleAnswers)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeProxy(outcome string) {
	if m == nil {
		return
	}
	m.proxyRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeBackend(seconds float64) {
	if m == nil {
		return
	}
	m.backendDuration.Observe(seconds)
}

func (m *Metrics) observeStale() {
	if m == nil {
		return
	}
	m.staleAnswers.Inc()
}
