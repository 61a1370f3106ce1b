package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. It implements app.Observer.
type Metrics struct {
	registry *prometheus.Registry

	submissions     *prometheus.CounterVec
	creditedPoints  prometheus.Counter
	purchases       *prometheus.CounterVec
	spentPoints     prometheus.Counter
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "answer_submissions_total",
				Help: "Answer submissions by outcome",
			},
			[]string{"outcome"},
		),
		creditedPoints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "points_credited_total",
			Help: "Quiz points credited to balances",
		}),
		purchases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reward_purchases_total",
				Help: "Reward purchases by outcome",
			},
			[]string{"outcome"},
		),
		spentPoints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "points_spent_total",
			Help: "Points debited by reward purchases",
		}),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
			},
			[]string{"method", "endpoint"},
		),
	}
	m.registry.MustRegister(
		m.submissions, m.creditedPoints, m.purchases, m.spentPoints,
		m.requestCounter, m.requestDuration,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) AnswerSubmitted(outcome string, pointsCredited int) {
	m.submissions.WithLabelValues(outcome).Inc()
	if pointsCredited > 0 {
		m.creditedPoints.Add(float64(pointsCredited))
	}
}

func (m *Metrics) RewardPurchased(outcome string, cost int) {
	m.purchases.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.spentPoints.Add(float64(cost))
	}
}

// Middleware records request count and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
