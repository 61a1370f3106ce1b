package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserverCounters(t *testing.T) {
	m := New()
	m.AnswerSubmitted("correct", 10)
	m.AnswerSubmitted("incorrect", 0)
	m.RewardPurchased("ok", 15)
	m.RewardPurchased("insufficient_balance", 15)

	if got := testutil.ToFloat64(m.creditedPoints); got != 10 {
		t.Fatalf("expected 10 credited points, got %v", got)
	}
	if got := testutil.ToFloat64(m.submissions.WithLabelValues("incorrect")); got != 1 {
		t.Fatalf("expected one incorrect submission, got %v", got)
	}
	if got := testutil.ToFloat64(m.spentPoints); got != 15 {
		t.Fatalf("only successful purchases spend points, got %v", got)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/trails/{trailID}/progress", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/trails/t1/progress", nil))

	if got := testutil.ToFloat64(m.requestCounter.WithLabelValues("GET", "/api/trails/{trailID}/progress", "418")); got != 1 {
		t.Fatalf("expected one request recorded by pattern, got %v", got)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("expected exposition to include request counter")
	}
}
