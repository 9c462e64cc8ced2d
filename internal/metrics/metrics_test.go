package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewCollector(t *testing.T) {
	c := NewCollector("chaos")
	if c == nil {
		t.Fatal("expected non-nil collector")
	}
	if c.Registry() == nil {
		t.Fatal("expected non-nil registry")
	}
}

func TestCollectorHandlerExposesMetrics(t *testing.T) {
	c := NewCollector("chaos")

	c.InjectionsTotal.WithLabelValues("crash").Inc()
	c.InjectionsTotal.WithLabelValues("slowdown").Add(2)
	c.WriteFailuresTotal.Inc()
	c.RequestsTotal.WithLabelValues("healthy", "200").Inc()
	c.InjectedDelay.Observe(15)
	c.RestartsTotal.Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`chaos_fault_injections_total{scenario="crash"} 1`,
		`chaos_fault_injections_total{scenario="slowdown"} 2`,
		`chaos_state_write_failures_total 1`,
		`chaos_http_requests_total{mode="healthy",status="200"} 1`,
		`chaos_target_restarts_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
