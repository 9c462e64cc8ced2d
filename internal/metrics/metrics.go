package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを保持する。
// プロセスごとに1つ作成し、各コンポーネントに注入する。
type Collector struct {
	registry *prometheus.Registry

	// Coordinator
	InjectionsTotal    *prometheus.CounterVec
	WriteFailuresTotal prometheus.Counter
	FaultsClearedTotal prometheus.Counter

	// Target
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InjectedDelay   prometheus.Histogram

	// Supervisor
	RestartsTotal    prometheus.Counter
	CrashExitsTotal  prometheus.Counter
}

// NewCollector は新しいCollectorを作成する
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	injectionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fault_injections_total",
			Help:      "Total number of fault injections by scenario",
		},
		[]string{"scenario"},
	)

	writeFailuresTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_write_failures_total",
			Help:      "Total number of failed failure-state writes",
		},
	)

	faultsClearedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_cleared_total",
			Help:      "Total number of faults cleared back to healthy",
		},
	)

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by active failure mode and status",
		},
		[]string{"mode", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	injectedDelay := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "injected_delay_seconds",
			Help:      "Artificial delay applied to requests under slow mode",
			Buckets:   []float64{1, 5, 10, 15, 20, 25, 30, 60},
		},
	)

	restartsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "target_restarts_total",
			Help:      "Total number of target process restarts",
		},
	)

	crashExitsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "target_crash_exits_total",
			Help:      "Total number of target exits with the simulated crash code",
		},
	)

	registry.MustRegister(
		injectionsTotal,
		writeFailuresTotal,
		faultsClearedTotal,
		requestsTotal,
		requestDuration,
		injectedDelay,
		restartsTotal,
		crashExitsTotal,
	)

	return &Collector{
		registry:           registry,
		InjectionsTotal:    injectionsTotal,
		WriteFailuresTotal: writeFailuresTotal,
		FaultsClearedTotal: faultsClearedTotal,
		RequestsTotal:      requestsTotal,
		RequestDuration:    requestDuration,
		InjectedDelay:      injectedDelay,
		RestartsTotal:      restartsTotal,
		CrashExitsTotal:    crashExitsTotal,
	}
}

// Handler は/metricsエンドポイント用のハンドラを返す
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry は内部のレジストリを返す（テスト用）
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
