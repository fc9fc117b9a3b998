// Package metrics exposes Prometheus instrumentation for poll loops and the
// reconciler. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailure     = "failure"
	OutcomeAuth        = "auth"
	OutcomeSkipped     = "skipped"
)

// Metrics holds the collectors for one process
type Metrics struct {
	registry *prometheus.Registry

	FetchesTotal       *prometheus.CounterVec
	FetchDuration      *prometheus.HistogramVec
	PendingPosts       *prometheus.GaugeVec
	RetryAttempt       *prometheus.GaugeVec
	LoopStops          *prometheus.CounterVec
	ReconcileMerges    *prometheus.CounterVec
	ReconcileErrors    *prometheus.CounterVec
	ReconcileBatchSize *prometheus.HistogramVec
}

// New creates a Metrics with its own registry so tests and multiple
// instances never collide on the default registerer
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		FetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solfeed_fetches_total",
				Help: "Total feed fetch attempts by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solfeed_fetch_duration_seconds",
				Help:    "Feed fetch duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"channel"},
		),
		PendingPosts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "solfeed_pending_posts",
				Help: "Posts discovered since the cursor was last advanced",
			},
			[]string{"channel"},
		),
		RetryAttempt: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "solfeed_retry_attempt",
				Help: "Consecutive failed fetches since the last success",
			},
			[]string{"channel"},
		),
		LoopStops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solfeed_loop_stops_total",
				Help: "Poll loops stopped by an error",
			},
			[]string{"channel", "reason"},
		),
		ReconcileMerges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solfeed_reconcile_merges_total",
				Help: "Entries changed by a reconcile pass",
			},
			[]string{"kind"},
		),
		ReconcileErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solfeed_reconcile_errors_total",
				Help: "Failed reconcile batch requests",
			},
			[]string{"kind"},
		),
		ReconcileBatchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solfeed_reconcile_batch_size",
				Help:    "Number of keys sent per reconcile batch",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(
		m.FetchesTotal,
		m.FetchDuration,
		m.PendingPosts,
		m.RetryAttempt,
		m.LoopStops,
		m.ReconcileMerges,
		m.ReconcileErrors,
		m.ReconcileBatchSize,
	)
	return m
}

// Registry returns the registry backing m
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFetch records one fetch attempt
func (m *Metrics) ObserveFetch(channel, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(channel, outcome).Inc()
	if outcome != OutcomeSkipped {
		m.FetchDuration.WithLabelValues(channel).Observe(d.Seconds())
	}
}

func (m *Metrics) SetPending(channel string, n int) {
	if m == nil {
		return
	}
	m.PendingPosts.WithLabelValues(channel).Set(float64(n))
}

func (m *Metrics) SetRetry(channel string, attempt int) {
	if m == nil {
		return
	}
	m.RetryAttempt.WithLabelValues(channel).Set(float64(attempt))
}

// LoopStopped counts a loop halted by auth failure or exhausted retries
func (m *Metrics) LoopStopped(channel, reason string) {
	if m == nil {
		return
	}
	m.LoopStops.WithLabelValues(channel, reason).Inc()
}

// ObserveReconcile records a batch of n keys that changed merged entries
func (m *Metrics) ObserveReconcile(kind string, n, merged int) {
	if m == nil {
		return
	}
	m.ReconcileBatchSize.WithLabelValues(kind).Observe(float64(n))
	if merged > 0 {
		m.ReconcileMerges.WithLabelValues(kind).Add(float64(merged))
	}
}

func (m *Metrics) ReconcileFailed(kind string) {
	if m == nil {
		return
	}
	m.ReconcileErrors.WithLabelValues(kind).Inc()
}

// Router serves /metrics and /healthz
func (m *Metrics) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

// NewServer builds an HTTP server for Router on addr. The caller owns
// ListenAndServe and Shutdown.
func (m *Metrics) NewServer(addr string) *http.Server {
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	return &http.Server{
		Addr:              addr,
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
