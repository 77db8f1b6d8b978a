// Package metrics defines and registers the Prometheus collectors the
// dispatcher, watcher, and rule executor update as they run. Grounded on
// the pack's internal/metrics packages (package-level prometheus.Metric
// vars, a sync.Once-guarded Init serving /metrics on its own port).
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamops_jobs_enqueued_total",
			Help: "Total number of jobs enqueued, by kind.",
		},
		[]string{"kind"},
	)
	JobsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamops_jobs_completed_total",
			Help: "Total number of jobs reaching a terminal state, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamops_job_duration_seconds",
			Help:    "Histogram of job execution durations, by kind.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"kind"},
	)
	JobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamops_jobs_in_flight",
			Help: "Current number of jobs in the running state.",
		},
	)
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamops_queue_depth",
			Help: "Current number of queued (not yet dispatched) jobs.",
		},
	)
	RuleMatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamops_rule_matches_total",
			Help: "Total number of times a rule's trigger matched an event, by rule name.",
		},
		[]string{"rule"},
	)
	RuleActionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamops_rule_action_failures_total",
			Help: "Total number of rule action failures, by action type.",
		},
		[]string{"action"},
	)
	AssetsIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "streamops_assets_indexed_total",
			Help: "Total number of assets (re)indexed.",
		},
	)
	WatcherEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamops_watcher_events_total",
			Help: "Total number of stable-file events emitted by the watcher, by role.",
		},
		[]string{"role"},
	)

	initOnce sync.Once
)

// Init registers every collector and starts a /metrics server on addr. It
// is a no-op on any call after the first, matching the pack's
// once-per-process registration pattern (prometheus.MustRegister panics on
// double registration, which would otherwise break test setup that
// constructs more than one component in the same process).
func Init(addr string) {
	initOnce.Do(func() {
		prometheus.MustRegister(
			JobsEnqueued, JobsCompleted, JobDuration, JobsInFlight, QueueDepth,
			RuleMatches, RuleActionFailures, AssetsIndexed, WatcherEvents,
		)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			_ = http.ListenAndServe(addr, mux)
		}()
	})
}
