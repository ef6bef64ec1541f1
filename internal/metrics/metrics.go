// Package metrics provides Prometheus collection for the need-check
// pipeline and the task worker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records pipeline and fan-out outcomes.
type Collector struct {
	fetchSuccess  *prometheus.CounterVec
	fetchFail     *prometheus.CounterVec
	fetchLatency  prometheus.Histogram
	detectOutcome *prometheus.CounterVec
	notifySent    *prometheus.CounterVec
	notifyFail    *prometheus.CounterVec
	tasksRun      *prometheus.CounterVec
}

// NewCollector registers the needwatch metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "needwatch_fetch_success_total",
			Help: "Successful shopping-list fetches by source kind.",
		}, []string{"source_kind"}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "needwatch_fetch_fail_total",
			Help: "Failed shopping-list fetches by source kind and error kind.",
		}, []string{"source_kind", "error_kind"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "needwatch_fetch_latency_seconds",
			Help:    "Shopping-list fetch latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		detectOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "needwatch_detect_outcome_total",
			Help: "Change detector outcomes.",
		}, []string{"outcome"}),
		notifySent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "needwatch_notification_sent_total",
			Help: "Notifications sent by channel.",
		}, []string{"channel"}),
		notifyFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "needwatch_notification_fail_total",
			Help: "Notification send failures by channel.",
		}, []string{"channel"}),
		tasksRun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "needwatch_tasks_run_total",
			Help: "Executed queue tasks by job name and status.",
		}, []string{"name", "status"}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.fetchLatency,
		c.detectOutcome,
		c.notifySent,
		c.notifyFail,
		c.tasksRun,
	)
	return c
}

// RecordFetchSuccess counts a completed fetch for a source kind.
func (c *Collector) RecordFetchSuccess(sourceKind string) {
	c.fetchSuccess.WithLabelValues(sourceKind).Inc()
}

// RecordFetchFailure counts a failed fetch.
func (c *Collector) RecordFetchFailure(sourceKind, errorKind string) {
	c.fetchFail.WithLabelValues(sourceKind, errorKind).Inc()
}

// RecordFetchLatency observes the wall-clock duration of one fetch.
func (c *Collector) RecordFetchLatency(d time.Duration) {
	c.fetchLatency.Observe(d.Seconds())
}

// RecordDetectOutcome counts a change-detector decision.
func (c *Collector) RecordDetectOutcome(outcome string) {
	c.detectOutcome.WithLabelValues(outcome).Inc()
}

// RecordNotificationSent counts one successful channel send.
func (c *Collector) RecordNotificationSent(channel string) {
	c.notifySent.WithLabelValues(channel).Inc()
}

// RecordNotificationFailure counts one failed channel send.
func (c *Collector) RecordNotificationFailure(channel string) {
	c.notifyFail.WithLabelValues(channel).Inc()
}

// RecordTaskRun counts one executed task with its final status.
func (c *Collector) RecordTaskRun(name, status string) {
	c.tasksRun.WithLabelValues(name, status).Inc()
}

// Handler returns the HTTP handler exposing metrics for the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
