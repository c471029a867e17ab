// Package metrics collects Prometheus metrics for the executor and plugin
// hosts. Adapted from the teacher's pkg/common/metrics.MetricsCollector:
// same promauto + Namespace constant pattern, trimmed from search-engine
// concerns (query/shard/raft/gRPC/HTTP) down to the pipeline metrics this
// engine actually produces — stages executed/failed, level duration,
// plugin load count.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all Conveyor metrics.
const Namespace = "conveyor"

// Collector aggregates the executor's and plugin hosts' metrics.
type Collector struct {
	StagesExecutedTotal  prometheus.Counter
	StagesFailedTotal    prometheus.Counter
	StageDuration        prometheus.Histogram
	LevelDurationSeconds prometheus.Histogram
	PluginsLoadedTotal   *prometheus.CounterVec
	PluginLoadFailures   *prometheus.CounterVec
	DeadLetterTotal      prometheus.Counter
}

// New creates a Collector for the given component (cmd/conveyor passes
// "engine").
func New(component string) *Collector {
	return &Collector{
		StagesExecutedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: component,
			Name:      "stages_executed_total",
			Help:      "Total number of stage executions attempted.",
		}),
		StagesFailedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: component,
			Name:      "stages_failed_total",
			Help:      "Total number of stage executions that ultimately failed.",
		}),
		StageDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: component,
			Name:      "stage_duration_seconds",
			Help:      "Stage execution duration in seconds.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		LevelDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: component,
			Name:      "level_duration_seconds",
			Help:      "Wall-clock duration of one DAG level's concurrent execution.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		PluginsLoadedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: component,
			Name:      "plugins_loaded_total",
			Help:      "Total number of plugins successfully loaded, by host kind.",
		}, []string{"host"}),
		PluginLoadFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: component,
			Name:      "plugin_load_failures_total",
			Help:      "Total number of plugin load failures, by host kind.",
		}, []string{"host"}),
		DeadLetterTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: component,
			Name:      "dead_letter_records_total",
			Help:      "Total number of records appended to the dead-letter file.",
		}),
	}
}

// StageExecuted records a completed stage execution's duration.
func (c *Collector) StageExecuted(d time.Duration) {
	c.StagesExecutedTotal.Inc()
	c.StageDuration.Observe(d.Seconds())
}

// StageFailed increments the failure counter (called after retries are
// exhausted, not per attempt).
func (c *Collector) StageFailed() {
	c.StagesFailedTotal.Inc()
}

// LevelCompleted records how long one DAG level took to drain.
func (c *Collector) LevelCompleted(d time.Duration) {
	c.LevelDurationSeconds.Observe(d.Seconds())
}

// PluginLoaded records a successful plugin load for the given host kind
// ("native" or "wasm").
func (c *Collector) PluginLoaded(host string) {
	c.PluginsLoadedTotal.WithLabelValues(host).Inc()
}

// PluginLoadFailed records a failed plugin load attempt.
func (c *Collector) PluginLoadFailed(host string) {
	c.PluginLoadFailures.WithLabelValues(host).Inc()
}

// DeadLettered records one appended dead-letter record.
func (c *Collector) DeadLettered() {
	c.DeadLetterTotal.Inc()
}
