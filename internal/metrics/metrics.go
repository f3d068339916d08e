// Package metrics exposes reconstruction and rule-engine counters as
// Prometheus collectors.
//
// A nil *Recorder is valid and records nothing, so components accept one
// unconditionally.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "chronicle"

// Recorder holds the collectors for one process.
type Recorder struct {
	registry *prometheus.Registry

	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEvictions prometheus.Counter
	indexRebuilds  prometheus.Counter
	ruleFailures   *prometheus.CounterVec
	conflicts      *prometheus.CounterVec
	detectDuration prometheus.Histogram
}

// NewRecorder creates a Recorder registered on its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot_cache",
			Name:      "hits_total",
			Help:      "Snapshot lookups served from cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot_cache",
			Name:      "misses_total",
			Help:      "Snapshot lookups that required reconstruction.",
		}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot_cache",
			Name:      "evictions_total",
			Help:      "Snapshots evicted to stay within the cache bound.",
		}),
		indexRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timeline",
			Name:      "index_builds_total",
			Help:      "Per-entity event indexes built or rebuilt.",
		}),
		ruleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "failures_total",
			Help:      "Rule evaluations that returned an error or panicked.",
		}, []string{"rule"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "conflicts_detected_total",
			Help:      "Conflicts reported after deduplication.",
		}, []string{"kind"}),
		detectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "detect_duration_seconds",
			Help:      "Wall time of a full detection pass.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	r.registry.MustRegister(
		r.cacheHits,
		r.cacheMisses,
		r.cacheEvictions,
		r.indexRebuilds,
		r.ruleFailures,
		r.conflicts,
		r.detectDuration,
	)
	return r
}

// Registry returns the registry holding r's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// CacheHit counts a snapshot served from cache.
func (r *Recorder) CacheHit() {
	if r == nil {
		return
	}
	r.cacheHits.Inc()
}

// CacheMiss counts a snapshot reconstruction.
func (r *Recorder) CacheMiss() {
	if r == nil {
		return
	}
	r.cacheMisses.Inc()
}

// CacheEviction counts a snapshot evicted from the cache.
func (r *Recorder) CacheEviction() {
	if r == nil {
		return
	}
	r.cacheEvictions.Inc()
}

// IndexBuilt counts a per-entity index build.
func (r *Recorder) IndexBuilt() {
	if r == nil {
		return
	}
	r.indexRebuilds.Inc()
}

// RuleFailed counts a failed rule evaluation.
func (r *Recorder) RuleFailed(ruleID string) {
	if r == nil {
		return
	}
	r.ruleFailures.WithLabelValues(ruleID).Inc()
}

// ConflictDetected counts a reported conflict.
func (r *Recorder) ConflictDetected(kind string) {
	if r == nil {
		return
	}
	r.conflicts.WithLabelValues(kind).Inc()
}

// ObserveDetect records the duration of a detection pass in seconds.
func (r *Recorder) ObserveDetect(seconds float64) {
	if r == nil {
		return
	}
	r.detectDuration.Observe(seconds)
}

// WriteText writes every collected metric in the Prometheus text
// exposition format.
func (r *Recorder) WriteText(w io.Writer) error {
	if r == nil {
		return nil
	}
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
