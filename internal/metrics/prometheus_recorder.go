// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry         *prom.Registry
	buildDuration    *prom.HistogramVec
	buildOutcome     *prom.CounterVec
	storeRetries     *prom.CounterVec
	storeUnavailable *prom.CounterVec
	linksInjected    prom.Counter
	injectionSkipped prom.Counter
	exportFailures   *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		buildDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "notebook_index",
			Name:      "build_duration_seconds",
			Help:      "Duration of index builds by format",
			Buckets:   prom.DefBuckets,
		}, []string{"format"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "notebook_index",
			Name:      "build_outcomes_total",
			Help:      "Index builds by format and final status",
		}, []string{"format", "outcome"}),
		storeRetries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "notebook_index",
			Name:      "store_retries_total",
			Help:      "Graph store reads retried after a transient failure",
		}, []string{"op"}),
		storeUnavailable: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "notebook_index",
			Name:      "store_unavailable_total",
			Help:      "Graph store reads that failed after retries",
		}, []string{"op"}),
		linksInjected: prom.NewCounter(prom.CounterOpts{
			Namespace: "notebook_index",
			Name:      "links_injected_total",
			Help:      "Hyperlinks injected into index bodies",
		}),
		injectionSkipped: prom.NewCounter(prom.CounterOpts{
			Namespace: "notebook_index",
			Name:      "injection_skipped_total",
			Help:      "Name occurrences left unlinked because no anchor target existed",
		}),
		exportFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "notebook_index",
			Name:      "export_format_failures_total",
			Help:      "Hyperlinked renders that failed and fell back to plain output",
		}, []string{"format"}),
	}
	reg.MustRegister(pr.buildDuration, pr.buildOutcome, pr.storeRetries, pr.storeUnavailable,
		pr.linksInjected, pr.injectionSkipped, pr.exportFailures)
	return pr
}

// Registry returns the registry the metrics are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.registry
}

// WriteTextfile writes all metrics in text exposition format to path, for
// collection by a node exporter textfile collector.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

func (p *PrometheusRecorder) ObserveBuildDuration(format string, d time.Duration) {
	p.buildDuration.WithLabelValues(format).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(format string, outcome Outcome) {
	p.buildOutcome.WithLabelValues(format, string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncStoreRetry(op string) {
	p.storeRetries.WithLabelValues(op).Inc()
}

func (p *PrometheusRecorder) IncStoreUnavailable(op string) {
	p.storeUnavailable.WithLabelValues(op).Inc()
}

func (p *PrometheusRecorder) AddLinksInjected(n int) {
	if n > 0 {
		p.linksInjected.Add(float64(n))
	}
}

func (p *PrometheusRecorder) IncInjectionSkipped() {
	p.injectionSkipped.Inc()
}

func (p *PrometheusRecorder) IncExportFailure(format string) {
	p.exportFailures.WithLabelValues(format).Inc()
}

var _ Recorder = (*PrometheusRecorder)(nil)
