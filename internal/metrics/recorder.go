// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics records index build metrics. Components hold a Recorder
// and default to NoopRecorder; the CLI swaps in a PrometheusRecorder when
// a metrics textfile is configured.
package metrics

import "time"

// Outcome labels the final state of a build.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFailed   Outcome = "failed"
)

// Recorder receives build events.
type Recorder interface {
	ObserveBuildDuration(format string, d time.Duration)
	IncBuildOutcome(format string, outcome Outcome)
	IncStoreRetry(op string)
	IncStoreUnavailable(op string)
	AddLinksInjected(n int)
	IncInjectionSkipped()
	IncExportFailure(format string)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(string, time.Duration) {}
func (NoopRecorder) IncBuildOutcome(string, Outcome)            {}
func (NoopRecorder) IncStoreRetry(string)                       {}
func (NoopRecorder) IncStoreUnavailable(string)                 {}
func (NoopRecorder) AddLinksInjected(int)                       {}
func (NoopRecorder) IncInjectionSkipped()                       {}
func (NoopRecorder) IncExportFailure(string)                    {}

var _ Recorder = NoopRecorder{}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
