// Package metrics records shadow sync outcomes as
// Prometheus series. A nil *Recorder is valid and
// records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shadowsync"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Operation label values.
const (
	OpMirrorPR = "mirror_pull_request"
	OpPublish  = "publish"
)

// Recorder holds the sync metrics.
type Recorder struct {
	events        *prometheus.CounterVec
	targets       *prometheus.CounterVec
	branchFailure prometheus.Counter
	passDuration  *prometheus.HistogramVec
}

// NewRecorder creates the metrics and registers them
// with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Webhook events handled, by kind and outcome.",
			},
			[]string{"event", "outcome"},
		),
		targets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "target_results_total",
				Help:      "Per shadow target results, by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		branchFailure: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "branch_pull_failures_total",
				Help:      "Source branches that could not be pulled.",
			},
		),
		passDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_duration_seconds",
				Help:      "Duration of a sync pass.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"event"},
		),
	}

	reg.MustRegister(
		r.events,
		r.targets,
		r.branchFailure,
		r.passDuration,
	)

	return r
}

// Event counts one handled event.
func (r *Recorder) Event(kind, outcome string) {
	if r == nil {
		return
	}

	r.events.WithLabelValues(kind, outcome).Inc()
}

// Target counts one shadow target result.
func (r *Recorder) Target(op, outcome string) {
	if r == nil {
		return
	}

	r.targets.WithLabelValues(op, outcome).Inc()
}

// BranchFailures adds n failed branch pulls.
func (r *Recorder) BranchFailures(n int) {
	if r == nil || n <= 0 {
		return
	}

	r.branchFailure.Add(float64(n))
}

// ObservePass records the duration of a pass started at
// start.
func (r *Recorder) ObservePass(kind string, start time.Time) {
	if r == nil {
		return
	}

	r.passDuration.WithLabelValues(kind).
		Observe(time.Since(start).Seconds())
}
