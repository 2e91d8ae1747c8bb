// Package metrics exposes narration counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "narrator"

// Chunk outcomes.
const (
	OutcomeSynthesized = "synthesized"
	OutcomeResumed     = "resumed"
	OutcomeFailed      = "failed"
)

// Recorder holds the collectors. A nil *Recorder records nothing.
type Recorder struct {
	registry  *prometheus.Registry
	chunks    *prometheus.CounterVec
	attempts  prometheus.Counter
	duration  prometheus.Histogram
	jobs      *prometheus.CounterVec
	textChars prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Recorder {
	registry := prometheus.NewRegistry()

	recorder := &Recorder{
		registry: registry,
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Audio chunks by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_attempts_total",
			Help:      "Calls made to the speech backend, retries included.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_duration_seconds",
			Help:      "Time spent in one successful backend call.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Narration jobs by result.",
		}, []string{"result"}),
		textChars: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalized_characters_total",
			Help:      "Characters of normalized text produced.",
		}),
	}

	registry.MustRegister(
		recorder.chunks,
		recorder.attempts,
		recorder.duration,
		recorder.jobs,
		recorder.textChars,
	)

	return recorder
}

// Chunk counts one finished chunk.
func (r *Recorder) Chunk(outcome string) {
	if r == nil {
		return
	}

	r.chunks.WithLabelValues(outcome).Inc()
}

// Attempt counts one backend call.
func (r *Recorder) Attempt() {
	if r == nil {
		return
	}

	r.attempts.Inc()
}

// Synthesized observes the duration of a successful backend call.
func (r *Recorder) Synthesized(elapsed time.Duration) {
	if r == nil {
		return
	}

	r.duration.Observe(elapsed.Seconds())
}

// Job counts one finished job; result is "ok" or "error".
func (r *Recorder) Job(result string) {
	if r == nil {
		return
	}

	r.jobs.WithLabelValues(result).Inc()
}

// NormalizedText adds the size of a normalized document.
func (r *Recorder) NormalizedText(chars int) {
	if r == nil {
		return
	}

	r.textChars.Add(float64(chars))
}

// Registry returns the registry, for tests and custom exporters.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
