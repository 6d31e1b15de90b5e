package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	PipelineRuns      *prometheus.CounterVec
	SynthesisRequests *prometheus.CounterVec
	RateLimitRetries  prometheus.Counter
	SkippedSpeakers   prometheus.Counter
	PipelineDuration  prometheus.Histogram
	AudioBytesOut     prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		PipelineRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Script-to-speech pipeline invocations by outcome.",
		}, []string{"outcome"}),
		SynthesisRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_requests_total",
			Help:      "Speech provider requests by outcome.",
		}, []string{"outcome"}),
		RateLimitRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_retries_total",
			Help:      "Backoff waits taken after rate-limited synthesis attempts.",
		}),
		SkippedSpeakers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_speakers_total",
			Help:      "Speakers dropped from assembled audio under the best-effort policy.",
		}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Wall-clock duration of one pipeline invocation.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		AudioBytesOut: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_out_total",
			Help:      "Bytes of assembled WAV audio handed to callers.",
		}),
	}
}

func (m *Metrics) ObservePipelineDuration(d time.Duration) {
	m.PipelineDuration.Observe(d.Seconds())
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
