// Package observability holds the Prometheus metrics and OpenTelemetry
// tracing helpers shared by the pipeline, queue, and HTTP surface.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds all Prometheus metrics for the processing pipeline.
type PipelineMetrics struct {
	// Queue metrics
	QueueItemsTotal  *prometheus.CounterVec
	QueueDepth       *prometheus.GaugeVec
	QueueWaitSeconds *prometheus.HistogramVec
	DLQItemsTotal    *prometheus.CounterVec

	// Pipeline metrics
	RecordingsProcessedTotal *prometheus.CounterVec
	StageSeconds             *prometheus.HistogramVec
	StageFailuresTotal       *prometheus.CounterVec
	LeaseContentionTotal     prometheus.Counter

	// Model call metrics
	ModelCallsTotal      *prometheus.CounterVec
	ModelLatencySeconds  *prometheus.HistogramVec
	ModelTokensTotal     *prometheus.CounterVec

	// Domain metrics
	SpeakersPerRecording *prometheus.HistogramVec
	BadgesCreatedTotal   prometheus.Counter
	BarcodeLinksTotal    *prometheus.CounterVec
}

// DefaultPipelineMetrics creates metrics on the default registerer.
func DefaultPipelineMetrics() *PipelineMetrics {
	return NewPipelineMetrics(prometheus.DefaultRegisterer)
}

// NewPipelineMetrics creates a new set of pipeline metrics.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(reg)

	return &PipelineMetrics{
		QueueItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expopulse_queue_items_total",
				Help: "Total items entering each queue",
			},
			[]string{"queue", "reason"},
		),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "expopulse_queue_depth",
				Help: "Current queue depth",
			},
			[]string{"queue"},
		),
		QueueWaitSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "expopulse_queue_wait_seconds",
				Help:    "Time spent in queue before pickup",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
			},
			[]string{"queue"},
		),
		DLQItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expopulse_dlq_items_total",
				Help: "Total items added to the dead letter queue",
			},
			[]string{"queue", "error_code"},
		),

		RecordingsProcessedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expopulse_recordings_processed_total",
				Help: "Total pipeline runs by outcome",
			},
			[]string{"status"},
		),
		StageSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "expopulse_stage_seconds",
				Help:    "Pipeline stage latency",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		StageFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expopulse_stage_failures_total",
				Help: "Stage failures by classified error code",
			},
			[]string{"stage", "error_code"},
		),
		LeaseContentionTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "expopulse_lease_contention_total",
				Help: "Processing runs skipped because the recording lease was held",
			},
		),

		ModelCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expopulse_model_calls_total",
				Help: "Total generative-text calls",
			},
			[]string{"stage", "model", "status"},
		),
		ModelLatencySeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "expopulse_model_latency_seconds",
				Help:    "Generative-text call latency",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30, 60, 120},
			},
			[]string{"stage", "model"},
		),
		ModelTokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expopulse_model_tokens_total",
				Help: "Total tokens consumed by direction",
			},
			[]string{"direction", "model"},
		),

		SpeakersPerRecording: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "expopulse_speakers_per_recording",
				Help:    "Diarized speaker counts",
				Buckets: []float64{1, 2, 3, 4, 5, 7, 10, 15},
			},
			[]string{"expo"},
		),
		BadgesCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "expopulse_badges_created_total",
				Help: "Total visitor badges persisted",
			},
		),
		BarcodeLinksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expopulse_barcode_links_total",
				Help: "Badge barcode-linkage outcomes",
			},
			[]string{"linked"},
		),
	}
}

// RecordQueueEnqueue records an item entering a queue.
func (m *PipelineMetrics) RecordQueueEnqueue(queue, reason string) {
	m.QueueItemsTotal.WithLabelValues(queue, reason).Inc()
}

// RecordQueueDepth sets the current queue depth.
func (m *PipelineMetrics) RecordQueueDepth(queue string, depth float64) {
	m.QueueDepth.WithLabelValues(queue).Set(depth)
}

// RecordQueueWait records the time an item spent in the queue.
func (m *PipelineMetrics) RecordQueueWait(queue string, seconds float64) {
	m.QueueWaitSeconds.WithLabelValues(queue).Observe(seconds)
}

// RecordDLQItem records an item added to the dead letter queue.
func (m *PipelineMetrics) RecordDLQItem(queue, errorCode string) {
	m.DLQItemsTotal.WithLabelValues(queue, errorCode).Inc()
}

// RecordPipelineRun records a completed pipeline run.
func (m *PipelineMetrics) RecordPipelineRun(status string) {
	m.RecordingsProcessedTotal.WithLabelValues(status).Inc()
}

// RecordStageLatency records a stage's duration.
func (m *PipelineMetrics) RecordStageLatency(stage string, seconds float64) {
	m.StageSeconds.WithLabelValues(stage).Observe(seconds)
}

// RecordStageFailure records a classified stage failure.
func (m *PipelineMetrics) RecordStageFailure(stage, errorCode string) {
	m.StageFailuresTotal.WithLabelValues(stage, errorCode).Inc()
}

// RecordLeaseContention records a skipped run due to a held lease.
func (m *PipelineMetrics) RecordLeaseContention() {
	m.LeaseContentionTotal.Inc()
}

// RecordModelCall records a generative-text call outcome.
func (m *PipelineMetrics) RecordModelCall(stage, model, status string, latencySeconds float64) {
	m.ModelCallsTotal.WithLabelValues(stage, model, status).Inc()
	m.ModelLatencySeconds.WithLabelValues(stage, model).Observe(latencySeconds)
}

// RecordModelTokens records token usage.
func (m *PipelineMetrics) RecordModelTokens(direction, model string, count float64) {
	m.ModelTokensTotal.WithLabelValues(direction, model).Add(count)
}

// RecordSpeakers records the diarized speaker count for a recording.
func (m *PipelineMetrics) RecordSpeakers(expo string, count int) {
	m.SpeakersPerRecording.WithLabelValues(expo).Observe(float64(count))
}

// RecordBadges records persisted badges and their linkage outcomes.
func (m *PipelineMetrics) RecordBadges(badges, linked int) {
	m.BadgesCreatedTotal.Add(float64(badges))
	m.BarcodeLinksTotal.WithLabelValues("true").Add(float64(linked))
	m.BarcodeLinksTotal.WithLabelValues("false").Add(float64(badges - linked))
}
