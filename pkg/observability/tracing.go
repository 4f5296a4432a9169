package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the name of the tracer for pipeline operations.
const TracerName = "expopulse"

// Span attribute keys
const (
	AttrRecordingID  = "recording_id"
	AttrExpo         = "expo"
	AttrStage        = "stage"
	AttrReason       = "reason"
	AttrModel        = "model"
	AttrDurationMs   = "duration_ms"
	AttrSpeakerCount = "speaker_count"
	AttrBadgeCount   = "badge_count"
	AttrInputTokens  = "input_tokens"
	AttrOutputTokens = "output_tokens"
	AttrErrorCode    = "error_code"
	AttrRetryable    = "retryable"
)

// Span names
const (
	SpanProcessRecording = "pipeline.process_recording"
	SpanModelCall        = "pipeline.model_call"
)

// Tracer provides distributed tracing for pipeline operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new pipeline tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(TracerName),
	}
}

// StartRecordingSpan starts a root span for one recording's pipeline run.
func (t *Tracer) StartRecordingSpan(ctx context.Context, recordingID, reason string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, SpanProcessRecording,
		trace.WithAttributes(
			attribute.String(AttrRecordingID, recordingID),
		),
	)
	if reason != "" {
		span.SetAttributes(attribute.String(AttrReason, reason))
	}
	return ctx, span
}

// StartStageSpan starts a span for a pipeline stage.
func (t *Tracer) StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, fmt.Sprintf("pipeline.stage.%s", stage),
		trace.WithAttributes(
			attribute.String(AttrStage, stage),
		),
	)
}

// StartModelSpan starts a span for a generative-text call.
func (t *Tracer) StartModelSpan(ctx context.Context, model string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanModelCall,
		trace.WithAttributes(
			attribute.String(AttrModel, model),
		),
	)
}

// SpanHelper provides convenient methods for working with the current span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetRecordingInfo sets recording attributes on the span.
func (h *SpanHelper) SetRecordingInfo(recordingID, expo string) {
	h.span.SetAttributes(attribute.String(AttrRecordingID, recordingID))
	if expo != "" {
		h.span.SetAttributes(attribute.String(AttrExpo, expo))
	}
}

// SetDiarizationResult sets diarization attributes on the span.
func (h *SpanHelper) SetDiarizationResult(speakerCount, badgeCount int) {
	h.span.SetAttributes(
		attribute.Int(AttrSpeakerCount, speakerCount),
		attribute.Int(AttrBadgeCount, badgeCount),
	)
}

// SetDuration sets the duration attribute.
func (h *SpanHelper) SetDuration(durationMs int64) {
	h.span.SetAttributes(attribute.Int64(AttrDurationMs, durationMs))
}

// SetModelResult sets model call result attributes.
func (h *SpanHelper) SetModelResult(inputTokens, outputTokens int, latencyMs int64) {
	h.span.SetAttributes(
		attribute.Int(AttrInputTokens, inputTokens),
		attribute.Int(AttrOutputTokens, outputTokens),
		attribute.Int64(AttrDurationMs, latencyMs),
	)
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, errorCode string, retryable bool) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(
		attribute.String(AttrErrorCode, errorCode),
		attribute.Bool(AttrRetryable, retryable),
	)
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// GetSpanID returns the span ID from the context.
func GetSpanID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasSpanID() {
		return span.SpanContext().SpanID().String()
	}
	return ""
}
