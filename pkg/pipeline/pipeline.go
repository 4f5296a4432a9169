// Package pipeline orchestrates recording post-processing: conversation
// analysis, speaker diarization, barcode correlation, and visitor badge
// assembly. A single Process call drives one recording from the completed
// (or error, on reprocess) state through to processed, guarded by a
// per-recording lease so concurrent triggers for the same recording never
// overlap.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xowlabs/expopulse/pkg/analysis"
	"github.com/xowlabs/expopulse/pkg/badges"
	"github.com/xowlabs/expopulse/pkg/correlate"
	"github.com/xowlabs/expopulse/pkg/diarize"
	xperrors "github.com/xowlabs/expopulse/pkg/errors"
	"github.com/xowlabs/expopulse/pkg/logging"
	"github.com/xowlabs/expopulse/pkg/observability"
	"github.com/xowlabs/expopulse/pkg/queue"
	"github.com/xowlabs/expopulse/pkg/recordings"
)

// noSpeechSummary is stored as the overall summary when a recording
// completes with an empty transcript. The recording still reaches the
// processed state so the dashboard can count it.
const noSpeechSummary = "No speech detected"

// Store is the persistence surface the processor needs. *recordings.Repository
// satisfies it.
type Store interface {
	Get(ctx context.Context, id string) (*recordings.Recording, error)
	TransitionStatus(ctx context.Context, id string, to recordings.Status) error
	MarkError(ctx context.Context, id, message string) error
	SaveAnalysis(ctx context.Context, id string, summary string, topics, questions []string, sentiment string) error
	SaveSegments(ctx context.Context, id string, segments []*recordings.ConversationSegment) error
	ReplaceSpeakers(ctx context.Context, id string, speakers []*recordings.SpeakerSegment, hostIdentified bool) error
	ReplaceBadges(ctx context.Context, recordingID string, badges []*recordings.VisitorBadge) error
	ListScans(ctx context.Context, recordingID string) ([]*recordings.BarcodeScan, error)
}

// Lease is a held per-recording processing lease.
type Lease interface {
	Release(ctx context.Context) error
}

// Leaser hands out per-recording leases.
type Leaser interface {
	Acquire(ctx context.Context, recordingID string) (Lease, error)
}

// LeaserFromManager adapts a Redis lease manager to the Leaser interface.
func LeaserFromManager(m *queue.LeaseManager) Leaser {
	return managerLeaser{m: m}
}

type managerLeaser struct {
	m *queue.LeaseManager
}

func (l managerLeaser) Acquire(ctx context.Context, recordingID string) (Lease, error) {
	lease, err := l.m.Acquire(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	return lease, nil
}

// Processor runs the full post-processing pipeline for one recording at a
// time. All stages are synchronous; the worker pool provides concurrency
// across recordings.
type Processor struct {
	store      Store
	leases     Leaser
	analyzer   *analysis.Analyzer
	diarizer   *diarize.Diarizer
	correlator *correlate.Correlator
	assembler  *badges.Assembler
	metrics    *observability.PipelineMetrics
	tracer     *observability.Tracer
	logger     logging.Logger
}

// Config collects the processor's collaborators. Metrics and Tracer may be
// nil; Logger defaults to a no-op.
type Config struct {
	Store      Store
	Leases     Leaser
	Analyzer   *analysis.Analyzer
	Diarizer   *diarize.Diarizer
	Correlator *correlate.Correlator
	Assembler  *badges.Assembler
	Metrics    *observability.PipelineMetrics
	Tracer     *observability.Tracer
	Logger     logging.Logger
}

// NewProcessor creates a pipeline processor.
func NewProcessor(cfg Config) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	correlator := cfg.Correlator
	if correlator == nil {
		correlator = correlate.NewCorrelator(0)
	}
	assembler := cfg.Assembler
	if assembler == nil {
		assembler = badges.NewAssembler()
	}
	return &Processor{
		store:      cfg.Store,
		leases:     cfg.Leases,
		analyzer:   cfg.Analyzer,
		diarizer:   cfg.Diarizer,
		correlator: correlator,
		assembler:  assembler,
		metrics:    cfg.Metrics,
		tracer:     cfg.Tracer,
		logger:     logger.With(logging.F("component", "pipeline")),
	}
}

// Process runs every pipeline stage for the given recording. A held lease
// on the same recording means another worker is already processing it; the
// message is treated as redundant and dropped without error. Diarization
// failures mark the recording with error status and surface the classified
// error so the caller can retry or dead-letter it.
func (p *Processor) Process(ctx context.Context, recordingID, reason string) (err error) {
	log := p.logger.With(
		logging.F("recording_id", recordingID),
		logging.F("reason", reason),
	)
	ctx = logging.ContextWithRecordingID(ctx, recordingID)

	lease, leaseErr := p.leases.Acquire(ctx, recordingID)
	if leaseErr != nil {
		if errors.Is(leaseErr, queue.ErrLeaseHeld) {
			if p.metrics != nil {
				p.metrics.RecordLeaseContention()
			}
			log.Info("recording already being processed, skipping")
			return nil
		}
		return fmt.Errorf("failed to acquire processing lease: %w", leaseErr)
	}
	defer func() {
		if releaseErr := lease.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			log.Warn("failed to release processing lease", logging.Err(releaseErr))
		}
	}()

	var rootSpan trace.Span
	var helper *observability.SpanHelper
	if p.tracer != nil {
		ctx, rootSpan = p.tracer.StartRecordingSpan(ctx, recordingID, reason)
		helper = observability.NewSpanHelper(rootSpan)
		defer rootSpan.End()
		// Stamp the run's trace identity onto every log line so a log entry
		// and its trace can be joined from either side.
		log = log.With(
			logging.F("trace_id", observability.GetTraceID(ctx)),
			logging.F("span_id", observability.GetSpanID(ctx)),
		)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic for recording %s: %v", recordingID, r)
			log.Error("pipeline panicked", logging.F("panic", fmt.Sprintf("%v", r)))
			if markErr := p.store.MarkError(context.WithoutCancel(ctx), recordingID, err.Error()); markErr != nil {
				log.Error("failed to mark recording as errored after panic", logging.Err(markErr))
			}
		}
		status := "success"
		if err != nil {
			status = "failure"
		}
		if p.metrics != nil {
			p.metrics.RecordPipelineRun(status)
		}
		if helper != nil {
			helper.SetDuration(time.Since(start).Milliseconds())
			if err != nil {
				pErr := xperrors.ClassifyError(err, "pipeline")
				helper.SetError(err, string(pErr.Code), xperrors.IsErrorRetryable(pErr))
			} else {
				helper.SetSuccess()
			}
		}
	}()

	rec, err := p.store.Get(ctx, recordingID)
	if err != nil {
		return fmt.Errorf("failed to load recording %s: %w", recordingID, err)
	}
	if helper != nil {
		helper.SetRecordingInfo(recordingID, rec.Expo)
	}

	if err = p.store.TransitionStatus(ctx, recordingID, recordings.StatusProcessing); err != nil {
		return fmt.Errorf("cannot start processing recording %s: %w", recordingID, err)
	}

	if rec.Transcript == "" {
		return p.finishWithoutSpeech(ctx, recordingID, log)
	}

	scans, err := p.store.ListScans(ctx, recordingID)
	if err != nil {
		return fmt.Errorf("failed to load barcode scans for recording %s: %w", recordingID, err)
	}

	analysisResult := p.runAnalysis(ctx, rec)

	diarizeResult, err := p.runDiarization(ctx, rec, scans)
	if err != nil {
		if markErr := p.store.MarkError(context.WithoutCancel(ctx), recordingID, err.Error()); markErr != nil {
			log.Error("failed to mark recording as errored", logging.Err(markErr))
		}
		return err
	}

	segments := p.buildSegments(diarizeResult.Speakers, scans)
	visitorBadges := p.assembler.Assemble(recordingID, diarizeResult.Speakers, scans)

	if err = p.persist(ctx, rec, analysisResult, diarizeResult, segments, visitorBadges); err != nil {
		if markErr := p.store.MarkError(context.WithoutCancel(ctx), recordingID, err.Error()); markErr != nil {
			log.Error("failed to mark recording as errored", logging.Err(markErr))
		}
		return err
	}

	if p.metrics != nil {
		p.metrics.RecordSpeakers(rec.Expo, len(diarizeResult.Speakers))
		p.metrics.RecordBadges(len(visitorBadges), countLinked(visitorBadges))
	}
	if helper != nil {
		helper.SetDiarizationResult(len(diarizeResult.Speakers), len(visitorBadges))
	}

	log.Info("recording processed",
		logging.F("speakers", len(diarizeResult.Speakers)),
		logging.F("badges", len(visitorBadges)),
		logging.F("host_identified", diarizeResult.HostIdentified),
		logging.F("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

// finishWithoutSpeech handles the empty-transcript path: the recording is
// still marked processed, with an explicit summary, so it shows up in
// dashboard totals instead of lingering in an error state.
func (p *Processor) finishWithoutSpeech(ctx context.Context, recordingID string, log logging.Logger) error {
	if err := p.store.SaveAnalysis(ctx, recordingID, noSpeechSummary, nil, nil, ""); err != nil {
		return fmt.Errorf("failed to save empty analysis for recording %s: %w", recordingID, err)
	}
	if err := p.store.TransitionStatus(ctx, recordingID, recordings.StatusProcessed); err != nil {
		return fmt.Errorf("failed to finish recording %s: %w", recordingID, err)
	}
	log.Info("no transcript available, recording marked processed without analysis")
	return nil
}

func (p *Processor) runAnalysis(ctx context.Context, rec *recordings.Recording) *analysis.Result {
	stageStart := time.Now()
	if p.tracer != nil {
		var span trace.Span
		ctx, span = p.tracer.StartStageSpan(ctx, "analysis")
		defer span.End()
	}

	result := p.analyzer.Analyze(ctx, rec.ID, rec.Transcript)

	if p.metrics != nil {
		p.metrics.RecordStageLatency("analysis", time.Since(stageStart).Seconds())
	}
	return result
}

func (p *Processor) runDiarization(ctx context.Context, rec *recordings.Recording, scans []*recordings.BarcodeScan) (*diarize.Result, error) {
	stageStart := time.Now()
	var span trace.Span
	if p.tracer != nil {
		ctx, span = p.tracer.StartStageSpan(ctx, "diarization")
		defer span.End()
	}

	result, err := p.diarizer.Diarize(ctx, rec.ID, rec.Transcript, scans, rec.Duration)

	if p.metrics != nil {
		p.metrics.RecordStageLatency("diarization", time.Since(stageStart).Seconds())
	}
	if err != nil {
		pErr := xperrors.ClassifyError(err, "diarization")
		if p.metrics != nil {
			p.metrics.RecordStageFailure("diarization", string(pErr.Code))
		}
		if span != nil {
			observability.NewSpanHelper(span).SetError(err, string(pErr.Code), xperrors.IsErrorRetryable(pErr))
		}
		return nil, err
	}
	return result, nil
}

// buildSegments derives the topic-based conversation decomposition from the
// diarized guest speakers and annotates each segment with the badges
// scanned while it was active.
func (p *Processor) buildSegments(speakers []*recordings.SpeakerSegment, scans []*recordings.BarcodeScan) []*recordings.ConversationSegment {
	segments := make([]*recordings.ConversationSegment, 0, len(speakers))
	for _, sp := range speakers {
		if sp.IsHost() {
			continue
		}
		start, end := sp.Span()
		topic := ""
		if len(sp.Topics) > 0 {
			topic = sp.Topics[0]
		}
		segments = append(segments, &recordings.ConversationSegment{
			Topic:     topic,
			StartTime: start,
			EndTime:   end,
			Summary:   sp.Summary,
		})
	}
	p.correlator.AnnotateSegments(segments, scans)
	return segments
}

func (p *Processor) persist(ctx context.Context, rec *recordings.Recording, analysisResult *analysis.Result, diarizeResult *diarize.Result, segments []*recordings.ConversationSegment, visitorBadges []*recordings.VisitorBadge) error {
	summary := analysisResult.Summary
	if summary == "" {
		summary = diarizeResult.OverallSummary
	}
	topics := analysisResult.Highlights
	if len(topics) == 0 {
		topics = diarizeResult.MainTopics
	}

	if err := p.store.SaveAnalysis(ctx, rec.ID, summary, topics, analysisResult.KeyQuestions, analysisResult.Sentiment); err != nil {
		return fmt.Errorf("failed to save analysis for recording %s: %w", rec.ID, err)
	}
	if err := p.store.ReplaceSpeakers(ctx, rec.ID, diarizeResult.Speakers, diarizeResult.HostIdentified); err != nil {
		return fmt.Errorf("failed to save speakers for recording %s: %w", rec.ID, err)
	}
	if err := p.store.SaveSegments(ctx, rec.ID, segments); err != nil {
		return fmt.Errorf("failed to save conversation segments for recording %s: %w", rec.ID, err)
	}
	if err := p.store.ReplaceBadges(ctx, rec.ID, visitorBadges); err != nil {
		return fmt.Errorf("failed to save visitor badges for recording %s: %w", rec.ID, err)
	}
	if err := p.store.TransitionStatus(ctx, rec.ID, recordings.StatusProcessed); err != nil {
		return fmt.Errorf("failed to finish recording %s: %w", rec.ID, err)
	}
	return nil
}

func countLinked(list []*recordings.VisitorBadge) int {
	n := 0
	for _, b := range list {
		if b.BarcodeLinked {
			n++
		}
	}
	return n
}
