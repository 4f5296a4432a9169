package httpapi

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/xowlabs/expopulse/pkg/logging"
	"github.com/xowlabs/expopulse/pkg/queue"
	"github.com/xowlabs/expopulse/pkg/recordings"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// RecordingStore is the persistence surface the recording handler needs.
// *recordings.Repository satisfies it.
type RecordingStore interface {
	Create(ctx context.Context, rec *recordings.Recording) error
	Get(ctx context.Context, id string) (*recordings.Recording, error)
	List(ctx context.Context, filter recordings.ListFilter) ([]*recordings.Recording, error)
	Delete(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, endedAt time.Time) error
	SetTranscript(ctx context.Context, id, transcript string) error
	AddScan(ctx context.Context, scan *recordings.BarcodeScan) error
	ListScans(ctx context.Context, recordingID string) ([]*recordings.BarcodeScan, error)
	ListSpeakers(ctx context.Context, recordingID string) ([]*recordings.SpeakerSegment, error)
	ListBadges(ctx context.Context, recordingID string) ([]*recordings.VisitorBadge, error)
	ListSegments(ctx context.Context, id string) ([]*recordings.ConversationSegment, error)
}

// Enqueuer submits processing messages. *queue.RedisQueue satisfies it.
type Enqueuer interface {
	Enqueue(msg queue.Message) error
}

// RecordingHandler serves the recording lifecycle and barcode endpoints.
type RecordingHandler struct {
	store  RecordingStore
	queue  Enqueuer
	logger logging.Logger
}

// NewRecordingHandler creates the recording handler.
func NewRecordingHandler(store RecordingStore, q Enqueuer, logger logging.Logger) *RecordingHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RecordingHandler{
		store:  store,
		queue:  q,
		logger: logger.With(logging.F("component", "recording_handler")),
	}
}

type createRecordingRequest struct {
	DeviceID  string     `json:"device_id"`
	Expo      string     `json:"expo"`
	Booth     string     `json:"booth"`
	StartedAt *time.Time `json:"started_at"`
}

// Create registers a new in-progress recording session.
func (h *RecordingHandler) Create(c *fiber.Ctx) error {
	var req createRecordingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.DeviceID) == "" {
		return badRequest(c, "device_id is required")
	}

	startedAt := time.Now().UTC()
	if req.StartedAt != nil {
		startedAt = req.StartedAt.UTC()
	}

	rec := &recordings.Recording{
		ID:        uuid.New().String(),
		DeviceID:  req.DeviceID,
		Expo:      req.Expo,
		Booth:     req.Booth,
		StartedAt: startedAt,
		Status:    recordings.StatusRecording,
	}
	if err := h.store.Create(c.Context(), rec); err != nil {
		return respondError(c, err)
	}

	h.logger.Info("recording created",
		logging.F("recording_id", rec.ID),
		logging.F("device_id", rec.DeviceID))
	return c.Status(fiber.StatusCreated).JSON(rec)
}

// List returns recordings matching the optional device_id, expo, and
// status query filters.
func (h *RecordingHandler) List(c *fiber.Ctx) error {
	filter := recordings.ListFilter{
		DeviceID: c.Query("device_id"),
		Expo:     c.Query("expo"),
		Limit:    clampLimit(c.QueryInt("limit", defaultListLimit)),
		Offset:   c.QueryInt("offset", 0),
	}
	if status := c.Query("status"); status != "" {
		s := recordings.Status(status)
		if !s.Valid() {
			return badRequest(c, "Unknown status filter")
		}
		filter.Status = s
	}

	recs, err := h.store.List(c.Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"recordings": recs,
		"count":      len(recs),
	})
}

// Get returns the full recording detail, including the processed
// artifacts once the pipeline has run.
func (h *RecordingHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")
	rec, err := h.store.Get(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	speakers, err := h.store.ListSpeakers(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	badges, err := h.store.ListBadges(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	segments, err := h.store.ListSegments(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	scans, err := h.store.ListScans(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"recording":             rec,
		"speakers":              speakers,
		"visitor_badges":        badges,
		"conversation_segments": segments,
		"barcode_scans":         scans,
	})
}

// Delete removes a recording and all of its derived records.
func (h *RecordingHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.store.Delete(c.Context(), id); err != nil {
		return respondError(c, err)
	}
	h.logger.Info("recording deleted", logging.F("recording_id", id))
	return c.SendStatus(fiber.StatusNoContent)
}

type completeRecordingRequest struct {
	EndedAt    *time.Time `json:"ended_at"`
	Transcript string     `json:"transcript"`
}

// Complete marks an in-progress recording as finished and queues it for
// processing. A transcript may arrive in the same call or later through
// the transcript endpoint.
func (h *RecordingHandler) Complete(c *fiber.Ctx) error {
	id := c.Params("id")
	var req completeRecordingRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	endedAt := time.Now().UTC()
	if req.EndedAt != nil {
		endedAt = req.EndedAt.UTC()
	}

	if err := h.store.Complete(c.Context(), id, endedAt); err != nil {
		return respondError(c, err)
	}
	if req.Transcript != "" {
		if err := h.store.SetTranscript(c.Context(), id, req.Transcript); err != nil {
			return respondError(c, err)
		}
	}

	if err := h.enqueue(id, queue.ReasonUpload, queue.PriorityNormal); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":     id,
		"status": recordings.StatusCompleted,
		"queued": true,
	})
}

type transcriptRequest struct {
	Transcript string `json:"transcript"`
}

// SetTranscript stores a manually supplied transcript and queues the
// recording for processing.
func (h *RecordingHandler) SetTranscript(c *fiber.Ctx) error {
	id := c.Params("id")
	var req transcriptRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Transcript) == "" {
		return badRequest(c, "transcript is required")
	}

	if err := h.store.SetTranscript(c.Context(), id, req.Transcript); err != nil {
		return respondError(c, err)
	}
	if err := h.enqueue(id, queue.ReasonTranscript, queue.PriorityNormal); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":     id,
		"queued": true,
	})
}

// Reprocess queues a processed or errored recording for another pipeline
// run. Existing speakers and badges are replaced, never duplicated.
func (h *RecordingHandler) Reprocess(c *fiber.Ctx) error {
	id := c.Params("id")
	rec, err := h.store.Get(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if rec.Status == recordings.StatusRecording {
		return conflict(c, "Recording has not been completed yet")
	}

	if err := h.enqueue(id, queue.ReasonReprocess, queue.PriorityHigh); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":     id,
		"queued": true,
	})
}

// Status returns just the processing state, cheap enough for device
// polling.
func (h *RecordingHandler) Status(c *fiber.Ctx) error {
	rec, err := h.store.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	resp := fiber.Map{
		"id":     rec.ID,
		"status": rec.Status,
	}
	if rec.ErrorMessage != "" {
		resp["error_message"] = rec.ErrorMessage
	}
	return c.JSON(resp)
}

type addScanRequest struct {
	RecordingID    string     `json:"recording_id"`
	BarcodeData    string     `json:"barcode_data"`
	VisitorName    string     `json:"visitor_name"`
	VideoTimestamp *float64   `json:"video_timestamp"`
	CapturedAt     *time.Time `json:"captured_at"`
}

// AddScan records a badge scan captured at the booth.
func (h *RecordingHandler) AddScan(c *fiber.Ctx) error {
	var req addScanRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.RecordingID == "" {
		return badRequest(c, "recording_id is required")
	}
	if strings.TrimSpace(req.BarcodeData) == "" {
		return badRequest(c, "barcode_data is required")
	}

	capturedAt := time.Now().UTC()
	if req.CapturedAt != nil {
		capturedAt = req.CapturedAt.UTC()
	}

	scan := &recordings.BarcodeScan{
		RecordingID:    req.RecordingID,
		BarcodeData:    req.BarcodeData,
		VisitorName:    req.VisitorName,
		VideoTimestamp: req.VideoTimestamp,
		CapturedAt:     capturedAt,
	}
	if err := h.store.AddScan(c.Context(), scan); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(scan)
}

// ListScans returns the scans captured during one recording.
func (h *RecordingHandler) ListScans(c *fiber.Ctx) error {
	recordingID := c.Params("recording_id")
	scans, err := h.store.ListScans(c.Context(), recordingID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"barcode_scans": scans,
		"count":         len(scans),
	})
}

func (h *RecordingHandler) enqueue(recordingID string, reason queue.Reason, priority queue.Priority) error {
	msg := &queue.ProcessMessage{
		RecordingID: recordingID,
		Reason:      reason,
		Priority:    priority,
		EnqueuedAt:  time.Now().UTC(),
	}
	if err := h.queue.Enqueue(msg); err != nil {
		h.logger.Error("failed to enqueue recording",
			logging.F("recording_id", recordingID),
			logging.F("reason", string(reason)),
			logging.Err(err))
		return err
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
