package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xperrors "github.com/xowlabs/expopulse/pkg/errors"
	"github.com/xowlabs/expopulse/pkg/insights"
	"github.com/xowlabs/expopulse/pkg/logging"
	"github.com/xowlabs/expopulse/pkg/queue"
	"github.com/xowlabs/expopulse/pkg/recordings"
)

// fakeStore backs both handler store interfaces in tests.
type fakeStore struct {
	recs     map[string]*recordings.Recording
	scans    map[string][]*recordings.BarcodeScan
	speakers map[string][]*recordings.SpeakerSegment
	badges   map[string][]*recordings.VisitorBadge
	segments map[string][]*recordings.ConversationSegment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		recs:     map[string]*recordings.Recording{},
		scans:    map[string][]*recordings.BarcodeScan{},
		speakers: map[string][]*recordings.SpeakerSegment{},
		badges:   map[string][]*recordings.VisitorBadge{},
		segments: map[string][]*recordings.ConversationSegment{},
	}
}

func (s *fakeStore) Create(ctx context.Context, rec *recordings.Recording) error {
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	s.recs[rec.ID] = rec
	return nil
}

func (s *fakeStore) Get(ctx context.Context, id string) (*recordings.Recording, error) {
	rec, ok := s.recs[id]
	if !ok {
		return nil, fmt.Errorf("recording %s: %w", id, xperrors.ErrNotFound)
	}
	return rec, nil
}

func (s *fakeStore) List(ctx context.Context, filter recordings.ListFilter) ([]*recordings.Recording, error) {
	out := []*recordings.Recording{}
	for _, rec := range s.recs {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.DeviceID != "" && rec.DeviceID != filter.DeviceID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	if _, ok := s.recs[id]; !ok {
		return fmt.Errorf("recording %s: %w", id, xperrors.ErrNotFound)
	}
	delete(s.recs, id)
	return nil
}

func (s *fakeStore) Complete(ctx context.Context, id string, endedAt time.Time) error {
	rec, ok := s.recs[id]
	if !ok {
		return fmt.Errorf("recording %s: %w", id, xperrors.ErrNotFound)
	}
	if rec.Status != recordings.StatusRecording {
		return fmt.Errorf("cannot complete recording %s in status %q: %w", id, rec.Status, xperrors.ErrInvalidState)
	}
	rec.Status = recordings.StatusCompleted
	rec.EndedAt = &endedAt
	return nil
}

func (s *fakeStore) SetTranscript(ctx context.Context, id, transcript string) error {
	rec, ok := s.recs[id]
	if !ok {
		return fmt.Errorf("recording %s: %w", id, xperrors.ErrNotFound)
	}
	rec.Transcript = transcript
	return nil
}

func (s *fakeStore) AddScan(ctx context.Context, scan *recordings.BarcodeScan) error {
	if _, ok := s.recs[scan.RecordingID]; !ok {
		return fmt.Errorf("recording %s: %w", scan.RecordingID, xperrors.ErrNotFound)
	}
	scan.ID = int64(len(s.scans[scan.RecordingID]) + 1)
	s.scans[scan.RecordingID] = append(s.scans[scan.RecordingID], scan)
	return nil
}

func (s *fakeStore) ListScans(ctx context.Context, recordingID string) ([]*recordings.BarcodeScan, error) {
	return s.scans[recordingID], nil
}

func (s *fakeStore) ListSpeakers(ctx context.Context, recordingID string) ([]*recordings.SpeakerSegment, error) {
	return s.speakers[recordingID], nil
}

func (s *fakeStore) ListBadges(ctx context.Context, recordingID string) ([]*recordings.VisitorBadge, error) {
	return s.badges[recordingID], nil
}

func (s *fakeStore) ListSegments(ctx context.Context, id string) ([]*recordings.ConversationSegment, error) {
	return s.segments[id], nil
}

func (s *fakeStore) CountScansByRecordings(ctx context.Context, ids []string) (map[string]int, error) {
	counts := map[string]int{}
	for _, id := range ids {
		if n := len(s.scans[id]); n > 0 {
			counts[id] = n
		}
	}
	return counts, nil
}

func (s *fakeStore) ListBadgesByRecordings(ctx context.Context, ids []string) (map[string][]*recordings.VisitorBadge, error) {
	out := map[string][]*recordings.VisitorBadge{}
	for _, id := range ids {
		if b := s.badges[id]; len(b) > 0 {
			out[id] = b
		}
	}
	return out, nil
}

type fakeQueue struct {
	messages []queue.Message
	err      error
}

func (q *fakeQueue) Enqueue(msg queue.Message) error {
	if q.err != nil {
		return q.err
	}
	q.messages = append(q.messages, msg)
	return nil
}

type fakeInsights struct {
	dash *insights.Dashboard
	err  error
}

func (f *fakeInsights) Dashboard(ctx context.Context) (*insights.Dashboard, error) {
	return f.dash, f.err
}

func newTestServer(store *fakeStore, q *fakeQueue, provider InsightsProvider) *Server {
	logger := logging.NewNopLogger()
	rec := NewRecordingHandler(store, q, logger)
	dash := NewDashboardHandler(provider, store, logger)
	health := NewHealthHandler(map[string]Pinger{
		"database": func(ctx context.Context) error { return nil },
	}, logger)
	return NewServer(Config{}, rec, dash, health, logger)
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	parsed := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &parsed))
	}
	return resp, parsed
}

func seedRecording(store *fakeStore, id string, status recordings.Status) *recordings.Recording {
	rec := &recordings.Recording{
		ID:        id,
		DeviceID:  "booth-cam-1",
		Expo:      "TechConf 2025",
		Booth:     "A-17",
		StartedAt: time.Now().Add(-10 * time.Minute),
		Status:    status,
	}
	store.recs[id] = rec
	return rec
}

func TestCreateRecording(t *testing.T) {
	store := newFakeStore()
	server := newTestServer(store, &fakeQueue{}, &fakeInsights{})

	resp, body := doJSON(t, server.App(), "POST", "/api/recordings", map[string]interface{}{
		"device_id": "booth-cam-1",
		"expo":      "TechConf 2025",
		"booth":     "A-17",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "recording", body["status"])
	assert.Len(t, store.recs, 1)
}

func TestCreateRecordingMissingDevice(t *testing.T) {
	server := newTestServer(newFakeStore(), &fakeQueue{}, &fakeInsights{})

	resp, body := doJSON(t, server.App(), "POST", "/api/recordings", map[string]interface{}{
		"expo": "TechConf 2025",
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "ERR_VALIDATION", body["code"])
}

func TestCompleteRecordingQueuesProcessing(t *testing.T) {
	store := newFakeStore()
	seedRecording(store, "rec-1", recordings.StatusRecording)
	q := &fakeQueue{}
	server := newTestServer(store, q, &fakeInsights{})

	resp, body := doJSON(t, server.App(), "POST", "/api/recordings/rec-1/complete", map[string]interface{}{
		"transcript": "Host: hello there.",
	})
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	assert.Equal(t, true, body["queued"])

	assert.Equal(t, recordings.StatusCompleted, store.recs["rec-1"].Status)
	assert.Equal(t, "Host: hello there.", store.recs["rec-1"].Transcript)
	require.Len(t, q.messages, 1)
	assert.Equal(t, "rec-1", q.messages[0].GetRecordingID())
	assert.Equal(t, queue.PriorityNormal, q.messages[0].GetPriority())
}

func TestCompleteRecordingWrongState(t *testing.T) {
	store := newFakeStore()
	seedRecording(store, "rec-1", recordings.StatusProcessed)
	q := &fakeQueue{}
	server := newTestServer(store, q, &fakeInsights{})

	resp, body := doJSON(t, server.App(), "POST", "/api/recordings/rec-1/complete", nil)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ERR_INVALID_STATE", body["code"])
	assert.Empty(t, q.messages)
}

func TestSetTranscript(t *testing.T) {
	store := newFakeStore()
	seedRecording(store, "rec-1", recordings.StatusCompleted)
	q := &fakeQueue{}
	server := newTestServer(store, q, &fakeInsights{})

	resp, _ := doJSON(t, server.App(), "POST", "/api/recordings/rec-1/transcript", map[string]interface{}{
		"transcript": "Visitor: tell me about pricing.",
	})
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Len(t, q.messages, 1)

	pm, ok := q.messages[0].(*queue.ProcessMessage)
	require.True(t, ok)
	assert.Equal(t, queue.ReasonTranscript, pm.Reason)
}

func TestSetTranscriptEmpty(t *testing.T) {
	store := newFakeStore()
	seedRecording(store, "rec-1", recordings.StatusCompleted)
	server := newTestServer(store, &fakeQueue{}, &fakeInsights{})

	resp, _ := doJSON(t, server.App(), "POST", "/api/recordings/rec-1/transcript", map[string]interface{}{
		"transcript": "   ",
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestReprocessRecording(t *testing.T) {
	store := newFakeStore()
	seedRecording(store, "rec-1", recordings.StatusError)
	q := &fakeQueue{}
	server := newTestServer(store, q, &fakeInsights{})

	resp, _ := doJSON(t, server.App(), "POST", "/api/recordings/rec-1/reprocess", nil)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Len(t, q.messages, 1)

	pm := q.messages[0].(*queue.ProcessMessage)
	assert.Equal(t, queue.ReasonReprocess, pm.Reason)
	assert.Equal(t, queue.PriorityHigh, pm.Priority)
}

func TestReprocessRecordingStillRecording(t *testing.T) {
	store := newFakeStore()
	seedRecording(store, "rec-1", recordings.StatusRecording)
	q := &fakeQueue{}
	server := newTestServer(store, q, &fakeInsights{})

	resp, _ := doJSON(t, server.App(), "POST", "/api/recordings/rec-1/reprocess", nil)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Empty(t, q.messages)
}

func TestRecordingStatus(t *testing.T) {
	store := newFakeStore()
	rec := seedRecording(store, "rec-1", recordings.StatusError)
	rec.ErrorMessage = "diarization failed: request timed out"
	server := newTestServer(store, &fakeQueue{}, &fakeInsights{})

	resp, body := doJSON(t, server.App(), "GET", "/api/recordings/rec-1/status", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "diarization failed: request timed out", body["error_message"])
}

func TestRecordingStatusNotFound(t *testing.T) {
	server := newTestServer(newFakeStore(), &fakeQueue{}, &fakeInsights{})

	resp, body := doJSON(t, server.App(), "GET", "/api/recordings/missing/status", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "ERR_NOT_FOUND", body["code"])
}

func TestGetRecordingDetail(t *testing.T) {
	store := newFakeStore()
	seedRecording(store, "rec-1", recordings.StatusProcessed)
	store.speakers["rec-1"] = []*recordings.SpeakerSegment{
		{RecordingID: "rec-1", Role: recordings.RoleHost, Label: "Host"},
	}
	store.badges["rec-1"] = []*recordings.VisitorBadge{
		{RecordingID: "rec-1", BadgeID: "Bob", Label: "Bob"},
	}
	server := newTestServer(store, &fakeQueue{}, &fakeInsights{})

	resp, body := doJSON(t, server.App(), "GET", "/api/recordings/rec-1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotNil(t, body["recording"])
	assert.Len(t, body["speakers"], 1)
	assert.Len(t, body["visitor_badges"], 1)
}

func TestDeleteRecording(t *testing.T) {
	store := newFakeStore()
	seedRecording(store, "rec-1", recordings.StatusProcessed)
	server := newTestServer(store, &fakeQueue{}, &fakeInsights{})

	resp, _ := doJSON(t, server.App(), "DELETE", "/api/recordings/rec-1", nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Empty(t, store.recs)
}

func TestAddScan(t *testing.T) {
	store := newFakeStore()
	seedRecording(store, "rec-1", recordings.StatusRecording)
	server := newTestServer(store, &fakeQueue{}, &fakeInsights{})

	ts := 42.5
	resp, body := doJSON(t, server.App(), "POST", "/api/barcodes", map[string]interface{}{
		"recording_id":    "rec-1",
		"barcode_data":    "ACME-42",
		"visitor_name":    "Sarah Chen",
		"video_timestamp": ts,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ACME-42", body["barcode_data"])
	require.Len(t, store.scans["rec-1"], 1)
	require.NotNil(t, store.scans["rec-1"][0].VideoTimestamp)
	assert.InDelta(t, ts, *store.scans["rec-1"][0].VideoTimestamp, 0.001)
}

func TestAddScanMissingBarcode(t *testing.T) {
	store := newFakeStore()
	seedRecording(store, "rec-1", recordings.StatusRecording)
	server := newTestServer(store, &fakeQueue{}, &fakeInsights{})

	resp, _ := doJSON(t, server.App(), "POST", "/api/barcodes", map[string]interface{}{
		"recording_id": "rec-1",
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListScans(t *testing.T) {
	store := newFakeStore()
	seedRecording(store, "rec-1", recordings.StatusRecording)
	store.scans["rec-1"] = []*recordings.BarcodeScan{
		{ID: 1, RecordingID: "rec-1", BarcodeData: "ACME-42"},
		{ID: 2, RecordingID: "rec-1", BarcodeData: "GLOBEX-7"},
	}
	server := newTestServer(store, &fakeQueue{}, &fakeInsights{})

	resp, body := doJSON(t, server.App(), "GET", "/api/barcodes/rec-1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["count"])
}
