package recordings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	xperrors "github.com/xowlabs/expopulse/pkg/errors"
	"github.com/xowlabs/expopulse/pkg/logging"
)

// Repository provides database operations for recordings and their
// derived records.
type Repository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewRepository creates a new recordings repository.
func NewRepository(pool *pgxpool.Pool, logger logging.Logger) *Repository {
	return &Repository{
		pool:   pool,
		logger: logger.With(logging.F("component", "recordings_repository")),
	}
}

// Create inserts a new recording in the initial "recording" state.
func (r *Repository) Create(ctx context.Context, rec *Recording) error {
	if rec.Status == "" {
		rec.Status = StatusRecording
	}

	query := `
		INSERT INTO recordings (
			id, device_id, expo, booth, started_at, ended_at, duration,
			status, transcript, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, NOW(), NOW()
		)
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		rec.ID,
		rec.DeviceID,
		rec.Expo,
		rec.Booth,
		rec.StartedAt,
		rec.EndedAt,
		rec.Duration,
		rec.Status,
		rec.Transcript,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)

	if err != nil {
		r.logger.Error("Failed to create recording",
			logging.Err(err),
			logging.F("recording_id", rec.ID))
		return fmt.Errorf("failed to create recording: %w", err)
	}

	r.logger.Debug("Recording created",
		logging.F("recording_id", rec.ID),
		logging.F("device_id", rec.DeviceID))

	return nil
}

const recordingColumns = `
	id, device_id, expo, booth, started_at, ended_at, duration,
	status, transcript, error_message,
	overall_summary, top_topics, top_questions, overall_sentiment,
	host_identified, created_at, updated_at
`

func scanRecording(row pgx.Row) (*Recording, error) {
	rec := &Recording{}
	var topicsJSON, questionsJSON []byte
	var errorMessage, overallSummary, overallSentiment *string

	err := row.Scan(
		&rec.ID,
		&rec.DeviceID,
		&rec.Expo,
		&rec.Booth,
		&rec.StartedAt,
		&rec.EndedAt,
		&rec.Duration,
		&rec.Status,
		&rec.Transcript,
		&errorMessage,
		&overallSummary,
		&topicsJSON,
		&questionsJSON,
		&overallSentiment,
		&rec.HostIdentified,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if errorMessage != nil {
		rec.ErrorMessage = *errorMessage
	}
	if overallSummary != nil {
		rec.OverallSummary = *overallSummary
	}
	if overallSentiment != nil {
		rec.OverallSentiment = *overallSentiment
	}
	if len(topicsJSON) > 0 {
		if err := json.Unmarshal(topicsJSON, &rec.TopTopics); err != nil {
			rec.TopTopics = nil
		}
	}
	if len(questionsJSON) > 0 {
		if err := json.Unmarshal(questionsJSON, &rec.TopQuestions); err != nil {
			rec.TopQuestions = nil
		}
	}

	return rec, nil
}

// Get retrieves a recording by ID.
func (r *Repository) Get(ctx context.Context, id string) (*Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1`

	rec, err := scanRecording(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("recording %s: %w", id, xperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recording %s: %w", id, err)
	}

	return rec, nil
}

// ListFilter narrows and pages a recordings listing. Zero-value fields are
// ignored.
type ListFilter struct {
	DeviceID string
	Expo     string
	Status   Status
	Limit    int
	Offset   int
}

// List returns recordings matching the filter, ordered by start time
// descending.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]*Recording, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	query := `SELECT ` + recordingColumns + ` FROM recordings`
	var conds []string
	var args []interface{}
	if filter.DeviceID != "" {
		args = append(args, filter.DeviceID)
		conds = append(conds, fmt.Sprintf("device_id = $%d", len(args)))
	}
	if filter.Expo != "" {
		args = append(args, filter.Expo)
		conds = append(conds, fmt.Sprintf("expo = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	defer rows.Close()

	var recs []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recordings: %w", err)
	}

	return recs, nil
}

// ListProcessed returns all recordings in terminal processed state, for
// dashboard aggregation.
func (r *Repository) ListProcessed(ctx context.Context) ([]*Recording, error) {
	query := `
		SELECT ` + recordingColumns + `
		FROM recordings
		WHERE status = $1
		ORDER BY started_at DESC
	`

	rows, err := r.pool.Query(ctx, query, StatusProcessed)
	if err != nil {
		return nil, fmt.Errorf("failed to list processed recordings: %w", err)
	}
	defer rows.Close()

	var recs []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recordings: %w", err)
	}

	return recs, nil
}

// TransitionStatus moves a recording to the given status, enforcing the
// lifecycle state machine with a conditional update so two concurrent
// writers cannot both win the same transition.
func (r *Repository) TransitionStatus(ctx context.Context, id string, to Status) error {
	var from []Status
	for s, targets := range statusTransitions {
		for _, t := range targets {
			if t == to {
				from = append(from, s)
			}
		}
	}

	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	query := `
		UPDATE recordings
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
	`

	result, err := r.pool.Exec(ctx, query, id, to, fromStrs)
	if err != nil {
		return fmt.Errorf("failed to transition recording %s to %s: %w", id, to, err)
	}

	if result.RowsAffected() == 0 {
		rec, getErr := r.Get(ctx, id)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("cannot transition recording %s from %q to %q: %w", id, rec.Status, to, xperrors.ErrInvalidState)
	}

	r.logger.Debug("Recording status updated",
		logging.F("recording_id", id),
		logging.F("status", string(to)))

	return nil
}

// MarkError flips the recording to the error state and retains the failure
// message for diagnostics. Callers pass an operator-safe message, never raw
// exception text.
func (r *Repository) MarkError(ctx context.Context, id, message string) error {
	query := `
		UPDATE recordings
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, StatusError, message)
	if err != nil {
		return fmt.Errorf("failed to mark recording %s as error: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("recording %s: %w", id, xperrors.ErrNotFound)
	}

	r.logger.Warn("Recording marked as error",
		logging.F("recording_id", id),
		logging.F("error_message", message))

	return nil
}

// SetTranscript stores the transcript and clears any stale error message.
func (r *Repository) SetTranscript(ctx context.Context, id, transcript string) error {
	query := `
		UPDATE recordings
		SET transcript = $2, error_message = NULL, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, transcript)
	if err != nil {
		return fmt.Errorf("failed to set transcript for recording %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("recording %s: %w", id, xperrors.ErrNotFound)
	}

	return nil
}

// Complete marks the end of a recording session and derives its duration.
func (r *Repository) Complete(ctx context.Context, id string, endedAt time.Time) error {
	query := `
		UPDATE recordings
		SET status = $2,
		    ended_at = $3,
		    duration = GREATEST(EXTRACT(EPOCH FROM ($3 - started_at)), 0),
		    updated_at = NOW()
		WHERE id = $1 AND status = $4
	`

	result, err := r.pool.Exec(ctx, query, id, StatusCompleted, endedAt, StatusRecording)
	if err != nil {
		return fmt.Errorf("failed to complete recording %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		rec, getErr := r.Get(ctx, id)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("cannot complete recording %s in status %q: %w", id, rec.Status, xperrors.ErrInvalidState)
	}

	return nil
}

// SaveAnalysis stores the analysis stage output on the recording.
func (r *Repository) SaveAnalysis(ctx context.Context, id string, summary string, topics, questions []string, sentiment string) error {
	topicsJSON, err := json.Marshal(topics)
	if err != nil {
		return fmt.Errorf("failed to marshal topics: %w", err)
	}
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("failed to marshal questions: %w", err)
	}

	query := `
		UPDATE recordings
		SET overall_summary = $2, top_topics = $3, top_questions = $4,
		    overall_sentiment = $5, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, summary, topicsJSON, questionsJSON, sentiment)
	if err != nil {
		return fmt.Errorf("failed to save analysis for recording %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("recording %s: %w", id, xperrors.ErrNotFound)
	}

	return nil
}

// SaveSegments stores the topic-based conversation decomposition kept for
// backward-compatible consumers.
func (r *Repository) SaveSegments(ctx context.Context, id string, segments []*ConversationSegment) error {
	if segments == nil {
		segments = []*ConversationSegment{}
	}
	segmentsJSON, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation segments: %w", err)
	}

	result, err := r.pool.Exec(ctx,
		`UPDATE recordings SET conversation_segments = $2, updated_at = NOW() WHERE id = $1`,
		id, segmentsJSON)
	if err != nil {
		return fmt.Errorf("failed to save conversation segments for recording %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("recording %s: %w", id, xperrors.ErrNotFound)
	}

	return nil
}

// ListSegments returns the stored conversation decomposition for a
// recording, or an empty slice when it has not been processed yet.
func (r *Repository) ListSegments(ctx context.Context, id string) ([]*ConversationSegment, error) {
	var segmentsJSON []byte
	err := r.pool.QueryRow(ctx,
		`SELECT conversation_segments FROM recordings WHERE id = $1`, id).Scan(&segmentsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("recording %s: %w", id, xperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load conversation segments for recording %s: %w", id, err)
	}

	segments := []*ConversationSegment{}
	if len(segmentsJSON) > 0 {
		if err := json.Unmarshal(segmentsJSON, &segments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal conversation segments for recording %s: %w", id, err)
		}
	}
	if segments == nil {
		segments = []*ConversationSegment{}
	}

	return segments, nil
}

// ReplaceSpeakers atomically replaces the diarized speaker set for a
// recording and updates the host-identified flag.
func (r *Repository) ReplaceSpeakers(ctx context.Context, id string, speakers []*SpeakerSegment, hostIdentified bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM speaker_segments WHERE recording_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete speaker segments for recording %s: %w", id, err)
	}

	insert := `
		INSERT INTO speaker_segments (
			recording_id, role, label, label_source, company, title,
			dialogue, summary, topics, questions, sentiment, speaking_share, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		RETURNING id
	`

	for _, sp := range speakers {
		dialogueJSON, err := json.Marshal(sp.Dialogue)
		if err != nil {
			return fmt.Errorf("failed to marshal dialogue: %w", err)
		}
		topicsJSON, err := json.Marshal(sp.Topics)
		if err != nil {
			return fmt.Errorf("failed to marshal topics: %w", err)
		}
		questionsJSON, err := json.Marshal(sp.Questions)
		if err != nil {
			return fmt.Errorf("failed to marshal questions: %w", err)
		}

		err = tx.QueryRow(ctx, insert,
			id,
			sp.Role,
			sp.Label,
			sp.LabelSource,
			sp.Company,
			sp.Title,
			dialogueJSON,
			sp.Summary,
			topicsJSON,
			questionsJSON,
			sp.Sentiment,
			sp.SpeakingShare,
		).Scan(&sp.ID)
		if err != nil {
			return fmt.Errorf("failed to insert speaker segment: %w", err)
		}
		sp.RecordingID = id
	}

	if _, err := tx.Exec(ctx,
		`UPDATE recordings SET host_identified = $2, updated_at = NOW() WHERE id = $1`,
		id, hostIdentified); err != nil {
		return fmt.Errorf("failed to update host flag for recording %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit speaker replacement: %w", err)
	}

	r.logger.Debug("Speaker segments replaced",
		logging.F("recording_id", id),
		logging.F("speaker_count", len(speakers)))

	return nil
}

// ListSpeakers returns the diarized speakers for a recording.
func (r *Repository) ListSpeakers(ctx context.Context, recordingID string) ([]*SpeakerSegment, error) {
	query := `
		SELECT id, recording_id, role, label, label_source, company, title,
		       dialogue, summary, topics, questions, sentiment, speaking_share
		FROM speaker_segments
		WHERE recording_id = $1
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query, recordingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list speakers: %w", err)
	}
	defer rows.Close()

	var speakers []*SpeakerSegment
	for rows.Next() {
		sp := &SpeakerSegment{}
		var dialogueJSON, topicsJSON, questionsJSON []byte
		if err := rows.Scan(
			&sp.ID,
			&sp.RecordingID,
			&sp.Role,
			&sp.Label,
			&sp.LabelSource,
			&sp.Company,
			&sp.Title,
			&dialogueJSON,
			&sp.Summary,
			&topicsJSON,
			&questionsJSON,
			&sp.Sentiment,
			&sp.SpeakingShare,
		); err != nil {
			return nil, fmt.Errorf("failed to scan speaker segment: %w", err)
		}
		if err := json.Unmarshal(dialogueJSON, &sp.Dialogue); err != nil {
			sp.Dialogue = nil
		}
		if err := json.Unmarshal(topicsJSON, &sp.Topics); err != nil {
			sp.Topics = nil
		}
		if err := json.Unmarshal(questionsJSON, &sp.Questions); err != nil {
			sp.Questions = nil
		}
		speakers = append(speakers, sp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating speakers: %w", err)
	}

	return speakers, nil
}

// ReplaceBadges atomically replaces the badge set for a recording.
// Delete-then-insert in one transaction so a reprocessing run never
// appends duplicates to the prior set.
func (r *Repository) ReplaceBadges(ctx context.Context, recordingID string, badges []*VisitorBadge) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM visitor_badges WHERE recording_id = $1`, recordingID); err != nil {
		return fmt.Errorf("failed to delete badges for recording %s: %w", recordingID, err)
	}

	insert := `
		INSERT INTO visitor_badges (
			badge_id, recording_id, label, start_time, end_time, summary,
			topics, questions_asked, sentiment, key_points,
			is_barcode_linked, company, title, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		RETURNING id, created_at
	`

	for _, b := range badges {
		topicsJSON, err := json.Marshal(b.Topics)
		if err != nil {
			return fmt.Errorf("failed to marshal topics: %w", err)
		}
		questionsJSON, err := json.Marshal(b.QuestionsAsked)
		if err != nil {
			return fmt.Errorf("failed to marshal questions: %w", err)
		}
		keyPointsJSON, err := json.Marshal(b.KeyPoints)
		if err != nil {
			return fmt.Errorf("failed to marshal key points: %w", err)
		}

		err = tx.QueryRow(ctx, insert,
			b.BadgeID,
			recordingID,
			b.Label,
			b.StartTime,
			b.EndTime,
			b.Summary,
			topicsJSON,
			questionsJSON,
			b.Sentiment,
			keyPointsJSON,
			b.BarcodeLinked,
			b.Company,
			b.Title,
		).Scan(&b.ID, &b.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert badge %s: %w", b.BadgeID, err)
		}
		b.RecordingID = recordingID
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit badge replacement: %w", err)
	}

	r.logger.Debug("Visitor badges replaced",
		logging.F("recording_id", recordingID),
		logging.F("badge_count", len(badges)))

	return nil
}

const badgeColumns = `
	id, badge_id, recording_id, label, start_time, end_time, summary,
	topics, questions_asked, sentiment, key_points,
	is_barcode_linked, company, title, created_at
`

func scanBadge(row pgx.Row) (*VisitorBadge, error) {
	b := &VisitorBadge{}
	var topicsJSON, questionsJSON, keyPointsJSON []byte
	err := row.Scan(
		&b.ID,
		&b.BadgeID,
		&b.RecordingID,
		&b.Label,
		&b.StartTime,
		&b.EndTime,
		&b.Summary,
		&topicsJSON,
		&questionsJSON,
		&b.Sentiment,
		&keyPointsJSON,
		&b.BarcodeLinked,
		&b.Company,
		&b.Title,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(topicsJSON, &b.Topics); err != nil {
		b.Topics = nil
	}
	if err := json.Unmarshal(questionsJSON, &b.QuestionsAsked); err != nil {
		b.QuestionsAsked = nil
	}
	if err := json.Unmarshal(keyPointsJSON, &b.KeyPoints); err != nil {
		b.KeyPoints = nil
	}
	return b, nil
}

// ListBadges returns the visitor badges for one recording.
func (r *Repository) ListBadges(ctx context.Context, recordingID string) ([]*VisitorBadge, error) {
	query := `SELECT ` + badgeColumns + ` FROM visitor_badges WHERE recording_id = $1 ORDER BY start_time ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, recordingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	defer rows.Close()

	var badges []*VisitorBadge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		badges = append(badges, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating badges: %w", err)
	}

	return badges, nil
}

// ListBadgesByRecordings batch-fetches badges for many recordings in one
// query, keyed by recording id. The dashboard aggregation depends on this
// to stay one round-trip regardless of badge count.
func (r *Repository) ListBadgesByRecordings(ctx context.Context, recordingIDs []string) (map[string][]*VisitorBadge, error) {
	result := make(map[string][]*VisitorBadge, len(recordingIDs))
	if len(recordingIDs) == 0 {
		return result, nil
	}

	query := `SELECT ` + badgeColumns + ` FROM visitor_badges WHERE recording_id = ANY($1) ORDER BY recording_id, start_time ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, recordingIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to batch-list badges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		result[b.RecordingID] = append(result[b.RecordingID], b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating badges: %w", err)
	}

	return result, nil
}

// AddScan appends a barcode scan event to a recording.
func (r *Repository) AddScan(ctx context.Context, scan *BarcodeScan) error {
	query := `
		INSERT INTO barcode_scans (
			recording_id, barcode_data, visitor_name, video_timestamp, captured_at
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	capturedAt := scan.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	err := r.pool.QueryRow(ctx, query,
		scan.RecordingID,
		scan.BarcodeData,
		scan.VisitorName,
		scan.VideoTimestamp,
		capturedAt,
	).Scan(&scan.ID)
	if err != nil {
		return fmt.Errorf("failed to add barcode scan: %w", err)
	}
	scan.CapturedAt = capturedAt

	return nil
}

// ListScans returns the barcode scans for a recording in capture order.
func (r *Repository) ListScans(ctx context.Context, recordingID string) ([]*BarcodeScan, error) {
	query := `
		SELECT id, recording_id, barcode_data, visitor_name, video_timestamp, captured_at
		FROM barcode_scans
		WHERE recording_id = $1
		ORDER BY captured_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, recordingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list barcode scans: %w", err)
	}
	defer rows.Close()

	var scans []*BarcodeScan
	for rows.Next() {
		s := &BarcodeScan{}
		var visitorName *string
		if err := rows.Scan(&s.ID, &s.RecordingID, &s.BarcodeData, &visitorName, &s.VideoTimestamp, &s.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan barcode event: %w", err)
		}
		if visitorName != nil {
			s.VisitorName = *visitorName
		}
		scans = append(scans, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating barcode scans: %w", err)
	}

	return scans, nil
}

// ListRecentScans returns barcode scans across all recordings, most recent
// first, for the dashboard visitors view.
func (r *Repository) ListRecentScans(ctx context.Context, limit int) ([]*BarcodeScan, error) {
	if limit <= 0 {
		limit = 1000
	}

	query := `
		SELECT id, recording_id, barcode_data, visitor_name, video_timestamp, captured_at
		FROM barcode_scans
		ORDER BY captured_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent scans: %w", err)
	}
	defer rows.Close()

	var scans []*BarcodeScan
	for rows.Next() {
		s := &BarcodeScan{}
		var visitorName *string
		if err := rows.Scan(&s.ID, &s.RecordingID, &s.BarcodeData, &visitorName, &s.VideoTimestamp, &s.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan barcode event: %w", err)
		}
		if visitorName != nil {
			s.VisitorName = *visitorName
		}
		scans = append(scans, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating barcode scans: %w", err)
	}

	return scans, nil
}

// CountScansByRecordings returns the scan count per recording in a single
// query, for the dashboard recordings list.
func (r *Repository) CountScansByRecordings(ctx context.Context, recordingIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(recordingIDs))
	if len(recordingIDs) == 0 {
		return counts, nil
	}

	query := `
		SELECT recording_id, COUNT(*)
		FROM barcode_scans
		WHERE recording_id = ANY($1)
		GROUP BY recording_id
	`

	rows, err := r.pool.Query(ctx, query, recordingIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count scans: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[id] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scan counts: %w", err)
	}

	return counts, nil
}

// Delete removes a recording and its derived records.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, q := range []string{
		`DELETE FROM visitor_badges WHERE recording_id = $1`,
		`DELETE FROM speaker_segments WHERE recording_id = $1`,
		`DELETE FROM barcode_scans WHERE recording_id = $1`,
	} {
		if _, err := tx.Exec(ctx, q, id); err != nil {
			return fmt.Errorf("failed to delete derived records for recording %s: %w", id, err)
		}
	}

	result, err := tx.Exec(ctx, `DELETE FROM recordings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete recording %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("recording %s: %w", id, xperrors.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit recording deletion: %w", err)
	}

	r.logger.Info("Recording deleted", logging.F("recording_id", id))

	return nil
}
