package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	xperrors "github.com/xowlabs/expopulse/pkg/errors"
	"github.com/xowlabs/expopulse/pkg/logging"
)

// Redis key prefixes
const (
	keyPrefixQueue      = "queue:"      // Ready-to-deliver messages
	keyPrefixDelayed    = "delayed:"    // Backed-off messages, scored by visible-at time
	keyPrefixProcessing = "processing:" // Messages being processed
	keyPrefixMessage    = "msg:"        // Message data
	keyPrefixDLQ        = "dlq:"        // Dead letter queue
)

// priorityStride separates priority bands in the ready set score. Scores
// are milliseconds since the epoch (~1.7e12 today), so a stride of 1e13
// keeps bands apart for centuries while staying well inside float64's
// exact-integer range.
const priorityStride = 1e13

// readyScore computes the ready-set score for a message. ZPopMin drains
// the set, so higher priorities get a larger negative offset and, within
// a band, older messages sort first.
func readyScore(p Priority, t time.Time) float64 {
	return -float64(p)*priorityStride + float64(t.UnixMilli())
}

// RedisQueue implements Queue using Redis sorted sets: one for ready
// messages (scored by priority then enqueue time), one for backed-off
// messages (scored by the time they become visible again), one for
// in-flight messages (scored by visibility deadline), and one for the DLQ.
type RedisQueue struct {
	client     *redis.Client
	name       string
	config     Config
	logger     logging.Logger
	metrics    MetricsRecorder
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// NewRedisQueue creates a new Redis-backed queue. metrics may be nil.
func NewRedisQueue(client *redis.Client, config Config, logger logging.Logger, metrics MetricsRecorder) *RedisQueue {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisQueue{
		client:     client,
		name:       config.Name,
		config:     config,
		logger:     logger.With(logging.F("component", "queue"), logging.F("queue", config.Name)),
		metrics:    metrics,
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Name returns the queue name.
func (q *RedisQueue) Name() string {
	return q.name
}

// Enqueue adds a message to the queue.
func (q *RedisQueue) Enqueue(msg Message) error {
	messageID := uuid.New().String()

	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	now := time.Now()
	qm := &QueuedMessage{
		ID:          messageID,
		Message:     msgBytes,
		MessageType: msg.GetMessageType(),
		Priority:    msg.GetPriority(),
		RetryCount:  0,
		EnqueuedAt:  now,
	}

	qmBytes, err := json.Marshal(qm)
	if err != nil {
		return fmt.Errorf("failed to marshal queued message: %w", err)
	}

	// Store message data and add to the ready set atomically. The score is
	// priority-major, enqueue-time-minor, and Dequeue pops the minimum, so
	// higher priorities drain first and each band stays FIFO.
	pipe := q.client.TxPipeline()
	msgKey := keyPrefixMessage + q.name + ":" + messageID
	pipe.Set(q.ctx, msgKey, qmBytes, q.config.RetentionPeriod)
	queueKey := keyPrefixQueue + q.name
	pipe.ZAdd(q.ctx, queueKey, redis.Z{Score: readyScore(qm.Priority, now), Member: messageID})

	if _, err := pipe.Exec(q.ctx); err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}

	q.metrics.RecordQueueEnqueue(q.name, enqueueReason(msg))

	q.logger.Debug("message enqueued",
		logging.F("message_id", messageID),
		logging.F("recording_id", msg.GetRecordingID()))

	return nil
}

// enqueueReason extracts the trigger reason for metrics labels.
func enqueueReason(msg Message) string {
	if pm, ok := msg.(*ProcessMessage); ok {
		return string(pm.Reason)
	}
	return string(msg.GetMessageType())
}

// Dequeue retrieves messages from the queue, blocking up to timeout.
func (q *RedisQueue) Dequeue(maxMessages int, timeout time.Duration) ([]*QueuedMessage, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}

	queueKey := keyPrefixQueue + q.name
	processingKey := keyPrefixProcessing + q.name
	deadline := time.Now().Add(timeout)

	var messages []*QueuedMessage

	for time.Now().Before(deadline) && len(messages) < maxMessages {
		if err := q.promoteDueMessages(); err != nil {
			return messages, err
		}

		result, err := q.client.ZPopMin(q.ctx, queueKey, 1).Result()
		if err == redis.Nil || len(result) == 0 {
			select {
			case <-time.After(100 * time.Millisecond):
				continue
			case <-q.ctx.Done():
				return messages, q.ctx.Err()
			}
		}
		if err != nil {
			return messages, fmt.Errorf("failed to pop from queue: %w", err)
		}

		messageID := result[0].Member.(string)
		msgKey := keyPrefixMessage + q.name + ":" + messageID

		data, err := q.client.Get(q.ctx, msgKey).Bytes()
		if err == redis.Nil {
			// Message data expired, drop the stale id.
			continue
		}
		if err != nil {
			return messages, fmt.Errorf("failed to get message data: %w", err)
		}

		var qm QueuedMessage
		if err := json.Unmarshal(data, &qm); err != nil {
			return messages, fmt.Errorf("failed to unmarshal message: %w", err)
		}

		// Move to the processing set with a visibility deadline.
		visibleAfter := time.Now().Add(q.config.VisibilityTimeout)
		qm.VisibleAfter = visibleAfter

		updatedData, _ := json.Marshal(qm)
		pipe := q.client.TxPipeline()
		pipe.Set(q.ctx, msgKey, updatedData, q.config.RetentionPeriod)
		pipe.ZAdd(q.ctx, processingKey, redis.Z{
			Score:  float64(visibleAfter.UnixMilli()),
			Member: messageID,
		})
		if _, err := pipe.Exec(q.ctx); err != nil {
			return messages, fmt.Errorf("failed to move to processing: %w", err)
		}

		messages = append(messages, &qm)
	}

	return messages, nil
}

// promoteDueMessages moves backed-off messages whose visible-at time has
// passed from the delayed set back into the ready set. Promoted messages
// keep their original enqueue time so they rejoin their priority band
// ahead of anything enqueued since.
func (q *RedisQueue) promoteDueMessages() error {
	delayedKey := keyPrefixDelayed + q.name
	queueKey := keyPrefixQueue + q.name

	due, err := q.client.ZRangeByScore(q.ctx, delayedKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", time.Now().UnixMilli()),
		Count: 100,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to scan delayed messages: %w", err)
	}

	for _, messageID := range due {
		msgKey := keyPrefixMessage + q.name + ":" + messageID

		data, err := q.client.Get(q.ctx, msgKey).Bytes()
		if err == redis.Nil {
			q.client.ZRem(q.ctx, delayedKey, messageID)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to get delayed message: %w", err)
		}

		var qm QueuedMessage
		if err := json.Unmarshal(data, &qm); err != nil {
			q.client.ZRem(q.ctx, delayedKey, messageID)
			continue
		}

		pipe := q.client.TxPipeline()
		pipe.ZRem(q.ctx, delayedKey, messageID)
		pipe.ZAdd(q.ctx, queueKey, redis.Z{Score: readyScore(qm.Priority, qm.EnqueuedAt), Member: messageID})
		if _, err := pipe.Exec(q.ctx); err != nil {
			return fmt.Errorf("failed to promote delayed message: %w", err)
		}
	}

	return nil
}

// Ack acknowledges successful processing of a message.
func (q *RedisQueue) Ack(messageID string) error {
	processingKey := keyPrefixProcessing + q.name
	msgKey := keyPrefixMessage + q.name + ":" + messageID

	pipe := q.client.TxPipeline()
	pipe.ZRem(q.ctx, processingKey, messageID)
	pipe.Del(q.ctx, msgKey)
	if _, err := pipe.Exec(q.ctx); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}

	return nil
}

// Nack indicates processing failure. The message sits out its exponential
// backoff in the delayed set, invisible to Dequeue until the backoff
// expires, or moves to the DLQ when retries run out.
func (q *RedisQueue) Nack(messageID string) error {
	processingKey := keyPrefixProcessing + q.name
	msgKey := keyPrefixMessage + q.name + ":" + messageID

	data, err := q.client.Get(q.ctx, msgKey).Bytes()
	if err == redis.Nil {
		return ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	}

	var qm QueuedMessage
	if err := json.Unmarshal(data, &qm); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	qm.RetryCount++

	if qm.RetryCount >= q.config.MaxRetries {
		return q.MoveToDeadLetter(messageID, "max retries exceeded")
	}

	delayedKey := keyPrefixDelayed + q.name
	backoff := calculateBackoff(qm.RetryCount)
	qm.VisibleAfter = time.Now().Add(backoff)

	updatedData, _ := json.Marshal(qm)

	pipe := q.client.TxPipeline()
	pipe.ZRem(q.ctx, processingKey, messageID)
	pipe.Set(q.ctx, msgKey, updatedData, q.config.RetentionPeriod)
	pipe.ZAdd(q.ctx, delayedKey, redis.Z{
		Score:  float64(qm.VisibleAfter.UnixMilli()),
		Member: messageID,
	})

	if _, err := pipe.Exec(q.ctx); err != nil {
		return fmt.Errorf("failed to nack message: %w", err)
	}

	q.logger.Debug("message nacked",
		logging.F("message_id", messageID),
		logging.F("retry_count", qm.RetryCount),
		logging.F("backoff", backoff.String()))

	return nil
}

// MoveToDeadLetter moves a message to the dead letter queue.
func (q *RedisQueue) MoveToDeadLetter(messageID string, reason string) error {
	processingKey := keyPrefixProcessing + q.name
	delayedKey := keyPrefixDelayed + q.name
	msgKey := keyPrefixMessage + q.name + ":" + messageID
	dlqKey := keyPrefixDLQ + q.name

	data, err := q.client.Get(q.ctx, msgKey).Bytes()
	if err == redis.Nil {
		return ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	}

	dlqEntry := map[string]interface{}{
		"message":    string(data),
		"reason":     reason,
		"moved_at":   time.Now().Format(time.RFC3339),
		"queue_name": q.name,
	}
	dlqData, _ := json.Marshal(dlqEntry)

	pipe := q.client.TxPipeline()
	pipe.ZRem(q.ctx, processingKey, messageID)
	pipe.ZRem(q.ctx, delayedKey, messageID)
	pipe.Del(q.ctx, msgKey)
	pipe.ZAdd(q.ctx, dlqKey, redis.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: string(dlqData),
	})

	if _, err := pipe.Exec(q.ctx); err != nil {
		return fmt.Errorf("failed to move to DLQ: %w", err)
	}

	q.metrics.RecordDLQItem(q.name, dlqErrorCode(reason))

	q.logger.Warn("message moved to dead letter queue",
		logging.F("message_id", messageID),
		logging.F("reason", reason))

	return nil
}

// dlqErrorCode maps a free-text dead-letter reason onto a bounded set of
// metric label values.
func dlqErrorCode(reason string) string {
	switch {
	case strings.HasPrefix(reason, "parse error"):
		return string(xperrors.ErrMalformedResponse)
	case strings.HasPrefix(reason, "max retries"):
		return "max_retries"
	case strings.HasPrefix(reason, "visibility timeout"):
		return "visibility_timeout"
	default:
		return string(xperrors.ClassifyError(errors.New(reason), "").Code)
	}
}

// Depth returns the number of messages waiting for delivery, including
// backed-off messages that are not yet visible.
func (q *RedisQueue) Depth() (int64, error) {
	queueKey := keyPrefixQueue + q.name
	delayedKey := keyPrefixDelayed + q.name

	ready, err := q.client.ZCard(q.ctx, queueKey).Result()
	if err != nil {
		return 0, err
	}
	delayed, err := q.client.ZCard(q.ctx, delayedKey).Result()
	if err != nil {
		return 0, err
	}
	return ready + delayed, nil
}

// Close closes the queue.
func (q *RedisQueue) Close() error {
	q.cancelFunc()
	return nil
}

// calculateBackoff returns exponential backoff for retries: 2s, 4s, 8s,
// capped at 5 minutes.
func calculateBackoff(retryCount int) time.Duration {
	base := time.Second
	backoff := base * (1 << uint(retryCount))
	maxBackoff := 5 * time.Minute
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

// RecoverStaleMessages re-enqueues messages whose visibility timeout has
// expired, typically after a worker crash. Should be called periodically.
func (q *RedisQueue) RecoverStaleMessages() error {
	processingKey := keyPrefixProcessing + q.name
	queueKey := keyPrefixQueue + q.name

	staleMessages, err := q.client.ZRangeByScore(q.ctx, processingKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", time.Now().UnixMilli()),
		Count: 100,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to find stale messages: %w", err)
	}

	for _, messageID := range staleMessages {
		msgKey := keyPrefixMessage + q.name + ":" + messageID

		data, err := q.client.Get(q.ctx, msgKey).Bytes()
		if err == redis.Nil {
			q.client.ZRem(q.ctx, processingKey, messageID)
			continue
		}
		if err != nil {
			continue
		}

		var qm QueuedMessage
		if err := json.Unmarshal(data, &qm); err != nil {
			continue
		}

		qm.RetryCount++

		if qm.RetryCount >= q.config.MaxRetries {
			q.MoveToDeadLetter(messageID, "visibility timeout exceeded")
			continue
		}

		updatedData, _ := json.Marshal(qm)
		pipe := q.client.TxPipeline()
		pipe.ZRem(q.ctx, processingKey, messageID)
		pipe.Set(q.ctx, msgKey, updatedData, q.config.RetentionPeriod)
		pipe.ZAdd(q.ctx, queueKey, redis.Z{Score: readyScore(qm.Priority, time.Now()), Member: messageID})
		pipe.Exec(q.ctx)
	}

	return nil
}

// Verify interface compliance
var _ Queue = (*RedisQueue)(nil)
