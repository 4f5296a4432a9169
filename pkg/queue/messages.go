// Package queue provides the Redis-backed work queue, the per-recording
// processing lease, and the worker pool that drains pipeline work. The
// HTTP surface enqueues a message and returns immediately; workers own the
// pipeline run from there.
package queue

import (
	"encoding/json"
	"time"
)

// Priority levels for queue messages.
type Priority int

const (
	PriorityLow    Priority = 0 // Backfill reprocessing sweeps
	PriorityNormal Priority = 1 // Standard post-upload processing
	PriorityHigh   Priority = 2 // Operator-triggered reprocess
)

// MessageType identifies the type of queue message.
type MessageType string

const (
	MessageTypeProcess MessageType = "process"
)

// Reason records what triggered a processing run.
type Reason string

const (
	ReasonUpload     Reason = "upload"
	ReasonTranscript Reason = "manual_transcript"
	ReasonReprocess  Reason = "reprocess"
)

// Message is the base interface for all queue messages.
type Message interface {
	// GetRecordingID returns the recording being processed.
	GetRecordingID() string
	// GetPriority returns the message priority.
	GetPriority() Priority
	// GetMessageType returns the message type.
	GetMessageType() MessageType
}

// ProcessMessage asks a worker to run the full pipeline for one recording.
type ProcessMessage struct {
	RecordingID string    `json:"recording_id"`
	Reason      Reason    `json:"reason"`
	Priority    Priority  `json:"priority"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

func (m *ProcessMessage) GetRecordingID() string      { return m.RecordingID }
func (m *ProcessMessage) GetPriority() Priority       { return m.Priority }
func (m *ProcessMessage) GetMessageType() MessageType { return MessageTypeProcess }

// QueuedMessage wraps a message with queue metadata.
type QueuedMessage struct {
	ID           string          `json:"id"`
	Message      json.RawMessage `json:"message"`
	MessageType  MessageType     `json:"message_type"`
	Priority     Priority        `json:"priority"`
	RetryCount   int             `json:"retry_count"`
	EnqueuedAt   time.Time       `json:"enqueued_at"`
	VisibleAfter time.Time       `json:"visible_after,omitempty"`
}

// ParseMessage parses the raw message based on message type.
func (qm *QueuedMessage) ParseMessage() (Message, error) {
	switch qm.MessageType {
	case MessageTypeProcess:
		var msg ProcessMessage
		if err := json.Unmarshal(qm.Message, &msg); err != nil {
			return nil, err
		}
		return &msg, nil
	default:
		return nil, ErrUnknownMessageType
	}
}

// Queue defines the interface for a message queue.
type Queue interface {
	// Name returns the queue name.
	Name() string

	// Enqueue adds a message to the queue.
	Enqueue(msg Message) error

	// Dequeue retrieves up to maxMessages, blocking for at most timeout.
	Dequeue(maxMessages int, timeout time.Duration) ([]*QueuedMessage, error)

	// Ack acknowledges successful processing of a message.
	Ack(messageID string) error

	// Nack indicates processing failure; the message will be retried with
	// backoff until the retry budget runs out, then moved to the DLQ.
	Nack(messageID string) error

	// MoveToDeadLetter moves a message to the dead letter queue.
	MoveToDeadLetter(messageID string, reason string) error

	// Depth returns the current queue depth.
	Depth() (int64, error)

	// Close closes the queue.
	Close() error
}

// MetricsRecorder receives queue-level metrics. It is the subset of the
// pipeline metrics surface the queue layer emits; a nil recorder is
// replaced with a no-op.
type MetricsRecorder interface {
	// RecordQueueEnqueue records an item entering a queue.
	RecordQueueEnqueue(queue, reason string)
	// RecordQueueWait records the time an item spent waiting in the queue.
	RecordQueueWait(queue string, seconds float64)
	// RecordDLQItem records an item moved to the dead letter queue.
	RecordDLQItem(queue, errorCode string)
}

type nopMetrics struct{}

func (nopMetrics) RecordQueueEnqueue(string, string) {}
func (nopMetrics) RecordQueueWait(string, float64)   {}
func (nopMetrics) RecordDLQItem(string, string)      {}

// Config configures queue behavior.
type Config struct {
	Name              string        `yaml:"name"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RetentionPeriod   time.Duration `yaml:"retention_period"`
}

// DefaultConfig returns the processing queue defaults. The visibility
// timeout leaves headroom for two sequential model calls per recording.
func DefaultConfig() Config {
	return Config{
		Name:              "recordings:process",
		VisibilityTimeout: 300 * time.Second,
		MaxRetries:        3,
		RetentionPeriod:   24 * time.Hour,
	}
}
