package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessMessage_Interface(t *testing.T) {
	msg := &ProcessMessage{
		RecordingID: "rec-123",
		Reason:      ReasonReprocess,
		Priority:    PriorityHigh,
		EnqueuedAt:  time.Now(),
	}

	assert.Equal(t, "rec-123", msg.GetRecordingID())
	assert.Equal(t, PriorityHigh, msg.GetPriority())
	assert.Equal(t, MessageTypeProcess, msg.GetMessageType())
}

func TestQueuedMessage_ParseMessage(t *testing.T) {
	raw, err := json.Marshal(&ProcessMessage{
		RecordingID: "rec-1",
		Reason:      ReasonUpload,
		Priority:    PriorityNormal,
	})
	require.NoError(t, err)

	qm := &QueuedMessage{
		ID:          "msg-1",
		Message:     raw,
		MessageType: MessageTypeProcess,
		Priority:    PriorityNormal,
	}

	msg, err := qm.ParseMessage()
	require.NoError(t, err)

	pm, ok := msg.(*ProcessMessage)
	require.True(t, ok)
	assert.Equal(t, "rec-1", pm.RecordingID)
	assert.Equal(t, ReasonUpload, pm.Reason)
}

func TestQueuedMessage_ParseMessage_UnknownType(t *testing.T) {
	qm := &QueuedMessage{
		ID:          "msg-1",
		Message:     []byte(`{}`),
		MessageType: MessageType("mystery"),
	}

	_, err := qm.ParseMessage()
	assert.ErrorIs(t, err, ErrUnknownMessageType)
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, calculateBackoff(1))
	assert.Equal(t, 4*time.Second, calculateBackoff(2))
	assert.Equal(t, 8*time.Second, calculateBackoff(3))
	assert.Equal(t, 5*time.Minute, calculateBackoff(20), "backoff capped at 5 minutes")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "recordings:process", cfg.Name)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.True(t, cfg.VisibilityTimeout > 0)
}
