package recordings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpeakerSegment_IsHost(t *testing.T) {
	host := &SpeakerSegment{Role: RoleHost, Label: "Host"}
	guest := &SpeakerSegment{Role: RoleGuest, Label: "Sarah"}

	assert.True(t, host.IsHost())
	assert.False(t, guest.IsHost())
}

func TestSpeakerSegment_Span(t *testing.T) {
	tests := []struct {
		name      string
		dialogue  []DialogueLine
		wantStart float64
		wantEnd   float64
	}{
		{
			name:      "no dialogue",
			dialogue:  nil,
			wantStart: 0,
			wantEnd:   0,
		},
		{
			name: "single line",
			dialogue: []DialogueLine{
				{StartTime: 12.5, EndTime: 30},
			},
			wantStart: 12.5,
			wantEnd:   30,
		},
		{
			name: "ordered lines",
			dialogue: []DialogueLine{
				{StartTime: 10, EndTime: 20},
				{StartTime: 45, EndTime: 60},
				{StartTime: 90, EndTime: 110},
			},
			wantStart: 10,
			wantEnd:   110,
		},
		{
			name: "unordered lines still yield min and max",
			dialogue: []DialogueLine{
				{StartTime: 45, EndTime: 60},
				{StartTime: 10, EndTime: 110},
				{StartTime: 90, EndTime: 95},
			},
			wantStart: 10,
			wantEnd:   110,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg := &SpeakerSegment{Dialogue: tt.dialogue}
			start, end := seg.Span()
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}
