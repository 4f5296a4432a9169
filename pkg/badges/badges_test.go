package badges

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xowlabs/expopulse/pkg/recordings"
)

func TestAssembler_Assemble_SkipsHost(t *testing.T) {
	speakers := []*recordings.SpeakerSegment{
		{Role: recordings.RoleHost, Label: "Host"},
		{Role: recordings.RoleGuest, Label: "Sarah"},
		{Role: recordings.RoleGuest, Label: "Guest 2"},
	}

	badges := NewAssembler().Assemble("rec-1", speakers, nil)

	require.Len(t, badges, 2)
	assert.Equal(t, "Sarah", badges[0].Label)
	assert.Equal(t, "Guest 2", badges[1].Label)
	for _, b := range badges {
		assert.Equal(t, "rec-1", b.RecordingID)
		assert.Equal(t, b.Label, b.BadgeID)
	}
}

func TestAssembler_Assemble_TimesFromSpan(t *testing.T) {
	speakers := []*recordings.SpeakerSegment{
		{
			Role:  recordings.RoleGuest,
			Label: "Sarah",
			Dialogue: []recordings.DialogueLine{
				{Text: "Hi, pricing?", StartTime: 6, EndTime: 30},
				{Text: "Thanks!", StartTime: 50, EndTime: 55},
			},
		},
	}

	badges := NewAssembler().Assemble("rec-1", speakers, nil)

	require.Len(t, badges, 1)
	assert.Equal(t, 6.0, badges[0].StartTime)
	assert.Equal(t, 55.0, badges[0].EndTime)
	assert.Equal(t, []string{"Hi, pricing?", "Thanks!"}, badges[0].KeyPoints)
}

func TestAssembler_Assemble_BarcodeLinked(t *testing.T) {
	scans := []*recordings.BarcodeScan{
		{BarcodeData: "ACME-42"},
		{BarcodeData: "OTHER-1"},
	}
	speakers := []*recordings.SpeakerSegment{
		{Role: recordings.RoleGuest, Label: "ACME-42"},
		{Role: recordings.RoleGuest, Label: "acme-42"},
		{Role: recordings.RoleGuest, Label: "Sarah"},
	}

	badges := NewAssembler().Assemble("rec-1", speakers, scans)

	require.Len(t, badges, 3)
	assert.True(t, badges[0].BarcodeLinked, "exact payload match links the badge")
	assert.False(t, badges[1].BarcodeLinked, "match is case-sensitive, no fuzzy linking")
	assert.False(t, badges[2].BarcodeLinked)
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		speaker *recordings.SpeakerSegment
		want    string
	}{
		{
			name:    "model summary wins",
			speaker: &recordings.SpeakerSegment{Summary: "Asked about enterprise pricing.", Topics: []string{"pricing", "support", "SLA"}},
			want:    "Asked about enterprise pricing.",
		},
		{
			name:    "fallback joins top two topics",
			speaker: &recordings.SpeakerSegment{Topics: []string{"pricing", "support", "SLA"}},
			want:    "Discussed pricing, support",
		},
		{
			name:    "single topic",
			speaker: &recordings.SpeakerSegment{Topics: []string{"pricing"}},
			want:    "Discussed pricing",
		},
		{
			name:    "nothing available",
			speaker: &recordings.SpeakerSegment{},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, summarize(tt.speaker))
		})
	}
}

func TestAssembler_Assemble_EmptyListsNormalized(t *testing.T) {
	speakers := []*recordings.SpeakerSegment{
		{Role: recordings.RoleGuest, Label: "Guest 1"},
	}

	badges := NewAssembler().Assemble("rec-1", speakers, nil)

	require.Len(t, badges, 1)
	assert.NotNil(t, badges[0].Topics)
	assert.NotNil(t, badges[0].QuestionsAsked)
	assert.NotNil(t, badges[0].KeyPoints)
}

func TestAssembler_Assemble_NoSpeakers(t *testing.T) {
	badges := NewAssembler().Assemble("rec-1", nil, nil)
	assert.NotNil(t, badges)
	assert.Empty(t, badges)
}

func TestAssembler_Assemble_SharedLabelKeepsBothBadges(t *testing.T) {
	speakers := []*recordings.SpeakerSegment{
		{Role: recordings.RoleGuest, Label: "Alex", Dialogue: []recordings.DialogueLine{{StartTime: 0, EndTime: 10}}},
		{Role: recordings.RoleGuest, Label: "Alex", Dialogue: []recordings.DialogueLine{{StartTime: 40, EndTime: 50}}},
	}

	badges := NewAssembler().Assemble("rec-1", speakers, nil)

	require.Len(t, badges, 2, "colliding labels must not collapse badges")
	assert.Equal(t, badges[0].BadgeID, badges[1].BadgeID)
	assert.NotEqual(t, badges[0].StartTime, badges[1].StartTime)
}
