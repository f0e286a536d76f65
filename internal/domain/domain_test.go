package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactionCount(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]any
		want int
	}{
		{"missing", nil, 0},
		{"int", map[string]any{"reactionCount": 4}, 4},
		{"int64", map[string]any{"reactionCount": int64(7)}, 7},
		{"float from json", map[string]any{"reactionCount": 3.0}, 3},
		{"json number", map[string]any{"reactionCount": json.Number("12")}, 12},
		{"string", map[string]any{"reactionCount": "5"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LogEntry{Metadata: tt.meta}.ReactionCount())
		})
	}
}

func TestReactionCountAfterDecode(t *testing.T) {
	var e LogEntry
	require.NoError(t, json.Unmarshal([]byte(`{"type":"message","metadata":{"reactionCount":9}}`), &e))
	assert.Equal(t, 9, e.ReactionCount())
}

func TestNormalize(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	e := LogEntry{ID: "x"}.Normalize(now)
	assert.Equal(t, KindUnknown, e.Kind)
	assert.Equal(t, now, e.OccurredAt)
	assert.NotNil(t, e.Metadata)
	assert.NotNil(t, e.Keywords)

	at := now.Add(-time.Hour)
	kept := LogEntry{Kind: KindReaction, OccurredAt: at}.Normalize(now)
	assert.Equal(t, KindReaction, kept.Kind)
	assert.Equal(t, at, kept.OccurredAt)
}

func TestFallbackName(t *testing.T) {
	assert.Equal(t, "User_12345678", FallbackName("1234567890123"))
	assert.Equal(t, "User_abc", FallbackName("abc"))
	assert.Equal(t, "User_", FallbackName(""))
}

func TestUserRecordName(t *testing.T) {
	assert.Equal(t, "さくら", UserRecord{UserID: "1", DisplayName: "さくら", Username: "sakura"}.Name())
	assert.Equal(t, "sakura", UserRecord{UserID: "1", Username: "sakura"}.Name())
	assert.Equal(t, "User_99887766", UserRecord{UserID: "9988776655"}.Name())
}

func TestIconFor(t *testing.T) {
	for _, typ := range []AdviceType{AdviceParticipation, AdviceEngagement, AdviceModeration, AdviceStructure, AdviceHealth} {
		assert.True(t, typ.Valid())
		assert.NotEqual(t, DefaultIcon, IconFor(typ), typ)
	}
	assert.False(t, AdviceType("growth").Valid())
	assert.Equal(t, DefaultIcon, IconFor("growth"))

	assert.True(t, PriorityInfo.Valid())
	assert.False(t, Priority("urgent").Valid())
}

func TestAlertTransitions(t *testing.T) {
	pending := &ModerationAlert{Status: AlertPending}
	assert.NoError(t, pending.CanTransitionTo(AlertReviewed))
	assert.NoError(t, pending.CanTransitionTo(AlertDismissed))
	assert.ErrorIs(t, pending.CanTransitionTo(AlertPending), ErrInvalidTransition)

	done := &ModerationAlert{Status: AlertReviewed}
	assert.ErrorIs(t, done.CanTransitionTo(AlertDismissed), ErrAlreadyProcessed)
}

func TestCountBySeverity(t *testing.T) {
	r := AnalysisResult{SuspiciousContent: []SuspiciousContent{
		{Severity: SeverityHigh}, {Severity: SeverityLow}, {Severity: SeverityHigh},
	}}
	assert.Equal(t, 2, r.CountBySeverity(SeverityHigh))
	assert.Equal(t, 0, r.CountBySeverity(SeverityMedium))
}
