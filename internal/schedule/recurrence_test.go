package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecurrence_Invalid(t *testing.T) {
	for _, expr := range []string{
		"",
		"not a cron",
		"*/0 * * * *",
		"*/60 * * * *",
		"* * * *",
	} {
		_, err := ParseRecurrence(expr)
		assert.Error(t, err, "expression %q must be rejected", expr)
	}
}

func TestEveryMinutes_Next(t *testing.T) {
	rec, err := ParseRecurrence("*/5 * * * *")
	require.NoError(t, err)

	tests := []struct {
		name  string
		after time.Time
		want  time.Time
	}{
		{
			name:  "mid interval advances to next multiple",
			after: time.Date(2026, 8, 23, 12, 1, 0, 0, time.UTC),
			want:  time.Date(2026, 8, 23, 12, 5, 0, 0, time.UTC),
		},
		{
			name:  "on a multiple advances to the following one",
			after: time.Date(2026, 8, 23, 12, 5, 0, 0, time.UTC),
			want:  time.Date(2026, 8, 23, 12, 10, 0, 0, time.UTC),
		},
		{
			name:  "seconds are truncated",
			after: time.Date(2026, 8, 23, 12, 4, 59, 500, time.UTC),
			want:  time.Date(2026, 8, 23, 12, 5, 0, 0, time.UTC),
		},
		{
			name:  "hour rollover",
			after: time.Date(2026, 8, 23, 12, 57, 0, 0, time.UTC),
			want:  time.Date(2026, 8, 23, 13, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rec.Next(tt.after)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestEveryMinutes_EveryMinute(t *testing.T) {
	rec, err := ParseRecurrence("*/1 * * * *")
	require.NoError(t, err)

	after := time.Date(2026, 8, 23, 12, 0, 30, 0, time.UTC)
	got := rec.Next(after)
	assert.True(t, time.Date(2026, 8, 23, 12, 1, 0, 0, time.UTC).Equal(got))
}

func TestCronRecurrence_StandardExpressions(t *testing.T) {
	rec, err := ParseRecurrence("0 9 * * 1")
	require.NoError(t, err)

	// 2026-08-23 is a Sunday, next Monday 09:00 is the 24th.
	after := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	got := rec.Next(after)
	assert.True(t, time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC).Equal(got), "got %s", got)
}
