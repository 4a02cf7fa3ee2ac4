package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/taskmap/internal/errors"
)

func TestParseTimestamp(t *testing.T) {
	t.Run("now", func(t *testing.T) {
		for _, input := range []string{"", "now", "NOW"} {
			got, err := ParseTimestamp(input, fixedNow)
			require.NoError(t, err)
			assert.True(t, fixedNow.Equal(got))
		}
	})

	t.Run("period_start", func(t *testing.T) {
		got, err := ParseTimestamp("this week", fixedNow)
		require.NoError(t, err)
		assert.True(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC).Equal(got), "got %v", got)
	})

	t.Run("iso", func(t *testing.T) {
		got, err := ParseTimestamp("2024-03-01 09:15", fixedNow)
		require.NoError(t, err)
		assert.True(t, time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC).Equal(got))
	})

	t.Run("relative", func(t *testing.T) {
		got, err := ParseTimestamp("-2h", fixedNow)
		require.NoError(t, err)
		assert.True(t, fixedNow.Add(-2*time.Hour).Equal(got))
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ParseTimestamp("xyzzy", fixedNow)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrInvalidTimestamp)
		var pe *TimeParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "timestamp", pe.Field)
	})
}

func TestGetPeriodRange(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	tests := []struct {
		period string
		start  time.Time
		end    time.Time
	}{
		{"today", day(2024, 3, 13), day(2024, 3, 14)},
		{"yesterday", day(2024, 3, 12), day(2024, 3, 13)},
		{"this day", day(2024, 3, 13), day(2024, 3, 14)},
		{"last day", day(2024, 3, 12), day(2024, 3, 13)},
		{"this week", day(2024, 3, 11), day(2024, 3, 18)},
		{"last week", day(2024, 3, 4), day(2024, 3, 11)},
		{"This Month", day(2024, 3, 1), day(2024, 4, 1)},
		{"previous month", day(2024, 2, 1), day(2024, 3, 1)},
		{"current quarter", day(2024, 1, 1), day(2024, 4, 1)},
		{"last quarter", day(2023, 10, 1), day(2024, 1, 1)},
		{"this year", day(2024, 1, 1), day(2025, 1, 1)},
		{"last year", day(2023, 1, 1), day(2024, 1, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			r, err := GetPeriodRange(tt.period, fixedNow)
			require.NoError(t, err)
			assert.True(t, tt.start.Equal(r.Start), "start %v", r.Start)
			assert.True(t, tt.end.Equal(r.End), "end %v", r.End)
			assert.True(t, r.Contains(r.Start))
			assert.False(t, r.Contains(r.End))
		})
	}
}

func TestGetPeriodRangeSundayStartsWeekOnMonday(t *testing.T) {
	sunday := time.Date(2024, 3, 17, 12, 0, 0, 0, time.UTC)
	r, err := GetPeriodRange("this week", sunday)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, r.Start.Weekday())
	assert.Equal(t, 11, r.Start.Day())
}

func TestGetPeriodRangeUnknown(t *testing.T) {
	_, err := GetPeriodRange("next century", fixedNow)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidTimestamp)
}
