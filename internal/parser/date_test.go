package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/taskmap/internal/errors"
)

// fixedNow is a Wednesday.
var fixedNow = time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)

func TestParseDateISO(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Time
	}{
		{"2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"2024-03-15 14:30", time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)},
		{"2024-03-15T14:30", time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)},
		{"2023-12-01", time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate("due", tt.input, fixedNow)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "got %v", got)
		})
	}
}

func TestParseDateRelative(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Time
	}{
		{"+3d", fixedNow.AddDate(0, 0, 3)},
		{"-1d", fixedNow.AddDate(0, 0, -1)},
		{"+2w", fixedNow.AddDate(0, 0, 14)},
		{"+2h", fixedNow.Add(2 * time.Hour)},
		{"+30m", fixedNow.Add(30 * time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate("due", tt.input, fixedNow)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "got %v", got)
		})
	}
}

func TestParseDateNatural(t *testing.T) {
	got, err := ParseDate("due", "tomorrow", fixedNow)
	require.NoError(t, err)
	assert.True(t, isSameDay(got, fixedNow.AddDate(0, 0, 1)), "got %v", got)
}

func TestParseDateInvalid(t *testing.T) {
	for _, input := range []string{"", "   ", "+0d", "xyzzy"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseDate("due", input, fixedNow)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidTimestamp)
		})
	}
}

func TestIsSameDay(t *testing.T) {
	assert.True(t, isSameDay(fixedNow, fixedNow.Add(time.Hour)))
	assert.False(t, isSameDay(fixedNow, fixedNow.AddDate(0, 0, 1)))
	assert.False(t, isSameDay(fixedNow, fixedNow.AddDate(0, 1, 0)))
}

func TestFormatDueIn(t *testing.T) {
	tests := []struct {
		name     string
		due      time.Time
		expected string
	}{
		{"today", fixedNow.Add(2 * time.Hour), "due today"},
		{"tomorrow", fixedNow.AddDate(0, 0, 1), "due tomorrow"},
		{"days", fixedNow.AddDate(0, 0, 5), "due in 5 days"},
		{"weeks", fixedNow.AddDate(0, 0, 21), "due in 3 weeks"},
		{"overdue_one", fixedNow.AddDate(0, 0, -1), "overdue by 1 day"},
		{"overdue_many", fixedNow.AddDate(0, 0, -4), "overdue by 4 days"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDueIn(tt.due, fixedNow))
		})
	}
}
