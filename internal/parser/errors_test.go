package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/manav03panchal/taskmap/internal/errors"
)

func TestTimeParseErrorError(t *testing.T) {
	err := NewDurationError("abc")
	assert.Equal(t, "invalid duration 'abc': could not parse duration", err.Error())
	assert.ErrorIs(t, err, errors.ErrInvalidDuration)
}

func TestFormatWithExamples(t *testing.T) {
	out := NewDateError("due", "someday").FormatWithExamples()
	assert.Contains(t, out, "invalid due 'someday'")
	assert.Contains(t, out, "Valid examples:")
	assert.Contains(t, out, "  - 2024-03-15")
	assert.Contains(t, out, "next friday")
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *TimeParseError
		field string
		kind  error
	}{
		{"duration", NewDurationError("x"), "duration", errors.ErrInvalidDuration},
		{"date", NewDateError("start", "x"), "start", errors.ErrInvalidTimestamp},
		{"timestamp", NewTimestampError("x"), "timestamp", errors.ErrInvalidTimestamp},
		{"period", NewPeriodError("x"), "period", errors.ErrInvalidTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.field, tt.err.Field)
			assert.NotEmpty(t, tt.err.Examples)
			assert.NotEmpty(t, tt.err.Suggestion)
			assert.ErrorIs(t, tt.err, tt.kind)
		})
	}
}

func TestToUserError(t *testing.T) {
	t.Run("keeps_suggestion_and_kind", func(t *testing.T) {
		ue := NewDurationError("abc").ToUserError()
		assert.Equal(t, "duration", ue.Field)
		assert.Equal(t, "abc", ue.Value)
		assert.Contains(t, ue.Suggestion, "weeks (w)")
		assert.ErrorIs(t, ue, errors.ErrInvalidDuration)
		assert.True(t, errors.IsUserError(ue))
	})

	t.Run("falls_back_to_examples", func(t *testing.T) {
		pe := &TimeParseError{Field: "due", Input: "x", Message: "bad", Examples: []string{"a", "b", "c", "d"}}
		ue := pe.ToUserError()
		assert.Equal(t, "Try: a, b, c", ue.Suggestion)
	})
}
