package parser

import (
	"fmt"
	"strings"

	"github.com/manav03panchal/taskmap/internal/errors"
)

// TimeParseError represents a time parsing error with helpful suggestions.
type TimeParseError struct {
	Input      string
	Field      string
	Message    string
	Examples   []string
	Suggestion string
	// Kind is the sentinel the error matches with errors.Is.
	Kind error
}

func (e *TimeParseError) Error() string {
	return fmt.Sprintf("invalid %s '%s': %s", e.Field, e.Input, e.Message)
}

func (e *TimeParseError) Unwrap() error {
	return e.Kind
}

// FormatWithExamples returns the error message with example suggestions.
func (e *TimeParseError) FormatWithExamples() string {
	var sb strings.Builder
	sb.WriteString(e.Error())

	if len(e.Examples) > 0 {
		sb.WriteString("\n\nValid examples:\n")
		for _, ex := range e.Examples {
			sb.WriteString("  - ")
			sb.WriteString(ex)
			sb.WriteString("\n")
		}
	}

	if e.Suggestion != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Suggestion)
	}
	return sb.String()
}

// DurationExamples provides example duration formats.
var DurationExamples = []string{
	"25m",
	"1h30m",
	"2 hours",
	"14d",
	"2w",
	"2.5h",
}

// DateExamples provides example date formats.
var DateExamples = []string{
	"2024-03-15",
	"tomorrow",
	"next friday",
	"in 3 days",
	"+2w",
	"-1d",
}

// TimestampExamples provides example timestamp formats.
var TimestampExamples = []string{
	"now",
	"9am",
	"yesterday at 3pm",
	"2 hours ago",
	"this week",
}

// PeriodExamples provides example period names.
var PeriodExamples = []string{
	"today",
	"yesterday",
	"this week",
	"last week",
	"this month",
	"last year",
}

// NewDurationError creates a duration parse error with standard examples.
func NewDurationError(input string) *TimeParseError {
	return &TimeParseError{
		Input:      input,
		Field:      "duration",
		Message:    "could not parse duration",
		Examples:   DurationExamples,
		Suggestion: "Durations use weeks (w), days (d), hours (h), minutes (m) or seconds (s).",
		Kind:       errors.ErrInvalidDuration,
	}
}

// NewDateError creates a date parse error with standard examples.
func NewDateError(field, input string) *TimeParseError {
	return &TimeParseError{
		Input:      input,
		Field:      field,
		Message:    "could not parse date",
		Examples:   DateExamples,
		Suggestion: "Dates can be absolute (2024-03-15), relative (+3d) or natural (next friday).",
		Kind:       errors.ErrInvalidTimestamp,
	}
}

// NewTimestampError creates a timestamp parse error with standard examples.
func NewTimestampError(input string) *TimeParseError {
	return &TimeParseError{
		Input:      input,
		Field:      "timestamp",
		Message:    "could not parse time",
		Examples:   TimestampExamples,
		Suggestion: "Try using natural language like '9am', '2 hours ago', or '14:30'.",
		Kind:       errors.ErrInvalidTimestamp,
	}
}

// NewPeriodError creates a period parse error with standard examples.
func NewPeriodError(input string) *TimeParseError {
	return &TimeParseError{
		Input:      input,
		Field:      "period",
		Message:    "unknown period",
		Examples:   PeriodExamples,
		Suggestion: "Use period names like 'today', 'this week', or 'last month'.",
		Kind:       errors.ErrInvalidTimestamp,
	}
}

// ToUserError converts a TimeParseError to a UserError for consistent handling.
func (e *TimeParseError) ToUserError() *errors.UserError {
	suggestion := e.Suggestion
	if suggestion == "" && len(e.Examples) > 0 {
		suggestion = fmt.Sprintf("Try: %s", strings.Join(e.Examples[:min(3, len(e.Examples))], ", "))
	}

	ue := errors.NewUserErrorWithField(e.Field, e.Input, e.Message, suggestion)
	ue.Cause = e.Kind
	return ue
}
