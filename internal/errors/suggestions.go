package errors

import (
	"errors"

	"github.com/manav03panchal/taskmap/internal/storage"
)

// Suggestions maps common errors to helpful suggestions.
var Suggestions = map[error]string{
	// User input errors
	ErrProjectNotFound:  "Use 'taskmap project list' to see available projects.",
	ErrTaskNotFound:     "Use 'taskmap task list' to see tasks, or 'taskmap task tree' for the hierarchy.",
	ErrCategoryNotFound: "Use 'taskmap category list' to see categories.",
	ErrTagNotFound:      "Use 'taskmap tag list' to see tags.",
	ErrSettingNotFound:  "Use 'taskmap setting list' to see stored settings.",
	ErrTimerNotFound:    "Use 'taskmap timer list' to see timer records.",
	ErrHabitNotFound:    "Use 'taskmap habit list' to see habits.",
	ErrInvalidColor:     "Use hex color format like '#FF5733' or '#00FF00'.",
	ErrInvalidStatus:    "Projects: active, paused, completed, archived. Tasks: pending, in_progress, completed, cancelled.",
	ErrInvalidPriority:  "Priority is a whole number from 0 (none) to 5.",
	ErrInvalidTimestamp: "Try formats like 'tomorrow', 'next friday 5pm', '2024-03-15' or 'in 3 days'.",
	ErrInvalidDuration:  "Try formats like '1h30m', '90m', '2h', or '45 minutes'.",
	ErrInvalidFrequency: "Use daily, weekly or monthly.",

	// System errors
	ErrDiskFull:                   "Free up disk space and try again.",
	ErrDatabaseCorrupted:          "Restore from an export with 'taskmap import', or switch backends with --backend.",
	ErrLockHeld:                   "Another taskmap process is using this data directory. Wait for it to finish.",
	ErrPermissionDenied:           "Check file permissions in your data directory (~/.local/share/taskmap/).",
	storage.ErrBackendUnavailable: "Check that the data directory is readable, or select another backend with --backend.",
}

// GetSuggestion returns a suggestion for an error, if available.
// It walks the error chain to find matching suggestions.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	if ue, ok := AsUserError(err); ok && ue.Suggestion != "" {
		return ue.Suggestion
	}
	for knownErr, suggestion := range Suggestions {
		if errors.Is(err, knownErr) {
			return suggestion
		}
	}
	return ""
}

// CommandExamples provides example commands for common errors.
var CommandExamples = map[error][]string{
	ErrInvalidTimestamp: {
		"taskmap project create Garden --due 'next friday'",
		"taskmap task create 'Buy seeds' --project prj-... --due tomorrow",
	},
	ErrInvalidDuration: {
		"taskmap timer add --task tsk-... --duration 25m",
		"taskmap project upcoming --within 14d",
	},
}

// GetExamples returns example commands for an error.
func GetExamples(err error) []string {
	for knownErr, examples := range CommandExamples {
		if errors.Is(err, knownErr) {
			return examples
		}
	}
	return nil
}
