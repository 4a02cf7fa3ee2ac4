// Package validate provides input validation helpers for the taskmap CLI.
package validate

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/manav03panchal/taskmap/internal/errors"
	"github.com/manav03panchal/taskmap/internal/model"
)

const (
	// MaxIDLength is the maximum length for a caller-chosen id.
	MaxIDLength = 64
	// MaxNameLength is the maximum length for an entity name.
	MaxNameLength = 128
	// MaxNoteLength is the maximum length for a description or note.
	MaxNoteLength = 4096
	// MaxPriority is the highest priority value.
	MaxPriority = 5
)

// ID validates a caller-chosen id. Empty is allowed and means "generate one".
func ID(id string) error {
	if id == "" {
		return nil
	}
	if len(id) > MaxIDLength {
		return errors.NewUserErrorWithField("id", id,
			"ID too long",
			fmt.Sprintf("IDs must be %d characters or fewer", MaxIDLength))
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return errors.NewUserErrorWithField("id", id,
				"Invalid ID format",
				"IDs must not contain whitespace or control characters")
		}
	}
	return nil
}

// Name validates the name of a project, task, category, tag or habit.
func Name(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.NewUserError(
			kind+" name cannot be empty",
			"Provide a "+kind+" name")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return errors.NewUserErrorWithField(kind, name,
			kind+" name too long",
			fmt.Sprintf("Names must be %d characters or fewer", MaxNameLength))
	}
	return nil
}

// Note validates a note/description.
func Note(note string) error {
	if utf8.RuneCountInString(note) > MaxNoteLength {
		return errors.NewUserError(
			"Note too long",
			fmt.Sprintf("Notes must be %d characters or fewer", MaxNoteLength))
	}
	return nil
}

// HexColor validates a hex color code. Empty means no color.
func HexColor(color string) error {
	if model.ValidateColor(color) {
		return nil
	}
	return &errors.UserError{
		Message: "Invalid color format",
		Field:   "color",
		Value:   color,
		Cause:   errors.ErrInvalidColor,
	}
}

// ProjectStatus validates a project status.
func ProjectStatus(status string) error {
	if model.ValidProjectStatus(status) {
		return nil
	}
	return &errors.UserError{
		Message:    "Invalid project status",
		Field:      "status",
		Value:      status,
		Suggestion: "Use active, paused, completed or archived.",
		Cause:      errors.ErrInvalidStatus,
	}
}

// TaskStatus validates a task status.
func TaskStatus(status string) error {
	if model.ValidTaskStatus(status) {
		return nil
	}
	return &errors.UserError{
		Message:    "Invalid task status",
		Field:      "status",
		Value:      status,
		Suggestion: "Use pending, in_progress, completed or cancelled.",
		Cause:      errors.ErrInvalidStatus,
	}
}

// Priority validates a priority between 0 (none) and MaxPriority.
func Priority(p int) error {
	if err := InRange("priority", p, 0, MaxPriority); err != nil {
		ue, _ := errors.AsUserError(err)
		ue.Cause = errors.ErrInvalidPriority
		return ue
	}
	return nil
}

// ProjectType validates a project type. Empty means untyped.
func ProjectType(t string) error {
	switch model.ProjectType(t) {
	case "", model.ProjectLearningGrowth, model.ProjectExperienceBreakthrough,
		model.ProjectLeisureEntertainment, model.ProjectWorkCareer,
		model.ProjectFamilyLife, model.ProjectPhysicalHealth,
		model.ProjectFinancialManagement, model.ProjectSocialRelationships:
		return nil
	}
	return errors.NewUserErrorWithField("type", t,
		"Unknown project type",
		"Use one of: learning_growth, work_career, family_life, physical_health, ...")
}

// Frequency validates a habit frequency.
func Frequency(freq string) error {
	if model.ValidHabitFrequency(freq) {
		return nil
	}
	return &errors.UserError{
		Message: "Invalid habit frequency",
		Field:   "frequency",
		Value:   freq,
		Cause:   errors.ErrInvalidFrequency,
	}
}

// NonEmpty validates that a string is not empty.
func NonEmpty(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewUserError(
			field+" cannot be empty",
			"Provide a value for "+field)
	}
	return nil
}

// InRange validates that an integer is within [lo, hi].
func InRange(field string, value, lo, hi int) error {
	if value < lo || value > hi {
		return errors.NewUserErrorWithField(field, fmt.Sprint(value),
			"Value out of range",
			fmt.Sprintf("Must be between %d and %d", lo, hi))
	}
	return nil
}
