// Package errors provides consistent error types for the taskmap CLI.
// It defines three main categories: UserError (fixable by user), SystemError (system issues),
// and RecoverableError (may succeed if tried again later).
package errors

import (
	"errors"
	"fmt"

	"github.com/manav03panchal/taskmap/internal/storage"
)

// Standard sentinel errors for common conditions.
var (
	ErrProjectNotFound   = errors.New("project not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrTagNotFound       = errors.New("tag not found")
	ErrSettingNotFound   = errors.New("setting not found")
	ErrTimerNotFound     = errors.New("timer record not found")
	ErrHabitNotFound     = errors.New("habit not found")
	ErrInvalidColor      = errors.New("invalid color format")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidPriority   = errors.New("invalid priority")
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrInvalidFrequency  = errors.New("invalid habit frequency")
	ErrDuplicateID       = errors.New("id already exists")
	ErrDiskFull          = storage.ErrDiskFull
	ErrDatabaseCorrupted = errors.New("database corrupted")
	ErrLockHeld          = storage.ErrLockHeld
	ErrPermissionDenied  = errors.New("permission denied")
)

// UserError represents an error that the user can fix.
// Examples: invalid input, missing required arguments, incorrect format.
type UserError struct {
	Message    string // What happened
	Suggestion string // How to fix it
	Field      string // The field/input that caused the error (optional)
	Value      string // The invalid value (optional)
	Cause      error  // The underlying error (optional)
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Field != "" && e.Value != "" {
		msg = fmt.Sprintf("%s: '%s'", e.Message, e.Value)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Cause
}

// NewUserError creates a new UserError.
func NewUserError(message, suggestion string) *UserError {
	return &UserError{
		Message:    message,
		Suggestion: suggestion,
	}
}

// NewUserErrorWithField creates a new UserError with field context.
func NewUserErrorWithField(field, value, message, suggestion string) *UserError {
	return &UserError{
		Message:    message,
		Field:      field,
		Value:      value,
		Suggestion: suggestion,
	}
}

// NotFound returns a UserError for a missing entity that still matches
// sentinel with errors.Is.
func NotFound(sentinel error, id string) *UserError {
	return &UserError{
		Message: sentinel.Error(),
		Field:   "id",
		Value:   id,
		Cause:   sentinel,
	}
}

// SystemError represents a system-level error that the user cannot directly fix.
// Examples: disk full, unreadable data file, corrupted database.
type SystemError struct {
	Message string // What happened
	Cause   error  // The underlying error
	Op      string // The operation that failed (optional)
}

func (e *SystemError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s during %s", e.Message, e.Op)
	}
	return e.Message
}

func (e *SystemError) Unwrap() error {
	return e.Cause
}

// NewSystemError creates a new SystemError.
func NewSystemError(message string, cause error) *SystemError {
	return &SystemError{
		Message: message,
		Cause:   cause,
	}
}

// NewSystemErrorWithOp creates a new SystemError with operation context.
func NewSystemErrorWithOp(op, message string, cause error) *SystemError {
	return &SystemError{
		Message: message,
		Cause:   cause,
		Op:      op,
	}
}

// RecoverableError represents an error that may go away if the operation
// is tried again later, such as a data directory held by another process.
type RecoverableError struct {
	Message string // What happened
	Cause   error  // The underlying error
}

func (e *RecoverableError) Error() string {
	return e.Message
}

func (e *RecoverableError) Unwrap() error {
	return e.Cause
}

// NewRecoverableError creates a new RecoverableError.
func NewRecoverableError(message string, cause error) *RecoverableError {
	return &RecoverableError{
		Message: message,
		Cause:   cause,
	}
}

// IsUserError checks if an error is a UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

// IsSystemError checks if an error is a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

// IsRecoverableError checks if an error is a RecoverableError.
func IsRecoverableError(err error) bool {
	var re *RecoverableError
	return errors.As(err, &re)
}

// AsUserError extracts a UserError from an error chain.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	ok := errors.As(err, &ue)
	return ue, ok
}

// AsSystemError extracts a SystemError from an error chain.
func AsSystemError(err error) (*SystemError, bool) {
	var se *SystemError
	ok := errors.As(err, &se)
	return se, ok
}

// FromStorage converts a storage error into the CLI taxonomy. Errors that
// are already classified, and nil, are returned unchanged.
func FromStorage(err error) error {
	if err == nil || IsUserError(err) || IsSystemError(err) || IsRecoverableError(err) {
		return err
	}
	switch {
	case errors.Is(err, storage.ErrDuplicateKey):
		return &UserError{
			Message:    ErrDuplicateID.Error(),
			Suggestion: "Omit --id to have one generated, or pick a different id.",
			Cause:      err,
		}
	case errors.Is(err, storage.ErrInvalidKey), errors.Is(err, storage.ErrInvalidRange):
		return &UserError{Message: err.Error(), Cause: err}
	case errors.Is(err, storage.ErrDiskFull):
		return &SystemError{Message: "not enough disk space to save data", Cause: err}
	case errors.Is(err, storage.ErrBackendUnavailable):
		return &SystemError{Message: "storage backend unavailable", Cause: err, Op: "open"}
	case errors.Is(err, storage.ErrClosed):
		return &SystemError{Message: "storage backend already closed", Cause: err}
	case errors.Is(err, storage.ErrUnknownStore), errors.Is(err, storage.ErrUnknownIndex):
		return &SystemError{Message: "store or index not declared by the schema", Cause: err}
	case errors.Is(err, ErrLockHeld):
		return &RecoverableError{Message: ErrLockHeld.Error(), Cause: err}
	}
	return err
}
