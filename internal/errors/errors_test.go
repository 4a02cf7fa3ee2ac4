package errors

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/taskmap/internal/storage"
)

// =============================================================================
// UserError Tests
// =============================================================================

func TestNewUserError(t *testing.T) {
	err := NewUserError("invalid input", "try again")
	assert.Equal(t, "invalid input", err.Message)
	assert.Equal(t, "try again", err.Suggestion)
}

func TestUserErrorError(t *testing.T) {
	t.Run("without_field", func(t *testing.T) {
		err := NewUserError("invalid input", "")
		assert.Equal(t, "invalid input", err.Error())
	})

	t.Run("with_field", func(t *testing.T) {
		err := NewUserErrorWithField("color", "red", "invalid color", "")
		assert.Equal(t, "invalid color: 'red'", err.Error())
	})
}

func TestIsUserError(t *testing.T) {
	t.Run("wrapped_user_error", func(t *testing.T) {
		wrapped := fmt.Errorf("context: %w", NewUserError("test", ""))
		assert.True(t, IsUserError(wrapped))
	})

	t.Run("not_user_error", func(t *testing.T) {
		assert.False(t, IsUserError(errors.New("plain error")))
	})

	t.Run("nil_error", func(t *testing.T) {
		assert.False(t, IsUserError(nil))
	})
}

func TestNotFound(t *testing.T) {
	err := NotFound(ErrTaskNotFound, "tsk-1")
	assert.Equal(t, "task not found: 'tsk-1'", err.Error())
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.True(t, IsUserError(err))
	assert.Contains(t, GetSuggestion(err), "taskmap task list")
}

// =============================================================================
// SystemError and RecoverableError Tests
// =============================================================================

func TestSystemErrorError(t *testing.T) {
	cause := errors.New("eof")
	assert.Equal(t, "read failed", NewSystemError("read failed", cause).Error())
	assert.Equal(t, "read failed during load", NewSystemErrorWithOp("load", "read failed", cause).Error())
	assert.ErrorIs(t, NewSystemError("read failed", cause), cause)
}

func TestAsSystemError(t *testing.T) {
	se, ok := AsSystemError(fmt.Errorf("x: %w", NewSystemError("boom", nil)))
	require.True(t, ok)
	assert.Equal(t, "boom", se.Message)

	_, ok = AsSystemError(errors.New("plain"))
	assert.False(t, ok)
}

func TestRecoverableError(t *testing.T) {
	err := NewRecoverableError("locked", ErrLockHeld)
	assert.Equal(t, "locked", err.Error())
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.True(t, IsRecoverableError(err))
}

// =============================================================================
// Storage Conversion Tests
// =============================================================================

func TestFromStorage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category Category
		sentinel error
	}{
		{"duplicate", fmt.Errorf("tasks: %w", storage.ErrDuplicateKey), CategoryUser, storage.ErrDuplicateKey},
		{"invalid_key", storage.ErrInvalidKey, CategoryUser, storage.ErrInvalidKey},
		{"unavailable", storage.Unavailable("sqlite", errors.New("bad header")), CategorySystem, storage.ErrBackendUnavailable},
		{"closed", storage.ErrClosed, CategorySystem, storage.ErrClosed},
		{"unknown_store", storage.ErrUnknownStore, CategorySystem, storage.ErrUnknownStore},
		{"disk_full", fmt.Errorf("write: %w", storage.ErrDiskFull), CategorySystem, ErrDiskFull},
		{"lock", ErrLockHeld, CategoryRecoverable, ErrLockHeld},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromStorage(tt.err)
			assert.Equal(t, tt.category, Classify(got))
			assert.ErrorIs(t, got, tt.sentinel, "the original error stays in the chain")
		})
	}

	assert.NoError(t, FromStorage(nil))
	plain := errors.New("plain")
	assert.Same(t, plain, FromStorage(plain))
	ue := NewUserError("already classified", "")
	assert.Same(t, ue, FromStorage(ue))
}

// =============================================================================
// Classification Tests
// =============================================================================

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "user", CategoryUser.String())
	assert.Equal(t, "system", CategorySystem.String())
	assert.Equal(t, "recoverable", CategoryRecoverable.String())
	assert.Equal(t, "unknown", CategoryUnknown.String())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, CategoryUnknown},
		{"plain", errors.New("x"), CategoryUnknown},
		{"enospc", fmt.Errorf("write: %w", syscall.ENOSPC), CategorySystem},
		{"eagain", syscall.EAGAIN, CategoryRecoverable},
		{"unavailable", fmt.Errorf("open: %w", storage.ErrBackendUnavailable), CategorySystem},
		{"corrupted", ErrDatabaseCorrupted, CategorySystem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestFormatByCategory(t *testing.T) {
	assert.Empty(t, FormatByCategory(nil))
	assert.Equal(t, "bad\n\nTry: fix it", FormatByCategory(NewUserError("bad", "fix it")))
	assert.Equal(t, "System error: io", FormatByCategory(NewSystemError("io", nil)))
	assert.Equal(t, "locked (try again shortly)", FormatByCategory(NewRecoverableError("locked", nil)))
}

func TestGetSuggestionPrefersUserError(t *testing.T) {
	err := &UserError{Message: "dup", Suggestion: "custom", Cause: ErrDuplicateID}
	assert.Equal(t, "custom", GetSuggestion(err))
	assert.Contains(t, GetSuggestion(storage.Unavailable("json", errors.New("x"))), "--backend")
	assert.Empty(t, GetSuggestion(errors.New("nothing known")))
}

func TestGetExamples(t *testing.T) {
	assert.NotEmpty(t, GetExamples(fmt.Errorf("due: %w", ErrInvalidTimestamp)))
	assert.Nil(t, GetExamples(errors.New("x")))
}

// =============================================================================
// Wrapping Tests
// =============================================================================

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ctx"))
	err := Wrapf(ErrTaskNotFound, "load %s", "tsk-1")
	assert.Equal(t, "load tsk-1: task not found", err.Error())
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestWithContextCapturesStack(t *testing.T) {
	err := WithContext(ErrHabitNotFound, "check in")
	assert.Equal(t, "check in: habit not found", err.Error())
	assert.ErrorIs(t, err, ErrHabitNotFound)

	stack := GetStack(fmt.Errorf("outer: %w", err))
	require.NotEmpty(t, stack)
	assert.Contains(t, stack[0].Function, "TestWithContextCapturesStack")

	assert.NoError(t, WithContext(nil, "x"))
	assert.Nil(t, GetStack(errors.New("plain")))
}

func TestChainAndRootCause(t *testing.T) {
	root := errors.New("root")
	err := Wrap(Wrap(root, "middle"), "top")

	assert.Equal(t, []string{"top: middle: root", "middle: root", "root"}, Chain(err))
	assert.Same(t, root, RootCause(err))
	assert.Nil(t, Chain(nil))
}

func TestFormatDebugError(t *testing.T) {
	err := WithContext(NotFound(ErrProjectNotFound, "prj-1"), "delete")
	out := FormatDebugError(err)
	assert.Contains(t, out, "Error: delete: project not found: 'prj-1'")
	assert.Contains(t, out, "Error chain:")
	assert.Contains(t, out, "Category: user")
	assert.Contains(t, out, "Stack trace:")
	assert.Contains(t, out, "Root cause: project not found")
}

func TestFormatUserError(t *testing.T) {
	err := NewUserErrorWithField("due", "someday", "could not parse date", "")
	err.Cause = ErrInvalidTimestamp
	out := FormatUserError(err)
	assert.Contains(t, out, "could not parse date: 'someday'")
	assert.Contains(t, out, "Examples:")
}
