// Package model defines the domain models for taskmap.
package model

import "time"

// Model is the interface that all stored entities implement.
type Model interface {
	// SetKey sets the primary key value of the entity.
	SetKey(key string)
	// GetKey returns the primary key value of the entity.
	GetKey() string
}

// Store names.
const (
	StoreProjects     = "projects"
	StoreTasks        = "tasks"
	StoreCategories   = "categories"
	StoreTags         = "tags"
	StoreSettings     = "settings"
	StoreTimerRecords = "timerRecords"
	StoreHabits       = "habits"
)

// Timestamps are stored as Unix milliseconds so they index and sort
// numerically on every backend.

// Millis converts t to Unix milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts Unix milliseconds to a local time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).Local()
}

// NowMillis returns the current time in Unix milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// touch sets createdAt once and updatedAt always.
func touch(createdAt, updatedAt *int64) {
	now := NowMillis()
	if *createdAt == 0 {
		*createdAt = now
	}
	*updatedAt = now
}
