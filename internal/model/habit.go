package model

import (
	"fmt"
	"time"
)

// HabitFrequency is how often a habit is meant to be performed.
type HabitFrequency string

const (
	HabitDaily   HabitFrequency = "daily"
	HabitWeekly  HabitFrequency = "weekly"
	HabitMonthly HabitFrequency = "monthly"
)

// CheckInDateLayout is the layout of CheckIn.Date and Habit.LastCheckIn.
const CheckInDateLayout = "2006-01-02"

// CheckIn is one recorded completion of a habit.
type CheckIn struct {
	Date      string `json:"date"`
	Timestamp int64  `json:"timestamp"`
}

// Habit is a recurring activity tracked with streaks.
type Habit struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Icon           string         `json:"icon,omitempty"`
	Color          string         `json:"color,omitempty"`
	Frequency      HabitFrequency `json:"frequency"`
	TargetDays     int            `json:"targetDays"`
	CurrentStreak  int            `json:"currentStreak"`
	LongestStreak  int            `json:"longestStreak"`
	TotalCheckIns  int            `json:"totalCheckIns"`
	CheckInHistory []CheckIn      `json:"checkInHistory,omitempty"`
	LastCheckIn    string         `json:"lastCheckIn,omitempty"`
	Description    string         `json:"description,omitempty"`
	CreatedAt      int64          `json:"createdAt"`
	UpdatedAt      int64          `json:"updatedAt"`
}

// SetKey sets the habit id.
func (h *Habit) SetKey(key string) {
	h.ID = key
}

// GetKey returns the habit id.
func (h *Habit) GetKey() string {
	return h.ID
}

// NewHabit creates a habit with timestamps set.
func NewHabit(name string, freq HabitFrequency, targetDays int) *Habit {
	h := &Habit{Name: name, Frequency: freq, TargetDays: targetDays}
	touch(&h.CreatedAt, &h.UpdatedAt)
	return h
}

// ValidHabitFrequency reports whether s is a known frequency.
func ValidHabitFrequency(s string) bool {
	switch HabitFrequency(s) {
	case HabitDaily, HabitWeekly, HabitMonthly:
		return true
	}
	return false
}

// CheckIn records a completion at t. It returns false when the habit was
// already checked in on t's calendar day.
//
// The streak counts consecutive periods (days, ISO weeks or months
// depending on Frequency) that contain at least one check-in.
func (h *Habit) CheckIn(t time.Time) bool {
	t = t.Local()
	date := t.Format(CheckInDateLayout)
	if h.LastCheckIn == date {
		return false
	}

	current := h.period(t)
	switch {
	case h.LastCheckIn == "":
		h.CurrentStreak = 1
	default:
		last, err := time.ParseInLocation(CheckInDateLayout, h.LastCheckIn, time.Local)
		switch {
		case err != nil:
			h.CurrentStreak = 1
		case h.period(last) == current:
			// Same period; the streak already counts it.
			if h.CurrentStreak == 0 {
				h.CurrentStreak = 1
			}
		case h.period(last) == h.previousPeriod(t):
			h.CurrentStreak++
		default:
			h.CurrentStreak = 1
		}
	}

	if h.CurrentStreak > h.LongestStreak {
		h.LongestStreak = h.CurrentStreak
	}
	h.TotalCheckIns++
	h.LastCheckIn = date
	h.CheckInHistory = append(h.CheckInHistory, CheckIn{Date: date, Timestamp: Millis(t)})
	h.UpdatedAt = NowMillis()
	return true
}

func (h *Habit) period(t time.Time) string {
	switch h.Frequency {
	case HabitWeekly:
		y, w := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case HabitMonthly:
		return t.Format("2006-01")
	default:
		return t.Format(CheckInDateLayout)
	}
}

func (h *Habit) previousPeriod(t time.Time) string {
	switch h.Frequency {
	case HabitWeekly:
		return h.period(t.AddDate(0, 0, -7))
	case HabitMonthly:
		first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
		return h.period(first.AddDate(0, -1, 0))
	default:
		return h.period(t.AddDate(0, 0, -1))
	}
}
