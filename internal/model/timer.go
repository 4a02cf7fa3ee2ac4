package model

import "time"

// TimerMode is the kind of timer that produced a record.
type TimerMode string

const (
	TimerPomodoro  TimerMode = "pomodoro"
	TimerStopwatch TimerMode = "stopwatch"
	TimerCountdown TimerMode = "countdown"
)

// TimerRecord is one completed timing session, optionally tied to a task.
type TimerRecord struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId,omitempty"`
	ProjectID string    `json:"projectId,omitempty"`
	Mode      TimerMode `json:"mode,omitempty"`
	StartTime int64     `json:"startTime"`
	EndTime   int64     `json:"endTime,omitempty"`
	Duration  int64     `json:"duration"` // seconds
	Completed bool      `json:"completed"`
	Note      string    `json:"note,omitempty"`
}

// SetKey sets the record id.
func (r *TimerRecord) SetKey(key string) {
	r.ID = key
}

// GetKey returns the record id.
func (r *TimerRecord) GetKey() string {
	return r.ID
}

// NewTimerRecord builds a finished record spanning start to end.
func NewTimerRecord(mode TimerMode, start, end time.Time) *TimerRecord {
	r := &TimerRecord{
		Mode:      mode,
		StartTime: Millis(start),
		Completed: true,
	}
	if !end.IsZero() {
		r.EndTime = Millis(end)
		r.Duration = int64(end.Sub(start).Seconds())
	}
	return r
}

// Elapsed returns the recorded duration.
func (r *TimerRecord) Elapsed() time.Duration {
	return time.Duration(r.Duration) * time.Second
}
