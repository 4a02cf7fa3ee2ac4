package repo

import (
	"context"
	"time"

	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/storage"
)

// TimerRepo provides operations for TimerRecord entities.
type TimerRepo struct {
	*Repo[*model.TimerRecord]
}

// GetByTask returns the records of a task.
func (r *TimerRepo) GetByTask(ctx context.Context, taskID string) ([]*model.TimerRecord, error) {
	return r.ByIndex(ctx, "taskId", taskID)
}

// GetByProject returns the records of a project.
func (r *TimerRepo) GetByProject(ctx context.Context, projectID string) ([]*model.TimerRecord, error) {
	return r.ByIndex(ctx, "projectId", projectID)
}

// GetBetween returns records started in [from, to), ordered by start
// time. A zero bound is open-ended.
func (r *TimerRepo) GetBetween(ctx context.Context, from, to time.Time) ([]*model.TimerRecord, error) {
	var kr storage.KeyRange
	if !from.IsZero() {
		kr.Lower = model.Millis(from)
	}
	if !to.IsZero() {
		kr.Upper = model.Millis(to)
		kr.UpperOpen = true
	}
	if kr.Lower == nil && kr.Upper == nil {
		return r.GetAll(ctx)
	}
	return r.ByRange(ctx, "startTime", kr)
}

// ClearAll removes every record.
func (r *TimerRepo) ClearAll(ctx context.Context) error {
	return r.Clear(ctx)
}

// TotalDuration sums the recorded time of a task, or of every record when
// taskID is empty.
func (r *TimerRepo) TotalDuration(ctx context.Context, taskID string) (time.Duration, error) {
	var (
		records []*model.TimerRecord
		err     error
	)
	if taskID == "" {
		records, err = r.GetAll(ctx)
	} else {
		records, err = r.GetByTask(ctx, taskID)
	}
	if err != nil {
		return 0, err
	}
	return SumDurations(records), nil
}

// SumDurations adds up the durations of records.
func SumDurations(records []*model.TimerRecord) time.Duration {
	var total time.Duration
	for _, rec := range records {
		total += rec.Elapsed()
	}
	return total
}
