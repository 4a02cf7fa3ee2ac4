package repo

import (
	"context"
	"time"

	"github.com/manav03panchal/taskmap/internal/model"
)

// HabitRepo provides operations for Habit entities.
type HabitRepo struct {
	*Repo[*model.Habit]
}

// Update merges patch into the habit and stamps updatedAt.
func (r *HabitRepo) Update(ctx context.Context, id string, patch model.Record) (bool, error) {
	return r.Repo.Update(ctx, id, stamp(patch))
}

// GetByFrequency returns habits with the given frequency.
func (r *HabitRepo) GetByFrequency(ctx context.Context, freq model.HabitFrequency) ([]*model.Habit, error) {
	return r.ByIndex(ctx, "frequency", string(freq))
}

// CheckIn records a completion of the habit at t and stores the new
// streak. It returns the habit, whether a check-in was added (false when
// already checked in that day), and nil when the habit does not exist.
func (r *HabitRepo) CheckIn(ctx context.Context, id string, at time.Time) (*model.Habit, bool, error) {
	h, err := r.Get(ctx, id)
	if err != nil || h == nil {
		return nil, false, err
	}
	if !h.CheckIn(at) {
		return h, false, nil
	}
	ok, err := r.Repo.Update(ctx, id, model.Record{
		"currentStreak":  h.CurrentStreak,
		"longestStreak":  h.LongestStreak,
		"totalCheckIns":  h.TotalCheckIns,
		"lastCheckIn":    h.LastCheckIn,
		"checkInHistory": h.CheckInHistory,
		"updatedAt":      h.UpdatedAt,
	})
	if err != nil || !ok {
		return nil, false, err
	}
	return h, true, nil
}
