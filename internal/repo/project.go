package repo

import (
	"context"
	"time"

	"github.com/manav03panchal/taskmap/internal/logging"
	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/storage"
)

// UpcomingWindow is how far ahead GetUpcoming looks by default.
const UpcomingWindow = 30 * 24 * time.Hour

// ProjectRepo provides operations for Project entities.
type ProjectRepo struct {
	*Repo[*model.Project]
	tasks *TaskRepo
}

// CascadeResult reports a project delete and the task deletes it caused.
type CascadeResult struct {
	Deleted bool                `json:"deleted"`
	Tasks   storage.BatchResult `json:"tasks"`
}

// Update merges patch into the project and stamps updatedAt.
func (r *ProjectRepo) Update(ctx context.Context, id string, patch model.Record) (bool, error) {
	return r.Repo.Update(ctx, id, stamp(patch))
}

// Delete removes the project and then every task that belongs to it. The
// two steps are independent: tasks are removed even if the project was
// already gone, and a failed task delete does not restore the project.
func (r *ProjectRepo) Delete(ctx context.Context, id string) (CascadeResult, error) {
	res := CascadeResult{Tasks: storage.NewBatchResult()}
	deleted, err := r.Repo.Delete(ctx, id)
	if err != nil {
		return res, err
	}
	res.Deleted = deleted

	res.Tasks, err = r.tasks.DeleteByProject(ctx, id)
	if err != nil {
		return res, err
	}
	logging.DebugContext(ctx, "project deleted",
		logging.KeyID, id,
		logging.KeyCount, res.Tasks.Succeeded)
	return res, nil
}

// GetByStatus returns projects with the given status.
func (r *ProjectRepo) GetByStatus(ctx context.Context, status model.ProjectStatus) ([]*model.Project, error) {
	return r.ByIndex(ctx, "status", string(status))
}

// GetByPriority returns projects with the given priority.
func (r *ProjectRepo) GetByPriority(ctx context.Context, priority int) ([]*model.Project, error) {
	return r.ByIndex(ctx, "priority", priority)
}

// GetByCategory returns projects in the given category.
func (r *ProjectRepo) GetByCategory(ctx context.Context, category string) ([]*model.Project, error) {
	return r.ByIndex(ctx, "category", category)
}

// GetUpcoming returns projects due between now and now+window, ordered by
// due date. A non-positive window uses UpcomingWindow.
func (r *ProjectRepo) GetUpcoming(ctx context.Context, now time.Time, window time.Duration) ([]*model.Project, error) {
	if window <= 0 {
		window = UpcomingWindow
	}
	kr := storage.Bound(model.Millis(now), model.Millis(now.Add(window)), false, false)
	return r.ByRange(ctx, "dueDate", kr)
}

// GetOverdue returns projects whose due date is at or before now.
// Projects without a due date are never overdue.
func (r *ProjectRepo) GetOverdue(ctx context.Context, now time.Time) ([]*model.Project, error) {
	return r.ByRange(ctx, "dueDate", storage.UpperBound(model.Millis(now), false))
}

// RefreshProgress recomputes the task counters of a project from its
// tasks and stores them.
func (r *ProjectRepo) RefreshProgress(ctx context.Context, id string) (*model.Project, error) {
	p, err := r.Get(ctx, id)
	if err != nil || p == nil {
		return p, err
	}
	tasks, err := r.tasks.GetByProject(ctx, id)
	if err != nil {
		return nil, err
	}
	p.UpdateProgress(tasks)
	_, err = r.Repo.Update(ctx, id, model.Record{
		"taskCount":          p.TaskCount,
		"completedTaskCount": p.CompletedTaskCount,
		"completionRate":     p.CompletionRate,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
