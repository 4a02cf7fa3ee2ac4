package repo

import (
	"context"
	"slices"
	"time"

	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/storage"
)

// TaskRepo provides operations for Task entities.
type TaskRepo struct {
	*Repo[*model.Task]
}

// Update merges patch into the task and stamps updatedAt.
func (r *TaskRepo) Update(ctx context.Context, id string, patch model.Record) (bool, error) {
	return r.Repo.Update(ctx, id, stamp(patch))
}

// SetStatus changes the task status. Completing a task records
// completedAt; any other status clears it.
func (r *TaskRepo) SetStatus(ctx context.Context, id string, status model.TaskStatus, at time.Time) (bool, error) {
	patch := model.Record{"status": string(status), "completedAt": nil}
	if status == model.TaskCompleted {
		patch["completedAt"] = model.Millis(at)
	}
	return r.Update(ctx, id, patch)
}

// GetByProject returns the tasks of a project.
func (r *TaskRepo) GetByProject(ctx context.Context, projectID string) ([]*model.Task, error) {
	return r.ByIndex(ctx, "projectId", projectID)
}

// GetByParentID returns the direct subtasks of a task.
func (r *TaskRepo) GetByParentID(ctx context.Context, parentID string) ([]*model.Task, error) {
	return r.ByIndex(ctx, "parentId", parentID)
}

// GetByStatus returns tasks with the given status.
func (r *TaskRepo) GetByStatus(ctx context.Context, status model.TaskStatus) ([]*model.Task, error) {
	return r.ByIndex(ctx, "status", string(status))
}

// GetByReferenceNote returns tasks whose reference notes include note.
// The referenceNote index keys the whole list, so this scans the store.
func (r *TaskRepo) GetByReferenceNote(ctx context.Context, note string) ([]*model.Task, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Task, 0)
	for _, t := range all {
		if slices.Contains(t.ReferenceNote, note) {
			out = append(out, t)
		}
	}
	return out, nil
}

// DeleteByProject removes every task of a project, best effort.
func (r *TaskRepo) DeleteByProject(ctx context.Context, projectID string) (storage.BatchResult, error) {
	tasks, err := r.GetByProject(ctx, projectID)
	if err != nil {
		return storage.NewBatchResult(), err
	}
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return r.DeleteMany(ctx, ids)
}

// Tree returns the tasks of a project arranged by parentId. An empty
// projectID builds the tree over every task.
func (r *TaskRepo) Tree(ctx context.Context, projectID string) ([]*model.TaskNode, error) {
	var (
		tasks []*model.Task
		err   error
	)
	if projectID == "" {
		tasks, err = r.GetAll(ctx)
	} else {
		tasks, err = r.GetByProject(ctx, projectID)
	}
	if err != nil {
		return nil, err
	}
	return model.BuildTaskTree(tasks), nil
}
