package output

import (
	"github.com/manav03panchal/taskmap/internal/metrics"
	"github.com/manav03panchal/taskmap/internal/model"
	"github.com/manav03panchal/taskmap/internal/repo"
	"github.com/manav03panchal/taskmap/internal/storage"
)

// JSONFormatter provides JSON-specific formatting.
type JSONFormatter struct {
	*Formatter
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(f *Formatter) *JSONFormatter {
	return &JSONFormatter{Formatter: f}
}

// ListResponse wraps a list of entities with its length.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// NewListResponse builds a ListResponse. A nil slice becomes an empty one.
func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}

// TreeResponse represents a task forest in JSON.
type TreeResponse struct {
	Tree  []*model.TaskNode `json:"tree"`
	Count int               `json:"count"`
}

// DeleteResponse represents the outcome of a delete.
type DeleteResponse struct {
	Status  string               `json:"status"`
	ID      string               `json:"id"`
	Deleted bool                 `json:"deleted"`
	Tasks   *storage.BatchResult `json:"tasks,omitempty"`
}

// CheckInResponse represents a habit check-in.
type CheckInResponse struct {
	Status string       `json:"status"`
	Added  bool         `json:"added"`
	Habit  *model.Habit `json:"habit"`
}

// ImportResponse represents per-store import results.
type ImportResponse struct {
	Status string                         `json:"status"`
	Stores map[string]storage.BatchResult `json:"stores"`
}

// StatsResponse represents statistics output in JSON.
type StatsResponse struct {
	Records repo.Stats        `json:"records"`
	Metrics *metrics.Snapshot `json:"metrics,omitempty"`
}

// ErrorResponse represents an error in JSON.
type ErrorResponse struct {
	Status     string `json:"status"`
	Error      string `json:"error"`
	Category   string `json:"category,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// PrintList outputs a list of entities.
func PrintList[T any](j *JSONFormatter, items []T) error {
	return j.JSON(NewListResponse(items))
}

// PrintTree outputs a task forest.
func (j *JSONFormatter) PrintTree(roots []*model.TaskNode) error {
	if roots == nil {
		roots = []*model.TaskNode{}
	}
	return j.JSON(TreeResponse{Tree: roots, Count: len(model.Flatten(roots))})
}

// PrintDelete outputs a single delete outcome.
func (j *JSONFormatter) PrintDelete(id string, deleted bool) error {
	status := "deleted"
	if !deleted {
		status = "not_found"
	}
	return j.JSON(DeleteResponse{Status: status, ID: id, Deleted: deleted})
}

// PrintCascade outputs a project deletion with its task results.
func (j *JSONFormatter) PrintCascade(id string, res repo.CascadeResult) error {
	status := "deleted"
	if !res.Deleted {
		status = "not_found"
	}
	tasks := res.Tasks
	return j.JSON(DeleteResponse{Status: status, ID: id, Deleted: res.Deleted, Tasks: &tasks})
}

// PrintCheckIn outputs a habit check-in.
func (j *JSONFormatter) PrintCheckIn(h *model.Habit, added bool) error {
	status := "checked_in"
	if !added {
		status = "already_checked_in"
	}
	return j.JSON(CheckInResponse{Status: status, Added: added, Habit: h})
}

// PrintImport outputs per-store import results.
func (j *JSONFormatter) PrintImport(results map[string]storage.BatchResult) error {
	status := "ok"
	for _, res := range results {
		if !res.OK {
			status = "incomplete"
			break
		}
	}
	return j.JSON(ImportResponse{Status: status, Stores: results})
}

// PrintStats outputs record counts and optional metrics.
func (j *JSONFormatter) PrintStats(stats repo.Stats, snap *metrics.Snapshot) error {
	return j.JSON(StatsResponse{Records: stats, Metrics: snap})
}

// PrintError outputs an error in JSON format.
func (j *JSONFormatter) PrintError(errMsg, category, suggestion string) error {
	return j.JSON(ErrorResponse{
		Status:     "error",
		Error:      errMsg,
		Category:   category,
		Suggestion: suggestion,
	})
}
