package model

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Task is a unit of work, optionally inside a project and under a parent task.
type Task struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	ProjectID     string     `json:"projectId,omitempty"`
	ParentID      string     `json:"parentId,omitempty"`
	SubTasks      []string   `json:"subTasks,omitempty"`
	Status        TaskStatus `json:"status"`
	Priority      int        `json:"priority,omitempty"`
	DueDate       int64      `json:"dueDate,omitempty"`
	StartDate     int64      `json:"startDate,omitempty"`
	CompletedAt   int64      `json:"completedAt,omitempty"`
	ReferenceNote []string   `json:"referenceNote,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	CreatedAt     int64      `json:"createdAt"`
	UpdatedAt     int64      `json:"updatedAt"`
	IsArchived    bool       `json:"isArchived"`
	IsExpanded    bool       `json:"isExpanded,omitempty"`
	Order         int        `json:"order"`
	EstimatedTime int        `json:"estimatedTime,omitempty"`
	ActualTime    int        `json:"actualTime,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

// SetKey sets the task id.
func (t *Task) SetKey(key string) {
	t.ID = key
}

// GetKey returns the task id.
func (t *Task) GetKey() string {
	return t.ID
}

// NewTask creates a pending task with timestamps set.
func NewTask(name, projectID string) *Task {
	t := &Task{
		Name:      name,
		ProjectID: projectID,
		Status:    TaskPending,
	}
	t.Touch()
	return t
}

// Touch stamps the created/updated times.
func (t *Task) Touch() {
	touch(&t.CreatedAt, &t.UpdatedAt)
}

// IsDone reports whether the task is completed or cancelled.
func (t *Task) IsDone() bool {
	return t.Status == TaskCompleted || t.Status == TaskCancelled
}

// ValidTaskStatus reports whether s is a known status.
func ValidTaskStatus(s string) bool {
	switch TaskStatus(s) {
	case TaskPending, TaskInProgress, TaskCompleted, TaskCancelled:
		return true
	}
	return false
}
