package model

import "regexp"

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectPaused    ProjectStatus = "paused"
	ProjectCompleted ProjectStatus = "completed"
	ProjectArchived  ProjectStatus = "archived"
)

// ProjectType classifies a project into a life area.
type ProjectType string

const (
	ProjectLearningGrowth         ProjectType = "learning_growth"
	ProjectExperienceBreakthrough ProjectType = "experience_breakthrough"
	ProjectLeisureEntertainment   ProjectType = "leisure_entertainment"
	ProjectWorkCareer             ProjectType = "work_career"
	ProjectFamilyLife             ProjectType = "family_life"
	ProjectPhysicalHealth         ProjectType = "physical_health"
	ProjectFinancialManagement    ProjectType = "financial_management"
	ProjectSocialRelationships    ProjectType = "social_relationships"
)

// Project is a top-level container for tasks.
type Project struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Description        string        `json:"description,omitempty"`
	Type               ProjectType   `json:"type,omitempty"`
	Status             ProjectStatus `json:"status"`
	Color              string        `json:"color,omitempty"`
	Icon               string        `json:"icon,omitempty"`
	Priority           int           `json:"priority,omitempty"`
	Category           string        `json:"category,omitempty"`
	StartDate          int64         `json:"startDate,omitempty"`
	EndDate            int64         `json:"endDate,omitempty"`
	DueDate            int64         `json:"dueDate,omitempty"`
	CreatedAt          int64         `json:"createdAt"`
	UpdatedAt          int64         `json:"updatedAt"`
	CompletedAt        int64         `json:"completedAt,omitempty"`
	IsArchived         bool          `json:"isArchived"`
	Order              int           `json:"order"`
	TaskCount          int           `json:"taskCount"`
	CompletedTaskCount int           `json:"completedTaskCount"`
	CompletionRate     float64       `json:"completionRate"`
}

// SetKey sets the project id.
func (p *Project) SetKey(key string) {
	p.ID = key
}

// GetKey returns the project id.
func (p *Project) GetKey() string {
	return p.ID
}

// NewProject creates an active project with timestamps set.
func NewProject(name string, projectType ProjectType, color string) *Project {
	p := &Project{
		Name:   name,
		Type:   projectType,
		Status: ProjectActive,
		Color:  color,
	}
	p.Touch()
	return p
}

// Touch stamps the created/updated times.
func (p *Project) Touch() {
	touch(&p.CreatedAt, &p.UpdatedAt)
}

// UpdateProgress recomputes the task counters from a project's tasks.
func (p *Project) UpdateProgress(tasks []*Task) {
	p.TaskCount = len(tasks)
	p.CompletedTaskCount = 0
	for _, t := range tasks {
		if t.Status == TaskCompleted {
			p.CompletedTaskCount++
		}
	}
	if p.TaskCount == 0 {
		p.CompletionRate = 0
		return
	}
	p.CompletionRate = float64(p.CompletedTaskCount) * 100 / float64(p.TaskCount)
}

// ValidProjectStatus reports whether s is a known status.
func ValidProjectStatus(s string) bool {
	switch ProjectStatus(s) {
	case ProjectActive, ProjectPaused, ProjectCompleted, ProjectArchived:
		return true
	}
	return false
}

// hexColorRegex validates hex color format.
var hexColorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ValidateColor checks if a color string is a valid hex color.
func ValidateColor(color string) bool {
	if color == "" {
		return true
	}
	return hexColorRegex.MatchString(color)
}
