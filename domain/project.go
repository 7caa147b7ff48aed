package domain

import "time"

// ProjectStatus is the closed set of project states.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
	ProjectArchived  ProjectStatus = "archived"
)

// Valid reports whether s is one of the known project statuses.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectOnHold, ProjectCompleted, ProjectArchived:
		return true
	}
	return false
}

// Project groups tasks under a shared deadline. It does not own its
// tasks: Task.ProjectID pointing here is a weak reference and project
// deletion never cascades.
type Project struct {
	ID          string        `json:"id"`
	UserID      string        `json:"userId"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	DueDate     time.Time     `json:"dueDate"`
	Status      ProjectStatus `json:"status"`
	Color       string        `json:"color,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// ProjectUpdate is a partial project change.
type ProjectUpdate struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	DueDate     *time.Time     `json:"dueDate,omitempty"`
	Status      *ProjectStatus `json:"status,omitempty"`
	Color       *string        `json:"color,omitempty"`
}
