package domain

import "time"

// Priority is the closed set of task priorities.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Status is the closed set of task states.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusPostponed  Status = "postponed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone, StatusPostponed:
		return true
	}
	return false
}

// Subtask is a single checklist item belonging to a task.
type Subtask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	Order     int    `json:"order"`
}

// Task is a single unit of work owned by one user. ProjectID is a
// back-reference only: deleting the project leaves the task in place.
type Task struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ProjectID string    `json:"projectId,omitempty"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes,omitempty"`
	DueDate   time.Time `json:"dueDate"`
	Priority  Priority  `json:"priority"`
	Status    Status    `json:"status"`
	Subtasks  []Subtask `json:"subtasks,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TaskFilter narrows a task list query. Zero values mean "any".
type TaskFilter struct {
	Status    Status
	Priority  Priority
	ProjectID string
}

// IsZero reports whether the filter matches everything.
func (f TaskFilter) IsZero() bool {
	return f.Status == "" && f.Priority == "" && f.ProjectID == ""
}

// Matches applies the filter to a task client-side.
func (f TaskFilter) Matches(t Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.ProjectID != "" && t.ProjectID != f.ProjectID {
		return false
	}
	return true
}

// TaskUpdate is a partial task change. Nil fields are left untouched by
// the merge write.
type TaskUpdate struct {
	Title     *string    `json:"title,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	ProjectID *string    `json:"projectId,omitempty"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
	Priority  *Priority  `json:"priority,omitempty"`
	Status    *Status    `json:"status,omitempty"`
	Subtasks  *[]Subtask `json:"subtasks,omitempty"`
	Tags      *[]string  `json:"tags,omitempty"`
}
