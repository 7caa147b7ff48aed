package api

import (
	"context"

	"taskboard-api/domain"
	"taskboard-api/query"
)

// TaskService is the task read/write surface handlers use.
type TaskService interface {
	List(ctx context.Context, owner string, f domain.TaskFilter) ([]domain.Task, error)
	Get(ctx context.Context, owner, id string) (domain.Task, error)
	Today(ctx context.Context, owner string) ([]domain.Task, error)
	Upcoming(ctx context.Context, owner string, days int) ([]domain.Task, error)
	Overdue(ctx context.Context, owner string) ([]domain.Task, error)
	ForProject(ctx context.Context, owner, projectID string) ([]domain.Task, error)
	Create(ctx context.Context, owner string, t domain.Task) (domain.Task, error)
	Update(ctx context.Context, owner, id string, upd domain.TaskUpdate) (domain.Task, error)
	SetSubtasks(ctx context.Context, owner, id string, subtasks []domain.Subtask) (domain.Task, error)
	Delete(ctx context.Context, owner, id string) (domain.Task, error)
}

// ProjectService is the project read/write surface handlers use.
type ProjectService interface {
	List(ctx context.Context, owner string) ([]domain.Project, error)
	Get(ctx context.Context, owner, id string) (domain.Project, error)
	Create(ctx context.Context, owner string, p domain.Project) (domain.Project, error)
	Update(ctx context.Context, owner, id string, upd domain.ProjectUpdate) (domain.Project, error)
	Delete(ctx context.Context, owner, id string) (domain.Project, error)
}

// NotificationService is the notification surface handlers use.
type NotificationService interface {
	List(ctx context.Context, owner string, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, owner, id string) error
	Delete(ctx context.Context, owner, id string) error
}

// SettingsService reads and replaces a user's settings document.
type SettingsService interface {
	Get(ctx context.Context, owner string) (domain.Settings, error)
	Put(ctx context.Context, owner string, s domain.Settings) (domain.Settings, error)
}

// ViewService computes the derived read models.
type ViewService interface {
	Dashboard(ctx context.Context, owner string) (domain.Dashboard, error)
	Analytics(ctx context.Context, owner string) (query.Analytics, error)
	Calendar(ctx context.Context, owner string) (map[string][]domain.Task, error)
}

// SessionEnqueuer queues a notification generation run.
type SessionEnqueuer interface {
	EnqueueSessionJob(ctx context.Context, userID string) error
}

// SummaryProducer creates a weekly summary notification on demand.
type SummaryProducer interface {
	Summary(ctx context.Context, userID string) (domain.Notification, error)
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}
