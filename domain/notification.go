package domain

import "time"

// NotificationType is the closed set of notification kinds.
type NotificationType string

const (
	NotifyReminder NotificationType = "reminder"
	NotifyOverdue  NotificationType = "overdue"
	NotifySummary  NotificationType = "summary"
)

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotifyReminder, NotifyOverdue, NotifySummary:
		return true
	}
	return false
}

// Notification is an alert surfaced to the user. Once created, only the
// Read flag changes; removal is an explicit user action.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      string           `json:"link,omitempty"`
	TaskID    string           `json:"taskId,omitempty"`
	ProjectID string           `json:"projectId,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}
