package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskboard-api/domain"
)

type notificationEntity struct {
	aztables.Entity
	Type      string `json:"Type"`
	Title     string `json:"Title"`
	Message   string `json:"Message"`
	Link      string `json:"Link,omitempty"`
	TaskID    string `json:"TaskId,omitempty"`
	ProjectID string `json:"ProjectId,omitempty"`
	Read      bool   `json:"Read"`
	CreatedAt int64  `json:"CreatedAt"`
}

func decodeNotification(data []byte) (domain.Notification, error) {
	var ent notificationEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Notification{}, err
	}
	return domain.Notification{
		ID:        ent.RowKey,
		UserID:    ent.PartitionKey,
		Type:      domain.NotificationType(ent.Type),
		Title:     ent.Title,
		Message:   ent.Message,
		Link:      ent.Link,
		TaskID:    ent.TaskID,
		ProjectID: ent.ProjectID,
		Read:      ent.Read,
		CreatedAt: time.Unix(0, ent.CreatedAt).UTC(),
	}, nil
}

// ListNotifications retrieves the user's notifications, optionally only
// unread ones. The read flag is pushed down as an equality predicate.
func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	filter := ownerFilter(userID, nil)
	if unreadOnly {
		filter += " and Read eq false"
	}
	pager := s.notificationTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	notifications := []domain.Notification{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			n, err := decodeNotification(raw)
			if err != nil {
				return nil, err
			}
			notifications = append(notifications, n)
		}
	}
	return notifications, nil
}

// GetNotification retrieves one notification, ErrNotFound when absent.
func (s *Store) GetNotification(ctx context.Context, userID, id string) (domain.Notification, error) {
	resp, err := s.notificationTable.GetEntity(ctx, userID, id, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.Notification{}, ErrNotFound
		}
		return domain.Notification{}, err
	}
	return decodeNotification(resp.Value)
}

// InsertNotification writes a new notification document.
func (s *Store) InsertNotification(ctx context.Context, n domain.Notification) error {
	ent := notificationEntity{
		Entity:    aztables.Entity{PartitionKey: n.UserID, RowKey: n.ID},
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		TaskID:    n.TaskID,
		ProjectID: n.ProjectID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UnixNano(),
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.notificationTable.AddEntity(ctx, payload, nil)
	return err
}

// MarkNotificationRead flips the read flag. Notifications mutate only
// through this flag.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	ent := struct {
		aztables.Entity
		Read bool `json:"Read"`
	}{
		Entity: aztables.Entity{PartitionKey: userID, RowKey: id},
		Read:   true,
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	return merge(ctx, s.notificationTable, payload)
}

// DeleteNotification removes a notification document.
func (s *Store) DeleteNotification(ctx context.Context, userID, id string) error {
	_, err := s.notificationTable.DeleteEntity(ctx, userID, id, nil)
	if isNotFound(err) {
		return ErrNotFound
	}
	return err
}
