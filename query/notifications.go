package query

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard-api/cache"
	"taskboard-api/domain"
)

// NotificationStore is the remote-store surface the notification hooks
// need.
type NotificationStore interface {
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error)
	GetNotification(ctx context.Context, userID, id string) (domain.Notification, error)
	InsertNotification(ctx context.Context, n domain.Notification) error
	MarkNotificationRead(ctx context.Context, userID, id string) error
	DeleteNotification(ctx context.Context, userID, id string) error
}

// Notifications is the notification query/mutation surface.
type Notifications struct {
	store NotificationStore
	cache *cache.Cache
	log   *log.Logger
	now   func() time.Time
}

// NewNotifications creates the notification data-access surface.
func NewNotifications(store NotificationStore, c *cache.Cache, logger *log.Logger) *Notifications {
	return &Notifications{store: store, cache: c, log: logger, now: time.Now}
}

func notificationListKey(owner string, unreadOnly bool) cache.Key {
	return cache.NewKey("notifications", owner, map[string]string{"unread": strconv.FormatBool(unreadOnly)})
}

// List returns the owner's notifications, newest first.
func (s *Notifications) List(ctx context.Context, owner string, unreadOnly bool) ([]domain.Notification, error) {
	payload, err := s.cache.Fetch(ctx, notificationListKey(owner, unreadOnly), defaultListTTL, func(ctx context.Context) ([]byte, error) {
		var notifications []domain.Notification
		err := withRetry(ctx, s.log, "notifications.list", func() error {
			var err error
			notifications, err = s.store.ListNotifications(ctx, owner, unreadOnly)
			return err
		})
		if err != nil {
			return nil, err
		}
		sortNewestFirst(notifications)
		return sonic.Marshal(notifications)
	})
	if err != nil {
		return nil, err
	}
	var notifications []domain.Notification
	if err := sonic.Unmarshal(payload, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

func sortNewestFirst(notifications []domain.Notification) {
	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
}

// Create persists a new notification for the owner and returns the
// re-read stored entity.
func (s *Notifications) Create(ctx context.Context, owner string, n domain.Notification) (domain.Notification, error) {
	if !n.Type.Valid() {
		return domain.Notification{}, ValidationError("unknown notification type")
	}
	if n.Title == "" {
		return domain.Notification{}, ValidationError("title is required")
	}
	n.ID = uuid.NewString()
	n.UserID = owner
	n.Read = false
	n.CreatedAt = s.now().UTC()

	if err := withRetry(ctx, s.log, "notifications.create", func() error {
		return s.store.InsertNotification(ctx, n)
	}); err != nil {
		return domain.Notification{}, err
	}
	persisted, err := s.reread(ctx, owner, n.ID)
	if err != nil {
		return domain.Notification{}, err
	}
	s.invalidate(owner)
	return persisted, nil
}

// reread fetches the notification straight from the store, bypassing
// the cache.
func (s *Notifications) reread(ctx context.Context, owner, id string) (domain.Notification, error) {
	var n domain.Notification
	err := withRetry(ctx, s.log, "notifications.reread", func() error {
		var err error
		n, err = s.store.GetNotification(ctx, owner, id)
		return err
	})
	return n, err
}

// MarkRead flips the read flag, the only mutable field.
func (s *Notifications) MarkRead(ctx context.Context, owner, id string) error {
	if err := withRetry(ctx, s.log, "notifications.read", func() error {
		return s.store.MarkNotificationRead(ctx, owner, id)
	}); err != nil {
		return err
	}
	s.invalidate(owner)
	return nil
}

// Delete removes a notification, an explicit user action.
func (s *Notifications) Delete(ctx context.Context, owner, id string) error {
	if err := withRetry(ctx, s.log, "notifications.delete", func() error {
		return s.store.DeleteNotification(ctx, owner, id)
	}); err != nil {
		return err
	}
	s.invalidate(owner)
	return nil
}

// invalidate applies the mutation topology: every notification list
// and, for uniformity with the other entities, the dashboard prefix.
func (s *Notifications) invalidate(owner string) {
	s.cache.Invalidate(cache.NewPrefix("notifications", owner))
	s.cache.Invalidate(cache.NewPrefix("dashboard", owner))
}
