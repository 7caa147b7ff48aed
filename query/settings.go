package query

import (
	"context"
	"errors"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"taskboard-api/cache"
	"taskboard-api/domain"
	"taskboard-api/storage"
)

// SettingsStore is the remote-store surface the settings hooks need.
type SettingsStore interface {
	GetSettings(ctx context.Context, userID string) (domain.Settings, error)
	PutSettings(ctx context.Context, userID string, settings domain.Settings) error
}

// Settings is the user-settings query/mutation surface.
type Settings struct {
	store SettingsStore
	cache *cache.Cache
	log   *log.Logger
}

// NewSettings creates the settings data-access surface.
func NewSettings(store SettingsStore, c *cache.Cache, logger *log.Logger) *Settings {
	return &Settings{store: store, cache: c, log: logger}
}

func settingsKey(owner string) cache.Key {
	return cache.NewKey("settings", owner, nil)
}

// Get returns the owner's settings, falling back to defaults for users
// who never saved any.
func (s *Settings) Get(ctx context.Context, owner string) (domain.Settings, error) {
	payload, err := s.cache.Fetch(ctx, settingsKey(owner), defaultDetailTTL, func(ctx context.Context) ([]byte, error) {
		var settings domain.Settings
		err := withRetry(ctx, s.log, "settings.get", func() error {
			var err error
			settings, err = s.store.GetSettings(ctx, owner)
			return err
		})
		if errors.Is(err, storage.ErrNotFound) {
			settings = domain.DefaultSettings()
			err = nil
		}
		if err != nil {
			return nil, err
		}
		return sonic.Marshal(settings)
	})
	if err != nil {
		return domain.Settings{}, err
	}
	var settings domain.Settings
	if err := sonic.Unmarshal(payload, &settings); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

// Put replaces the owner's settings document.
func (s *Settings) Put(ctx context.Context, owner string, settings domain.Settings) (domain.Settings, error) {
	if err := withRetry(ctx, s.log, "settings.put", func() error {
		return s.store.PutSettings(ctx, owner, settings)
	}); err != nil {
		return domain.Settings{}, err
	}
	s.cache.Invalidate(settingsKey(owner))
	s.cache.Invalidate(cache.NewPrefix("dashboard", owner))
	return settings, nil
}
