package storage

import (
	"context"
	"encoding/json"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskboard-api/domain"
)

type settingsEntity struct {
	aztables.Entity
	Theme                string `json:"Theme"`
	AIEnabled            bool   `json:"AiEnabled"`
	CollaborationEnabled bool   `json:"CollaborationEnabled"`
	AdvancedStatus       bool   `json:"AdvancedStatus"`
	RemindersEnabled     bool   `json:"RemindersEnabled"`
	OverdueAlerts        bool   `json:"OverdueAlerts"`
	DefaultView          string `json:"DefaultView"`
}

// GetSettings retrieves the user's settings document, ErrNotFound when
// the user has never saved any.
func (s *Store) GetSettings(ctx context.Context, userID string) (domain.Settings, error) {
	resp, err := s.settingsTable.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.Settings{}, ErrNotFound
		}
		return domain.Settings{}, err
	}
	var ent settingsEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return domain.Settings{}, err
	}
	return domain.Settings{
		Theme:                ent.Theme,
		AIEnabled:            ent.AIEnabled,
		CollaborationEnabled: ent.CollaborationEnabled,
		AdvancedStatus:       ent.AdvancedStatus,
		RemindersEnabled:     ent.RemindersEnabled,
		OverdueAlerts:        ent.OverdueAlerts,
		DefaultView:          ent.DefaultView,
	}, nil
}

// PutSettings creates or replaces the user's settings document.
func (s *Store) PutSettings(ctx context.Context, userID string, settings domain.Settings) error {
	ent := settingsEntity{
		Entity:               aztables.Entity{PartitionKey: userID, RowKey: userID},
		Theme:                settings.Theme,
		AIEnabled:            settings.AIEnabled,
		CollaborationEnabled: settings.CollaborationEnabled,
		AdvancedStatus:       settings.AdvancedStatus,
		RemindersEnabled:     settings.RemindersEnabled,
		OverdueAlerts:        settings.OverdueAlerts,
		DefaultView:          settings.DefaultView,
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.settingsTable.UpsertEntity(ctx, payload, nil)
	return err
}
