package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskboard-api/domain"
)

type projectEntity struct {
	aztables.Entity
	Name        string `json:"Name"`
	Description string `json:"Description,omitempty"`
	DueDate     int64  `json:"DueDate"`
	Status      string `json:"Status"`
	Color       string `json:"Color,omitempty"`
	CreatedAt   int64  `json:"CreatedAt"`
	UpdatedAt   int64  `json:"UpdatedAt"`
}

func decodeProject(data []byte) (domain.Project, error) {
	var ent projectEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Project{}, err
	}
	return domain.Project{
		ID:          ent.RowKey,
		UserID:      ent.PartitionKey,
		Name:        ent.Name,
		Description: ent.Description,
		DueDate:     time.Unix(0, ent.DueDate).UTC(),
		Status:      domain.ProjectStatus(ent.Status),
		Color:       ent.Color,
		CreatedAt:   time.Unix(0, ent.CreatedAt).UTC(),
		UpdatedAt:   time.Unix(0, ent.UpdatedAt).UTC(),
	}, nil
}

// ListProjects retrieves all of the user's projects.
func (s *Store) ListProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	filter := ownerFilter(userID, nil)
	pager := s.projectTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	projects := []domain.Project{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			p, err := decodeProject(raw)
			if err != nil {
				return nil, err
			}
			projects = append(projects, p)
		}
	}
	return projects, nil
}

// GetProject retrieves one project, ErrNotFound when absent.
func (s *Store) GetProject(ctx context.Context, userID, id string) (domain.Project, error) {
	resp, err := s.projectTable.GetEntity(ctx, userID, id, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.Project{}, ErrNotFound
		}
		return domain.Project{}, err
	}
	return decodeProject(resp.Value)
}

// InsertProject writes a new project document.
func (s *Store) InsertProject(ctx context.Context, p domain.Project) error {
	ent := projectEntity{
		Entity:      aztables.Entity{PartitionKey: p.UserID, RowKey: p.ID},
		Name:        p.Name,
		Description: p.Description,
		DueDate:     p.DueDate.UnixNano(),
		Status:      string(p.Status),
		Color:       p.Color,
		CreatedAt:   p.CreatedAt.UnixNano(),
		UpdatedAt:   p.UpdatedAt.UnixNano(),
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.projectTable.AddEntity(ctx, payload, nil)
	return err
}

type projectUpdateEntity struct {
	aztables.Entity
	Name        *string `json:"Name,omitempty"`
	Description *string `json:"Description,omitempty"`
	DueDate     *int64  `json:"DueDate,omitempty"`
	Status      *string `json:"Status,omitempty"`
	Color       *string `json:"Color,omitempty"`
	UpdatedAt   int64   `json:"UpdatedAt"`
}

// UpdateProject merges the set fields of upd into the stored project.
func (s *Store) UpdateProject(ctx context.Context, userID, id string, upd domain.ProjectUpdate, updatedAt time.Time) error {
	ent := projectUpdateEntity{
		Entity:      aztables.Entity{PartitionKey: userID, RowKey: id},
		Name:        upd.Name,
		Description: upd.Description,
		Color:       upd.Color,
		UpdatedAt:   updatedAt.UnixNano(),
	}
	if upd.DueDate != nil {
		due := upd.DueDate.UnixNano()
		ent.DueDate = &due
	}
	if upd.Status != nil {
		st := string(*upd.Status)
		ent.Status = &st
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	return merge(ctx, s.projectTable, payload)
}

// DeleteProject removes a project document. Tasks keep their project
// back-reference; there is no cascade.
func (s *Store) DeleteProject(ctx context.Context, userID, id string) error {
	_, err := s.projectTable.DeleteEntity(ctx, userID, id, nil)
	if isNotFound(err) {
		return ErrNotFound
	}
	return err
}
