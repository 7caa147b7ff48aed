package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskboard-api/domain"
)

// Table rows are flat, so subtasks and tags ride along as JSON-encoded
// string columns.
type taskEntity struct {
	aztables.Entity
	Title     string `json:"Title"`
	Notes     string `json:"Notes,omitempty"`
	ProjectID string `json:"ProjectId,omitempty"`
	DueDate   int64  `json:"DueDate"`
	Priority  string `json:"Priority"`
	Status    string `json:"Status"`
	Subtasks  string `json:"Subtasks,omitempty"`
	Tags      string `json:"Tags,omitempty"`
	CreatedAt int64  `json:"CreatedAt"`
	UpdatedAt int64  `json:"UpdatedAt"`
}

func encodeTask(t domain.Task) (taskEntity, error) {
	ent := taskEntity{
		Entity:    aztables.Entity{PartitionKey: t.UserID, RowKey: t.ID},
		Title:     t.Title,
		Notes:     t.Notes,
		ProjectID: t.ProjectID,
		DueDate:   t.DueDate.UnixNano(),
		Priority:  string(t.Priority),
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt.UnixNano(),
		UpdatedAt: t.UpdatedAt.UnixNano(),
	}
	if len(t.Subtasks) > 0 {
		data, err := json.Marshal(t.Subtasks)
		if err != nil {
			return taskEntity{}, err
		}
		ent.Subtasks = string(data)
	}
	if len(t.Tags) > 0 {
		data, err := json.Marshal(t.Tags)
		if err != nil {
			return taskEntity{}, err
		}
		ent.Tags = string(data)
	}
	return ent, nil
}

func decodeTask(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		ID:        ent.RowKey,
		UserID:    ent.PartitionKey,
		ProjectID: ent.ProjectID,
		Title:     ent.Title,
		Notes:     ent.Notes,
		DueDate:   time.Unix(0, ent.DueDate).UTC(),
		Priority:  domain.Priority(ent.Priority),
		Status:    domain.Status(ent.Status),
		CreatedAt: time.Unix(0, ent.CreatedAt).UTC(),
		UpdatedAt: time.Unix(0, ent.UpdatedAt).UTC(),
	}
	if ent.Subtasks != "" {
		if err := json.Unmarshal([]byte(ent.Subtasks), &t.Subtasks); err != nil {
			return domain.Task{}, err
		}
	}
	if ent.Tags != "" {
		if err := json.Unmarshal([]byte(ent.Tags), &t.Tags); err != nil {
			return domain.Task{}, err
		}
	}
	return t, nil
}

// taskPredicates maps a filter onto pushed-down equality columns.
func taskPredicates(f domain.TaskFilter) map[string]string {
	p := map[string]string{}
	if f.Status != "" {
		p["Status"] = string(f.Status)
	}
	if f.Priority != "" {
		p["Priority"] = string(f.Priority)
	}
	if f.ProjectID != "" {
		p["ProjectId"] = f.ProjectID
	}
	return p
}

// ListTasks retrieves the user's tasks matching the filter. The owner
// partition and single-column equality predicates are evaluated by the
// table service.
func (s *Store) ListTasks(ctx context.Context, userID string, f domain.TaskFilter) ([]domain.Task, error) {
	filter := ownerFilter(userID, taskPredicates(f))
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			t, err := decodeTask(raw)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// GetTask retrieves one task, ErrNotFound when absent.
func (s *Store) GetTask(ctx context.Context, userID, id string) (domain.Task, error) {
	resp, err := s.taskTable.GetEntity(ctx, userID, id, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.Task{}, ErrNotFound
		}
		return domain.Task{}, err
	}
	return decodeTask(resp.Value)
}

// InsertTask writes a new task document.
func (s *Store) InsertTask(ctx context.Context, t domain.Task) error {
	ent, err := encodeTask(t)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.taskTable.AddEntity(ctx, payload, nil)
	return err
}

type taskUpdateEntity struct {
	aztables.Entity
	Title     *string `json:"Title,omitempty"`
	Notes     *string `json:"Notes,omitempty"`
	ProjectID *string `json:"ProjectId,omitempty"`
	DueDate   *int64  `json:"DueDate,omitempty"`
	Priority  *string `json:"Priority,omitempty"`
	Status    *string `json:"Status,omitempty"`
	Subtasks  *string `json:"Subtasks,omitempty"`
	Tags      *string `json:"Tags,omitempty"`
	UpdatedAt int64   `json:"UpdatedAt"`
}

// UpdateTask merges the set fields of upd into the stored task and
// refreshes UpdatedAt. Unset fields never reach the wire.
func (s *Store) UpdateTask(ctx context.Context, userID, id string, upd domain.TaskUpdate, updatedAt time.Time) error {
	ent := taskUpdateEntity{
		Entity:    aztables.Entity{PartitionKey: userID, RowKey: id},
		Notes:     upd.Notes,
		ProjectID: upd.ProjectID,
		UpdatedAt: updatedAt.UnixNano(),
	}
	if upd.Title != nil {
		ent.Title = upd.Title
	}
	if upd.DueDate != nil {
		due := upd.DueDate.UnixNano()
		ent.DueDate = &due
	}
	if upd.Priority != nil {
		p := string(*upd.Priority)
		ent.Priority = &p
	}
	if upd.Status != nil {
		st := string(*upd.Status)
		ent.Status = &st
	}
	if upd.Subtasks != nil {
		data, err := json.Marshal(*upd.Subtasks)
		if err != nil {
			return err
		}
		encoded := string(data)
		ent.Subtasks = &encoded
	}
	if upd.Tags != nil {
		data, err := json.Marshal(*upd.Tags)
		if err != nil {
			return err
		}
		encoded := string(data)
		ent.Tags = &encoded
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	return merge(ctx, s.taskTable, payload)
}

// DeleteTask removes a task document.
func (s *Store) DeleteTask(ctx context.Context, userID, id string) error {
	_, err := s.taskTable.DeleteEntity(ctx, userID, id, nil)
	if isNotFound(err) {
		return ErrNotFound
	}
	return err
}
