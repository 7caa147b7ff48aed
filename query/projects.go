package query

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard-api/cache"
	"taskboard-api/domain"
)

// ProjectStore is the remote-store surface the project hooks need.
type ProjectStore interface {
	ListProjects(ctx context.Context, userID string) ([]domain.Project, error)
	GetProject(ctx context.Context, userID, id string) (domain.Project, error)
	InsertProject(ctx context.Context, p domain.Project) error
	UpdateProject(ctx context.Context, userID, id string, upd domain.ProjectUpdate, updatedAt time.Time) error
	DeleteProject(ctx context.Context, userID, id string) error
}

// Projects is the project query/mutation surface.
type Projects struct {
	store ProjectStore
	cache *cache.Cache
	log   *log.Logger
	now   func() time.Time
}

// NewProjects creates the project data-access surface.
func NewProjects(store ProjectStore, c *cache.Cache, logger *log.Logger) *Projects {
	return &Projects{store: store, cache: c, log: logger, now: time.Now}
}

func projectListKey(owner string) cache.Key {
	return cache.NewKey("projects", owner, nil)
}

func projectDetailKey(owner, id string) cache.Key {
	return cache.NewKey("project", owner, map[string]string{"id": id})
}

// List returns all of the owner's projects.
func (s *Projects) List(ctx context.Context, owner string) ([]domain.Project, error) {
	payload, err := s.cache.Fetch(ctx, projectListKey(owner), defaultListTTL, func(ctx context.Context) ([]byte, error) {
		var projects []domain.Project
		err := withRetry(ctx, s.log, "projects.list", func() error {
			var err error
			projects, err = s.store.ListProjects(ctx, owner)
			return err
		})
		if err != nil {
			return nil, err
		}
		return sonic.Marshal(projects)
	})
	if err != nil {
		return nil, err
	}
	var projects []domain.Project
	if err := sonic.Unmarshal(payload, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Get returns one project by id, storage.ErrNotFound when absent.
func (s *Projects) Get(ctx context.Context, owner, id string) (domain.Project, error) {
	payload, err := s.cache.Fetch(ctx, projectDetailKey(owner, id), defaultDetailTTL, func(ctx context.Context) ([]byte, error) {
		var project domain.Project
		err := withRetry(ctx, s.log, "projects.get", func() error {
			var err error
			project, err = s.store.GetProject(ctx, owner, id)
			return err
		})
		if err != nil {
			return nil, err
		}
		return sonic.Marshal(project)
	})
	if err != nil {
		return domain.Project{}, err
	}
	var project domain.Project
	if err := sonic.Unmarshal(payload, &project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

func validateNewProject(p domain.Project) error {
	if p.Name == "" {
		return ValidationError("name is required")
	}
	if p.DueDate.IsZero() {
		return ValidationError("due date is required")
	}
	if p.Status != "" && !p.Status.Valid() {
		return ValidationError("unknown project status")
	}
	return nil
}

// Create validates and persists a new project.
func (s *Projects) Create(ctx context.Context, owner string, p domain.Project) (domain.Project, error) {
	if err := validateNewProject(p); err != nil {
		return domain.Project{}, err
	}
	now := s.now().UTC()
	p.ID = uuid.NewString()
	p.UserID = owner
	if p.Status == "" {
		p.Status = domain.ProjectActive
	}
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := withRetry(ctx, s.log, "projects.create", func() error {
		return s.store.InsertProject(ctx, p)
	}); err != nil {
		return domain.Project{}, err
	}
	persisted, err := s.reread(ctx, owner, p.ID)
	if err != nil {
		return domain.Project{}, err
	}
	s.invalidate(owner, persisted.ID)
	return persisted, nil
}

// Update merges a partial change into the project.
func (s *Projects) Update(ctx context.Context, owner, id string, upd domain.ProjectUpdate) (domain.Project, error) {
	if upd.Name != nil && *upd.Name == "" {
		return domain.Project{}, ValidationError("name cannot be empty")
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return domain.Project{}, ValidationError("unknown project status")
	}
	if err := withRetry(ctx, s.log, "projects.update", func() error {
		return s.store.UpdateProject(ctx, owner, id, upd, s.now().UTC())
	}); err != nil {
		return domain.Project{}, err
	}
	persisted, err := s.reread(ctx, owner, id)
	if err != nil {
		return domain.Project{}, err
	}
	s.invalidate(owner, id)
	return persisted, nil
}

// Delete removes the project and returns its pre-delete snapshot. Tasks
// referencing it are left untouched; the reference is weak and nothing
// cascades.
func (s *Projects) Delete(ctx context.Context, owner, id string) (domain.Project, error) {
	snapshot, err := s.reread(ctx, owner, id)
	if err != nil {
		return domain.Project{}, err
	}
	if err := withRetry(ctx, s.log, "projects.delete", func() error {
		return s.store.DeleteProject(ctx, owner, id)
	}); err != nil {
		return domain.Project{}, err
	}
	s.invalidate(owner, id)
	return snapshot, nil
}

func (s *Projects) reread(ctx context.Context, owner, id string) (domain.Project, error) {
	var project domain.Project
	err := withRetry(ctx, s.log, "projects.reread", func() error {
		var err error
		project, err = s.store.GetProject(ctx, owner, id)
		return err
	})
	return project, err
}

func (s *Projects) invalidate(owner, id string) {
	s.cache.Invalidate(projectDetailKey(owner, id))
	s.cache.Invalidate(cache.NewPrefix("projects", owner))
	s.cache.Invalidate(cache.NewPrefix("dashboard", owner))
}
