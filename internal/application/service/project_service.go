package service

import (
	"context"

	"github.com/garyjia/billing-console/internal/application/port"
	"github.com/garyjia/billing-console/internal/cache"
	"github.com/garyjia/billing-console/internal/domain/entity"
	"github.com/garyjia/billing-console/internal/domain/form"
	"github.com/garyjia/billing-console/internal/domain/query"
	"github.com/garyjia/billing-console/internal/executor"
	"github.com/garyjia/billing-console/internal/invalidation"
)

// ProjectService manages projects
type ProjectService interface {
	List(ctx context.Context, search string, clientID int64) (View[[]entity.Project], error)
	Create(ctx context.Context, f form.ProjectForm) (Change[entity.Project], error)
	Update(ctx context.Context, id int64, f form.ProjectForm) (Change[entity.Project], error)
	SetStatus(ctx context.Context, id int64, status entity.ProjectStatus) (Change[entity.Project], error)
	Delete(ctx context.Context, id int64) (Change[struct{}], error)
}

type projectServiceImpl struct {
	remote   port.ProjectAPI
	cache    *cache.Cache
	reader   *reader
	executor *executor.Executor
	logger   Logger
}

// NewProjectService creates a new ProjectService
func NewProjectService(
	remote port.ProjectAPI,
	c *cache.Cache,
	ex *executor.Executor,
	logger Logger,
) ProjectService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &projectServiceImpl{
		remote:   remote,
		cache:    c,
		reader:   newReader(c),
		executor: ex,
		logger:   logger,
	}
}

var projectLists = []query.Pattern{
	{Kind: query.KindProjects},
	{Kind: query.KindClientProjects},
}

// List returns the projects matching search, optionally of one client
func (s *projectServiceImpl) List(ctx context.Context, search string, clientID int64) (View[[]entity.Project], error) {
	return load(ctx, s.reader, query.Projects(search, clientID), func(ctx context.Context) ([]entity.Project, error) {
		return s.remote.ListProjects(ctx, search, clientID)
	})
}

// Create creates a project
func (s *projectServiceImpl) Create(ctx context.Context, f form.ProjectForm) (Change[entity.Project], error) {
	change, err := settle[entity.Project](s.executor.Execute(ctx, executor.Mutation{
		Kind:     invalidation.CreateProject,
		ClientID: f.ClientID,
		Validate: f.Validate,
		Call: func(ctx context.Context) (any, error) {
			return s.remote.CreateProject(ctx, f)
		},
		Input: f,
	}))
	if err != nil {
		s.logger.Error("Failed to create project", "error", err, "client_id", f.ClientID)
		return change, err
	}
	s.logger.Info("Project created", "id", change.Value.ID, "client_id", f.ClientID)
	return change, nil
}

// Update fully updates a project. Moving a project to another client
// invalidates both clients.
func (s *projectServiceImpl) Update(ctx context.Context, id int64, f form.ProjectForm) (Change[entity.Project], error) {
	previous, found := s.find(id)
	// evaluated on apply, after Validate has normalized f
	replace := cache.ReplaceWhere(byProjectID(id), func(entity.Project) entity.Project {
		return f.Project(id)
	})
	patches := patchAll(s.cache, replace, projectLists...)

	clientID := f.ClientID
	if found && previous.ClientID != f.ClientID {
		// the old owner loses the project
		patches = append(patches, cache.Patch{
			ID: query.ClientProjects(previous.ClientID),
			Fn: cache.RemoveWhere(byProjectID(id)),
		})
		clientID = 0
	}

	change, err := settle[entity.Project](s.executor.Execute(ctx, executor.Mutation{
		Kind:       invalidation.UpdateProject,
		ClientID:   clientID,
		Validate:   f.Validate,
		Optimistic: patches,
		Call: func(ctx context.Context) (any, error) {
			return s.remote.UpdateProject(ctx, id, f)
		},
		Input: f,
	}))
	if err != nil {
		s.logger.Error("Failed to update project", "error", err, "id", id)
		return change, err
	}
	return change, nil
}

// SetStatus changes the status of a project in place
func (s *projectServiceImpl) SetStatus(ctx context.Context, id int64, status entity.ProjectStatus) (Change[entity.Project], error) {
	f := form.StatusForm{Status: status}
	previous, _ := s.find(id)

	flip := cache.ReplaceWhere(byProjectID(id), func(p entity.Project) entity.Project {
		return p.WithStatus(status)
	})

	change, err := settle[entity.Project](s.executor.Execute(ctx, executor.Mutation{
		Kind:       invalidation.SetProjectStatus,
		ClientID:   previous.ClientID,
		Validate:   f.Validate,
		Optimistic: patchAll(s.cache, flip, projectLists...),
		Call: func(ctx context.Context) (any, error) {
			return s.remote.SetProjectStatus(ctx, id, status)
		},
		Input: f,
	}))
	if err != nil {
		s.logger.Error("Failed to change project status", "error", err, "id", id, "status", status)
		return change, err
	}
	return change, nil
}

// Delete removes a project from every cached list right away
func (s *projectServiceImpl) Delete(ctx context.Context, id int64) (Change[struct{}], error) {
	previous, _ := s.find(id)

	change, err := settle[struct{}](s.executor.Execute(ctx, executor.Mutation{
		Kind:       invalidation.DeleteProject,
		ClientID:   previous.ClientID,
		Optimistic: patchAll(s.cache, cache.RemoveWhere(byProjectID(id)), projectLists...),
		Call: func(ctx context.Context) (any, error) {
			return struct{}{}, s.remote.DeleteProject(ctx, id)
		},
	}))
	if err != nil {
		s.logger.Error("Failed to delete project", "error", err, "id", id)
		return change, err
	}
	s.logger.Info("Project deleted", "id", id, "mutation_id", change.MutationID)
	return change, nil
}

// find looks a project up in the cached project lists. An unknown project
// yields a zero ClientID, which invalidates the queries of every client.
func (s *projectServiceImpl) find(id int64) (entity.Project, bool) {
	for _, qid := range s.cache.Matching(projectLists...) {
		projects, ok := cached[[]entity.Project](s.cache, qid)
		if !ok {
			continue
		}
		for _, p := range projects {
			if p.ID == id {
				return p, true
			}
		}
	}
	return entity.Project{}, false
}

func byProjectID(id int64) func(entity.Project) bool {
	return func(p entity.Project) bool { return p.ID == id }
}
