package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/repos"
	"github.com/yungbote/studypilot-backend/internal/types"
)

type ProjectUpdate struct {
	Name        *string
	Description *string
}

type ProjectService interface {
	Create(ctx context.Context, userID uuid.UUID, name, description string) (*types.Project, error)
	List(ctx context.Context, userID uuid.UUID) ([]*types.Project, error)
	GetOwned(ctx context.Context, projectID, userID uuid.UUID) (*types.Project, error)
	Update(ctx context.Context, projectID, userID uuid.UUID, update ProjectUpdate) (*types.Project, error)
	Delete(ctx context.Context, projectID, userID uuid.UUID) error
}

type projectService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.ProjectRepo
}

func NewProjectService(db *gorm.DB, baseLog *logger.Logger, repo repos.ProjectRepo) ProjectService {
	return &projectService{
		db:   db,
		log:  baseLog.With("service", "ProjectService"),
		repo: repo,
	}
}

func (ps *projectService) Create(ctx context.Context, userID uuid.UUID, name, description string) (*types.Project, error) {
	dbc := dbctx.Context{Ctx: ctx}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("project name is required")
	}

	exists, err := ps.repo.NameExists(dbc, userID, name)
	if err != nil {
		return nil, fmt.Errorf("check project name: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("a project named %q already exists", name)
	}

	project := &types.Project{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(description),
	}
	created, err := ps.repo.Create(dbc, []*types.Project{project})
	if err != nil {
		// NameExists raced; the unique index has the final word.
		if repos.IsDuplicate(err) {
			return nil, fmt.Errorf("a project named %q already exists", name)
		}
		return nil, fmt.Errorf("create project: %w", err)
	}
	return created[0], nil
}

func (ps *projectService) List(ctx context.Context, userID uuid.UUID) ([]*types.Project, error) {
	return ps.repo.ListByUser(dbctx.Context{Ctx: ctx}, userID)
}

func (ps *projectService) GetOwned(ctx context.Context, projectID, userID uuid.UUID) (*types.Project, error) {
	return ps.repo.GetOwned(dbctx.Context{Ctx: ctx}, projectID, userID)
}

func (ps *projectService) Update(ctx context.Context, projectID, userID uuid.UUID, update ProjectUpdate) (*types.Project, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := ps.repo.GetOwned(dbc, projectID, userID); err != nil {
		return nil, fmt.Errorf("project not found: %w", err)
	}

	updates := map[string]interface{}{}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, fmt.Errorf("project name is required")
		}
		updates["name"] = name
	}
	if update.Description != nil {
		updates["description"] = strings.TrimSpace(*update.Description)
	}

	if len(updates) > 0 {
		if err := ps.repo.UpdateFields(dbc, projectID, userID, updates); err != nil {
			if repos.IsDuplicate(err) {
				return nil, fmt.Errorf("a project named %q already exists", updates["name"])
			}
			return nil, fmt.Errorf("update project: %w", err)
		}
	}
	return ps.repo.GetOwned(dbc, projectID, userID)
}

func (ps *projectService) Delete(ctx context.Context, projectID, userID uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := ps.repo.GetOwned(dbc, projectID, userID); err != nil {
		return fmt.Errorf("project not found: %w", err)
	}
	return ps.repo.SoftDelete(dbc, projectID, userID)
}
