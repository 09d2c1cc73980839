package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/types"
)

type ProjectRepo interface {
	Create(dbc dbctx.Context, projects []*types.Project) ([]*types.Project, error)
	GetOwned(dbc dbctx.Context, projectID, userID uuid.UUID) (*types.Project, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Project, error)
	NameExists(dbc dbctx.Context, userID uuid.UUID, name string) (bool, error)
	UpdateFields(dbc dbctx.Context, projectID, userID uuid.UUID, updates map[string]interface{}) error
	SoftDelete(dbc dbctx.Context, projectID, userID uuid.UUID) error
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	repoLog := baseLog.With("repo", "ProjectRepo")
	return &projectRepo{db: db, log: repoLog}
}

func (pr *projectRepo) Create(dbc dbctx.Context, projects []*types.Project) ([]*types.Project, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = pr.db
	}

	if len(projects) == 0 {
		return []*types.Project{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (pr *projectRepo) GetOwned(dbc dbctx.Context, projectID, userID uuid.UUID) (*types.Project, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = pr.db
	}

	var project types.Project
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", projectID, userID).
		First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (pr *projectRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Project, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = pr.db
	}

	var results []*types.Project
	if err := transaction.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (pr *projectRepo) NameExists(dbc dbctx.Context, userID uuid.UUID, name string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = pr.db
	}

	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Project{}).
		Where("user_id = ? AND name = ?", userID, name).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (pr *projectRepo) UpdateFields(dbc dbctx.Context, projectID, userID uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = pr.db
	}

	if projectID == uuid.Nil || len(updates) == 0 {
		return nil
	}

	return transaction.WithContext(dbc.Ctx).
		Model(&types.Project{}).
		Where("id = ? AND user_id = ?", projectID, userID).
		Updates(updates).Error
}

func (pr *projectRepo) SoftDelete(dbc dbctx.Context, projectID, userID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = pr.db
	}

	return transaction.WithContext(dbc.Ctx).
		Where("id = ? AND user_id = ?", projectID, userID).
		Delete(&types.Project{}).Error
}
