package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/types"
)

type ArtifactRepo interface {
	Create(dbc dbctx.Context, artifacts []*types.Artifact) ([]*types.Artifact, error)
	GetOwned(dbc dbctx.Context, artifactID, projectID, userID uuid.UUID) (*types.Artifact, error)
	ListByProject(dbc dbctx.Context, projectID, userID uuid.UUID) ([]*types.Artifact, error)
	ListActiveByProject(dbc dbctx.Context, projectID, userID uuid.UUID) ([]*types.Artifact, error)
	UpdateFields(dbc dbctx.Context, artifactID, projectID, userID uuid.UUID, updates map[string]interface{}) error
}

type artifactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactRepo {
	repoLog := baseLog.With("repo", "ArtifactRepo")
	return &artifactRepo{db: db, log: repoLog}
}

func (ar *artifactRepo) Create(dbc dbctx.Context, artifacts []*types.Artifact) ([]*types.Artifact, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	if len(artifacts) == 0 {
		return []*types.Artifact{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&artifacts).Error; err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (ar *artifactRepo) GetOwned(dbc dbctx.Context, artifactID, projectID, userID uuid.UUID) (*types.Artifact, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	var artifact types.Artifact
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND project_id = ? AND user_id = ?", artifactID, projectID, userID).
		First(&artifact).Error; err != nil {
		return nil, err
	}
	return &artifact, nil
}

func (ar *artifactRepo) ListByProject(dbc dbctx.Context, projectID, userID uuid.UUID) ([]*types.Artifact, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	var results []*types.Artifact
	if err := transaction.WithContext(dbc.Ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Order("updated_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ar *artifactRepo) ListActiveByProject(dbc dbctx.Context, projectID, userID uuid.UUID) ([]*types.Artifact, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	var results []*types.Artifact
	if err := transaction.WithContext(dbc.Ctx).
		Where("project_id = ? AND user_id = ? AND status = ?", projectID, userID, types.ArtifactStatusActive).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ar *artifactRepo) UpdateFields(dbc dbctx.Context, artifactID, projectID, userID uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	if artifactID == uuid.Nil || len(updates) == 0 {
		return nil
	}

	return transaction.WithContext(dbc.Ctx).
		Model(&types.Artifact{}).
		Where("id = ? AND project_id = ? AND user_id = ?", artifactID, projectID, userID).
		Updates(updates).Error
}
