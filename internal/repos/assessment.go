package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/types"
)

type AssessmentRepo interface {
	Create(dbc dbctx.Context, assessments []*types.Assessment) ([]*types.Assessment, error)
	GetOwned(dbc dbctx.Context, assessmentID, projectID, userID uuid.UUID) (*types.Assessment, error)
	ListByProject(dbc dbctx.Context, projectID, userID uuid.UUID) ([]*types.Assessment, error)
	UpdateFields(dbc dbctx.Context, assessmentID uuid.UUID, updates map[string]interface{}) error
	SoftDelete(dbc dbctx.Context, assessmentID, projectID, userID uuid.UUID) error
}

type assessmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentRepo {
	repoLog := baseLog.With("repo", "AssessmentRepo")
	return &assessmentRepo{db: db, log: repoLog}
}

func (ar *assessmentRepo) Create(dbc dbctx.Context, assessments []*types.Assessment) ([]*types.Assessment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	if len(assessments) == 0 {
		return []*types.Assessment{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&assessments).Error; err != nil {
		return nil, err
	}
	return assessments, nil
}

func (ar *assessmentRepo) GetOwned(dbc dbctx.Context, assessmentID, projectID, userID uuid.UUID) (*types.Assessment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	var assessment types.Assessment
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND project_id = ? AND user_id = ?", assessmentID, projectID, userID).
		First(&assessment).Error; err != nil {
		return nil, err
	}
	return &assessment, nil
}

func (ar *assessmentRepo) ListByProject(dbc dbctx.Context, projectID, userID uuid.UUID) ([]*types.Assessment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	var results []*types.Assessment
	if err := transaction.WithContext(dbc.Ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ar *assessmentRepo) UpdateFields(dbc dbctx.Context, assessmentID uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	if assessmentID == uuid.Nil || len(updates) == 0 {
		return nil
	}

	return transaction.WithContext(dbc.Ctx).
		Model(&types.Assessment{}).
		Where("id = ?", assessmentID).
		Updates(updates).Error
}

func (ar *assessmentRepo) SoftDelete(dbc dbctx.Context, assessmentID, projectID, userID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	return transaction.WithContext(dbc.Ctx).
		Where("id = ? AND project_id = ? AND user_id = ?", assessmentID, projectID, userID).
		Delete(&types.Assessment{}).Error
}
