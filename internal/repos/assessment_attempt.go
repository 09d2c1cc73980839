package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/types"
)

type AssessmentAttemptRepo interface {
	Create(dbc dbctx.Context, attempts []*types.AssessmentAttempt) ([]*types.AssessmentAttempt, error)
	GetOwned(dbc dbctx.Context, attemptID, assessmentID, userID uuid.UUID) (*types.AssessmentAttempt, error)
	ListByAssessment(dbc dbctx.Context, assessmentID, userID uuid.UUID) ([]*types.AssessmentAttempt, error)
	UpdateFields(dbc dbctx.Context, attemptID uuid.UUID, updates map[string]interface{}) error
}

type assessmentAttemptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssessmentAttemptRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentAttemptRepo {
	repoLog := baseLog.With("repo", "AssessmentAttemptRepo")
	return &assessmentAttemptRepo{db: db, log: repoLog}
}

func (ar *assessmentAttemptRepo) Create(dbc dbctx.Context, attempts []*types.AssessmentAttempt) ([]*types.AssessmentAttempt, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	if len(attempts) == 0 {
		return []*types.AssessmentAttempt{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (ar *assessmentAttemptRepo) GetOwned(dbc dbctx.Context, attemptID, assessmentID, userID uuid.UUID) (*types.AssessmentAttempt, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	var attempt types.AssessmentAttempt
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND assessment_id = ? AND user_id = ?", attemptID, assessmentID, userID).
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (ar *assessmentAttemptRepo) ListByAssessment(dbc dbctx.Context, assessmentID, userID uuid.UUID) ([]*types.AssessmentAttempt, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	var results []*types.AssessmentAttempt
	if err := transaction.WithContext(dbc.Ctx).
		Where("assessment_id = ? AND user_id = ?", assessmentID, userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ar *assessmentAttemptRepo) UpdateFields(dbc dbctx.Context, attemptID uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = ar.db
	}

	if attemptID == uuid.Nil || len(updates) == 0 {
		return nil
	}

	return transaction.WithContext(dbc.Ctx).
		Model(&types.AssessmentAttempt{}).
		Where("id = ?", attemptID).
		Updates(updates).Error
}
