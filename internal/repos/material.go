package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/types"
)

type MaterialRepo interface {
	Create(dbc dbctx.Context, materials []*types.Material) ([]*types.Material, error)
	GetOwned(dbc dbctx.Context, materialID, projectID, userID uuid.UUID) (*types.Material, error)
	GetByIDs(dbc dbctx.Context, materialIDs []uuid.UUID) ([]*types.Material, error)
	ListByProject(dbc dbctx.Context, projectID, userID uuid.UUID) ([]*types.Material, error)
	ListReadyByProject(dbc dbctx.Context, projectID, userID uuid.UUID) ([]*types.Material, error)
	ClaimNextPending(dbc dbctx.Context, staleProcessing time.Duration) (*types.Material, error)
	UpdateFields(dbc dbctx.Context, materialID uuid.UUID, updates map[string]interface{}) error
	SoftDelete(dbc dbctx.Context, materialID, projectID, userID uuid.UUID) error
}

type materialRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMaterialRepo(db *gorm.DB, baseLog *logger.Logger) MaterialRepo {
	repoLog := baseLog.With("repo", "MaterialRepo")
	return &materialRepo{db: db, log: repoLog}
}

func (mr *materialRepo) Create(dbc dbctx.Context, materials []*types.Material) ([]*types.Material, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = mr.db
	}

	if len(materials) == 0 {
		return []*types.Material{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&materials).Error; err != nil {
		return nil, err
	}
	return materials, nil
}

func (mr *materialRepo) GetOwned(dbc dbctx.Context, materialID, projectID, userID uuid.UUID) (*types.Material, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = mr.db
	}

	var material types.Material
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND project_id = ? AND user_id = ?", materialID, projectID, userID).
		First(&material).Error; err != nil {
		return nil, err
	}
	return &material, nil
}

func (mr *materialRepo) GetByIDs(dbc dbctx.Context, materialIDs []uuid.UUID) ([]*types.Material, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = mr.db
	}

	var results []*types.Material
	if len(materialIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", materialIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (mr *materialRepo) ListByProject(dbc dbctx.Context, projectID, userID uuid.UUID) ([]*types.Material, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = mr.db
	}

	var results []*types.Material
	if err := transaction.WithContext(dbc.Ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (mr *materialRepo) ListReadyByProject(dbc dbctx.Context, projectID, userID uuid.UUID) ([]*types.Material, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = mr.db
	}

	var results []*types.Material
	if err := transaction.WithContext(dbc.Ctx).
		Where("project_id = ? AND user_id = ? AND status = ?", projectID, userID, types.MaterialStatusReady).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ClaimNextPending atomically takes the oldest pending material (or one stuck
// in processing past staleProcessing) and marks it processing.
func (mr *materialRepo) ClaimNextPending(dbc dbctx.Context, staleProcessing time.Duration) (*types.Material, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = mr.db
	}

	now := time.Now()
	staleCutoff := now.Add(-staleProcessing)

	var claimed *types.Material

	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var material types.Material

		q := txx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? OR (status = ? AND updated_at < ?)",
				types.MaterialStatusPending, types.MaterialStatusProcessing, staleCutoff).
			Order("created_at ASC")

		qErr := q.First(&material).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}

		uErr := txx.Model(&types.Material{}).
			Where("id = ?", material.ID).
			Updates(map[string]interface{}{
				"status":     types.MaterialStatusProcessing,
				"updated_at": now,
			}).Error
		if uErr != nil {
			return uErr
		}

		claimed = &material
		return nil
	})

	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (mr *materialRepo) UpdateFields(dbc dbctx.Context, materialID uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = mr.db
	}

	if materialID == uuid.Nil || len(updates) == 0 {
		return nil
	}

	return transaction.WithContext(dbc.Ctx).
		Model(&types.Material{}).
		Where("id = ?", materialID).
		Updates(updates).Error
}

func (mr *materialRepo) SoftDelete(dbc dbctx.Context, materialID, projectID, userID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = mr.db
	}

	return transaction.WithContext(dbc.Ctx).
		Where("id = ? AND project_id = ? AND user_id = ?", materialID, projectID, userID).
		Delete(&types.Material{}).Error
}
