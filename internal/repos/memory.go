package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/types"
)

type MemoryRepo interface {
	Create(dbc dbctx.Context, memories []*types.Memory) ([]*types.Memory, error)
	GetOwned(dbc dbctx.Context, memoryID, projectID, userID uuid.UUID) (*types.Memory, error)
	ListActiveByProject(dbc dbctx.Context, projectID, userID uuid.UUID) ([]*types.Memory, error)
	UpdateFields(dbc dbctx.Context, memoryID, projectID, userID uuid.UUID, updates map[string]interface{}) error
}

type memoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMemoryRepo(db *gorm.DB, baseLog *logger.Logger) MemoryRepo {
	repoLog := baseLog.With("repo", "MemoryRepo")
	return &memoryRepo{db: db, log: repoLog}
}

func (mr *memoryRepo) Create(dbc dbctx.Context, memories []*types.Memory) ([]*types.Memory, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = mr.db
	}

	if len(memories) == 0 {
		return []*types.Memory{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&memories).Error; err != nil {
		return nil, err
	}
	return memories, nil
}

func (mr *memoryRepo) GetOwned(dbc dbctx.Context, memoryID, projectID, userID uuid.UUID) (*types.Memory, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = mr.db
	}

	var memory types.Memory
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND project_id = ? AND user_id = ?", memoryID, projectID, userID).
		First(&memory).Error; err != nil {
		return nil, err
	}
	return &memory, nil
}

func (mr *memoryRepo) ListActiveByProject(dbc dbctx.Context, projectID, userID uuid.UUID) ([]*types.Memory, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = mr.db
	}

	var results []*types.Memory
	if err := transaction.WithContext(dbc.Ctx).
		Where("project_id = ? AND user_id = ? AND is_active = ?", projectID, userID, true).
		Order("importance DESC, created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateFields keeps the ownership filter in the statement itself so a memory
// can never be touched across project or user boundaries.
func (mr *memoryRepo) UpdateFields(dbc dbctx.Context, memoryID, projectID, userID uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = mr.db
	}

	if memoryID == uuid.Nil || len(updates) == 0 {
		return nil
	}

	return transaction.WithContext(dbc.Ctx).
		Model(&types.Memory{}).
		Where("id = ? AND project_id = ? AND user_id = ?", memoryID, projectID, userID).
		Updates(updates).Error
}
