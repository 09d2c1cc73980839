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

// MemoryUpdate carries the optional fields of a memory update; nil means
// leave the column alone.
type MemoryUpdate struct {
	Content    *string
	Category   *string
	Importance *int
}

type MemoryService interface {
	ListActive(ctx context.Context, projectID, userID uuid.UUID) ([]*types.Memory, error)
	Create(ctx context.Context, projectID, userID uuid.UUID, content, category string, importance int) (*types.Memory, error)
	Update(ctx context.Context, projectID, userID, memoryID uuid.UUID, fields MemoryUpdate) (*types.Memory, error)
	Deactivate(ctx context.Context, projectID, userID, memoryID uuid.UUID) error
}

type memoryService struct {
	db         *gorm.DB
	log        *logger.Logger
	memoryRepo repos.MemoryRepo
}

func NewMemoryService(db *gorm.DB, baseLog *logger.Logger, memoryRepo repos.MemoryRepo) MemoryService {
	serviceLog := baseLog.With("service", "MemoryService")
	return &memoryService{db: db, log: serviceLog, memoryRepo: memoryRepo}
}

func (ms *memoryService) ListActive(ctx context.Context, projectID, userID uuid.UUID) ([]*types.Memory, error) {
	return ms.memoryRepo.ListActiveByProject(dbctx.Context{Ctx: ctx}, projectID, userID)
}

// Create stores a new memory. An importance of 0 means "not given" and takes
// the default; anything else is clamped into the valid range. Unknown
// categories land in "other" rather than failing the turn.
func (ms *memoryService) Create(ctx context.Context, projectID, userID uuid.UUID, content, category string, importance int) (*types.Memory, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("memory content is required")
	}

	memory := &types.Memory{
		ID:         uuid.New(),
		ProjectID:  projectID,
		UserID:     userID,
		Content:    content,
		Category:   normalizeMemoryCategory(category),
		Importance: clampMemoryImportance(importance),
		IsActive:   true,
	}

	created, err := ms.memoryRepo.Create(dbctx.Context{Ctx: ctx}, []*types.Memory{memory})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory: %w", err)
	}
	return created[0], nil
}

func (ms *memoryService) Update(ctx context.Context, projectID, userID, memoryID uuid.UUID, fields MemoryUpdate) (*types.Memory, error) {
	dbc := dbctx.Context{Ctx: ctx}

	updates := map[string]interface{}{}
	if fields.Content != nil {
		content := strings.TrimSpace(*fields.Content)
		if content == "" {
			return nil, fmt.Errorf("memory content cannot be empty")
		}
		updates["content"] = content
	}
	if fields.Category != nil {
		updates["category"] = normalizeMemoryCategory(*fields.Category)
	}
	if fields.Importance != nil {
		updates["importance"] = clampMemoryImportance(*fields.Importance)
	}
	if len(updates) == 0 {
		return ms.memoryRepo.GetOwned(dbc, memoryID, projectID, userID)
	}

	if _, err := ms.memoryRepo.GetOwned(dbc, memoryID, projectID, userID); err != nil {
		return nil, err
	}
	if err := ms.memoryRepo.UpdateFields(dbc, memoryID, projectID, userID, updates); err != nil {
		return nil, fmt.Errorf("failed to update memory: %w", err)
	}
	return ms.memoryRepo.GetOwned(dbc, memoryID, projectID, userID)
}

// Deactivate is the delete path; the row stays so older turns keep context.
func (ms *memoryService) Deactivate(ctx context.Context, projectID, userID, memoryID uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}

	if _, err := ms.memoryRepo.GetOwned(dbc, memoryID, projectID, userID); err != nil {
		return err
	}
	return ms.memoryRepo.UpdateFields(dbc, memoryID, projectID, userID, map[string]interface{}{
		"is_active": false,
	})
}

func normalizeMemoryCategory(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if !types.ValidMemoryCategory(category) {
		return types.MemoryCategoryOther
	}
	return category
}

func clampMemoryImportance(importance int) int {
	if importance == 0 {
		return types.MemoryImportanceDefault
	}
	if importance < types.MemoryImportanceMin {
		return types.MemoryImportanceMin
	}
	if importance > types.MemoryImportanceMax {
		return types.MemoryImportanceMax
	}
	return importance
}
