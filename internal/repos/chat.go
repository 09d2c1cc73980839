package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/types"
)

type ChatRepo interface {
	Create(dbc dbctx.Context, chats []*types.Chat) ([]*types.Chat, error)
	GetOwned(dbc dbctx.Context, chatID, projectID, userID uuid.UUID) (*types.Chat, error)
	ListByProject(dbc dbctx.Context, projectID, userID uuid.UUID) ([]*types.Chat, error)
	UpdateFields(dbc dbctx.Context, chatID uuid.UUID, updates map[string]interface{}) error
	RecordExchange(dbc dbctx.Context, chatID uuid.UUID, messages int, at time.Time) error
	SoftDelete(dbc dbctx.Context, chatID, projectID, userID uuid.UUID) error
}

type chatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatRepo(db *gorm.DB, baseLog *logger.Logger) ChatRepo {
	repoLog := baseLog.With("repo", "ChatRepo")
	return &chatRepo{db: db, log: repoLog}
}

func (cr *chatRepo) Create(dbc dbctx.Context, chats []*types.Chat) ([]*types.Chat, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = cr.db
	}

	if len(chats) == 0 {
		return []*types.Chat{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&chats).Error; err != nil {
		return nil, err
	}
	return chats, nil
}

func (cr *chatRepo) GetOwned(dbc dbctx.Context, chatID, projectID, userID uuid.UUID) (*types.Chat, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = cr.db
	}

	var chat types.Chat
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND project_id = ? AND user_id = ?", chatID, projectID, userID).
		First(&chat).Error; err != nil {
		return nil, err
	}
	return &chat, nil
}

func (cr *chatRepo) ListByProject(dbc dbctx.Context, projectID, userID uuid.UUID) ([]*types.Chat, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = cr.db
	}

	var results []*types.Chat
	if err := transaction.WithContext(dbc.Ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Order("last_activity_at DESC NULLS LAST, created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *chatRepo) UpdateFields(dbc dbctx.Context, chatID uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = cr.db
	}

	if chatID == uuid.Nil || len(updates) == 0 {
		return nil
	}

	return transaction.WithContext(dbc.Ctx).
		Model(&types.Chat{}).
		Where("id = ?", chatID).
		Updates(updates).Error
}

// RecordExchange bumps message_count and last_activity_at in one statement so
// concurrent turns never lose counts.
func (cr *chatRepo) RecordExchange(dbc dbctx.Context, chatID uuid.UUID, messages int, at time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = cr.db
	}

	if chatID == uuid.Nil || messages == 0 {
		return nil
	}

	return transaction.WithContext(dbc.Ctx).
		Model(&types.Chat{}).
		Where("id = ?", chatID).
		Updates(map[string]interface{}{
			"message_count":    gorm.Expr("message_count + ?", messages),
			"last_activity_at": at,
			"updated_at":       at,
		}).Error
}

func (cr *chatRepo) SoftDelete(dbc dbctx.Context, chatID, projectID, userID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = cr.db
	}

	return transaction.WithContext(dbc.Ctx).
		Where("id = ? AND project_id = ? AND user_id = ?", chatID, projectID, userID).
		Delete(&types.Chat{}).Error
}
