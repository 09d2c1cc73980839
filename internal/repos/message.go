package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/types"
)

type MessageRepo interface {
	Create(dbc dbctx.Context, messages []*types.Message) ([]*types.Message, error)
	GetOwned(dbc dbctx.Context, messageID, chatID, userID uuid.UUID) (*types.Message, error)
	ListRecent(dbc dbctx.Context, chatID, userID uuid.UUID, limit int) ([]*types.Message, error)
	ListBefore(dbc dbctx.Context, chatID, userID uuid.UUID, before *uuid.UUID, limit int) ([]*types.Message, error)
	UpdateFields(dbc dbctx.Context, messageID uuid.UUID, updates map[string]interface{}) error
	SoftDeleteByChatID(dbc dbctx.Context, chatID, userID uuid.UUID) error
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	repoLog := baseLog.With("repo", "MessageRepo")
	return &messageRepo{db: db, log: repoLog}
}

func (mr *messageRepo) Create(dbc dbctx.Context, messages []*types.Message) ([]*types.Message, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = mr.db
	}

	if len(messages) == 0 {
		return []*types.Message{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

func (mr *messageRepo) GetOwned(dbc dbctx.Context, messageID, chatID, userID uuid.UUID) (*types.Message, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = mr.db
	}

	var message types.Message
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ? AND chat_id = ? AND user_id = ?", messageID, chatID, userID).
		First(&message).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

// ListRecent returns the newest messages first; callers reverse for
// chronological order.
func (mr *messageRepo) ListRecent(dbc dbctx.Context, chatID, userID uuid.UUID, limit int) ([]*types.Message, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = mr.db
	}

	var results []*types.Message
	if err := transaction.WithContext(dbc.Ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ListBefore pages backwards from the cursor message, newest first. A nil
// cursor starts from the latest message.
func (mr *messageRepo) ListBefore(dbc dbctx.Context, chatID, userID uuid.UUID, before *uuid.UUID, limit int) ([]*types.Message, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = mr.db
	}

	q := transaction.WithContext(dbc.Ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID)

	if before != nil {
		var cursor types.Message
		if err := transaction.WithContext(dbc.Ctx).
			Select("created_at", "id").
			Where("id = ? AND chat_id = ? AND user_id = ?", *before, chatID, userID).
			First(&cursor).Error; err != nil {
			return nil, err
		}
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var results []*types.Message
	if err := q.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (mr *messageRepo) UpdateFields(dbc dbctx.Context, messageID uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = mr.db
	}

	if messageID == uuid.Nil || len(updates) == 0 {
		return nil
	}

	return transaction.WithContext(dbc.Ctx).
		Model(&types.Message{}).
		Where("id = ?", messageID).
		Updates(updates).Error
}

func (mr *messageRepo) SoftDeleteByChatID(dbc dbctx.Context, chatID, userID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = mr.db
	}

	return transaction.WithContext(dbc.Ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Delete(&types.Message{}).Error
}
