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

const (
	defaultMessagePageSize = 50
	maxMessagePageSize     = 100
)

// MessagePage is one page of chat history in chronological order. NextCursor
// is the id to pass as "before" for the next (older) page.
type MessagePage struct {
	Messages   []*types.Message `json:"messages"`
	HasMore    bool             `json:"has_more"`
	NextCursor *uuid.UUID       `json:"next_cursor,omitempty"`
}

type ChatService interface {
	ListByProject(ctx context.Context, projectID, userID uuid.UUID) ([]*types.Chat, error)
	GetOwned(ctx context.Context, chatID, projectID, userID uuid.UUID) (*types.Chat, error)
	Rename(ctx context.Context, chatID, projectID, userID uuid.UUID, title string) (*types.Chat, error)
	Delete(ctx context.Context, chatID, projectID, userID uuid.UUID) error
	ListMessages(ctx context.Context, chatID, projectID, userID uuid.UUID, before *uuid.UUID, limit int) (*MessagePage, error)
}

type chatService struct {
	db          *gorm.DB
	log         *logger.Logger
	chatRepo    repos.ChatRepo
	messageRepo repos.MessageRepo
}

func NewChatService(db *gorm.DB, baseLog *logger.Logger, chatRepo repos.ChatRepo, messageRepo repos.MessageRepo) ChatService {
	serviceLog := baseLog.With("service", "ChatService")
	return &chatService{db: db, log: serviceLog, chatRepo: chatRepo, messageRepo: messageRepo}
}

func (cs *chatService) ListByProject(ctx context.Context, projectID, userID uuid.UUID) ([]*types.Chat, error) {
	return cs.chatRepo.ListByProject(dbctx.Context{Ctx: ctx}, projectID, userID)
}

func (cs *chatService) GetOwned(ctx context.Context, chatID, projectID, userID uuid.UUID) (*types.Chat, error) {
	return cs.chatRepo.GetOwned(dbctx.Context{Ctx: ctx}, chatID, projectID, userID)
}

func (cs *chatService) Rename(ctx context.Context, chatID, projectID, userID uuid.UUID, title string) (*types.Chat, error) {
	dbc := dbctx.Context{Ctx: ctx}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("chat title is required")
	}

	if _, err := cs.chatRepo.GetOwned(dbc, chatID, projectID, userID); err != nil {
		return nil, err
	}
	if err := cs.chatRepo.UpdateFields(dbc, chatID, map[string]interface{}{"title": title}); err != nil {
		return nil, fmt.Errorf("failed to rename chat: %w", err)
	}
	return cs.chatRepo.GetOwned(dbc, chatID, projectID, userID)
}

// Delete soft-deletes the chat and its messages together.
func (cs *chatService) Delete(ctx context.Context, chatID, projectID, userID uuid.UUID) error {
	if _, err := cs.chatRepo.GetOwned(dbctx.Context{Ctx: ctx}, chatID, projectID, userID); err != nil {
		return err
	}
	return cs.db.Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := cs.messageRepo.SoftDeleteByChatID(dbc, chatID, userID); err != nil {
			return err
		}
		return cs.chatRepo.SoftDelete(dbc, chatID, projectID, userID)
	})
}

// ListMessages pages backwards from the cursor but hands each page to the
// client oldest-first, which is how the transcript renders.
func (cs *chatService) ListMessages(ctx context.Context, chatID, projectID, userID uuid.UUID, before *uuid.UUID, limit int) (*MessagePage, error) {
	dbc := dbctx.Context{Ctx: ctx}

	if _, err := cs.chatRepo.GetOwned(dbc, chatID, projectID, userID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultMessagePageSize
	}
	if limit > maxMessagePageSize {
		limit = maxMessagePageSize
	}

	newestFirst, err := cs.messageRepo.ListBefore(dbc, chatID, userID, before, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(newestFirst) > limit
	if hasMore {
		newestFirst = newestFirst[:limit]
	}

	page := &MessagePage{
		Messages: reverseMessages(newestFirst),
		HasMore:  hasMore,
	}
	if hasMore && len(newestFirst) > 0 {
		oldest := newestFirst[len(newestFirst)-1].ID
		page.NextCursor = &oldest
	}
	return page, nil
}

func reverseMessages(newestFirst []*types.Message) []*types.Message {
	out := make([]*types.Message, len(newestFirst))
	for i, m := range newestFirst {
		out[len(newestFirst)-1-i] = m
	}
	return out
}
