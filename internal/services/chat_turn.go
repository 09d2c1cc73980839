package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/repos"
	"github.com/yungbote/studypilot-backend/internal/sse"
	"github.com/yungbote/studypilot-backend/internal/types"
)

const historyWindow = 50

// NewChatSentinel is the :chatId path value that asks the turn to open a
// fresh chat before responding.
const NewChatSentinel = "new"

// TurnUpload is one attachment on an incoming turn. Open must return a fresh
// reader on every call; the file is read once for durable storage and once
// for the generation provider.
type TurnUpload struct {
	FileName string
	MimeType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

type ChatTurnInput struct {
	ProjectID uuid.UUID
	UserID    uuid.UUID
	ChatID    string
	Content   string
	Uploads   []TurnUpload
}

// ChatTurnService runs one tutor exchange end to end over an open SSE stream:
// resolve the chat, store attachments, persist the user message, stream the
// model's reply, apply its tool calls and finalize the assistant message.
type ChatTurnService interface {
	Run(ctx context.Context, stream *sse.Stream, in ChatTurnInput)
}

type chatTurnService struct {
	db  *gorm.DB
	log *logger.Logger

	projectRepo  repos.ProjectRepo
	chatRepo     repos.ChatRepo
	messageRepo  repos.MessageRepo
	materialRepo repos.MaterialRepo
	memoryRepo   repos.MemoryRepo
	artifactRepo repos.ArtifactRepo

	bucket BucketService
	gemini GeminiClient
	tools  *ToolDispatcher
}

func NewChatTurnService(
	db *gorm.DB,
	baseLog *logger.Logger,
	projectRepo repos.ProjectRepo,
	chatRepo repos.ChatRepo,
	messageRepo repos.MessageRepo,
	materialRepo repos.MaterialRepo,
	memoryRepo repos.MemoryRepo,
	artifactRepo repos.ArtifactRepo,
	bucket BucketService,
	gemini GeminiClient,
	tools *ToolDispatcher,
) ChatTurnService {
	return &chatTurnService{
		db:           db,
		log:          baseLog.With("service", "ChatTurnService"),
		projectRepo:  projectRepo,
		chatRepo:     chatRepo,
		messageRepo:  messageRepo,
		materialRepo: materialRepo,
		memoryRepo:   memoryRepo,
		artifactRepo: artifactRepo,
		bucket:       bucket,
		gemini:       gemini,
		tools:        tools,
	}
}

// Run never panics the request out: every failure path emits an error frame
// and the caller closes the stream.
func (ts *chatTurnService) Run(ctx context.Context, stream *sse.Stream, in ChatTurnInput) {
	started := time.Now()
	dbc := dbctx.Context{Ctx: ctx}

	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" && len(in.Uploads) == 0 {
		stream.SendError("message content is required")
		return
	}

	project, err := ts.projectRepo.GetOwned(dbc, in.ProjectID, in.UserID)
	if err != nil {
		stream.SendError("project not found")
		return
	}

	chat, chatCreated, err := ts.resolveChat(dbc, in)
	if err != nil {
		ts.log.Warn("Failed to resolve chat", "chat_id", in.ChatID, "error", err)
		stream.SendError("chat not found")
		return
	}
	if chatCreated {
		stream.Send(sse.EventChatCreated, map[string]any{
			"chat_id": chat.ID.String(),
			"title":   chat.Title,
		})
	}

	attachments, providerFiles, err := ts.storeUploads(ctx, stream, chat, in)
	if err != nil {
		ts.log.Error("Failed to store attachments", "chat_id", chat.ID, "error", err)
		stream.SendError("failed to process attachments")
		return
	}

	userMessage, err := ts.persistUserMessage(dbc, chat, in, attachments)
	if err != nil {
		ts.log.Error("Failed to persist user message", "chat_id", chat.ID, "error", err)
		stream.SendError("failed to save message")
		return
	}
	stream.Send(sse.EventMessageSaved, map[string]any{
		"message_id": userMessage.ID.String(),
		"chat_id":    chat.ID.String(),
	})

	turnCtx, err := ts.fetchTurnContext(ctx, project, chat, userMessage.ID)
	if err != nil {
		ts.log.Error("Failed to assemble turn context", "chat_id", chat.ID, "error", err)
		stream.SendError("failed to load chat context")
		return
	}

	assistant, err := ts.persistAssistantPlaceholder(dbc, chat)
	if err != nil {
		ts.log.Error("Failed to create assistant message", "chat_id", chat.ID, "error", err)
		stream.SendError("failed to start response")
		return
	}
	stream.Send(sse.EventStart, map[string]any{
		"message_id": assistant.ID.String(),
		"chat_id":    chat.ID.String(),
	})

	result, err := ts.gemini.StreamChat(ctx, ChatRequest{
		System:      BuildTutorSystemPrompt(turnCtx.prompt),
		History:     turnCtx.history,
		UserText:    in.Content,
		Attachments: providerFiles,
		Tools:       TutorToolDefinitions(),
	}, StreamCallbacks{
		OnDelta: func(text string) {
			stream.Send(sse.EventContent, map[string]any{"delta": text})
		},
		OnThought: func(text string) {
			stream.Send(sse.EventThinking, map[string]any{"text": text})
		},
	})
	if err != nil {
		ts.log.Error("Generation failed", "chat_id", chat.ID, "error", err)
		ts.markAssistantFailed(dbc, chat, assistant.ID, err)
		stream.SendError("generation failed")
		return
	}

	effects := ts.tools.Apply(ctx, TurnScope{
		ProjectID: in.ProjectID,
		UserID:    in.UserID,
		ChatID:    chat.ID,
		MessageID: assistant.ID,
	}, result.ToolCalls, func(kind string, fields map[string]any) {
		stream.Send(kind, fields)
	})

	generationMS := time.Since(started).Milliseconds()
	if err := ts.finalizeExchange(dbc, chat, assistant.ID, result.Text, effects, generationMS); err != nil {
		ts.log.Error("Failed to finalize assistant message", "chat_id", chat.ID, "error", err)
		stream.SendError("failed to save response")
		return
	}

	if chat.Title == types.DefaultChatTitle && in.Content != "" {
		title := deriveChatTitle(in.Content)
		if err := ts.chatRepo.UpdateFields(dbc, chat.ID, map[string]interface{}{"title": title}); err != nil {
			ts.log.Warn("Failed to update chat title", "chat_id", chat.ID, "error", err)
		} else {
			stream.Send(sse.EventChatTitleUpdated, map[string]any{
				"chat_id": chat.ID.String(),
				"title":   title,
			})
		}
	}

	stream.Send(sse.EventMessageComplete, map[string]any{
		"message_id": assistant.ID.String(),
		"chat_id":    chat.ID.String(),
	})
	stream.Send(sse.EventComplete, map[string]any{
		"generation_time_ms": generationMS,
	})
}

func (ts *chatTurnService) resolveChat(dbc dbctx.Context, in ChatTurnInput) (*types.Chat, bool, error) {
	if in.ChatID == "" || in.ChatID == NewChatSentinel {
		chat := &types.Chat{
			ID:        uuid.New(),
			ProjectID: in.ProjectID,
			UserID:    in.UserID,
			Title:     types.DefaultChatTitle,
			Status:    types.ChatStatusActive,
		}
		created, err := ts.chatRepo.Create(dbc, []*types.Chat{chat})
		if err != nil {
			return nil, false, fmt.Errorf("failed to create chat: %w", err)
		}
		return created[0], true, nil
	}

	chatID, err := uuid.Parse(in.ChatID)
	if err != nil {
		return nil, false, fmt.Errorf("invalid chat id %q", in.ChatID)
	}
	chat, err := ts.chatRepo.GetOwned(dbc, chatID, in.ProjectID, in.UserID)
	if err != nil {
		return nil, false, err
	}
	return chat, false, nil
}

// storeUploads copies each attachment into the bucket for durability and to
// the generation provider for this turn's request.
func (ts *chatTurnService) storeUploads(ctx context.Context, stream *sse.Stream, chat *types.Chat, in ChatTurnInput) ([]map[string]any, []ChatAttachment, error) {
	if len(in.Uploads) == 0 {
		return nil, nil, nil
	}

	stream.Send(sse.EventUploadingFiles, map[string]any{"count": len(in.Uploads)})

	attachments := make([]map[string]any, 0, len(in.Uploads))
	providerFiles := make([]ChatAttachment, 0, len(in.Uploads))

	for _, upload := range in.Uploads {
		key := fmt.Sprintf("chat_upload/%s/%s%s", chat.ID, uuid.NewString(), filepath.Ext(upload.FileName))

		src, err := upload.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %s: %w", upload.FileName, err)
		}
		err = ts.bucket.UploadFile(ctx, key, src)
		src.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to store %s: %w", upload.FileName, err)
		}

		src, err = upload.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %s: %w", upload.FileName, err)
		}
		providerFile, err := ts.gemini.UploadFile(ctx, src, upload.MimeType, upload.FileName)
		src.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to upload %s to provider: %w", upload.FileName, err)
		}

		attachments = append(attachments, map[string]any{
			"name":              upload.FileName,
			"mime_type":         upload.MimeType,
			"size_bytes":        upload.Size,
			"storage_key":       key,
			"url":               ts.bucket.GetPublicURL(key),
			"provider_file_uri": providerFile.URI,
		})
		providerFiles = append(providerFiles, ChatAttachment{
			FileURI:  providerFile.URI,
			MimeType: providerFile.MimeType,
		})
	}

	stream.Send(sse.EventFilesUploaded, map[string]any{"files": attachments})
	return attachments, providerFiles, nil
}

func (ts *chatTurnService) persistUserMessage(dbc dbctx.Context, chat *types.Chat, in ChatTurnInput, attachments []map[string]any) (*types.Message, error) {
	message := &types.Message{
		ID:        uuid.New(),
		ChatID:    chat.ID,
		ProjectID: chat.ProjectID,
		UserID:    chat.UserID,
		Role:      types.MessageRoleUser,
		Content:   in.Content,
		Status:    types.MessageStatusComplete,
	}
	if len(attachments) > 0 {
		raw, err := json.Marshal(attachments)
		if err != nil {
			return nil, fmt.Errorf("failed to encode attachments: %w", err)
		}
		message.Attachments = datatypes.JSON(raw)
	}

	created, err := ts.messageRepo.Create(dbc, []*types.Message{message})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

func (ts *chatTurnService) persistAssistantPlaceholder(dbc dbctx.Context, chat *types.Chat) (*types.Message, error) {
	message := &types.Message{
		ID:        uuid.New(),
		ChatID:    chat.ID,
		ProjectID: chat.ProjectID,
		UserID:    chat.UserID,
		Role:      types.MessageRoleAssistant,
		Status:    types.MessageStatusStreaming,
	}
	created, err := ts.messageRepo.Create(dbc, []*types.Message{message})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

type turnContext struct {
	prompt  PromptContext
	history []ChatTurnMessage
}

// fetchTurnContext loads the four context sources in parallel. The history
// window excludes the message just saved; the model receives it separately
// as the live user turn.
func (ts *chatTurnService) fetchTurnContext(ctx context.Context, project *types.Project, chat *types.Chat, excludeMessageID uuid.UUID) (*turnContext, error) {
	var (
		recent    []*types.Message
		materials []*types.Material
		memories  []*types.Memory
		artifacts []*types.Artifact
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		recent, err = ts.messageRepo.ListRecent(dbctx.Context{Ctx: gctx}, chat.ID, chat.UserID, historyWindow+1)
		return err
	})
	g.Go(func() error {
		var err error
		materials, err = ts.materialRepo.ListReadyByProject(dbctx.Context{Ctx: gctx}, chat.ProjectID, chat.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		memories, err = ts.memoryRepo.ListActiveByProject(dbctx.Context{Ctx: gctx}, chat.ProjectID, chat.UserID)
		return err
	})
	g.Go(func() error {
		var err error
		artifacts, err = ts.artifactRepo.ListActiveByProject(dbctx.Context{Ctx: gctx}, chat.ProjectID, chat.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	history := make([]ChatTurnMessage, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		if m.ID == excludeMessageID || m.Status != types.MessageStatusComplete || m.Content == "" {
			continue
		}
		history = append(history, ChatTurnMessage{Role: m.Role, Content: m.Content})
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	return &turnContext{
		prompt: PromptContext{
			ProjectName: project.Name,
			Memories:    memories,
			Materials:   materials,
			Artifacts:   artifacts,
		},
		history: history,
	}, nil
}

// finalizeExchange writes the assistant message in one update and bumps the
// chat counters for both sides of the exchange.
func (ts *chatTurnService) finalizeExchange(dbc dbctx.Context, chat *types.Chat, assistantID uuid.UUID, text string, effects TurnEffects, generationMS int64) error {
	metadata, err := json.Marshal(map[string]any{"generation_time_ms": generationMS})
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"content":  text,
		"status":   types.MessageStatusComplete,
		"metadata": datatypes.JSON(metadata),
	}
	if len(effects.ProcessedToolCalls) > 0 {
		raw, err := json.Marshal(effects.ProcessedToolCalls)
		if err != nil {
			return err
		}
		updates["tool_calls"] = datatypes.JSON(raw)
	}
	if len(effects.ArtifactActions) > 0 {
		raw, err := json.Marshal(effects.ArtifactActions)
		if err != nil {
			return err
		}
		updates["artifact_actions"] = datatypes.JSON(raw)
	}
	if effects.InlineQuestion != nil {
		raw, err := json.Marshal(effects.InlineQuestion)
		if err != nil {
			return err
		}
		updates["inline_question"] = datatypes.JSON(raw)
	}

	return ts.db.Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		if err := ts.messageRepo.UpdateFields(txc, assistantID, updates); err != nil {
			return err
		}
		return ts.chatRepo.RecordExchange(txc, chat.ID, 2, time.Now())
	})
}

// markAssistantFailed leaves an error-status row behind so the transcript
// shows the failed turn; counters still move since both rows exist.
func (ts *chatTurnService) markAssistantFailed(dbc dbctx.Context, chat *types.Chat, assistantID uuid.UUID, cause error) {
	metadata, _ := json.Marshal(map[string]any{"error": cause.Error()})
	if err := ts.messageRepo.UpdateFields(dbc, assistantID, map[string]interface{}{
		"status":   types.MessageStatusError,
		"metadata": datatypes.JSON(metadata),
	}); err != nil {
		ts.log.Warn("Failed to mark assistant message failed", "message_id", assistantID, "error", err)
	}
	if err := ts.chatRepo.RecordExchange(dbc, chat.ID, 2, time.Now()); err != nil {
		ts.log.Warn("Failed to record exchange", "chat_id", chat.ID, "error", err)
	}
}

// deriveChatTitle collapses the first user message into a short title.
func deriveChatTitle(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	if title == "" {
		return types.DefaultChatTitle
	}
	runes := []rune(title)
	if len(runes) > 50 {
		return string(runes[:50]) + "…"
	}
	return title
}
