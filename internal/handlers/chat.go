package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/repos"
	"github.com/yungbote/studypilot-backend/internal/requestdata"
	"github.com/yungbote/studypilot-backend/internal/services"
	"github.com/yungbote/studypilot-backend/internal/sse"
)

type ChatHandler struct {
	log         *logger.Logger
	chatService services.ChatService
	chatTurn    services.ChatTurnService
	emitter     services.SSEEmitter
}

func NewChatHandler(log *logger.Logger, chatService services.ChatService, chatTurn services.ChatTurnService, emitter services.SSEEmitter) *ChatHandler {
	return &ChatHandler{
		log:         log.With("handler", "ChatHandler"),
		chatService: chatService,
		chatTurn:    chatTurn,
		emitter:     emitter,
	}
}

func (ch *ChatHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	chats, err := ch.chatService.ListByProject(c.Request.Context(), projectID, rd.UserID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, gin.H{"chats": chats})
}

func (ch *ChatHandler) Get(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	chatID, err := uuid.Parse(c.Param("chatId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_chat_id", err)
		return
	}
	chat, err := ch.chatService.GetOwned(c.Request.Context(), chatID, projectID, rd.UserID)
	if err != nil {
		if repos.IsNotFound(err) {
			RespondError(c, http.StatusNotFound, "chat_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}
	RespondOK(c, gin.H{"chat": chat})
}

func (ch *ChatHandler) Rename(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	chatID, err := uuid.Parse(c.Param("chatId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_chat_id", err)
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	chat, err := ch.chatService.Rename(c.Request.Context(), chatID, projectID, rd.UserID, req.Title)
	if err != nil {
		if repos.IsNotFound(err) {
			RespondError(c, http.StatusNotFound, "chat_not_found", err)
			return
		}
		RespondError(c, http.StatusBadRequest, "rename_failed", err)
		return
	}
	RespondOK(c, gin.H{"chat": chat})
}

func (ch *ChatHandler) Delete(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	chatID, err := uuid.Parse(c.Param("chatId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_chat_id", err)
		return
	}
	if err := ch.chatService.Delete(c.Request.Context(), chatID, projectID, rd.UserID); err != nil {
		if repos.IsNotFound(err) {
			RespondError(c, http.StatusNotFound, "chat_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "delete_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

func (ch *ChatHandler) ListMessages(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	chatID, err := uuid.Parse(c.Param("chatId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_chat_id", err)
		return
	}

	var before *uuid.UUID
	if raw := c.Query("before"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_cursor", err)
			return
		}
		before = &id
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	page, err := ch.chatService.ListMessages(c.Request.Context(), chatID, projectID, rd.UserID, before, limit)
	if err != nil {
		if repos.IsNotFound(err) {
			RespondError(c, http.StatusNotFound, "chat_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, page)
}

// PostMessage runs one tutor turn over an SSE response. The :chatId path
// value "new" opens a fresh chat. The body is either JSON {content} or
// multipart with a content field plus file parts.
func (ch *ChatHandler) PostMessage(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}

	content := ""
	var uploads []services.TurnUpload
	if c.ContentType() == "multipart/form-data" {
		form, err := c.MultipartForm()
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		content = c.PostForm("content")
		for _, fh := range form.File["files"] {
			mimeType := fh.Header.Get("Content-Type")
			if mimeType == "" {
				// Sniff; browsers sometimes omit the part's content type.
				sniffFile, err := fh.Open()
				if err != nil {
					RespondError(c, http.StatusBadRequest, "could_not_read_files", err)
					return
				}
				buf := make([]byte, 512)
				n, _ := sniffFile.Read(buf)
				sniffFile.Close()
				mimeType = http.DetectContentType(buf[:n])
			}
			uploads = append(uploads, services.TurnUpload{
				FileName: fh.Filename,
				MimeType: mimeType,
				Size:     fh.Size,
				Open: func() (io.ReadCloser, error) {
					return fh.Open()
				},
			})
		}
	} else {
		var req struct {
			Content string `json:"content"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		content = req.Content
	}

	stream, err := sse.NewStream(c.Writer, ch.log)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "streaming_unsupported", err)
		return
	}
	defer stream.Close()

	ch.chatTurn.Run(c.Request.Context(), stream, services.ChatTurnInput{
		ProjectID: projectID,
		UserID:    rd.UserID,
		ChatID:    c.Param("chatId"),
		Content:   content,
		Uploads:   uploads,
	})

	flushSSEMessages(c, ch.emitter)
}
