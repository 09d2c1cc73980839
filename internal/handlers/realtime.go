package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/requestdata"
	"github.com/yungbote/studypilot-backend/internal/services"
	"github.com/yungbote/studypilot-backend/internal/sse"
	"github.com/yungbote/studypilot-backend/internal/ssedata"
)

type RealtimeHandler struct {
	Log *logger.Logger
	Hub *sse.SSEHub

	mu      sync.RWMutex
	clients map[uuid.UUID]*sse.SSEClient // key: UserID
}

func NewRealtimeHandler(log *logger.Logger, hub *sse.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{
		Log:     log,
		Hub:     hub,
		clients: make(map[uuid.UUID]*sse.SSEClient),
	}
}

func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	userID := rd.UserID
	h.Log.Info("SSEStream open", "user_id", userID.String())

	h.mu.Lock()
	// A reconnect replaces the user's previous stream.
	if existing, ok := h.clients[userID]; ok {
		h.Hub.CloseClient(existing)
		delete(h.clients, userID)
	}
	client := h.Hub.NewSSEClient(userID)
	h.clients[userID] = client
	h.mu.Unlock()

	// Every stream carries the user's own channel; extra channels arrive via
	// SSESubscribe.
	h.Hub.AddChannel(client, sse.UserChannel(userID))

	h.Hub.ServeHTTP(c.Writer, c.Request, client)

	h.mu.Lock()
	if h.clients[userID] == client {
		delete(h.clients, userID)
	}
	h.mu.Unlock()
	h.Hub.CloseClient(client)
}

func (h *RealtimeHandler) SSESubscribe(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req struct {
		Channel string `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
		RespondError(c, http.StatusBadRequest, "invalid_channel", err)
		return
	}

	h.mu.RLock()
	client, exists := h.clients[rd.UserID]
	h.mu.RUnlock()
	if !exists {
		RespondError(c, http.StatusConflict, "no_active_stream", nil)
		return
	}

	h.Hub.AddChannel(client, req.Channel)
	RespondOK(c, gin.H{"message": "subscribed", "channel": req.Channel})
}

func (h *RealtimeHandler) SSEUnsubscribe(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	var req struct {
		Channel string `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
		RespondError(c, http.StatusBadRequest, "invalid_channel", err)
		return
	}

	h.mu.RLock()
	client, exists := h.clients[rd.UserID]
	h.mu.RUnlock()
	if !exists {
		RespondError(c, http.StatusConflict, "no_active_stream", nil)
		return
	}

	h.Hub.RemoveChannel(client, req.Channel)
	RespondOK(c, gin.H{"message": "unsubscribed", "channel": req.Channel})
}

// flushSSEMessages pushes hub messages buffered during the request. Handlers
// call it after their unit of work has committed; a background context keeps
// the push out of the now-finished request's buffer.
func flushSSEMessages(c *gin.Context, emitter services.SSEEmitter) {
	ssd := ssedata.GetSSEData(c.Request.Context())
	if ssd == nil || len(ssd.Messages) == 0 {
		return
	}
	for _, msg := range ssd.Messages {
		emitter.Emit(context.Background(), msg)
	}
	ssd.Messages = nil
}
