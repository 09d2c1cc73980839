package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/studypilot-backend/internal/requestdata"
	"github.com/yungbote/studypilot-backend/internal/services"
)

type MemoryHandler struct {
	memoryService services.MemoryService
}

func NewMemoryHandler(memoryService services.MemoryService) *MemoryHandler {
	return &MemoryHandler{memoryService: memoryService}
}

// List returns the project's active memories. The tutor writes them through
// its tools; there is no client-side create.
func (mh *MemoryHandler) List(c *gin.Context) {
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
	memories, err := mh.memoryService.ListActive(c.Request.Context(), projectID, rd.UserID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, gin.H{"memories": memories})
}
