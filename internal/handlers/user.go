package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/studypilot-backend/internal/services"
)

const maxAvatarBytes = 5 << 20

type UserHandler struct {
	userService services.UserService
	emitter     services.SSEEmitter
}

func NewUserHandler(userService services.UserService, emitter services.SSEEmitter) *UserHandler {
	return &UserHandler{userService: userService, emitter: emitter}
}

func (uh *UserHandler) GetMe(c *gin.Context) {
	user, err := uh.userService.GetMe(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
		return
	}
	RespondOK(c, gin.H{"user": user})
}

func (uh *UserHandler) UpdateName(c *gin.Context) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	user, err := uh.userService.UpdateName(c.Request.Context(), req.FirstName, req.LastName)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "update_failed", err)
		return
	}
	RespondOK(c, gin.H{"user": user})
}

func (uh *UserHandler) UploadAvatar(c *gin.Context) {
	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing_avatar_file", err)
		return
	}
	if fileHeader.Size > maxAvatarBytes {
		RespondError(c, http.StatusBadRequest, "avatar_too_large", nil)
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_avatar_file", err)
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, maxAvatarBytes+1))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_avatar_file", err)
		return
	}
	user, err := uh.userService.UploadAvatarImage(c.Request.Context(), raw)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "avatar_upload_failed", err)
		return
	}
	flushSSEMessages(c, uh.emitter)
	RespondOK(c, gin.H{"user": user})
}
