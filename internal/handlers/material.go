package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/studypilot-backend/internal/repos"
	"github.com/yungbote/studypilot-backend/internal/requestdata"
	"github.com/yungbote/studypilot-backend/internal/services"
)

type MaterialHandler struct {
	materialService services.MaterialService
}

func NewMaterialHandler(materialService services.MaterialService) *MaterialHandler {
	return &MaterialHandler{materialService: materialService}
}

func (mh *MaterialHandler) CreateText(c *gin.Context) {
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
	var req struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	material, err := mh.materialService.CreateText(c.Request.Context(), projectID, rd.UserID, req.Name, req.Content)
	if err != nil {
		if repos.IsNotFound(err) {
			RespondError(c, http.StatusNotFound, "project_not_found", err)
			return
		}
		RespondError(c, http.StatusBadRequest, "create_failed", err)
		return
	}
	RespondOK(c, gin.H{"material": material})
}

func (mh *MaterialHandler) CreateYouTube(c *gin.Context) {
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
	var req struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	material, err := mh.materialService.CreateYouTube(c.Request.Context(), projectID, rd.UserID, req.Name, req.URL)
	if err != nil {
		if repos.IsNotFound(err) {
			RespondError(c, http.StatusNotFound, "project_not_found", err)
			return
		}
		RespondError(c, http.StatusBadRequest, "create_failed", err)
		return
	}
	RespondOK(c, gin.H{"material": material})
}

func (mh *MaterialHandler) Upload(c *gin.Context) {
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
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		// Sniff; browsers sometimes omit the part's content type.
		sniffFile, sErr := fileHeader.Open()
		if sErr == nil {
			buf := make([]byte, 512)
			n, _ := sniffFile.Read(buf)
			_ = sniffFile.Close()
			mimeType = http.DetectContentType(buf[:n])
		}
	}

	f, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()

	material, err := mh.materialService.CreateFile(c.Request.Context(), projectID, rd.UserID, fileHeader.Filename, mimeType, fileHeader.Size, f)
	if err != nil {
		if repos.IsNotFound(err) {
			RespondError(c, http.StatusNotFound, "project_not_found", err)
			return
		}
		RespondError(c, http.StatusBadRequest, "upload_failed", err)
		return
	}
	RespondOK(c, gin.H{"material": material})
}

func (mh *MaterialHandler) List(c *gin.Context) {
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
	materials, err := mh.materialService.ListByProject(c.Request.Context(), projectID, rd.UserID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, gin.H{"materials": materials})
}

func (mh *MaterialHandler) Get(c *gin.Context) {
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
	materialID, err := uuid.Parse(c.Param("materialId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_material_id", err)
		return
	}
	material, err := mh.materialService.GetOwned(c.Request.Context(), materialID, projectID, rd.UserID)
	if err != nil {
		if repos.IsNotFound(err) {
			RespondError(c, http.StatusNotFound, "material_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}
	RespondOK(c, gin.H{"material": material})
}

func (mh *MaterialHandler) Delete(c *gin.Context) {
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
	materialID, err := uuid.Parse(c.Param("materialId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_material_id", err)
		return
	}
	if err := mh.materialService.Delete(c.Request.Context(), materialID, projectID, rd.UserID); err != nil {
		if repos.IsNotFound(err) {
			RespondError(c, http.StatusNotFound, "material_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "delete_failed", err)
		return
	}
	RespondOK(c, gin.H{"ok": true})
}
