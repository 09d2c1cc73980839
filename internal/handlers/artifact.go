package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/studypilot-backend/internal/repos"
	"github.com/yungbote/studypilot-backend/internal/requestdata"
	"github.com/yungbote/studypilot-backend/internal/services"
)

type ArtifactHandler struct {
	artifactService services.ArtifactService
}

func NewArtifactHandler(artifactService services.ArtifactService) *ArtifactHandler {
	return &ArtifactHandler{artifactService: artifactService}
}

func (ah *ArtifactHandler) List(c *gin.Context) {
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
	artifacts, err := ah.artifactService.ListByProject(c.Request.Context(), projectID, rd.UserID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, gin.H{"artifacts": artifacts})
}

func (ah *ArtifactHandler) Get(c *gin.Context) {
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
	artifactID, err := uuid.Parse(c.Param("artifactId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_artifact_id", err)
		return
	}
	artifact, err := ah.artifactService.GetOwned(c.Request.Context(), artifactID, projectID, rd.UserID)
	if err != nil {
		if repos.IsNotFound(err) {
			RespondError(c, http.StatusNotFound, "artifact_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}
	RespondOK(c, gin.H{"artifact": artifact})
}
