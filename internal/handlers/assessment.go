package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/repos"
	"github.com/yungbote/studypilot-backend/internal/requestdata"
	"github.com/yungbote/studypilot-backend/internal/services"
	"github.com/yungbote/studypilot-backend/internal/sse"
)

type AssessmentHandler struct {
	log               *logger.Logger
	assessmentService services.AssessmentService
	emitter           services.SSEEmitter
}

func NewAssessmentHandler(log *logger.Logger, assessmentService services.AssessmentService, emitter services.SSEEmitter) *AssessmentHandler {
	return &AssessmentHandler{
		log:               log.With("handler", "AssessmentHandler"),
		assessmentService: assessmentService,
		emitter:           emitter,
	}
}

// Generate streams assessment generation over SSE. The row is visible in the
// list as `generating` the moment the stream starts.
func (ah *AssessmentHandler) Generate(c *gin.Context) {
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
	var settings services.AssessmentSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	stream, err := sse.NewStream(c.Writer, ah.log)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "streaming_unsupported", err)
		return
	}
	defer stream.Close()

	ah.assessmentService.Generate(c.Request.Context(), stream, projectID, rd.UserID, settings)

	flushSSEMessages(c, ah.emitter)
}

func (ah *AssessmentHandler) List(c *gin.Context) {
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
	assessments, err := ah.assessmentService.ListByProject(c.Request.Context(), projectID, rd.UserID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, gin.H{"assessments": assessments})
}

func (ah *AssessmentHandler) Get(c *gin.Context) {
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
	assessmentID, err := uuid.Parse(c.Param("assessmentId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_assessment_id", err)
		return
	}
	assessment, err := ah.assessmentService.GetOwned(c.Request.Context(), assessmentID, projectID, rd.UserID)
	if err != nil {
		if repos.IsNotFound(err) {
			RespondError(c, http.StatusNotFound, "assessment_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}
	RespondOK(c, gin.H{"assessment": assessment})
}

func (ah *AssessmentHandler) Delete(c *gin.Context) {
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
	assessmentID, err := uuid.Parse(c.Param("assessmentId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_assessment_id", err)
		return
	}
	if err := ah.assessmentService.Delete(c.Request.Context(), assessmentID, projectID, rd.UserID); err != nil {
		if repos.IsNotFound(err) {
			RespondError(c, http.StatusNotFound, "assessment_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "delete_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

func (ah *AssessmentHandler) SubmitAttempt(c *gin.Context) {
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
	assessmentID, err := uuid.Parse(c.Param("assessmentId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_assessment_id", err)
		return
	}
	var req struct {
		Answers map[string]any `json:"answers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	attempt, err := ah.assessmentService.SubmitAttempt(c.Request.Context(), projectID, rd.UserID, assessmentID, req.Answers)
	if err != nil {
		if repos.IsNotFound(err) {
			RespondError(c, http.StatusNotFound, "assessment_not_found", err)
			return
		}
		RespondError(c, http.StatusBadRequest, "submit_failed", err)
		return
	}
	RespondOK(c, gin.H{"attempt": attempt})
}

func (ah *AssessmentHandler) ListAttempts(c *gin.Context) {
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
	assessmentID, err := uuid.Parse(c.Param("assessmentId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_assessment_id", err)
		return
	}
	attempts, err := ah.assessmentService.ListAttempts(c.Request.Context(), projectID, rd.UserID, assessmentID)
	if err != nil {
		if repos.IsNotFound(err) {
			RespondError(c, http.StatusNotFound, "assessment_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, gin.H{"attempts": attempts})
}
