package server

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/studypilot-backend/internal/handlers"
	"github.com/yungbote/studypilot-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler    *handlers.AuthHandler
	AuthMiddleware *middleware.AuthMiddleware

	UserHandler     *handlers.UserHandler
	RealtimeHandler *handlers.RealtimeHandler

	ProjectHandler    *handlers.ProjectHandler
	MaterialHandler   *handlers.MaterialHandler
	ChatHandler       *handlers.ChatHandler
	MemoryHandler     *handlers.MemoryHandler
	ArtifactHandler   *handlers.ArtifactHandler
	AssessmentHandler *handlers.AssessmentHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(otelgin.Middleware("studypilot-backend"))
	r.Use(middleware.AttachTraceContext())
	r.Use(middleware.AttachRequestContext())
	r.Use(middleware.CORS())

	// Health
	r.GET("/healthcheck", handlers.HealthCheck)

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/register", cfg.AuthHandler.Register)
			api.POST("/login", cfg.AuthHandler.Login)
		}
	}

	protected := api.Group("/")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Auth (protected)
		if cfg.AuthHandler != nil {
			protected.POST("/refresh", cfg.AuthHandler.Refresh)
			protected.POST("/logout", cfg.AuthHandler.Logout)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
			protected.POST("/sse/subscribe", cfg.RealtimeHandler.SSESubscribe)
			protected.POST("/sse/unsubscribe", cfg.RealtimeHandler.SSEUnsubscribe)
		}

		// User (Me)
		if cfg.UserHandler != nil {
			protected.GET("/me", cfg.UserHandler.GetMe)
			protected.PATCH("/me/name", cfg.UserHandler.UpdateName)
			protected.POST("/me/avatar", cfg.UserHandler.UploadAvatar)
		}

		// Projects
		if cfg.ProjectHandler != nil {
			protected.POST("/projects", cfg.ProjectHandler.Create)
			protected.GET("/projects", cfg.ProjectHandler.List)
			protected.GET("/projects/:id", cfg.ProjectHandler.Get)
			protected.PATCH("/projects/:id", cfg.ProjectHandler.Update)
			protected.DELETE("/projects/:id", cfg.ProjectHandler.Delete)
		}

		// Materials
		if cfg.MaterialHandler != nil {
			protected.POST("/projects/:id/materials/text", cfg.MaterialHandler.CreateText)
			protected.POST("/projects/:id/materials/youtube", cfg.MaterialHandler.CreateYouTube)
			protected.POST("/projects/:id/materials/upload", cfg.MaterialHandler.Upload)
			protected.GET("/projects/:id/materials", cfg.MaterialHandler.List)
			protected.GET("/projects/:id/materials/:materialId", cfg.MaterialHandler.Get)
			protected.DELETE("/projects/:id/materials/:materialId", cfg.MaterialHandler.Delete)
		}

		// Chats. The turn endpoint accepts "new" as :chatId to open a chat.
		if cfg.ChatHandler != nil {
			protected.GET("/projects/:id/chats", cfg.ChatHandler.List)
			protected.GET("/projects/:id/chats/:chatId", cfg.ChatHandler.Get)
			protected.PATCH("/projects/:id/chats/:chatId", cfg.ChatHandler.Rename)
			protected.DELETE("/projects/:id/chats/:chatId", cfg.ChatHandler.Delete)
			protected.GET("/projects/:id/chats/:chatId/messages", cfg.ChatHandler.ListMessages)
			protected.POST("/projects/:id/chats/:chatId/messages", cfg.ChatHandler.PostMessage)
		}

		// Memories (read side; the tutor writes them through its tools)
		if cfg.MemoryHandler != nil {
			protected.GET("/projects/:id/memories", cfg.MemoryHandler.List)
		}

		// Artifacts (read side; the tutor writes them through its tools)
		if cfg.ArtifactHandler != nil {
			protected.GET("/projects/:id/artifacts", cfg.ArtifactHandler.List)
			protected.GET("/projects/:id/artifacts/:artifactId", cfg.ArtifactHandler.Get)
		}

		// Assessments
		if cfg.AssessmentHandler != nil {
			protected.POST("/projects/:id/assessments/generate", cfg.AssessmentHandler.Generate)
			protected.GET("/projects/:id/assessments", cfg.AssessmentHandler.List)
			protected.GET("/projects/:id/assessments/:assessmentId", cfg.AssessmentHandler.Get)
			protected.DELETE("/projects/:id/assessments/:assessmentId", cfg.AssessmentHandler.Delete)
			protected.POST("/projects/:id/assessments/:assessmentId/attempts", cfg.AssessmentHandler.SubmitAttempt)
			protected.GET("/projects/:id/assessments/:assessmentId/attempts", cfg.AssessmentHandler.ListAttempts)
		}
	}

	return r
}
