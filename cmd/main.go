package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/studypilot-backend/internal/db"
	"github.com/yungbote/studypilot-backend/internal/handlers"
	"github.com/yungbote/studypilot-backend/internal/middleware"
	"github.com/yungbote/studypilot-backend/internal/observability"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/repos"
	"github.com/yungbote/studypilot-backend/internal/server"
	"github.com/yungbote/studypilot-backend/internal/services"
	"github.com/yungbote/studypilot-backend/internal/sse"
	"github.com/yungbote/studypilot-backend/internal/utils"
)

func main() {
	// .env is optional; deployments supply real environment variables.
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (no-op unless OTEL_ENABLED is set)
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "studypilot-backend",
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})
	if otelShutdown != nil {
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	projectRepo := repos.NewProjectRepo(thePG, log)
	materialRepo := repos.NewMaterialRepo(thePG, log)
	chatRepo := repos.NewChatRepo(thePG, log)
	messageRepo := repos.NewMessageRepo(thePG, log)
	memoryRepo := repos.NewMemoryRepo(thePG, log)
	artifactRepo := repos.NewArtifactRepo(thePG, log)
	assessmentRepo := repos.NewAssessmentRepo(thePG, log)
	assessmentAttemptRepo := repos.NewAssessmentAttemptRepo(thePG, log)

	// SSE
	log.Info("Setting up SSE hub now...")
	sseHub := sse.NewSSEHub(log)

	// Pushes go straight to the hub on a single instance; with REDIS_ADDR set
	// they ride the bus so every instance's hub sees them.
	var baseEmitter services.SSEEmitter = &services.HubEmitter{Hub: sseHub}
	if os.Getenv("REDIS_ADDR") != "" {
		bus, err := services.NewRedisSSEBus(log)
		if err != nil {
			log.Error("Could not init Redis SSE bus", "error", err)
			os.Exit(1)
		}
		if err := bus.StartForwarder(ctx, sseHub.Broadcast); err != nil {
			log.Error("Could not start Redis SSE forwarder", "error", err)
			os.Exit(1)
		}
		baseEmitter = &services.RedisEmitter{Bus: bus}
	}
	notifier := services.NewNotifier(&services.CtxBufferedEmitter{Inner: baseEmitter})

	// Services
	log.Info("Setting up Services from main...")
	bucketService, err := services.NewBucketService(log)
	if err != nil {
		log.Error("Could not init BucketService", "error", err)
		os.Exit(1)
	}
	geminiClient, err := services.NewGeminiClient(log)
	if err != nil {
		log.Error("Could not init GeminiClient", "error", err)
		os.Exit(1)
	}
	avatarService, err := services.NewAvatarService(log, bucketService)
	if err != nil {
		log.Error("Could not init AvatarService", "error", err)
		os.Exit(1)
	}
	authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, avatarService, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)
	userService := services.NewUserService(thePG, log, userRepo, avatarService, notifier)
	projectService := services.NewProjectService(thePG, log, projectRepo)
	materialService := services.NewMaterialService(log, projectRepo, materialRepo, bucketService)
	chatService := services.NewChatService(thePG, log, chatRepo, messageRepo)
	memoryService := services.NewMemoryService(thePG, log, memoryRepo)
	artifactService := services.NewArtifactService(thePG, log, artifactRepo)
	toolDispatcher := services.NewToolDispatcher(log, memoryService, artifactService, notifier)
	chatTurnService := services.NewChatTurnService(thePG, log, projectRepo, chatRepo, messageRepo, materialRepo, memoryRepo, artifactRepo, bucketService, geminiClient, toolDispatcher)
	assessmentService := services.NewAssessmentService(thePG, log, projectRepo, materialRepo, assessmentRepo, assessmentAttemptRepo, geminiClient, notifier)

	materialWorker := services.NewMaterialWorker(log, materialRepo, bucketService, geminiClient, notifier)
	materialWorker.StartWorker(ctx)

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService, baseEmitter)
	realtimeHandler := handlers.NewRealtimeHandler(log, sseHub)
	projectHandler := handlers.NewProjectHandler(projectService)
	materialHandler := handlers.NewMaterialHandler(materialService)
	chatHandler := handlers.NewChatHandler(log, chatService, chatTurnService, baseEmitter)
	memoryHandler := handlers.NewMemoryHandler(memoryService)
	artifactHandler := handlers.NewArtifactHandler(artifactService)
	assessmentHandler := handlers.NewAssessmentHandler(log, assessmentService, baseEmitter)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:       authHandler,
		AuthMiddleware:    authMiddleware,
		UserHandler:       userHandler,
		RealtimeHandler:   realtimeHandler,
		ProjectHandler:    projectHandler,
		MaterialHandler:   materialHandler,
		ChatHandler:       chatHandler,
		MemoryHandler:     memoryHandler,
		ArtifactHandler:   artifactHandler,
		AssessmentHandler: assessmentHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
