package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "groundchat/internal/app"
	"groundchat/internal/bootstrap"
	"groundchat/internal/cache"
	"groundchat/internal/platform/rabbitmq"
	"groundchat/internal/repository"
	"groundchat/internal/transport/http/handler"
	"groundchat/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	sessionRepo := repository.NewChatSessionRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)
	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	publisher := rabbitmq.NewMessagePublisher(app.MQConn, app.Config.RabbitMQ.MessagePersistQueue)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	chatService := appsvc.NewChatService(
		app.Retrieval,
		app.Registry,
		app.Tracker,
		sessionRepo,
		messageRepo,
		publisher,
		historyCache,
		app.Config.Gemini.MaxContextMessage,
	)

	authHandler := handler.NewAuthHandler(authService)
	storeHandler := handler.NewStoreHandler(app.Registry)
	documentHandler := handler.NewDocumentHandler(app.Tracker, app.Registry)
	chatHandler := handler.NewChatHandler(chatService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	authed := v1.Group("")
	authed.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))

	storeGroup := authed.Group("/stores")
	storeGroup.GET("", storeHandler.List)
	storeGroup.POST("", storeHandler.Create)
	storeGroup.POST("/:id/activate", storeHandler.Activate)
	storeGroup.DELETE("/:id", storeHandler.Delete)
	storeGroup.GET("/:id/stats", storeHandler.Stats)

	documentGroup := authed.Group("/documents")
	documentGroup.POST("", documentHandler.Upload)
	documentGroup.GET("", documentHandler.List)
	documentGroup.POST("/refresh", documentHandler.RefreshAll)
	documentGroup.GET("/:id", documentHandler.Get)
	documentGroup.DELETE("/:id", documentHandler.Delete)
	documentGroup.POST("/:id/refresh", documentHandler.Refresh)

	chatGroup := authed.Group("/chat")
	chatGroup.POST("/sessions", chatHandler.CreateSession)
	chatGroup.GET("/sessions", chatHandler.ListSessions)
	chatGroup.DELETE("/sessions/:id", chatHandler.DeleteSession)
	chatGroup.POST("/sessions/:id/clear", chatHandler.ClearHistory)
	chatGroup.POST("/messages", chatHandler.SendMessage)
	chatGroup.GET("/history", chatHandler.GetHistory)

	return router
}
