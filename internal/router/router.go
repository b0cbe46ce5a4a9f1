package router

import (
	"time"

	"notify24/config"
	"notify24/internal/handler"
	"notify24/internal/middleware"
	"notify24/internal/repository"
	"notify24/internal/service"
	"notify24/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, hub *ws.Hub, tracker *ws.PresenceTracker, publisher service.QueuePublisher) (*gin.Engine, *service.DispatchService) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	// Services
	authSvc := service.NewAuthService(cfg, userRepo)
	userSvc := service.NewUserService(userRepo)
	dispatchSvc := service.NewDispatchService(notifRepo, userRepo, publisher)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	notifHandler := handler.NewNotificationHandler(dispatchSvc, notifRepo, userRepo, hub)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	users := api.Group("/users", middleware.AuthRequired(&cfg.JWT))
	{
		users.GET("", userHandler.List)
		users.POST("", userHandler.Create)
		users.PUT("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Delete)
	}

	notifications := api.Group("/notifications")
	{
		// Worker callback sits outside user auth; the internal key is the
		// only credential it accepts.
		notifications.POST("/internal/deliver", middleware.InternalKeyRequired(cfg.Internal.Key), notifHandler.DeliverInternal)

		authed := notifications.Group("", middleware.AuthRequired(&cfg.JWT))
		authed.POST("/dispatch", notifHandler.Dispatch)
		authed.GET("", notifHandler.List)
		authed.GET("/inbox", notifHandler.Inbox)
		authed.GET("/:id/tracking", notifHandler.Tracking)
		authed.POST("/:id/acknowledge", notifHandler.Acknowledge)
		authed.POST("/sweep", middleware.AdminRequired(), notifHandler.Sweep)
	}

	r.GET("/ws", handler.UpgradePresenceWS(&cfg.JWT, hub, tracker, userRepo))

	return r, dispatchSvc
}
