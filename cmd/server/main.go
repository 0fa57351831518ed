package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blanx-app/backend/internal/cache"
	"github.com/blanx-app/backend/internal/config"
	"github.com/blanx-app/backend/internal/database"
	"github.com/blanx-app/backend/internal/handlers"
	"github.com/blanx-app/backend/internal/logger"
	"github.com/blanx-app/backend/internal/middleware"
	"github.com/blanx-app/backend/internal/notify"
	"github.com/blanx-app/backend/internal/realtime"
	"github.com/blanx-app/backend/internal/repository"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.Log.Info("=== Blanx server starting ===")

	if len(cfg.JWTSecret) == 0 {
		logger.Log.Fatal("JWT_SECRET environment variable is required")
	}

	// Database
	if err := database.Initialize(); err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Redis is optional: without it the unread-count cache is skipped
	// and post cooldowns are process-local.
	var redisClient *cache.RedisClient
	if cfg.RedisHost != "" {
		rc, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		if err != nil {
			logger.Log.Warn("Redis unavailable, continuing without cache", zap.Error(err))
		} else {
			redisClient = rc
			defer redisClient.Close()
		}
	}

	// A nil *RedisClient must stay a nil interface, otherwise the
	// counter and cooldown would call methods on a dead client.
	var countCache notify.CountCache
	var cooldownStore middleware.CooldownStore
	if redisClient != nil {
		countCache = redisClient
		cooldownStore = redisClient
	}

	// Notification core: store -> counter -> dispatcher -> producer
	notificationRepo := repository.NewNotificationRepository(database.DB)
	counter := notify.NewCounter(notificationRepo, countCache)
	registry := realtime.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry)
	producer := notify.NewProducer(notificationRepo, counter, dispatcher)

	verifier := func(token string) (string, error) {
		return middleware.VerifyUserToken(cfg.JWTSecret, token)
	}
	wsHandler := realtime.NewHandler(registry, verifier)

	h := handlers.NewHandlers(notificationRepo, producer)
	postCooldown := middleware.NewCooldown(cooldownStore, "cooldown:post:", cfg.PostCooldown)

	// Router
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if err := database.Health(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"service":   "blanx-backend",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Realtime channel; binding happens via the join message.
	r.GET("/ws", wsHandler.HandleWebSocket)

	api := r.Group("/api")
	api.Use(middleware.AuthRequired(cfg.JWTSecret))
	{
		notifications := api.Group("/notifications")
		{
			notifications.GET("", h.GetNotifications)
			notifications.GET("/unread-count", h.GetUnreadCount)
			notifications.PATCH("/mark-read", h.MarkNotificationsRead)
			notifications.DELETE("/:id", h.DeleteNotification)
		}

		posts := api.Group("/posts")
		{
			posts.POST("", postCooldown.Middleware(), h.CreatePost)
			posts.GET("/:id", h.GetPost)
			posts.DELETE("/:id", h.DeletePost)
			posts.POST("/:id/like", h.LikePost)
			posts.GET("/:id/comments", h.GetComments)
			posts.POST("/:id/comments", h.CreateComment)
		}

		users := api.Group("/users")
		{
			users.GET("/:id/profile", h.GetUserProfile)
			users.POST("/:id/follow", h.FollowUser)
		}

		api.POST("/realtime/online", wsHandler.HandleOnlineStatus)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Log.Info("Server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Forced shutdown", zap.Error(err))
	}

	logger.Log.Info("Server stopped")
}
