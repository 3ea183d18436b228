package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/pixelblog/backend/internal/auth"
	"github.com/pixelblog/backend/internal/authoring"
	"github.com/pixelblog/backend/internal/cache"
	"github.com/pixelblog/backend/internal/database"
	"github.com/pixelblog/backend/internal/engagement"
	"github.com/pixelblog/backend/internal/feed"
	"github.com/pixelblog/backend/internal/handlers"
	"github.com/pixelblog/backend/internal/logger"
	"github.com/pixelblog/backend/internal/metrics"
	"github.com/pixelblog/backend/internal/middleware"
	"github.com/pixelblog/backend/internal/music"
	"github.com/pixelblog/backend/internal/realtime"
	"github.com/pixelblog/backend/internal/storage"
	"github.com/pixelblog/backend/internal/weather"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	// Initialize structured logging
	if err := logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE")); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("📓 Pixelblog backend starting")

	// Initialize database
	if err := database.Initialize(); err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Redis is optional; like-count caching degrades to plain queries
	redisClient, err := cache.NewRedisClient(
		os.Getenv("REDIS_HOST"),
		os.Getenv("REDIS_PORT"),
		os.Getenv("REDIS_PASSWORD"),
	)
	if err != nil {
		logger.Log.Warn("Continuing without Redis, like counts will not be cached", zap.Error(err))
	} else {
		defer redisClient.Close()
	}

	jwtSecret := []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		logger.Log.Fatal("JWT_SECRET environment variable is required")
	}

	// S3 is optional; media endpoints refuse cleanly when unconfigured
	var uploader *storage.S3Uploader
	if bucket := os.Getenv("AWS_BUCKET"); bucket != "" {
		uploader, err = storage.NewS3Uploader(
			os.Getenv("AWS_REGION"),
			bucket,
			os.Getenv("CDN_BASE_URL"),
		)
		if err != nil {
			logger.Log.Fatal("Failed to initialize S3 uploader", zap.Error(err))
		}
		if err := uploader.CheckBucketAccess(context.Background()); err != nil {
			logger.Log.Warn("S3 bucket access failed, media uploads will fail", zap.Error(err))
		}
	} else {
		logger.Log.Warn("AWS_BUCKET not set, media uploads disabled")
	}

	// Outbound enrichment clients
	lat, _ := strconv.ParseFloat(os.Getenv("WEATHER_LAT"), 64)
	lon, _ := strconv.ParseFloat(os.Getenv("WEATHER_LON"), 64)
	weatherClient := weather.NewClient(os.Getenv("OPENWEATHER_API_KEY"), lat, lon, os.Getenv("WEATHER_LOCATION"))
	musicClient := music.NewClient()

	// Realtime hub
	hub := realtime.NewHub()
	go hub.Run()
	wsHandler := realtime.NewHandler(hub)

	// Services
	authService := auth.NewService(jwtSecret)
	engagementService := engagement.NewService(database.DB, hub)
	feedService := feed.NewService(database.DB, engagementService)
	authoringService := authoring.NewService(database.DB, hub, weatherClient, musicClient)

	// Handlers
	h := handlers.NewHandlers(authService, feedService, engagementService, authoringService)
	h.SetWeatherClient(weatherClient)
	h.SetMusicClient(musicClient)
	h.SetUploader(uploader)

	metrics.Initialize()

	// Setup Gin router
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// CORS middleware
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"} // Configure properly for production
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.SessionTokenHeader}
	config.ExposeHeaders = []string{middleware.SessionTokenHeader, "X-Request-ID"}
	r.Use(cors.New(config))

	// Operational endpoints sit outside identity resolution
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes; every request gets a resolved identity
	api := r.Group("/api/v1")
	api.Use(middleware.IdentityMiddleware(authService))
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.Register)
			authGroup.POST("/login", h.Login)
			authGroup.GET("/me", h.Me)
		}

		posts := api.Group("/posts")
		{
			posts.GET("", h.GetPosts)
			posts.GET("/drafts", h.GetDrafts)
			posts.GET("/likes", h.GetLikeStates)
			posts.GET("/:id", h.GetPost)
			posts.POST("", h.CreatePost)
			posts.PUT("/:id", h.UpdatePost)
			posts.DELETE("/:id", h.DeletePost)

			posts.POST("/:id/like", h.ToggleLike)
			posts.GET("/:id/comments", h.GetComments)
			posts.POST("/:id/comments", h.CreateComment)
		}

		api.GET("/categories", h.GetCategories)
		api.GET("/weather", h.GetWeather)
		api.GET("/music/resolve", h.ResolveMusic)

		media := api.Group("/media")
		{
			media.POST("/upload", h.UploadMedia)
		}
		api.GET("/profile", h.Me)
		api.POST("/profile/avatar", h.UploadAvatar)

		notifications := api.Group("/notifications")
		{
			notifications.GET("", h.GetNotifications)
			notifications.GET("/unread", h.GetUnreadCount)
			notifications.POST("/read", h.MarkNotificationsRead)
		}

		api.GET("/ws", wsHandler.HandleWebSocket)
	}

	// Server configuration
	port := os.Getenv("PORT")
	if port == "" {
		port = "8790"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		logger.Log.Info("📓 Pixelblog backend listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := hub.Shutdown(ctx); err != nil {
		logger.Log.Warn("Realtime shutdown warning", zap.Error(err))
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}
