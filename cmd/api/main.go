package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/warbler-social/warbler/internal/config"
	"github.com/warbler-social/warbler/internal/handlers"
	"github.com/warbler-social/warbler/internal/locks"
	"github.com/warbler-social/warbler/internal/metrics"
	"github.com/warbler-social/warbler/internal/middleware"
	"github.com/warbler-social/warbler/internal/moderation"
	"github.com/warbler-social/warbler/internal/repository"
	"github.com/warbler-social/warbler/internal/services"
	"github.com/warbler-social/warbler/pkg/cache"
	"github.com/warbler-social/warbler/pkg/logger"
	"github.com/warbler-social/warbler/pkg/queue"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.NewLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting warbler API server")

	db, err := repository.NewDatabase(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}

	redisClient := cache.NewRedisClient(
		cfg.Redis.Addr(),
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
		cfg.Redis.MinIdleConns,
	)
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}

	activityProducer := queue.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.ActivityEvents)
	defer activityProducer.Close()

	filter, err := moderation.NewFilter(cfg.Moderation.ExtraPatterns)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build moderation filter")
	}

	userRepo := repository.NewUserRepository(db.DB)
	followRepo := repository.NewFollowRepository(db.DB)
	postRepo := repository.NewPostRepository(db.DB)
	likeRepo := repository.NewLikeRepository(db.DB)
	bookmarkRepo := repository.NewBookmarkRepository(db.DB)
	activityRepo := repository.NewActivityRepository(db.DB)

	userLocks := locks.NewKeyedMutex()
	recorder := services.NewKafkaActivityRecorder(activityProducer, logger)

	feedService := services.NewFeedService(postRepo, followRepo, userRepo, likeRepo, bookmarkRepo, redisClient, &cfg.Feed, logger)
	userService := services.NewUserService(db.DB, userRepo, followRepo, userLocks, recorder, feedService, logger)
	postService := services.NewPostService(db.DB, postRepo, userRepo, likeRepo, bookmarkRepo, filter, recorder, feedService, logger)
	engagementService := services.NewEngagementService(db.DB, postRepo, likeRepo, bookmarkRepo, userRepo, recorder, feedService, logger)
	activityService := services.NewActivityService(activityRepo, logger)

	jwtConfig := &middleware.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpireTime: cfg.JWT.ExpireTime,
	}
	userHandler := handlers.NewUserHandler(userService, activityService, jwtConfig)
	postHandler := handlers.NewPostHandler(postService, engagementService, feedService)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api/v1")
	{
		users := api.Group("/users")
		{
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)
			users.GET("/logout", userHandler.Logout)
			users.GET("/public-profile/:id", userHandler.GetProfile)
		}

		posts := api.Group("/posts")
		{
			posts.GET("/public", postHandler.PublicFeed)
			posts.GET("/public-user/:id", postHandler.ByAuthor)
		}

		protected := api.Group("")
		protected.Use(middleware.NewJWTAuth(jwtConfig))
		{
			protected.GET("/users/me", userHandler.Me)
			protected.PUT("/users/profile", userHandler.UpdateProfile)
			protected.GET("/users/others", userHandler.OtherUsers)
			protected.GET("/users/activity", userHandler.Activity)
			protected.GET("/users/:id", userHandler.GetProfile)
			protected.GET("/users/:id/followers", userHandler.GetFollowers)
			protected.GET("/users/:id/following", userHandler.GetFollowing)
			protected.POST("/users/:id/follow", userHandler.Follow)
			protected.POST("/users/:id/unfollow", userHandler.Unfollow)

			protected.POST("/posts", postHandler.Create)
			protected.GET("/posts/:id", postHandler.Get)
			protected.DELETE("/posts/:id", postHandler.Delete)
			protected.PUT("/posts/:id/like", postHandler.ToggleLike)
			protected.PUT("/posts/:id/bookmark", postHandler.ToggleBookmark)
			protected.GET("/posts/user/:id", postHandler.ByAuthor)

			protected.GET("/feed", postHandler.HomeFeed)
			protected.GET("/feed/following", postHandler.FollowingFeed)
			protected.GET("/bookmarks", postHandler.Bookmarks)
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func init() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.MkdirAll("configs", 0755); err != nil {
			log.Printf("Failed to create config directory: %v", err)
		}
		if err := createDefaultConfig(configPath); err != nil {
			log.Printf("Failed to create default config: %v", err)
		}
	}
}

func createDefaultConfig(path string) error {
	defaultConfig := `server:
  port: ":8080"
  mode: "debug"
  read_timeout: 30s
  write_timeout: 30s

database:
  host: "localhost"
  port: 5432
  user: "warbler"
  password: "warbler"
  dbname: "warbler"
  sslmode: "disable"
  max_open_conns: 100
  max_idle_conns: 10

redis:
  host: "localhost"
  port: 6379
  password: ""
  db: 0
  pool_size: 100
  min_idle_conns: 10

kafka:
  brokers:
    - "localhost:9092"
  topics:
    activity_events: "activity-events"

jwt:
  secret: "change-me-in-production"
  expire_time: 168h

feed:
  default_limit: 20
  max_limit: 100
  cache_ttl: 1m

moderation:
  extra_patterns: []

activity:
  consumer_group: "activity-worker-group"
  retention_days: 90
  sweep_interval: 1h`

	return os.WriteFile(path, []byte(defaultConfig), 0644)
}
