package server

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/vaultwatch/riskpulse/internal/config"
	"github.com/vaultwatch/riskpulse/internal/handler"
	"github.com/vaultwatch/riskpulse/internal/hub"
	"github.com/vaultwatch/riskpulse/internal/middleware"
	"github.com/vaultwatch/riskpulse/internal/repository"
	"github.com/vaultwatch/riskpulse/internal/service"
)

type Server struct {
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Delivery Channel. With Redis configured, publishes round-trip through
	// pub/sub so every process instance fans out to its own connections;
	// without it the in-memory hub covers a single process.
	notificationHub := hub.New(cfg.StreamBuffer)
	var relay *hub.Relay
	if redisClient != nil {
		relay = hub.NewRelay(redisClient, notificationHub)
		go func() {
			if err := relay.Run(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("relay stopped: %v", err)
			}
		}()
	}

	var searchSvc service.SearchService
	if cfg.MeiliSearchHost != "" {
		meiliClient := meilisearch.New(cfg.MeiliSearchHost, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
		searchSvc = service.NewSearchService(meiliClient)
	}

	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTTTL)
	authHandler := handler.NewAuthHandler(authSvc)

	notificationSvc := service.NewNotificationService(notificationRepo, notificationHub, relay, searchSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc, notificationHub)

	router := gin.New()

	setupCORS(router, cfg)

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/api/notifications/stream", "/health"},
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	authMiddleware := middleware.NewAuthMiddleware(userRepo, cfg.JWTSecret)

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
	}

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		adminGroup := protected.Group("/admin")
		adminGroup.Use(authMiddleware.RequireAdmin())
		{
			adminGroup.POST("/notifications", notificationHandler.Send)
		}

		protected.GET("/notifications", notificationHandler.List)
		protected.POST("/notifications", notificationHandler.Create)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.GET("/notifications/search", notificationHandler.Search)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.DELETE("/notifications/:id", notificationHandler.Delete)
		protected.DELETE("/notifications", notificationHandler.ClearAll)
		protected.GET("/notifications/stream", notificationHandler.Stream)
		protected.GET("/notifications/ws", notificationHandler.HandleWebSocket)
	}

	return &Server{
		engine:      router,
		db:          db,
		redisClient: redisClient,
	}
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func setupCORS(router *gin.Engine, cfg *config.Config) {
	var origins []string
	if cfg.AllowedOrigins != "" {
		origins = strings.Split(cfg.AllowedOrigins, ",")
	} else {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
