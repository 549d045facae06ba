package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/iadityaojha/postflow/internal/config"
	"github.com/iadityaojha/postflow/internal/service"
	"github.com/iadityaojha/postflow/internal/service/generator"
	"github.com/iadityaojha/postflow/internal/service/publisher"
	"github.com/iadityaojha/postflow/internal/service/vault"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Auth      *service.AuthService
	Vault     *vault.Vault
	Store     *service.PostStore
	Generator *generator.Service
	Scheduler *service.Scheduler
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	masterKey, err := cfg.Security.DecodeMasterKey()
	if err != nil {
		return nil, err
	}
	tokenTTL, err := time.ParseDuration(cfg.Security.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid token TTL: %w", err)
	}

	// Initialize services
	credVault, err := vault.New(db, logger, masterKey, vault.NewLiveProber())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vault: %w", err)
	}
	auth, err := service.NewAuthService(db, logger, cfg.Security.JWTSecret, tokenTTL)
	if err != nil {
		return nil, err
	}
	publishers, err := publisher.NewDefaultManager(logger)
	if err != nil {
		return nil, err
	}
	store := service.NewPostStore(db)
	gen := generator.NewService(&cfg.Generation, db, credVault, logger)
	scheduler := service.NewScheduler(&cfg.Scheduler, logger, store, credVault, publishers)

	// Create router
	router := gin.New()

	// Create server
	srv := &Server{
		Config:    cfg,
		DB:        db,
		Router:    router,
		Logger:    logger,
		Auth:      auth,
		Vault:     credVault,
		Store:     store,
		Generator: gen,
		Scheduler: scheduler,
	}

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	api := s.Router.Group("/api/v1")

	// Served without auth so platforms can fetch attached images.
	api.GET("/manual-post/images/:filename", s.handleGetImage)

	auth := api.Group("/auth")
	{
		auth.POST("/register", s.handleRegister)
		auth.POST("/login", s.handleLogin)
	}

	protected := api.Group("")
	protected.Use(s.Auth.Middleware())
	{
		keys := protected.Group("/keys")
		{
			keys.GET("", s.handleListKeys)
			keys.GET("/status", s.handleKeyStatus)
			keys.POST("", s.handleStoreKey)
			keys.DELETE("/:id", s.handleDeleteKey)
			keys.POST("/:id/test", s.handleTestKey)
		}

		manual := protected.Group("/manual-post")
		{
			manual.POST("", s.handleManualPost)
			manual.POST("/upload-image", s.handleUploadImage)
		}

		protected.POST("/generate", s.handleGenerate)
		protected.GET("/topics", s.handleListTopics)
		protected.GET("/topics/:id/posts", s.handleTopicPosts)

		posts := protected.Group("/posts")
		{
			posts.GET("", s.handleListPosts)
			posts.GET("/stats", s.handleStats)
			posts.GET("/upcoming", s.handleUpcoming)
			posts.GET("/:id", s.handleGetPost)
			posts.PUT("/:id", s.handleUpdatePost)
			posts.DELETE("/:id", s.handleDeletePost)
			posts.POST("/:id/approve", s.handleApprovePost)
			posts.POST("/:id/cancel", s.handleCancelPost)
			posts.POST("/:id/retry", s.handleRetryPost)
		}
	}
}

func (s *Server) Start(ctx context.Context) error {
	// Start scheduler
	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop scheduler first so the in-flight delivery commits before the
	// process exits
	s.Scheduler.Stop()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
