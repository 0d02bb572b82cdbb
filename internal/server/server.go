package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ifuryst/agripost/internal/config"
	"github.com/ifuryst/agripost/internal/content"
	"github.com/ifuryst/agripost/internal/service"
)

type Server struct {
	Config *config.Config
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Posts        *service.PostService
	Scheduler    *service.Scheduler
	Monitoring   *service.MonitoringService
	StatsUpdater *service.StatsUpdater
	Auth         *service.AuthService

	closers []func() error
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	gin.SetMode(cfg.Server.Mode)

	srv := &Server{
		Config: cfg,
		Router: gin.New(),
		Logger: logger,
	}

	posts, accounts, closeDB, err := service.NewStores(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	srv.closers = append(srv.closers, closeDB)

	engine, err := content.NewEngine(cfg.Content.DefaultLocale)
	if err != nil {
		srv.close()
		return nil, fmt.Errorf("failed to initialize content engine: %w", err)
	}

	manager, err := service.NewPublisherManager(&cfg.Publisher, accounts, logger)
	if err != nil {
		srv.close()
		return nil, fmt.Errorf("failed to initialize publishers: %w", err)
	}

	srv.Monitoring = service.NewMonitoringService(logger)
	opts := []service.Option{
		service.WithMonitoring(srv.Monitoring),
		service.WithBenchmarks(service.BenchmarksFromConfig(cfg.Analytics.Benchmarks)),
		service.WithStrictPlatforms(cfg.Analytics.StrictPlatforms),
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		srv.closers = append(srv.closers, client.Close)
		opts = append(opts, service.WithEngagementSource(service.NewRedisEngagementSource(client, cfg.Redis.KeyPrefix)))
		logger.Info("Using redis engagement feed", zap.String("addr", cfg.Redis.Addr))
	}

	if cfg.NATS.URL != "" {
		sink, nc, err := service.ConnectNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			srv.close()
			return nil, fmt.Errorf("failed to initialize event sink: %w", err)
		}
		srv.closers = append(srv.closers, drainNATS(nc))
		opts = append(opts, service.WithEventSink(sink))
		logger.Info("Publishing lifecycle events to NATS", zap.String("subject_prefix", cfg.NATS.SubjectPrefix))
	}

	srv.Posts = service.NewPostService(logger, posts, accounts, engine, manager, opts...)
	srv.Scheduler = service.NewScheduler(&cfg.Scheduler, logger, srv.Posts)
	srv.Auth = service.NewAuthService(logger, cfg.Server.AuthTOTPSecret)

	statsInterval, err := time.ParseDuration(cfg.Scheduler.StatsInterval)
	if err != nil || statsInterval <= 0 {
		statsInterval = 5 * time.Minute
	}
	srv.StatsUpdater = service.NewStatsUpdater(srv.Monitoring, posts, logger, statsInterval)

	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func drainNATS(nc *nats.Conn) func() error {
	return func() error {
		return nc.Drain()
	}
}

func (s *Server) setupMiddleware() {
	s.Router.Use(gin.Recovery())

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

	s.Router.Use(s.Monitoring.Middleware())

	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-TOTP-Code")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})
	s.Router.GET("/metrics", s.Monitoring.Handler())

	guard := s.Auth.AuthMiddleware()

	api := s.Router.Group("/api/v1")
	{
		api.GET("/content", s.handleGenerateContent)

		posts := api.Group("/posts")
		{
			posts.GET("", s.handleListPosts)
			posts.GET("/due", s.handleListDue)
			posts.GET("/:id", s.handleGetPost)
			posts.POST("", guard, s.handleSchedulePost)
			posts.POST("/drafts", guard, s.handleSaveDraft)
			posts.POST("/:id/schedule", guard, s.handleScheduleDraft)
			posts.POST("/:id/cancel", guard, s.handleCancelPost)
			posts.POST("/:id/retry", guard, s.handleRetryPost)
			posts.POST("/:id/publish", guard, s.handlePublishPost)
		}

		api.GET("/analytics/:platform", s.handleAnalyze)
		api.POST("/engagement/:platform/:ref", guard, s.handleRecordEngagement)

		accounts := api.Group("/accounts")
		{
			accounts.POST("", guard, s.handleRegisterAccount)
			accounts.GET("/:platform/:account_id", s.handleGetAccount)
		}
	}
}

func (s *Server) Start(ctx context.Context) error {
	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	s.StatsUpdater.Start(ctx)

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

// Shutdown stops accepting requests, lets in-flight publishes record their
// outcome and then releases the backing connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.Server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		err = s.Server.Shutdown(shutdownCtx)
	}

	s.Scheduler.Stop()
	s.StatsUpdater.Stop()
	s.close()

	return err
}

func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.Logger.Warn("Failed to close resource", zap.Error(err))
		}
	}
	s.closers = nil
}
