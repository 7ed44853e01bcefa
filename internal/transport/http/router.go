package http

import (
	"net/http"
	"time"

	"competition-service/internal/app"
	"competition-service/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig carries everything NewRouter wires together.
type RouterConfig struct {
	Service          *app.CompetitionService
	Auth             app.AuthProvider
	Logger           *zap.Logger
	Metrics          *metrics.Collector
	Limiter          *RateLimiter
	AllowedOrigins   []string
	ProgressInterval time.Duration
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
		r.GET("/metrics", cfg.Metrics.Handler())
	}
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	h := NewHandler(cfg.Service, logger)
	ws := NewWSHandler(cfg.Service, logger, cfg.ProgressInterval)

	r.GET("/healthz", h.Health)

	api := r.Group("/api/competition")
	api.GET("/config", h.Config)

	authed := api.Group("", Authenticate(cfg.Auth))
	authed.GET("/status", h.Status)
	authed.GET("/progress", h.Progress)
	authed.GET("/results", h.Results)
	authed.GET("/ws", ws.Serve)

	limited := authed.Group("", cfg.Limiter.Middleware())
	limited.POST("/start", h.Start)
	limited.POST("/submit/:questionId", h.Submit)
	limited.POST("/log-activity", h.LogActivity)
	limited.POST("/finish", h.Finish)
	limited.POST("/dev/reset", h.Reset)
	limited.POST("/admin/disqualify/:userId", h.Disqualify)

	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "Resource not found")
	})
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
