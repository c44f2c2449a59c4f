package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/turtacn/tenantjwt/internal/config"
	"github.com/turtacn/tenantjwt/internal/infrastructure/monitoring"
	"github.com/turtacn/tenantjwt/internal/interfaces/http/handlers"
	"github.com/turtacn/tenantjwt/internal/interfaces/http/middleware"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

// Router HTTP 路由器
type Router struct {
	engine        *gin.Engine
	config        config.ServerConfig
	logger        logger.Logger
	metrics       *monitoring.Metrics
	gatherer      prometheus.Gatherer
	healthHandler *handlers.HealthHandler
	authHandler   *handlers.AuthHandler
	adminHandler  *handlers.AdminHandler
	adminGuard    gin.HandlerFunc
	tokenLimiter  gin.HandlerFunc
	server        *http.Server
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithAdmin mounts the admin API behind guard.
func WithAdmin(h *handlers.AdminHandler, guard gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.adminHandler = h
		r.adminGuard = guard
	}
}

// WithRateLimit throttles the token endpoints with mw.
func WithRateLimit(mw gin.HandlerFunc) RouterOption {
	return func(r *Router) { r.tokenLimiter = mw }
}

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) RouterOption {
	return func(r *Router) { r.gatherer = g }
}

// NewRouter 创建路由器
func NewRouter(
	cfg config.ServerConfig,
	log logger.Logger,
	metrics *monitoring.Metrics,
	healthHandler *handlers.HealthHandler,
	authHandler *handlers.AuthHandler,
	opts ...RouterOption,
) *Router {
	// 设置 Gin 模式
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:        gin.New(),
		config:        cfg,
		logger:        log,
		metrics:       metrics,
		gatherer:      prometheus.DefaultGatherer,
		healthHandler: healthHandler,
		authHandler:   authHandler,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.setupRoutes()
	return r
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 全局中间件
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.ObservabilityMiddleware(otel.Tracer("tenantjwt/http"), r.metrics.HTTPRequests, r.metrics.HTTPRequestDuration))
	r.engine.Use(middleware.LoggingMiddleware(r.logger))

	// CORS 配置
	origins := r.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.engine.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	// 健康检查路由（不需要认证）
	r.engine.GET("/health/live", r.healthHandler.LivenessCheck)
	r.engine.GET("/health/ready", r.healthHandler.ReadinessCheck)
	r.engine.GET("/health", r.healthHandler.ReadinessCheck)

	// Prometheus metrics
	r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))

	// Pprof 性能分析（仅在非生产环境）
	if r.config.Environment != "production" {
		pprof.Register(r.engine)
	}

	// API 路由组
	v1 := r.engine.Group("/api/v1")
	{
		token := v1.Group("/token")
		if r.tokenLimiter != nil {
			token.Use(r.tokenLimiter)
		}
		{
			token.POST("", r.authHandler.IssueToken)
			token.POST("/verify", r.authHandler.VerifyToken)
			token.POST("/refresh", r.authHandler.RefreshToken)
		}

		if r.adminHandler != nil {
			admin := v1.Group("/admin", r.adminGuard)
			{
				admin.POST("/blacklist", r.adminHandler.BlockUser)
				admin.DELETE("/blacklist/:client_id/:username", r.adminHandler.UnblockUser)
				admin.POST("/clients/:client_id/invalidate", r.adminHandler.InvalidateClient)
			}
		}
	}

	// 404 处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "not_found",
			"error_description": "The requested resource was not found",
		})
	})
}

// Start 启动 HTTP 服务器，阻塞直到服务器关闭
func (r *Router) Start() error {
	addr := fmt.Sprintf("%s:%d", r.config.Host, r.config.Port)
	r.server = &http.Server{
		Addr:           addr,
		Handler:        r.engine,
		ReadTimeout:    r.config.ReadTimeout,
		WriteTimeout:   r.config.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	r.logger.Info(context.Background(), "Starting HTTP server", logger.String("address", addr))

	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop 停止 HTTP 服务器
func (r *Router) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}

	r.logger.Info(ctx, "Stopping HTTP server...")
	return r.server.Shutdown(ctx)
}

// Engine exposes the gin engine, mainly for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
