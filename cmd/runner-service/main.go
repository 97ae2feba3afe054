package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exrun/internal/common/cache"
	commonmw "exrun/internal/common/http/middleware"
	"exrun/internal/common/ratelimit"
	"exrun/internal/runner/backend"
	"exrun/internal/runner/controller"
	"exrun/internal/runner/registry"
	"exrun/internal/runner/service"
	"exrun/pkg/utils/logger"
	"exrun/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/runner_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	reg := registry.Default()
	if len(appCfg.Languages) > 0 {
		reg = registry.New(appCfg.Languages)
	}

	execBackend, err := buildBackend(appCfg.Backend)
	if err != nil {
		logger.Error(context.Background(), "init execution backend failed", zap.Error(err))
		return
	}
	logger.Info(context.Background(), "execution backend initialized",
		zap.String("mode", appCfg.Backend.Mode),
	)

	var limiter *ratelimit.Service
	if appCfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
		if err != nil {
			logger.Error(context.Background(), "init redis failed", zap.Error(err))
			return
		}
		defer func() {
			_ = redisCache.Close()
		}()
		limiter = ratelimit.NewService(redisCache, appCfg.RateLimit.CacheTimeout)
	} else {
		logger.Warn(context.Background(), "redis addr not configured, rate limiting disabled")
	}

	runnerSvc, err := service.NewService(service.Config{
		Registry:     reg,
		Backend:      execBackend,
		JobDeadline:  appCfg.Run.JobDeadline,
		PollInterval: appCfg.Run.PollInterval,
	})
	if err != nil {
		logger.Error(context.Background(), "init runner service failed", zap.Error(err))
		return
	}

	httpServer := buildHTTPServer(appCfg, runnerSvc, reg, limiter)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "runner http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

func buildBackend(cfg BackendConfig) (backend.Backend, error) {
	if cfg.Mode == backendModeKubernetes {
		return backend.NewKubernetesBackend(cfg.Kubernetes)
	}
	return backend.NewSimulatedBackend(cfg.SimulatedDelay), nil
}

func buildHTTPServer(cfg *AppConfig, runnerSvc *service.Service, reg *registry.Registry, limiter *ratelimit.Service) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())
	router.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "")
	})

	runnerController := controller.NewRunnerController(runnerSvc, reg)
	router.GET("/", runnerController.Index)
	router.GET("/health", runnerController.Health)

	api := router.Group("/api")
	api.POST("/:runner/start",
		commonmw.RateLimitMiddleware(limiter, "start", cfg.RateLimit.Max, cfg.RateLimit.Window),
		runnerController.StartRun,
	)

	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
