package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/turtacn/tenantjwt/internal/config"
	"github.com/turtacn/tenantjwt/internal/infrastructure/monitoring"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

func main() {
	configFile := pflag.StringP("config", "c", "", "path to the configuration file")
	pflag.Parse()

	// Logger for startup
	startupLogger, err := monitoring.NewZapLogger(config.LogConfig{Level: "info", Format: "json"})
	if err != nil {
		log.Fatalf("Failed to create startup logger: %v", err)
	}

	// Load config
	loader := config.NewLoader(startupLogger, *configFile)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := monitoring.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	logger.SetGlobalLogger(appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, appLogger, prometheus.DefaultRegisterer)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize application", err)
	}

	// 配置热更新
	loader.Watch(func(next *config.Config) {
		app.reload(ctx, next)
	})

	app.start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.router.Start()
	}()

	select {
	case <-ctx.Done():
		appLogger.Info(context.Background(), "Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			appLogger.Error(context.Background(), "HTTP server failed", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	app.shutdown(shutdownCtx)
	appLogger.Info(shutdownCtx, "Server exited")
}
