package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/fyerfyer/neurocme/api"
	"github.com/fyerfyer/neurocme/api/handler"
	"github.com/fyerfyer/neurocme/api/middleware"
	"github.com/fyerfyer/neurocme/config"
	"github.com/fyerfyer/neurocme/internal/app"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to config file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	logger := middleware.GetLogger()

	// .env 不存在时直接使用进程环境变量
	if err := godotenv.Load(*envFile); err != nil {
		logger.WithField("file", *envFile).Debug("No .env file loaded")
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	middleware.ConfigureLogger(middleware.LogOptions{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	gin.SetMode(cfg.Server.Mode)
	logger.Info("Starting NeuroCME analysis server...")

	comps, err := app.Build(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize services: %v", err)
	}
	defer comps.Close()

	// 设置路由
	r := api.SetupRouter(handler.NewAnalysisHandler(comps.Service, cfg.Ingest.MaxUploadBytes))

	// 写超时需要覆盖一次完整分析
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Analysis.Timeout + 30*time.Second,
	}

	go func() {
		logger.Infof("Server is running on %s", cfg.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
