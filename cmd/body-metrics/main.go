package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	logpkg "body-metrics/internal/common/logger"
	"body-metrics/internal/config"
	"body-metrics/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	logger, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "body-metrics")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting body-metrics service",
		zap.String("version", "1.0.0"),
		zap.Int("poll_interval", cfg.Scale.PollInterval),
		zap.String("event_stream", cfg.Scale.EventStream),
		zap.String("state_topic_prefix", cfg.Scale.State.TopicPrefix),
		zap.String("http_addr", cfg.HTTP.Addr),
	)

	// 创建服务
	metricsService, err := service.NewBodyMetricsService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create body metrics service", zap.Error(err))
	}

	// 启动服务
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := metricsService.Start(ctx); err != nil {
		logger.Fatal("Failed to start body metrics service", zap.Error(err))
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭（含防抖历史的落盘）
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := metricsService.Stop(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Service stopped")
}
