package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	logpkg "yourmove/common/logger"
	"yourmove/internal/config"
	"yourmove/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	logger, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "yourmove-analyzer")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting yourmove-analyzer service",
		zap.String("frames_stream", cfg.Stream.Frames),
		zap.String("commands_stream", cfg.Stream.Commands),
		zap.Int("buffer_capacity", cfg.Analyzer.BufferCapacity),
		zap.String("storage_driver", cfg.Database.Driver),
		zap.Bool("gateway", cfg.Gateway.Enabled),
		zap.String("gateway_addr", cfg.Gateway.Addr),
	)

	analyzerService, err := service.NewAnalyzerService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create analyzer service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := analyzerService.Start(ctx); err != nil {
			logger.Fatal("Failed to start analyzer service", zap.Error(err))
		}
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	if err := analyzerService.Stop(ctx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Service stopped")
}
