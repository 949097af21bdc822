package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"mirror_bot/internal/app"
	"mirror_bot/internal/config"
	"mirror_bot/internal/logger"
	"mirror_bot/internal/telegram"
)

func main() {
	// .env 不存在时静默跳过，生产环境直接用环境变量
	_ = godotenv.Load()

	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatalf("Failed to load config: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		logger.L().Fatalf("Failed to initialize application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 首次登录的验证码在终端里输入
	go telegram.ServeTerminalPrompts(ctx, application.AuthPrompts)

	// MTProto 客户端常驻运行
	go func() {
		if err := application.Wire.Run(ctx); err != nil {
			logger.L().Fatalf("Telegram client error: %v", err)
		}
	}()

	if err := application.Wire.WaitReady(ctx); err != nil {
		logger.L().Fatalf("Telegram client never became ready: %v", err)
	}

	application.Start()
	logger.L().Info("Mirror bot is running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.L().Info("Shutting down...")
	cancel()
	if err := application.Close(context.Background()); err != nil {
		logger.L().Errorf("Shutdown error: %v", err)
	}
	logger.L().Info("Shutdown complete")
}
