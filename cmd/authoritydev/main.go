package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/stubserver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	server, err := stubserver.New(stubserver.Config{
		JWTSecret:             cfg.Stub.JWTSecret,
		AccessTokenTTLMinutes: cfg.Stub.AccessTokenTTLMinutes,
		BcryptCost:            cfg.Stub.BcryptCost,
		SeedDemoData:          cfg.Stub.SeedDemoData,
	}, logger)
	if err != nil {
		logger.Fatal("failed to build stub authority", zap.Error(err))
	}

	go func() {
		logger.Info("stub authority listening", zap.String("addr", cfg.Stub.Addr()))
		if err := server.App.Listen(cfg.Stub.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = server.App.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
