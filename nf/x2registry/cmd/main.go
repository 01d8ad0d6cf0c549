package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/5g-ran/mc-rrc/nf/x2registry/internal/config"
	"github.com/5g-ran/mc-rrc/nf/x2registry/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config/x2registry.yaml", "Path to configuration file")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := initLogger(*logLevel)
	defer logger.Sync()

	logger.Info("starting x2registry",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.String("sbi_bind", cfg.SBI.BindAddress),
		zap.Int("sbi_port", cfg.SBI.Port),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	regServer, err := server.NewRegistryServer(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create registry server", zap.Error(err))
	}

	errChan := make(chan error, 1)
	go func() {
		if err := regServer.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	logger.Info("x2registry started successfully",
		zap.String("address", fmt.Sprintf("%s:%d", cfg.SBI.BindAddress, cfg.SBI.Port)),
		zap.String("scheme", cfg.SBI.Scheme),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errChan:
		logger.Error("server error", zap.Error(err))
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down x2registry...")
	if err := regServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}

	logger.Info("x2registry stopped")
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	return logger
}
