package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/5g-ran/mc-rrc/common/metrics"
	"github.com/5g-ran/mc-rrc/nf/enb/internal/config"
	"github.com/5g-ran/mc-rrc/nf/enb/internal/server"
	"github.com/5g-ran/mc-rrc/nf/enb/internal/service"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "nf/enb/config/enb.yaml", "Path to configuration file")
	flag.Parse()

	logger := initLogger()
	defer logger.Sync()

	logger.Info("starting nf/enb (LTE coordinator cell)",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	logger.Info("configuration loaded",
		zap.Uint16("cell_id", cfg.Cell.CellID),
		zap.String("group", cfg.Cell.Group),
		zap.String("x2_transport", cfg.X2.Transport))

	svc, err := service.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build cell service", zap.Error(err))
	}

	httpServer := server.New(cfg, svc, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsServer := metrics.NewMetricsServer(cfg.Observability.Metrics.Port, logger)
	go func() {
		logger.Info("starting metrics server", zap.Int("port", cfg.Observability.Metrics.Port))
		if err := metricsServer.Start(); err != nil {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	defer metricsServer.Stop()

	metrics.SetServiceUp(true)
	defer metrics.SetServiceUp(false)

	if err := svc.Start(ctx); err != nil {
		logger.Fatal("failed to start cell service", zap.Error(err))
	}
	defer svc.Stop()
	if cfg.X2.Transport == "http" {
		metrics.SetRegistryRegistered(true)
		defer metrics.SetRegistryRegistered(false)
	}

	httpErrChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil && err != http.ErrServerClosed {
			httpErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info("nf/enb started successfully", zap.Int("sbi_port", cfg.SBI.Port))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-httpErrChan:
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("shutting down nf/enb...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("error stopping HTTP server", zap.Error(err))
	}

	logger.Info("nf/enb shutdown complete")
}

func initLogger() *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zap.InfoLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := cfg.Build()
	return logger
}
