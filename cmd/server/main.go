package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/maxwidget/internal/infrastructure/config"
	"github.com/GriffinCanCode/maxwidget/internal/infrastructure/logging"
	"github.com/GriffinCanCode/maxwidget/internal/server"
)

func main() {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Parse flags
	port := flag.String("port", cfg.Server.Port, "Server port")
	host := flag.String("host", cfg.Server.Host, "Server host")
	apiURL := flag.String("api", cfg.API.BaseURL, "M.A.X. API base URL")
	storageDriver := flag.String("storage", cfg.Storage.Driver, "Tab storage driver (memory, file, redis)")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development mode (colored logs, debug level)")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Server.Host = *host
	cfg.API.BaseURL = *apiURL
	cfg.Storage.Driver = *storageDriver
	cfg.Logging.Development = *dev
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logCfg := logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development}
	if *dev {
		logCfg = logging.DevelopmentConfig()
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("M.A.X. widget host",
		zap.String("addr", cfg.Address()),
		zap.String("api", cfg.API.BaseURL),
		zap.String("storage", cfg.Storage.Driver))

	srv, err := server.NewServer(cfg, logger.Logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Shutting down gracefully", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
	case err := <-errChan:
		srv.Close()
		if err != nil {
			logger.Fatal("Server error", zap.Error(err))
		}
	}
}
