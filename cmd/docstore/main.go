package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rtdb-bridge/internal/docstore"
	"rtdb-bridge/internal/docstore/config"
	"rtdb-bridge/internal/shared/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	fmt.Println("🚀 rtdb-bridge docstore - Starting...")

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load server configuration: %v", err)
	}

	appLogger := logger.NewLogger()
	appLogger.Info("Configuration loaded", zap.String("backend", cfg.Backend))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	module, err := docstore.NewModule(ctx, cfg, appLogger)
	cancel()
	if err != nil {
		log.Fatalf("Failed to initialize docstore: %v", err)
	}
	defer func() {
		if err := module.Close(context.Background()); err != nil {
			appLogger.Error("Failed to close docstore", zap.Error(err))
		}
	}()

	app := module.NewApp()
	appLogger.Info("Starting HTTP server", zap.String("addr", cfg.Addr()))

	// Start server in a goroutine for graceful shutdown
	serverShutdown := make(chan error, 1)
	go func() {
		serverShutdown <- app.Listen(cfg.Addr())
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverShutdown:
		if err != nil {
			appLogger.Error("Server failed", zap.Error(err))
			module.Close(context.Background())
			log.Fatalf("Server startup failed: %v", err)
		}
	case sig := <-quit:
		appLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		fmt.Println("🛑 Shutting down server gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			appLogger.Error("Server forced to shutdown", zap.Error(err))
		}
		appLogger.Info("HTTP server stopped")
	}

	fmt.Println("✅ docstore stopped gracefully.")
}
