package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/muhammadchandra19/booksync/internal/bootstrap"
	"github.com/muhammadchandra19/booksync/pkg/config"
	"github.com/muhammadchandra19/booksync/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	var cfg config.Config
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize logger
	l, err := logger.NewLogger(logger.WithLoggingLevel(logger.Level(cfg.App.LogLevel)))
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer l.Sync()

	app, err := bootstrap.New(ctx, &cfg, l)
	if err != nil {
		l.Error(err)
		os.Exit(1)
	}

	l.Info("Book sync service started",
		logger.NewField("app", cfg.App.Name),
		logger.NewField("environment", cfg.App.Environment),
		logger.NewField("products", cfg.Products),
		logger.NewField("feed_source", cfg.Feed.Source),
	)

	if err := app.Run(ctx); err != nil {
		l.Error(err)
	}

	l.Info("Shutting down book sync service...")
	app.Close()
	l.Info("Book sync service stopped")
}
