package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	clts "insiderbot/clients"
	"insiderbot/config"
	"insiderbot/internal/app"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Optional .env for local development; env vars win in production.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()
	logger.Info("starting bot", zap.Bool("isProd", cfg.IsProd))

	if result := cfg.Validate(); !result.Valid {
		for _, e := range result.Errors {
			logger.Error("invalid config",
				zap.String("field", e.Field),
				zap.String("message", e.Message),
			)
		}
		logger.Fatal("config validation failed", zap.Int("errors", len(result.Errors)))
	}

	logger.Info("instantiating clients")
	clients := clts.NewClients(logger, cfg)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	runner := app.NewRunner(logger, cfg, clients)
	if err := runner.Run(ctx); err != nil {
		logger.Fatal("runner failed", zap.Error(err))
	}
}
