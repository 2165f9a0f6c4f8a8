package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/joho/godotenv"

	"hustled/internal/app"
	"hustled/internal/bot"
	"hustled/internal/config"
	"hustled/internal/notify"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadBotFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// The bot is both the command surface and the notifier, but it needs
	// the services the app builds. Late-bind through a Func so stores can
	// come up first.
	var botRef atomic.Pointer[bot.Bot]
	notifier := notify.Func(func(ctx context.Context, actorID, message string) error {
		b := botRef.Load()
		if b == nil {
			return nil
		}
		return b.Notify(ctx, actorID, message)
	})

	application, err := app.New(ctx, cfg.Store, cfg.RouletteDelay, notifier, logger)
	if err != nil {
		logger.Error("open stores failed", "err", err)
		os.Exit(1)
	}
	defer application.Close()

	b, err := bot.New(cfg, logger, application.Economy, application.Registry, application.Roulette)
	if err != nil {
		logger.Error("bot init failed", "err", err)
		os.Exit(1)
	}
	botRef.Store(b)
	if err := b.Open(); err != nil {
		logger.Error("bot connect failed", "err", err)
		os.Exit(1)
	}
	defer b.Close()

	<-ctx.Done()
	logger.Info("shutting down")
}
