package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"newsrelay/internal/bot"
	"newsrelay/internal/config"
	"newsrelay/internal/moderation"
	"newsrelay/internal/storage"
	"newsrelay/internal/telegram"
	"newsrelay/internal/translate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateModerator(); err != nil {
		slog.Error("validate config", "error", err)
		os.Exit(1)
	}

	log := config.NewLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	api, err := telegram.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Error("create telegram client", "error", err)
		os.Exit(1)
	}
	client := &http.Client{Timeout: cfg.HTTPTimeout}
	pub := telegram.New(api, cfg.TelegramChatID, client, telegram.Options{Interval: cfg.SendInterval}, log)

	var tr translate.Translator = translate.Noop{}
	if cfg.TranslateAPIKey != "" {
		tr = translate.NewChain(log, translate.NewOpenAI(translate.Config{
			APIKey:   cfg.TranslateAPIKey,
			Endpoint: cfg.TranslateEndpoint,
			Model:    cfg.TranslateModel,
			From:     cfg.TranslateFrom,
			To:       cfg.TranslateTo,
		}))
	}

	mod := moderation.New(store, tr, pub, log)

	b := bot.New(api, mod, store, cfg, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting moderator bot", "allowed_users", len(cfg.AllowedUsers))

	b.Run(ctx)

	log.Info("bot stopped")
}
