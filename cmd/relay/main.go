package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"newsrelay/internal/config"
	"newsrelay/internal/pipeline"
	"newsrelay/internal/source"
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
	if err := cfg.ValidateRelay(); err != nil {
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

	client := &http.Client{Timeout: cfg.HTTPTimeout}

	var src source.Source
	switch cfg.SourceKind {
	case config.SourceHTML:
		src = source.NewHTML(client, cfg.SourceURL, source.Selectors{
			Item:   cfg.ItemSelector,
			Text:   cfg.TextSelector,
			Author: cfg.AuthorSelector,
		})
	default:
		src = source.NewRSS(client, cfg.SourceURL)
	}

	api, err := telegram.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Error("create telegram client", "error", err)
		os.Exit(1)
	}
	pub := telegram.New(api, cfg.TelegramChatID, client, telegram.Options{Interval: cfg.SendInterval}, log)

	p := pipeline.New(src, store, newTranslator(cfg, log), pub, pipeline.Options{
		ScanDepth:           cfg.CheckLastN,
		ExcludedAuthors:     cfg.ExcludedAuthors,
		SimilarityThreshold: cfg.SimilarityThreshold,
		SimilarityWindow:    cfg.SimilarityWindow,
	}, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.RunInterval > 0 {
		log.Info("starting relay", "source", cfg.SourceURL, "interval", cfg.RunInterval)
		p.Loop(ctx, cfg.RunInterval, cfg.RunTimeout)
		log.Info("relay stopped")
		return
	}

	report, err := p.RunWithTimeout(ctx, cfg.RunTimeout)
	if err != nil {
		log.Error("run", "error", err)
		cancel()
		_ = store.Close()
		os.Exit(1)
	}
	log.Info("run finished",
		"published", report.Count(pipeline.OutcomePublished),
		"edited", report.Count(pipeline.OutcomeEdited),
		"moderation", report.Count(pipeline.OutcomeModeration),
		"failed", report.Count(pipeline.OutcomeFailed),
	)
}

func newTranslator(cfg *config.Config, log *slog.Logger) translate.Translator {
	if cfg.TranslateAPIKey == "" {
		log.Warn("TRANSLATE_API_KEY is not set, publishing original text")
		return translate.Noop{}
	}
	return translate.NewChain(log, translate.NewOpenAI(translate.Config{
		APIKey:   cfg.TranslateAPIKey,
		Endpoint: cfg.TranslateEndpoint,
		Model:    cfg.TranslateModel,
		From:     cfg.TranslateFrom,
		To:       cfg.TranslateTo,
	}))
}
