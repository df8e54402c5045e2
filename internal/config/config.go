// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Source kinds.
const (
	SourceRSS  = "rss"
	SourceHTML = "html"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	TelegramChatID   int64
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64

	SourceURL      string
	SourceKind     string
	ItemSelector   string
	TextSelector   string
	AuthorSelector string

	CheckLastN          int
	ExcludedAuthors     []string
	SimilarityThreshold float64
	SimilarityWindow    int

	TranslateAPIKey   string
	TranslateEndpoint string
	TranslateModel    string
	TranslateFrom     string
	TranslateTo       string

	HTTPTimeout  time.Duration
	RunTimeout   time.Duration
	RunInterval  time.Duration
	SendInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	cfg := &Config{
		TelegramBotToken:  token,
		DatabasePath:      envOr("DATABASE_PATH", "./data/news.db"),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		SourceURL:         os.Getenv("SOURCE_URL"),
		SourceKind:        strings.ToLower(envOr("SOURCE_KIND", SourceRSS)),
		ItemSelector:      envOr("ITEM_SELECTOR", ".mc-message"),
		TextSelector:      envOr("TEXT_SELECTOR", ".mc-message-text"),
		AuthorSelector:    envOr("AUTHOR_SELECTOR", ".mc-message-header__name"),
		ExcludedAuthors:   splitList(os.Getenv("EXCLUDED_AUTHORS")),
		TranslateAPIKey:   os.Getenv("TRANSLATE_API_KEY"),
		TranslateEndpoint: os.Getenv("TRANSLATE_ENDPOINT"),
		TranslateModel:    envOr("TRANSLATE_MODEL", "gpt-4o-mini"),
		TranslateFrom:     envOr("TRANSLATE_FROM", "Hebrew"),
		TranslateTo:       envOr("TRANSLATE_TO", "Russian"),
	}

	if cfg.SourceKind != SourceRSS && cfg.SourceKind != SourceHTML {
		return nil, fmt.Errorf("invalid SOURCE_KIND %q, want %s or %s", cfg.SourceKind, SourceRSS, SourceHTML)
	}

	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		cfg.TelegramChatID = id
	}

	var err error
	if cfg.AllowedUsers, err = parseUsers(os.Getenv("ALLOWED_USERS")); err != nil {
		return nil, err
	}
	if cfg.CheckLastN, err = envInt("CHECK_LAST_N", 5); err != nil {
		return nil, err
	}
	if cfg.CheckLastN < 1 {
		cfg.CheckLastN = 1
	}
	if cfg.SimilarityWindow, err = envInt("SIMILARITY_WINDOW", 10); err != nil {
		return nil, err
	}
	threshold, err := envInt("SIMILARITY_THRESHOLD", 75)
	if err != nil {
		return nil, err
	}
	if threshold < 0 || threshold > 100 {
		return nil, fmt.Errorf("SIMILARITY_THRESHOLD must be within 0..100, got %d", threshold)
	}
	cfg.SimilarityThreshold = float64(threshold)

	if cfg.HTTPTimeout, err = envDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RunTimeout, err = envDuration("RUN_TIMEOUT", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RunInterval, err = envDuration("RUN_INTERVAL", 0); err != nil {
		return nil, err
	}
	if cfg.SendInterval, err = envDuration("SEND_INTERVAL", time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateRelay checks the settings only the relay needs.
func (c *Config) ValidateRelay() error {
	if c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	if c.SourceURL == "" {
		return fmt.Errorf("SOURCE_URL is required")
	}
	return nil
}

// ValidateModerator checks the settings the moderator bot needs to publish
// approved items.
func (c *Config) ValidateModerator() error {
	if c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	return nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// NewLogger builds a text logger on stderr for the given level name.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseUsers(raw string) ([]int64, error) {
	var users []int64
	for _, s := range splitList(raw) {
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
		}
		users = append(users, uid)
	}
	return users, nil
}
