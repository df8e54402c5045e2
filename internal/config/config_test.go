package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var envKeys = []string{
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "DATABASE_PATH", "LOG_LEVEL", "ALLOWED_USERS",
	"SOURCE_URL", "SOURCE_KIND", "ITEM_SELECTOR", "TEXT_SELECTOR", "AUTHOR_SELECTOR",
	"CHECK_LAST_N", "EXCLUDED_AUTHORS", "SIMILARITY_THRESHOLD", "SIMILARITY_WINDOW",
	"TRANSLATE_API_KEY", "TRANSLATE_ENDPOINT", "TRANSLATE_MODEL", "TRANSLATE_FROM", "TRANSLATE_TO",
	"HTTP_TIMEOUT", "RUN_TIMEOUT", "RUN_INTERVAL", "SEND_INTERVAL",
}

func defaults(token string) *Config {
	return &Config{
		TelegramBotToken:    token,
		DatabasePath:        "./data/news.db",
		LogLevel:            "info",
		SourceKind:          SourceRSS,
		ItemSelector:        ".mc-message",
		TextSelector:        ".mc-message-text",
		AuthorSelector:      ".mc-message-header__name",
		CheckLastN:          5,
		SimilarityThreshold: 75,
		SimilarityWindow:    10,
		TranslateModel:      "gpt-4o-mini",
		TranslateFrom:       "Hebrew",
		TranslateTo:         "Russian",
		HTTPTimeout:         30 * time.Second,
		RunTimeout:          10 * time.Minute,
		SendInterval:        time.Second,
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    func() *Config
		wantErr bool
	}{
		{
			name:    "missing token",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name: "token only, defaults applied",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "test-token"},
			want: func() *Config { return defaults("test-token") },
		},
		{
			name: "all values set",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN":   "tok",
				"TELEGRAM_CHAT_ID":     "-100500",
				"DATABASE_PATH":        "/tmp/news.db",
				"LOG_LEVEL":            "debug",
				"ALLOWED_USERS":        "111,222,333",
				"SOURCE_URL":           "https://example.com/live",
				"SOURCE_KIND":          "HTML",
				"CHECK_LAST_N":         "8",
				"EXCLUDED_AUTHORS":     "מבזקן 12, דסק החוץ ,",
				"SIMILARITY_THRESHOLD": "80",
				"SIMILARITY_WINDOW":    "20",
				"TRANSLATE_API_KEY":    "sk",
				"TRANSLATE_ENDPOINT":   "http://llm:8080/v1",
				"HTTP_TIMEOUT":         "5s",
				"RUN_INTERVAL":         "2m",
			},
			want: func() *Config {
				c := defaults("tok")
				c.TelegramChatID = -100500
				c.DatabasePath = "/tmp/news.db"
				c.LogLevel = "debug"
				c.AllowedUsers = []int64{111, 222, 333}
				c.SourceURL = "https://example.com/live"
				c.SourceKind = SourceHTML
				c.CheckLastN = 8
				c.ExcludedAuthors = []string{"מבזקן 12", "דסק החוץ"}
				c.SimilarityThreshold = 80
				c.SimilarityWindow = 20
				c.TranslateAPIKey = "sk"
				c.TranslateEndpoint = "http://llm:8080/v1"
				c.HTTPTimeout = 5 * time.Second
				c.RunInterval = 2 * time.Minute
				return c
			},
		},
		{
			name: "allowed users with spaces",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"ALLOWED_USERS":      " 10 , 20 , ",
			},
			want: func() *Config {
				c := defaults("tok")
				c.AllowedUsers = []int64{10, 20}
				return c
			},
		},
		{
			name: "scan depth clamped",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "CHECK_LAST_N": "0"},
			want: func() *Config {
				c := defaults("tok")
				c.CheckLastN = 1
				return c
			},
		},
		{
			name:    "invalid user id",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "ALLOWED_USERS": "123,abc"},
			wantErr: true,
		},
		{
			name:    "invalid chat id",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "TELEGRAM_CHAT_ID": "@channel"},
			wantErr: true,
		},
		{
			name:    "invalid source kind",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "SOURCE_KIND": "browser"},
			wantErr: true,
		},
		{
			name:    "threshold out of range",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "SIMILARITY_THRESHOLD": "101"},
			wantErr: true,
		},
		{
			name:    "invalid duration",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "RUN_TIMEOUT": "ten minutes"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range envKeys {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want(), got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateRelay(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "complete", cfg: Config{TelegramChatID: -1, SourceURL: "https://x"}},
		{name: "missing chat", cfg: Config{SourceURL: "https://x"}, wantErr: true},
		{name: "missing source", cfg: Config{TelegramChatID: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateRelay()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRelay() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateModerator(t *testing.T) {
	if err := (&Config{}).ValidateModerator(); err == nil {
		t.Error("expected error without chat id")
	}
	if err := (&Config{TelegramChatID: -1}).ValidateModerator(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestIsUserAllowed(t *testing.T) {
	tests := []struct {
		name         string
		allowedUsers []int64
		userID       int64
		want         bool
	}{
		{
			name:         "empty list allows everyone",
			allowedUsers: nil,
			userID:       42,
			want:         true,
		},
		{
			name:         "user in list",
			allowedUsers: []int64{10, 20, 30},
			userID:       20,
			want:         true,
		},
		{
			name:         "user not in list",
			allowedUsers: []int64{10, 20, 30},
			userID:       99,
			want:         false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{AllowedUsers: tt.allowedUsers}
			got := cfg.IsUserAllowed(tt.userID)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("IsUserAllowed() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
