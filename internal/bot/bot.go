// Package bot implements the Telegram command surface used by moderators to
// review queued items and inspect rules and counters.
package bot

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"newsrelay/internal/config"
	"newsrelay/internal/model"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Moderator resolves queued items.
type Moderator interface {
	List(ctx context.Context, limit, offset int) ([]model.ModerationItem, error)
	Approve(ctx context.Context, id string) (int64, error)
	Reject(ctx context.Context, id string) error
}

// Store is the rule store and reporting the bot reads and writes.
type Store interface {
	ListRules(ctx context.Context) ([]model.FilterRule, error)
	CreateRule(ctx context.Context, r *model.FilterRule) error
	GetSettings(ctx context.Context) (model.Settings, error)
	SetSettings(ctx context.Context, s model.Settings) error
	DailyStats(ctx context.Context, days int) ([]model.DailyAggregate, error)
	FilterHits(ctx context.Context, days int) ([]model.FilterAggregate, error)
}

// Bot is the Telegram bot that handles moderator commands.
type Bot struct {
	api   telegramAPI
	mod   Moderator
	store Store
	cfg   *config.Config
	log   *slog.Logger
}

// New creates a Bot that talks to Telegram through api. The same client can
// be shared with the channel publisher.
func New(api telegramAPI, mod Moderator, store Store, cfg *config.Config, log *slog.Logger) *Bot {
	return &Bot{
		api:   api,
		mod:   mod,
		store: store,
		cfg:   cfg,
		log:   log,
	}
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		cb := update.CallbackQuery
		if cb.From == nil || !b.cfg.IsUserAllowed(cb.From.ID) {
			b.ack(cb.ID, "Access denied.")
			return
		}
		b.handleCallback(ctx, cb)
		return
	}
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	if update.Message.From == nil || !b.cfg.IsUserAllowed(update.Message.From.ID) {
		b.reply(update.Message.Chat.ID, "Access denied.")
		return
	}
	b.handleCommand(ctx, update.Message)
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) ack(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Error("send callback ack", "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case cmdQueue:
		b.handleQueue(ctx, chatID, args)
	case cmdApprove:
		b.handleApprove(ctx, chatID, args)
	case cmdReject:
		b.handleReject(ctx, chatID, args)
	case "rules":
		b.handleRules(ctx, chatID)
	case "addrule":
		b.handleAddRule(ctx, chatID, args)
	case "default":
		b.handleDefault(ctx, chatID, args)
	case "stats":
		b.handleStats(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
