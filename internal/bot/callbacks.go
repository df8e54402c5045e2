package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdQueue   = "queue"
	cmdApprove = "approve"
	cmdReject  = "reject"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	b.ack(cb.ID, "")
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	action, arg, ok := strings.Cut(cb.Data, ":")
	if !ok || arg == "" {
		return
	}

	var userID int64
	if cb.From != nil {
		userID = cb.From.ID
	}
	b.log.Info("callback", "action", action, "arg", arg, "chat_id", chatID, "user_id", userID)

	switch action {
	case cmdApprove:
		b.handleApprove(ctx, chatID, arg)
	case cmdReject:
		b.handleReject(ctx, chatID, arg)
	case cmdQueue:
		b.handleQueue(ctx, chatID, arg)
	}
}
