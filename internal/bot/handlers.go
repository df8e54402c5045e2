package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"newsrelay/internal/filter"
	"newsrelay/internal/model"
	"newsrelay/internal/storage"
)

const queuePageSize = 5

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `News relay moderator.

Items held for moderation are waiting in the queue.

Quick start:
1. /queue — review held items
2. /approve <id> — publish an item
3. /reject <id> — drop an item

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Moderation:
/queue [offset] — show held items, newest first
/approve <id> — translate and publish an item
/reject <id> — drop an item

Rules:
/rules — show rules and the default action
/addrule <action> <priority> [-re] <keyword> — add a rule
/default <action> — set the default action

Reports:
/stats [days] — daily counters and filter hits (default 7)

Actions: publish | reject | moderation`)
}

func (b *Bot) handleQueue(ctx context.Context, chatID int64, args string) {
	offset := 0
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n < 0 {
			b.reply(chatID, "Usage: /queue [offset]")
			return
		}
		offset = n
	}

	items, err := b.mod.List(ctx, queuePageSize, offset)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if len(items) == 0 {
		if offset == 0 {
			b.reply(chatID, "Moderation queue is empty.")
		} else {
			b.reply(chatID, "No more items.")
		}
		return
	}

	for _, item := range items {
		b.sendQueueItem(chatID, item)
	}

	if len(items) == queuePageSize {
		next := offset + queuePageSize
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Showing %d-%d.", offset+1, next))
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Next page", fmt.Sprintf("%s:%d", cmdQueue, next)),
			),
		)
		if _, err := b.api.Send(msg); err != nil {
			b.log.Error("send queue page", "chat_id", chatID, "error", err)
		}
	}
}

func (b *Bot) sendQueueItem(chatID int64, item model.ModerationItem) {
	msg := tgbotapi.NewMessage(chatID, FormatQueueItem(item))
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Approve", cmdApprove+":"+item.ID),
			tgbotapi.NewInlineKeyboardButtonData("Reject", cmdReject+":"+item.ID),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send queue item", "chat_id", chatID, "item", item.ID, "error", err)
	}
}

func (b *Bot) handleApprove(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /approve <id>")
		return
	}

	msgID, err := b.mod.Approve(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, fmt.Sprintf("Item %s not found.", id))
		return
	}
	if err != nil {
		b.log.Error("approve", "item", id, "error", err)
		b.reply(chatID, fmt.Sprintf("Failed to publish item %s: %v", id, err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Item %s published (message %d).", id, msgID))
}

func (b *Bot) handleReject(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /reject <id>")
		return
	}

	err = b.mod.Reject(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, fmt.Sprintf("Item %s not found.", id))
		return
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Item %s rejected.", id))
}

func (b *Bot) handleRules(ctx context.Context, chatID int64) {
	rules, err := b.store.ListRules(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	settings, err := b.store.GetSettings(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatRules(rules, settings))
}

func (b *Bot) handleAddRule(ctx context.Context, chatID int64, args string) {
	parsed, err := ParseRuleCommand(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	if parsed.MatchType == model.MatchRegex {
		if err := filter.ValidateRegex(parsed.Keyword); err != nil {
			b.reply(chatID, fmt.Sprintf("Invalid regex: %v", err))
			return
		}
	}

	r := &model.FilterRule{
		Keyword:   parsed.Keyword,
		Action:    parsed.Action,
		Priority:  parsed.Priority,
		MatchType: parsed.MatchType,
		Active:    true,
	}
	err = b.store.CreateRule(ctx, r)
	if errors.Is(err, storage.ErrDuplicateRule) {
		b.reply(chatID, fmt.Sprintf("Rule %q already exists.", parsed.Keyword))
		return
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	b.reply(chatID, fmt.Sprintf("Rule added: [%d] %s %q (%s)", r.Priority, r.Action, r.Keyword, r.MatchType))
}

func (b *Bot) handleDefault(ctx context.Context, chatID int64, args string) {
	action, err := ParseActionArg(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	if err := b.store.SetSettings(ctx, model.Settings{DefaultAction: action}); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Default action set to %s.", action))
}

func (b *Bot) handleStats(ctx context.Context, chatID int64, args string) {
	days, err := ParseDaysArg(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	daily, err := b.store.DailyStats(ctx, days)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	hits, err := b.store.FilterHits(ctx, days)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatStats(daily, hits))
}
