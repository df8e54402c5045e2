// Package moderation resolves queued items: approval publishes them and
// rejection files them away.
package moderation

import (
	"context"
	"fmt"
	"log/slog"

	"newsrelay/internal/media"
	"newsrelay/internal/model"
	"newsrelay/internal/translate"
)

// Store is the persistence the moderation workflow needs.
type Store interface {
	GetModeration(ctx context.Context, id string) (*model.ModerationItem, error)
	ListModeration(ctx context.Context, limit, offset int) ([]model.ModerationItem, error)
	DeleteModeration(ctx context.Context, id string) error
	RecordNews(ctx context.Context, rec *model.NewsRecord) error
	LogFilterHit(ctx context.Context, note string) error
}

// Publisher delivers approved items.
type Publisher interface {
	Publish(ctx context.Context, m model.Media, text string) (int64, model.MediaKind, error)
}

// Service moves items out of the review state.
type Service struct {
	store      Store
	translator translate.Translator
	publisher  Publisher
	log        *slog.Logger
}

// New creates a Service.
func New(store Store, tr translate.Translator, pub Publisher, log *slog.Logger) *Service {
	return &Service{store: store, translator: tr, publisher: pub, log: log}
}

// List returns queued items, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]model.ModerationItem, error) {
	items, err := s.store.ListModeration(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list moderation: %w", err)
	}
	return items, nil
}

// Approve translates and delivers a queued item, marks it published and
// removes it from the queue. A delivery failure leaves the item queued.
func (s *Service) Approve(ctx context.Context, id string) (int64, error) {
	item, err := s.store.GetModeration(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("get moderation item %s: %w", id, err)
	}

	text, err := s.translator.Translate(ctx, item.Text)
	if err != nil || text == "" {
		s.log.Warn("translate approved item, using original text", "id", id, "error", err)
		text = item.Text
	}

	var ref string
	if item.Media != nil {
		ref = *item.Media
	}
	msgID, kind, err := s.publisher.Publish(ctx, media.FromReference(ref), text)
	switch {
	case err != nil && msgID <= 0:
		return 0, fmt.Errorf("deliver moderation item %s: %w", id, err)
	case err != nil:
		// the first part is already in the channel
		s.log.Warn("approved item delivered partially", "id", id, "message_id", msgID, "error", err)
	}

	kindStr := string(kind)
	rec := &model.NewsRecord{
		Hash:           item.Hash,
		OriginalText:   item.Text,
		TranslatedText: &text,
		MessageID:      &msgID,
		MediaKind:      &kindStr,
		Status:         model.StatusPublished,
	}
	if err := s.store.RecordNews(ctx, rec); err != nil {
		s.log.Error("record approved item", "id", id, "hash", item.Hash.Short(), "error", err)
	}

	if err := s.store.DeleteModeration(ctx, id); err != nil {
		return msgID, fmt.Errorf("delete moderation item %s: %w", id, err)
	}
	s.log.Info("approved", "id", id, "hash", item.Hash.Short(), "message_id", msgID, "kind", kind)
	return msgID, nil
}

// Reject marks a queued item filtered and removes it from the queue.
func (s *Service) Reject(ctx context.Context, id string) error {
	item, err := s.store.GetModeration(ctx, id)
	if err != nil {
		return fmt.Errorf("get moderation item %s: %w", id, err)
	}

	rec := &model.NewsRecord{Hash: item.Hash, OriginalText: item.Text, Status: model.StatusFiltered}
	if err := s.store.RecordNews(ctx, rec); err != nil {
		return fmt.Errorf("record rejected item %s: %w", id, err)
	}
	if err := s.store.LogFilterHit(ctx, "moderation:rejected"); err != nil {
		s.log.Warn("log filter hit", "error", err)
	}

	if err := s.store.DeleteModeration(ctx, id); err != nil {
		return fmt.Errorf("delete moderation item %s: %w", id, err)
	}
	s.log.Info("rejected", "id", id, "hash", item.Hash.Short())
	return nil
}
