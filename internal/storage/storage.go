// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"newsrelay/internal/model"
)

// Sentinel errors returned by storage implementations.
var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateRule = errors.New("active rule with the same keyword and match type already exists")
)

// Storage is the interface for all persistence operations: the news ledger,
// the rule store and the moderation queue.
type Storage interface {
	Cursor(ctx context.Context) (model.BoundaryCursor, error)
	SetCursor(ctx context.Context, c model.BoundaryCursor) error

	HasHash(ctx context.Context, h model.Hash) (bool, error)
	GetNews(ctx context.Context, h model.Hash) (*model.NewsRecord, error)
	RecordNews(ctx context.Context, rec *model.NewsRecord) error
	RecentPublished(ctx context.Context, limit int) ([]model.NewsRecord, error)

	LogFilterHit(ctx context.Context, note string) error
	DailyStats(ctx context.Context, days int) ([]model.DailyAggregate, error)
	FilterHits(ctx context.Context, days int) ([]model.FilterAggregate, error)

	ListRules(ctx context.Context) ([]model.FilterRule, error)
	ListActiveRules(ctx context.Context) ([]model.FilterRule, error)
	CreateRule(ctx context.Context, r *model.FilterRule) error
	GetSettings(ctx context.Context) (model.Settings, error)
	SetSettings(ctx context.Context, s model.Settings) error

	EnqueueModeration(ctx context.Context, item *model.ModerationItem) (bool, error)
	GetModeration(ctx context.Context, id string) (*model.ModerationItem, error)
	ListModeration(ctx context.Context, limit, offset int) ([]model.ModerationItem, error)
	DeleteModeration(ctx context.Context, id string) error

	Close() error
}
