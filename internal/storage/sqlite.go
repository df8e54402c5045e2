package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"newsrelay/internal/model"
	"newsrelay/migrations"
)

const (
	dateLayout   = "2006-01-02"
	cursorKey    = "last_hash"
	maxRecent    = 100
	maxNoteLen   = 200
	maxStatsDays = 366
)

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %s: %w", pragma, err)
		}
	}

	if err := migrations.Run(context.Background(), db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// SetClock overrides the time source used for timestamps and calendar days.
func (s *SQLite) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) today() string {
	return s.now().Format(dateLayout)
}

// Cursor returns the boundary cursor persisted by the previous run.
func (s *SQLite) Cursor(ctx context.Context) (model.BoundaryCursor, error) {
	var v sql.NullString
	err := s.db.GetContext(ctx, &v, `SELECT value FROM meta WHERE key = ?`, cursorKey)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BoundaryCursor{}, nil
	}
	if err != nil {
		return model.BoundaryCursor{}, fmt.Errorf("get cursor: %w", err)
	}
	return model.BoundaryCursor{Hash: model.Hash(v.String)}, nil
}

// SetCursor persists the boundary cursor.
func (s *SQLite) SetCursor(ctx context.Context, c model.BoundaryCursor) error {
	return s.retry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			cursorKey, string(c.Hash),
		)
		if err != nil {
			return fmt.Errorf("set cursor: %w", err)
		}
		return nil
	})
}

// HasHash reports whether a news record with the given hash exists.
func (s *SQLite) HasHash(ctx context.Context, h model.Hash) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM news WHERE hash = ?`, h); err != nil {
		return false, fmt.Errorf("check hash: %w", err)
	}
	return count > 0, nil
}

const newsColumns = `id, ts, date, hash, COALESCE(text_original, '') AS text_original, text, tg_message_id, media_kind, status`

// GetNews returns the record with the given hash.
func (s *SQLite) GetNews(ctx context.Context, h model.Hash) (*model.NewsRecord, error) {
	var rec model.NewsRecord
	err := s.db.GetContext(ctx, &rec, `SELECT `+newsColumns+` FROM news WHERE hash = ?`, h)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get news: %w", err)
	}
	return &rec, nil
}

// RecordNews upserts a record keyed by its hash. Null columns of an existing
// row are filled in but non-null ones are kept; status always takes the new
// value. Daily counters move only when the status actually changes.
func (s *SQLite) RecordNews(ctx context.Context, rec *model.NewsRecord) error {
	if rec.Hash == "" {
		return fmt.Errorf("record news: empty hash")
	}
	now := s.now()
	if rec.Timestamp == 0 {
		rec.Timestamp = now.UnixMilli()
	}
	if rec.Date == "" {
		rec.Date = now.Format(dateLayout)
	}
	if rec.Status == "" {
		rec.Status = model.StatusPublished
	}

	return s.retry(ctx, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var prev model.Status
		err = tx.GetContext(ctx, &prev, `SELECT status FROM news WHERE hash = ?`, rec.Hash)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("get previous status: %w", err)
		}

		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO news (ts, date, hash, text_original, text, tg_message_id, media_kind, status)
			 VALUES (:ts, :date, :hash, :text_original, :text, :tg_message_id, :media_kind, :status)
			 ON CONFLICT(hash) DO UPDATE SET
			   text_original = COALESCE(news.text_original, excluded.text_original),
			   text          = COALESCE(news.text, excluded.text),
			   tg_message_id = COALESCE(news.tg_message_id, excluded.tg_message_id),
			   media_kind    = COALESCE(news.media_kind, excluded.media_kind),
			   status        = excluded.status`,
			rec,
		)
		if err != nil {
			return fmt.Errorf("upsert news: %w", err)
		}

		if prev != rec.Status {
			if err := incAggregate(ctx, tx, rec.Date, rec.Status); err != nil {
				return err
			}
		}

		if err := tx.GetContext(ctx, &rec.ID, `SELECT id FROM news WHERE hash = ?`, rec.Hash); err != nil {
			return fmt.Errorf("get news id: %w", err)
		}
		return tx.Commit()
	})
}

func incAggregate(ctx context.Context, tx *sqlx.Tx, date string, status model.Status) error {
	var published, rejected, moderated, filtered int
	switch status {
	case model.StatusPublished:
		published = 1
	case model.StatusRejected:
		rejected = 1
	case model.StatusModerated, model.StatusReview:
		moderated = 1
	case model.StatusFiltered:
		filtered = 1
	default:
		return nil
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO aggregator (date, published, rejected, moderated, filtered)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET
		   published = aggregator.published + excluded.published,
		   rejected  = aggregator.rejected  + excluded.rejected,
		   moderated = aggregator.moderated + excluded.moderated,
		   filtered  = aggregator.filtered  + excluded.filtered`,
		date, published, rejected, moderated, filtered,
	)
	if err != nil {
		return fmt.Errorf("increment aggregator: %w", err)
	}
	return nil
}

// RecentPublished returns up to limit most recent published records, newest first.
func (s *SQLite) RecentPublished(ctx context.Context, limit int) ([]model.NewsRecord, error) {
	limit = max(1, min(maxRecent, limit))
	var recs []model.NewsRecord
	err := s.db.SelectContext(ctx, &recs,
		`SELECT `+newsColumns+` FROM news WHERE status = ? ORDER BY id DESC LIMIT ?`,
		model.StatusPublished, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent news: %w", err)
	}
	return recs, nil
}

// LogFilterHit increments today's counter for a filter note.
func (s *SQLite) LogFilterHit(ctx context.Context, note string) error {
	if note == "" {
		note = "UNKNOWN"
	}
	if r := []rune(note); len(r) > maxNoteLen {
		note = string(r[:maxNoteLen])
	}
	return s.retry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO filter_aggregator (date, note, hits) VALUES (?, ?, 1)
			 ON CONFLICT(date, note) DO UPDATE SET hits = filter_aggregator.hits + 1`,
			s.today(), note,
		)
		if err != nil {
			return fmt.Errorf("log filter hit: %w", err)
		}
		return nil
	})
}

// lastDays returns the calendar days of the last n days, oldest first.
func (s *SQLite) lastDays(n int) []string {
	n = max(1, min(maxStatsDays, n))
	base := s.now()
	days := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		days = append(days, base.AddDate(0, 0, -i).Format(dateLayout))
	}
	return days
}

// DailyStats returns per-status counters for the last days, zero-filled.
func (s *SQLite) DailyStats(ctx context.Context, days int) ([]model.DailyAggregate, error) {
	dates := s.lastDays(days)
	var rows []model.DailyAggregate
	err := s.db.SelectContext(ctx, &rows,
		`SELECT date, published, rejected, moderated, filtered FROM aggregator
		 WHERE date >= ? AND date <= ? ORDER BY date`,
		dates[0], dates[len(dates)-1],
	)
	if err != nil {
		return nil, fmt.Errorf("query aggregator: %w", err)
	}

	byDate := make(map[string]model.DailyAggregate, len(rows))
	for _, r := range rows {
		byDate[r.Date] = r
	}
	out := make([]model.DailyAggregate, len(dates))
	for i, d := range dates {
		if r, ok := byDate[d]; ok {
			out[i] = r
			continue
		}
		out[i] = model.DailyAggregate{Date: d}
	}
	return out, nil
}

// FilterHits returns filter note counters grouped by day for the last days.
func (s *SQLite) FilterHits(ctx context.Context, days int) ([]model.FilterAggregate, error) {
	dates := s.lastDays(days)
	var rows []struct {
		Date string `db:"date"`
		model.FilterHit
	}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT date, note, hits FROM filter_aggregator
		 WHERE date >= ? AND date <= ? ORDER BY date, hits DESC, note`,
		dates[0], dates[len(dates)-1],
	)
	if err != nil {
		return nil, fmt.Errorf("query filter aggregator: %w", err)
	}

	byDate := make(map[string][]model.FilterHit)
	for _, r := range rows {
		byDate[r.Date] = append(byDate[r.Date], r.FilterHit)
	}
	out := make([]model.FilterAggregate, len(dates))
	for i, d := range dates {
		out[i] = model.FilterAggregate{Date: d, Items: byDate[d]}
	}
	return out, nil
}

const ruleColumns = `id, keyword, action, priority, match_type, active, notes, updated_at`

// ListRules returns all rules in evaluation order.
func (s *SQLite) ListRules(ctx context.Context) ([]model.FilterRule, error) {
	var rules []model.FilterRule
	err := s.db.SelectContext(ctx, &rules,
		`SELECT `+ruleColumns+` FROM filters ORDER BY priority DESC, updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	return rules, nil
}

// ListActiveRules returns active rules in evaluation order.
func (s *SQLite) ListActiveRules(ctx context.Context) ([]model.FilterRule, error) {
	var rules []model.FilterRule
	err := s.db.SelectContext(ctx, &rules,
		`SELECT `+ruleColumns+` FROM filters WHERE active = 1 ORDER BY priority DESC, updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query active rules: %w", err)
	}
	return rules, nil
}

// CreateRule inserts a rule and populates its ID and UpdatedAt when unset.
func (s *SQLite) CreateRule(ctx context.Context, r *model.FilterRule) error {
	if !r.Action.Valid() {
		return fmt.Errorf("create rule: invalid action %q", r.Action)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.MatchType == "" {
		r.MatchType = model.MatchSubstring
	}
	if r.UpdatedAt == 0 {
		r.UpdatedAt = s.now().UnixMilli()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO filters (id, keyword, action, priority, match_type, active, notes, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Keyword, string(r.Action), r.Priority, string(r.MatchType), boolToInt(r.Active), r.Notes, r.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateRule
		}
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

// GetSettings returns the rule-store settings, defaulting to publish.
func (s *SQLite) GetSettings(ctx context.Context) (model.Settings, error) {
	var action model.Action
	err := s.db.GetContext(ctx, &action, `SELECT default_action FROM settings WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Settings{DefaultAction: model.ActionPublish}, nil
	}
	if err != nil {
		return model.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return model.Settings{DefaultAction: action}, nil
}

// SetSettings persists the rule-store settings.
func (s *SQLite) SetSettings(ctx context.Context, st model.Settings) error {
	if !st.DefaultAction.Valid() {
		return fmt.Errorf("set settings: invalid action %q", st.DefaultAction)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (id, default_action, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET default_action = excluded.default_action, updated_at = excluded.updated_at`,
		string(st.DefaultAction), s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set settings: %w", err)
	}
	return nil
}

// EnqueueModeration adds an item to the moderation queue. It reports false
// when an item with the same hash is already queued.
func (s *SQLite) EnqueueModeration(ctx context.Context, item *model.ModerationItem) (bool, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt == 0 {
		item.CreatedAt = s.now().UnixMilli()
	}
	if item.FilterID == "" {
		item.FilterID = model.ZeroRuleID
	}

	var inserted bool
	err := s.retry(ctx, func() error {
		res, err := s.db.NamedExecContext(ctx,
			`INSERT INTO moderation_items (id, hash, text, media, filter_id, created_at)
			 VALUES (:id, :hash, :text, :media, :filter_id, :created_at)
			 ON CONFLICT(hash) DO NOTHING`,
			item,
		)
		if err != nil {
			return fmt.Errorf("insert moderation item: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		inserted = n > 0
		return nil
	})
	return inserted, err
}

const moderationColumns = `id, hash, text, media, filter_id, created_at`

// GetModeration returns a queued item by its ID.
func (s *SQLite) GetModeration(ctx context.Context, id string) (*model.ModerationItem, error) {
	var item model.ModerationItem
	err := s.db.GetContext(ctx, &item, `SELECT `+moderationColumns+` FROM moderation_items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get moderation item: %w", err)
	}
	return &item, nil
}

// ListModeration returns queued items, newest first.
func (s *SQLite) ListModeration(ctx context.Context, limit, offset int) ([]model.ModerationItem, error) {
	limit = max(1, min(200, limit))
	offset = max(0, offset)
	var items []model.ModerationItem
	err := s.db.SelectContext(ctx, &items,
		`SELECT `+moderationColumns+` FROM moderation_items ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query moderation items: %w", err)
	}
	return items, nil
}

// DeleteModeration removes a queued item.
func (s *SQLite) DeleteModeration(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM moderation_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete moderation item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// retry runs fn with backoff while SQLite reports lock contention.
// Any other error stops the retries immediately.
func (s *SQLite) retry(ctx context.Context, fn func() error) error {
	var critical error
	err := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second)).Do(ctx, func() error {
		err := fn()
		if err != nil && !isLockError(err) {
			critical = err
			return nil
		}
		return err
	})
	if critical != nil {
		return critical
	}
	return err
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
