// Package model defines the domain types used across the application.
package model

import (
	"context"
	"crypto/sha1" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"time"
)

// Hash is the content fingerprint of a candidate's raw text.
type Hash string

// HashText returns the SHA-1 fingerprint of text in hex form.
func HashText(text string) Hash {
	sum := sha1.Sum([]byte(text)) //nolint:gosec // see import
	return Hash(hex.EncodeToString(sum[:]))
}

// Short returns a hash prefix suitable for log lines.
func (h Hash) Short() string {
	if len(h) <= 8 {
		return string(h)
	}
	return string(h[:8])
}

// BoundaryCursor marks the newest fully processed candidate of the previous run.
// The zero value means cold start.
type BoundaryCursor struct {
	Hash Hash
}

// IsZero reports whether the cursor is absent.
func (c BoundaryCursor) IsZero() bool {
	return c.Hash == ""
}

// MediaLocator finds media attached to a feed entry. Both lookups are
// best-effort: an empty URL with a nil error means "no media of that kind".
type MediaLocator interface {
	ImageURL(ctx context.Context) (string, error)
	VideoURL(ctx context.Context) (string, error)
}

// Entry is a single record produced by a source feed, newest first.
type Entry struct {
	Text   string
	Author string
	Media  MediaLocator
}

// Candidate is an unseen entry queued for processing in the current run.
type Candidate struct {
	Index  int
	Text   string
	Hash   Hash
	Author string
	Media  MediaLocator
}

// Status is the ledger state of a news record.
type Status string

// Supported news statuses.
const (
	StatusPublished Status = "published"
	StatusRejected  Status = "rejected"
	StatusModerated Status = "moderated"
	StatusFiltered  Status = "filtered"
	StatusReview    Status = "review"
)

// MediaKind is the delivery shape of a channel message.
type MediaKind string

// Supported media kinds.
const (
	MediaNone  MediaKind = "text"
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// Media is a resolved media reference chosen for delivery.
type Media struct {
	Kind MediaKind
	URL  string
}

// NewsRecord is one ledger row per distinct content hash.
type NewsRecord struct {
	ID             int64   `db:"id"`
	Timestamp      int64   `db:"ts"`
	Date           string  `db:"date"`
	Hash           Hash    `db:"hash"`
	OriginalText   string  `db:"text_original"`
	TranslatedText *string `db:"text"`
	MessageID      *int64  `db:"tg_message_id"`
	MediaKind      *string `db:"media_kind"`
	Status         Status  `db:"status"`
}

// Action is what the rule engine decides for a candidate.
type Action string

// Supported actions.
const (
	ActionPublish    Action = "publish"
	ActionReject     Action = "reject"
	ActionModeration Action = "moderation"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionPublish, ActionReject, ActionModeration:
		return true
	}
	return false
}

// MatchType defines how a rule keyword is matched.
type MatchType string

// Supported match types.
const (
	MatchSubstring MatchType = "substring"
	MatchRegex     MatchType = "regex"
)

// FilterRule is an externally managed keyword rule.
type FilterRule struct {
	ID        string    `db:"id"`
	Keyword   string    `db:"keyword"`
	Action    Action    `db:"action"`
	Priority  int       `db:"priority"`
	MatchType MatchType `db:"match_type"`
	Active    bool      `db:"active"`
	Notes     *string   `db:"notes"`
	UpdatedAt int64     `db:"updated_at"`
}

// Settings holds the singleton rule-store settings.
type Settings struct {
	DefaultAction Action
}

// ZeroRuleID is recorded for moderation entries created by the default action.
const ZeroRuleID = "00000000-0000-0000-0000-000000000000"

// ModerationItem is a candidate waiting for a human decision.
type ModerationItem struct {
	ID        string  `db:"id"`
	Hash      Hash    `db:"hash"`
	Text      string  `db:"text"`
	Media     *string `db:"media"`
	FilterID  string  `db:"filter_id"`
	CreatedAt int64   `db:"created_at"`
}

// Created returns the creation time of the item.
func (m ModerationItem) Created() time.Time {
	return time.UnixMilli(m.CreatedAt)
}

// DailyAggregate holds per-day counters by status.
type DailyAggregate struct {
	Date      string `db:"date"`
	Published int    `db:"published"`
	Rejected  int    `db:"rejected"`
	Moderated int    `db:"moderated"`
	Filtered  int    `db:"filtered"`
}

// FilterHit is a per-day counter for a single filter note.
type FilterHit struct {
	Note  string `db:"note"`
	Count int    `db:"hits"`
}

// FilterAggregate groups the filter hits of a single day.
type FilterAggregate struct {
	Date  string
	Items []FilterHit
}
