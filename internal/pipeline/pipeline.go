// Package pipeline runs the ingestion, decision and delivery sequence over
// the unseen candidates of a source feed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"newsrelay/internal/dedup"
	"newsrelay/internal/filter"
	"newsrelay/internal/media"
	"newsrelay/internal/model"
	"newsrelay/internal/queue"
	"newsrelay/internal/source"
	"newsrelay/internal/translate"
)

// Store is the persistence the pipeline needs.
type Store interface {
	Cursor(ctx context.Context) (model.BoundaryCursor, error)
	SetCursor(ctx context.Context, c model.BoundaryCursor) error
	HasHash(ctx context.Context, h model.Hash) (bool, error)
	RecordNews(ctx context.Context, rec *model.NewsRecord) error
	RecentPublished(ctx context.Context, limit int) ([]model.NewsRecord, error)
	LogFilterHit(ctx context.Context, note string) error
	ListActiveRules(ctx context.Context) ([]model.FilterRule, error)
	GetSettings(ctx context.Context) (model.Settings, error)
	EnqueueModeration(ctx context.Context, item *model.ModerationItem) (bool, error)
}

// Publisher delivers posts to the channel.
type Publisher interface {
	Publish(ctx context.Context, m model.Media, text string) (int64, model.MediaKind, error)
	EditText(ctx context.Context, messageID int64, kind model.MediaKind, text string) error
}

const (
	defaultSimilarityThreshold = 75
	defaultSimilarityWindow    = 10
)

// Options tune a pipeline. Zero similarity settings take the defaults.
type Options struct {
	ScanDepth           int
	ExcludedAuthors     []string
	SimilarityThreshold float64
	SimilarityWindow    int
}

// Pipeline processes one source feed into one channel.
type Pipeline struct {
	source     source.Source
	store      Store
	translator translate.Translator
	publisher  Publisher
	opts       Options
	excluded   map[string]struct{}
	detector   dedup.Detector
	log        *slog.Logger
}

// New creates a Pipeline.
func New(src source.Source, store Store, tr translate.Translator, pub Publisher, opts Options, log *slog.Logger) *Pipeline {
	if opts.SimilarityWindow <= 0 {
		opts.SimilarityWindow = defaultSimilarityWindow
	}
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = defaultSimilarityThreshold
	}
	excluded := make(map[string]struct{}, len(opts.ExcludedAuthors))
	for _, a := range opts.ExcludedAuthors {
		if a = strings.TrimSpace(a); a != "" {
			excluded[a] = struct{}{}
		}
	}
	return &Pipeline{
		source:     src,
		store:      store,
		translator: tr,
		publisher:  pub,
		opts:       opts,
		excluded:   excluded,
		detector:   dedup.Detector{Threshold: opts.SimilarityThreshold},
		log:        log,
	}
}

// Run handles every unseen candidate oldest first and then moves the
// boundary cursor to the newest candidate that reached a recorded terminal
// state. Only failures to read the feed or the rule set abort the run.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	entries, err := p.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch source: %w", err)
	}

	cursor, err := p.store.Cursor(ctx)
	if err != nil {
		p.log.Warn("read cursor, proceeding without boundary", "error", err)
		cursor = model.BoundaryCursor{}
	}

	rules, err := p.store.ListActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	settings, err := p.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	engine := filter.New(rules, settings)

	candidates := queue.Build(entries, cursor, p.opts.ScanDepth)
	report := &Report{Boundary: cursor}
	p.log.Info("scanned feed", "entries", len(entries), "new", len(candidates), "rules", len(rules))
	if len(candidates) == 0 {
		return report, nil
	}

	var last model.Hash
	for _, c := range candidates {
		if ctx.Err() != nil {
			p.log.Warn("run interrupted", "error", ctx.Err())
			break
		}
		res := p.process(ctx, engine, c)
		report.Results = append(report.Results, res)
		p.logResult(res)
		if res.Advances() {
			last = c.Hash
		}
	}

	if last == "" {
		p.log.Info("nothing handled, boundary unchanged")
		return report, nil
	}

	next := model.BoundaryCursor{Hash: last}
	if err := p.store.SetCursor(context.WithoutCancel(ctx), next); err != nil {
		p.log.Error("persist boundary", "hash", last.Short(), "error", err)
		return report, nil
	}
	report.Boundary = next
	return report, nil
}

func (p *Pipeline) process(ctx context.Context, engine *filter.Engine, c model.Candidate) Result {
	author := strings.TrimSpace(c.Author)
	if _, ok := p.excluded[author]; ok {
		return p.drop(ctx, c, OutcomeExcluded, "author:"+author)
	}

	decision := engine.Decide(c.Text)
	switch decision.Action {
	case model.ActionReject:
		return p.drop(ctx, c, OutcomeRejected, decision.Note())
	case model.ActionModeration:
		return p.moderate(ctx, c, decision)
	}

	dup, err := p.store.HasHash(ctx, c.Hash)
	if err != nil {
		p.log.Warn("check hash, continuing", "index", c.Index, "hash", c.Hash.Short(), "error", err)
	}
	if dup {
		return Result{Candidate: c, Outcome: OutcomeDuplicate, Failure: FailureNone}
	}

	text := p.translate(ctx, c)

	var editErr error
	if match, ok := p.nearDuplicate(ctx, c); ok {
		res, err := p.edit(ctx, c, match, text)
		if err == nil {
			return res
		}
		editErr = err
		p.log.Warn("edit near duplicate, publishing as new", "index", c.Index, "hash", c.Hash.Short(), "error", err)
	}

	res := p.publish(ctx, c, text)
	if editErr != nil && res.Outcome == OutcomePublished && res.Failure == FailureNone {
		res.Failure, res.Err = FailureEdit, editErr
	}
	return res
}

// drop records a candidate that is not delivered. A hash already in the
// ledger keeps its status.
func (p *Pipeline) drop(ctx context.Context, c model.Candidate, outcome Outcome, note string) Result {
	if dup, err := p.store.HasHash(ctx, c.Hash); err == nil && dup {
		return Result{Candidate: c, Outcome: OutcomeDuplicate, Failure: FailureNone}
	}
	p.logHit(ctx, note)
	rec := &model.NewsRecord{Hash: c.Hash, OriginalText: c.Text, Status: model.StatusFiltered}
	if err := p.store.RecordNews(ctx, rec); err != nil {
		return Result{Candidate: c, Outcome: OutcomeFailed, Failure: FailureLedger, Err: err}
	}
	return Result{Candidate: c, Outcome: outcome, Failure: FailureNone}
}

func (p *Pipeline) moderate(ctx context.Context, c model.Candidate, d filter.Decision) Result {
	if dup, err := p.store.HasHash(ctx, c.Hash); err == nil && dup {
		return Result{Candidate: c, Outcome: OutcomeDuplicate, Failure: FailureNone}
	}
	p.logHit(ctx, d.Note())

	image, video := p.locate(ctx, c)
	var ref *string
	if m := media.Choose(image, video); m.Kind != model.MediaNone {
		ref = &m.URL
	}

	filterID := d.RuleID()
	if filterID == "" {
		filterID = model.ZeroRuleID
	}
	item := &model.ModerationItem{Hash: c.Hash, Text: c.Text, Media: ref, FilterID: filterID}
	if _, err := p.store.EnqueueModeration(ctx, item); err != nil {
		return Result{Candidate: c, Outcome: OutcomeFailed, Failure: FailureLedger, Err: err}
	}

	res := Result{Candidate: c, Outcome: OutcomeModeration, Failure: FailureNone}
	rec := &model.NewsRecord{Hash: c.Hash, OriginalText: c.Text, Status: model.StatusReview}
	if err := p.store.RecordNews(ctx, rec); err != nil {
		res.Failure, res.Err = FailureLedger, err
	}
	return res
}

// nearDuplicate finds the most similar recently published record that still
// has a channel message to edit.
func (p *Pipeline) nearDuplicate(ctx context.Context, c model.Candidate) (dedup.Match, bool) {
	recent, err := p.store.RecentPublished(ctx, p.opts.SimilarityWindow)
	if err != nil {
		p.log.Warn("load recent news, skipping similarity check", "index", c.Index, "error", err)
		return dedup.Match{}, false
	}
	editable := recent[:0]
	for _, r := range recent {
		if r.MessageID != nil && *r.MessageID > 0 {
			editable = append(editable, r)
		}
	}
	m, ok := p.detector.Best(c.Text, editable)
	if ok {
		p.log.Info("near duplicate", "index", c.Index, "hash", c.Hash.Short(), "record", m.Record.ID, "score", fmt.Sprintf("%.1f", m.Score))
	}
	return m, ok
}

func (p *Pipeline) edit(ctx context.Context, c model.Candidate, m dedup.Match, text string) (Result, error) {
	kind := model.MediaNone
	if m.Record.MediaKind != nil {
		kind = model.MediaKind(*m.Record.MediaKind)
	}
	msgID := *m.Record.MessageID

	if err := p.publisher.EditText(ctx, msgID, kind, text); err != nil {
		return Result{}, err
	}

	res := Result{Candidate: c, Outcome: OutcomeEdited, Failure: FailureNone, MessageID: msgID}
	kindStr := string(kind)
	rec := &model.NewsRecord{
		Hash:           c.Hash,
		OriginalText:   c.Text,
		TranslatedText: &text,
		MessageID:      &msgID,
		MediaKind:      &kindStr,
		Status:         model.StatusPublished,
	}
	if err := p.store.RecordNews(ctx, rec); err != nil {
		res.Failure, res.Err = FailureLedger, err
	}
	return res, nil
}

func (p *Pipeline) publish(ctx context.Context, c model.Candidate, text string) Result {
	image, video := p.locate(ctx, c)
	m := media.Choose(image, video)

	msgID, kind, err := p.publisher.Publish(ctx, m, text)
	if err != nil && msgID <= 0 {
		return Result{Candidate: c, Outcome: OutcomeFailed, Failure: FailureDelivery, Err: err}
	}

	// a partial send (first chunks out, a later one failed) is already public
	// and is recorded as published so the next run does not repeat it
	res := Result{Candidate: c, Outcome: OutcomePublished, Failure: FailureNone, MessageID: msgID}
	if err != nil {
		res.Failure, res.Err = FailureDelivery, err
	}
	kindStr := string(kind)
	rec := &model.NewsRecord{
		Hash:           c.Hash,
		OriginalText:   c.Text,
		TranslatedText: &text,
		MessageID:      &msgID,
		MediaKind:      &kindStr,
		Status:         model.StatusPublished,
	}
	if err := p.store.RecordNews(ctx, rec); err != nil {
		res.Failure, res.Err = FailureLedger, errors.Join(res.Err, err)
	}
	return res
}

// translate returns the translation of the candidate text or the original
// text when the translator fails.
func (p *Pipeline) translate(ctx context.Context, c model.Candidate) string {
	out, err := p.translator.Translate(ctx, c.Text)
	if err != nil || strings.TrimSpace(out) == "" {
		p.log.Warn("translate, using original text", "index", c.Index, "hash", c.Hash.Short(), "error", err)
		return c.Text
	}
	return out
}

// locate looks up the image and video URLs of a candidate concurrently.
// Lookup errors are logged and count as no media.
func (p *Pipeline) locate(ctx context.Context, c model.Candidate) (image, video string) {
	if c.Media == nil {
		return "", ""
	}
	var g errgroup.Group
	g.Go(func() error {
		u, err := c.Media.ImageURL(ctx)
		if err != nil {
			return fmt.Errorf("image: %w", err)
		}
		image = u
		return nil
	})
	g.Go(func() error {
		u, err := c.Media.VideoURL(ctx)
		if err != nil {
			return fmt.Errorf("video: %w", err)
		}
		video = u
		return nil
	})
	if err := g.Wait(); err != nil {
		p.log.Warn("locate media", "index", c.Index, "hash", c.Hash.Short(), "error", err)
	}
	return image, video
}

func (p *Pipeline) logHit(ctx context.Context, note string) {
	if err := p.store.LogFilterHit(ctx, note); err != nil {
		p.log.Warn("log filter hit", "note", note, "error", err)
	}
}

func (p *Pipeline) logResult(r Result) {
	attrs := []any{"index", r.Candidate.Index, "hash", r.Candidate.Hash.Short(), "outcome", r.Outcome}
	if r.MessageID != 0 {
		attrs = append(attrs, "message_id", r.MessageID)
	}
	switch {
	case r.Outcome == OutcomeFailed:
		p.log.Error("handle candidate", append(attrs, "failure", r.Failure, "error", r.Err)...)
	case r.Err != nil:
		p.log.Warn("handle candidate", append(attrs, "failure", r.Failure, "error", r.Err)...)
	default:
		p.log.Info("handle candidate", attrs...)
	}
}
