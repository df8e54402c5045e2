package moderation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"newsrelay/internal/model"
	"newsrelay/internal/storage"
)

type published struct {
	Media model.Media
	Text  string
}

type fakePublisher struct {
	calls   []published
	err     error
	partial error // returned together with a message id
}

func (f *fakePublisher) Publish(_ context.Context, m model.Media, text string) (int64, model.MediaKind, error) {
	if f.err != nil {
		return 0, "", f.err
	}
	f.calls = append(f.calls, published{Media: m, Text: text})
	return int64(40 + len(f.calls)), m.Kind, f.partial
}

type fakeTranslator struct {
	err error
}

func (f fakeTranslator) Translate(_ context.Context, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "RU:" + text, nil
}

func newTestService(t *testing.T, tr fakeTranslator, pub *fakePublisher) (*Service, *storage.SQLite) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(store, tr, pub, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

// queue puts an item under review the same way the pipeline does.
func queue(t *testing.T, store *storage.SQLite, text string, mediaRef *string) *model.ModerationItem {
	t.Helper()
	ctx := context.Background()
	item := &model.ModerationItem{Hash: model.HashText(text), Text: text, Media: mediaRef}
	if _, err := store.EnqueueModeration(ctx, item); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := store.RecordNews(ctx, &model.NewsRecord{Hash: item.Hash, OriginalText: text, Status: model.StatusReview}); err != nil {
		t.Fatalf("record review: %v", err)
	}
	return item
}

func strPtr(s string) *string { return &s }

func TestApprove(t *testing.T) {
	tests := []struct {
		name      string
		media     *string
		tr        fakeTranslator
		wantMedia model.Media
		wantText  string
	}{
		{
			name:      "video",
			media:     strPtr("https://v/a.MP4?x=1"),
			wantMedia: model.Media{Kind: model.MediaVideo, URL: "https://v/a.MP4?x=1"},
			wantText:  "RU:breaking",
		},
		{
			name:      "photo",
			media:     strPtr("https://i/a.jpg"),
			wantMedia: model.Media{Kind: model.MediaPhoto, URL: "https://i/a.jpg"},
			wantText:  "RU:breaking",
		},
		{
			name:      "hls is plain",
			media:     strPtr("https://v/live.m3u8"),
			wantMedia: model.Media{Kind: model.MediaNone},
			wantText:  "RU:breaking",
		},
		{
			name:      "no media, translator down",
			tr:        fakeTranslator{err: errors.New("down")},
			wantMedia: model.Media{Kind: model.MediaNone},
			wantText:  "breaking",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			pub := &fakePublisher{}
			svc, store := newTestService(t, tt.tr, pub)
			item := queue(t, store, "breaking", tt.media)

			msgID, err := svc.Approve(ctx, item.ID)
			if err != nil {
				t.Fatalf("approve: %v", err)
			}
			if msgID != 41 {
				t.Errorf("message id = %d, want 41", msgID)
			}
			want := []published{{Media: tt.wantMedia, Text: tt.wantText}}
			if diff := cmp.Diff(want, pub.calls); diff != "" {
				t.Errorf("deliveries mismatch (-want +got):\n%s", diff)
			}

			rec, err := store.GetNews(ctx, item.Hash)
			if err != nil {
				t.Fatalf("get news: %v", err)
			}
			if rec.Status != model.StatusPublished || rec.MessageID == nil || *rec.MessageID != 41 {
				t.Errorf("unexpected record: %+v", rec)
			}
			if rec.TranslatedText == nil || *rec.TranslatedText != tt.wantText {
				t.Errorf("translated text = %v, want %q", rec.TranslatedText, tt.wantText)
			}
			if _, err := store.GetModeration(ctx, item.ID); !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("item should be removed from the queue, got %v", err)
			}

			stats, err := store.DailyStats(ctx, 1)
			if err != nil {
				t.Fatalf("daily stats: %v", err)
			}
			if stats[0].Moderated != 1 || stats[0].Published != 1 {
				t.Errorf("unexpected counters: %+v", stats[0])
			}
		})
	}
}

func TestApproveDeliveryFailureKeepsItem(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, fakeTranslator{}, &fakePublisher{err: errors.New("telegram down")})
	item := queue(t, store, "held", nil)

	if _, err := svc.Approve(ctx, item.ID); err == nil {
		t.Fatal("expected error")
	}
	if _, err := store.GetModeration(ctx, item.ID); err != nil {
		t.Errorf("item must stay queued: %v", err)
	}
	rec, err := store.GetNews(ctx, item.Hash)
	if err != nil {
		t.Fatalf("get news: %v", err)
	}
	if rec.Status != model.StatusReview {
		t.Errorf("status = %s, want review", rec.Status)
	}
}

func TestApprovePartialDeliveryIsRecorded(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{partial: errors.New("send message chunk 1: telegram down")}
	svc, store := newTestService(t, fakeTranslator{}, pub)
	item := queue(t, store, "long held story", nil)

	id, err := svc.Approve(ctx, item.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if id != 41 {
		t.Errorf("message id = %d, want 41", id)
	}
	if _, err := store.GetModeration(ctx, item.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("item must leave the queue, got %v", err)
	}
	rec, err := store.GetNews(ctx, item.Hash)
	if err != nil {
		t.Fatalf("get news: %v", err)
	}
	if rec.Status != model.StatusPublished {
		t.Errorf("status = %s, want published", rec.Status)
	}
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	svc, store := newTestService(t, fakeTranslator{}, pub)
	item := queue(t, store, "nope", strPtr("https://i/a.jpg"))

	if err := svc.Reject(ctx, item.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if len(pub.calls) != 0 {
		t.Errorf("reject must not deliver, got %+v", pub.calls)
	}
	rec, err := store.GetNews(ctx, item.Hash)
	if err != nil {
		t.Fatalf("get news: %v", err)
	}
	if rec.Status != model.StatusFiltered {
		t.Errorf("status = %s, want filtered", rec.Status)
	}
	items, err := svc.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("queue should be empty, got %d", len(items))
	}
}

func TestUnknownItem(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, fakeTranslator{}, &fakePublisher{})

	if _, err := svc.Approve(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("approve: expected ErrNotFound, got %v", err)
	}
	if err := svc.Reject(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("reject: expected ErrNotFound, got %v", err)
	}
}
