package source

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"newsrelay/internal/model"
)

type mockTransport struct {
	body       string
	statusCode int
	err        error
	lastURL    string
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	m.lastURL = req.URL.String()
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

type entryView struct {
	Text   string
	Author string
	Image  string
	Video  string
}

func view(t *testing.T, entries []model.Entry) []entryView {
	t.Helper()
	ctx := context.Background()
	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		v := entryView{Text: e.Text, Author: e.Author}
		if e.Media != nil {
			img, err := e.Media.ImageURL(ctx)
			if err != nil {
				t.Fatalf("image url: %v", err)
			}
			vid, err := e.Media.VideoURL(ctx)
			if err != nil {
				t.Fatalf("video url: %v", err)
			}
			v.Image, v.Video = img, vid
		}
		out = append(out, v)
	}
	return out
}

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Flash</title>
  <item>
    <title>older</title>
    <description>&lt;p&gt;Older &lt;b&gt;story&lt;/b&gt; &amp;amp; more&lt;/p&gt;</description>
    <dc:creator>Desk</dc:creator>
    <pubDate>Mon, 10 Mar 2025 08:00:00 +0000</pubDate>
    <enclosure url="https://cdn.example.com/img_270X320.jpg" type="image/jpeg" length="1"/>
  </item>
  <item>
    <title>newer</title>
    <description>Newer story</description>
    <pubDate>Mon, 10 Mar 2025 09:00:00 +0000</pubDate>
    <enclosure url="https://cdn.example.com/clip.mp4" type="video/mp4" length="1"/>
  </item>
  <item>
    <title>Title only</title>
    <pubDate>Mon, 10 Mar 2025 07:00:00 +0000</pubDate>
  </item>
</channel>
</rss>`

const mixedDatesRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Mixed</title>
<item><description>Monday story</description><pubDate>Mon, 03 Mar 2025 10:00:00 +0000</pubDate></item>
<item><description>Undated first</description></item>
<item><description>Sunday story</description><pubDate>Sun, 02 Mar 2025 10:00:00 +0000</pubDate></item>
<item><description>Undated second</description></item>
<item><description>Tuesday story</description><pubDate>Tue, 04 Mar 2025 10:00:00 +0000</pubDate></item>
</channel></rss>`

func TestRSSFetch(t *testing.T) {
	tests := []struct {
		name      string
		transport *mockTransport
		want      []entryView
		wantErr   bool
	}{
		{
			name:      "newest first with media",
			transport: &mockTransport{body: sampleRSS, statusCode: 200},
			want: []entryView{
				{Text: "Newer story", Video: "https://cdn.example.com/clip.mp4"},
				{Text: "Older story & more", Author: "Desk", Image: "https://cdn.example.com/img_676X800.jpg"},
				{Text: "Title only"},
			},
		},
		{
			name:      "undated items after dated ones",
			transport: &mockTransport{body: mixedDatesRSS, statusCode: 200},
			want: []entryView{
				{Text: "Tuesday story"},
				{Text: "Monday story"},
				{Text: "Sunday story"},
				{Text: "Undated first"},
				{Text: "Undated second"},
			},
		},
		{
			name:      "http error status",
			transport: &mockTransport{body: "not found", statusCode: 404},
			wantErr:   true,
		},
		{
			name:      "network error",
			transport: &mockTransport{err: io.ErrUnexpectedEOF},
			wantErr:   true,
		},
		{
			name:      "invalid xml",
			transport: &mockTransport{body: "not xml at all", statusCode: 200},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewRSS(tt.transport, "https://example.com/rss")
			got, err := src.Fetch(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, view(t, got)); diff != "" {
				t.Errorf("entries mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

const samplePage = `<html><body>
<div class="mc-message">
  <div class="mc-message-header__name">Reporter</div>
  <div class="mc-message-text">  Newest item  </div>
  <div class="mc-content-media-item" style="background-image: url('/media/pic_148X320.jpg')"></div>
</div>
<div class="mc-message">
  <div class="mc-message-header__name">מבזקן 12</div>
  <div class="mc-message-text">Video item</div>
  <div class="mc-glr-video-wrap"><video><source src="https://v.example.com/a.mp4"></video></div>
</div>
<div class="mc-message">
  <div class="mc-message-text">Iframe item</div>
  <iframe src="https://player.example.com/embed/123"></iframe>
  <img src="thumb.jpg">
</div>
<div class="mc-message">
  <div class="mc-message-text">   </div>
</div>
</body></html>`

var testSelectors = Selectors{
	Item:   ".mc-message",
	Text:   ".mc-message-text",
	Author: ".mc-message-header__name",
}

func TestHTMLFetch(t *testing.T) {
	tr := &mockTransport{body: samplePage, statusCode: 200}
	src := NewHTML(tr, "https://news.example.com/live/", testSelectors)

	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	want := []entryView{
		{Text: "Newest item", Author: "Reporter", Image: "https://news.example.com/media/pic_676X800.jpg"},
		{Text: "Video item", Author: "מבזקן 12", Video: "https://v.example.com/a.mp4"},
		{Text: "Iframe item", Image: "https://news.example.com/live/thumb.jpg"},
	}
	if diff := cmp.Diff(want, view(t, got)); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
	if tr.lastURL != "https://news.example.com/live/" {
		t.Errorf("requested %q", tr.lastURL)
	}
}

func TestHTMLFetchNoItems(t *testing.T) {
	tr := &mockTransport{body: "<html><body><p>maintenance</p></body></html>", statusCode: 200}
	src := NewHTML(tr, "https://news.example.com/", testSelectors)
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected error when no items are present")
	}
}

func TestFirstMatch(t *testing.T) {
	miss := func(context.Context) (string, bool) { return "", false }
	hit := func(u string) Strategy {
		return func(context.Context) (string, bool) { return u, true }
	}

	tests := []struct {
		name       string
		strategies []Strategy
		want       string
		wantOK     bool
	}{
		{name: "none", want: "", wantOK: false},
		{name: "all miss", strategies: []Strategy{miss, miss}},
		{name: "first hit wins", strategies: []Strategy{miss, hit("a"), hit("b")}, want: "a", wantOK: true},
		{name: "empty hit skipped", strategies: []Strategy{hit(""), hit("b")}, want: "b", wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FirstMatch(context.Background(), tt.strategies...)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("FirstMatch() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := FirstMatch(ctx, hit("a")); ok {
		t.Error("cancelled context must stop the search")
	}
}
