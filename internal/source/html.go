package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"newsrelay/internal/media"
	"newsrelay/internal/model"
)

var styleURLRe = regexp.MustCompile(`url\((['"]?)(.*?)['"]?\)`)

// Selectors locate entries and their fields on a scraped page.
type Selectors struct {
	Item   string
	Text   string
	Author string
}

// HTML scrapes entries from a page whose message cards appear newest first.
type HTML struct {
	client HTTPClient
	url    string
	sel    Selectors
}

// NewHTML creates an HTML source for pageURL.
func NewHTML(client HTTPClient, pageURL string, sel Selectors) *HTML {
	return &HTML{client: client, url: pageURL, sel: sel}
}

// Fetch downloads the page and extracts one entry per item selector match.
// A page without any item is an error: the container never appeared.
func (h *HTML) Fetch(ctx context.Context) ([]model.Entry, error) {
	body, err := download(ctx, h.client, h.url)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	base, err := url.Parse(h.url)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	items := doc.Find(h.sel.Item)
	if items.Length() == 0 {
		return nil, fmt.Errorf("no items match %q", h.sel.Item)
	}

	entries := make([]model.Entry, 0, items.Length())
	items.Each(func(_ int, s *goquery.Selection) {
		text := h.text(s)
		if text == "" {
			return
		}
		entries = append(entries, model.Entry{
			Text:   text,
			Author: h.author(s),
			Media:  cardMedia(s, base),
		})
	})
	return entries, nil
}

func (h *HTML) text(s *goquery.Selection) string {
	if h.sel.Text == "" {
		return strings.TrimSpace(s.Text())
	}
	return strings.TrimSpace(s.Find(h.sel.Text).First().Text())
}

func (h *HTML) author(s *goquery.Selection) string {
	if h.sel.Author == "" {
		return ""
	}
	return strings.TrimSpace(s.Find(h.sel.Author).First().Text())
}

// cardMedia builds the ranked extraction strategies for one message card.
func cardMedia(card *goquery.Selection, base *url.URL) rankedMedia {
	return rankedMedia{
		video: []Strategy{
			attrStrategy(card, "video source[src]", "src", base, nil),
			attrStrategy(card, "video[src]", "src", base, nil),
			attrStrategy(card, "iframe[src]", "src", base, media.IsStream),
		},
		image: []Strategy{
			upscaled(styleStrategy(card, `[style*="background-image"]`, base)),
			upscaled(attrStrategy(card, "img[src]", "src", base, nil)),
		},
	}
}

// attrStrategy reads attr from the first element matching sel. When accept is
// set, URLs it refuses are ignored.
func attrStrategy(card *goquery.Selection, sel, attr string, base *url.URL, accept func(string) bool) Strategy {
	return func(context.Context) (string, bool) {
		v, ok := card.Find(sel).First().Attr(attr)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		u := resolve(base, v)
		if accept != nil && !accept(u) {
			return "", false
		}
		return u, true
	}
}

// styleStrategy pulls the url(...) out of an inline background-image style.
func styleStrategy(card *goquery.Selection, sel string, base *url.URL) Strategy {
	return func(context.Context) (string, bool) {
		style, ok := card.Find(sel).First().Attr("style")
		if !ok {
			return "", false
		}
		m := styleURLRe.FindStringSubmatch(style)
		if m == nil || m[2] == "" {
			return "", false
		}
		return resolve(base, m[2]), true
	}
}

func upscaled(s Strategy) Strategy {
	return func(ctx context.Context) (string, bool) {
		u, ok := s(ctx)
		if !ok {
			return "", false
		}
		return media.Upscale(u), true
	}
}
