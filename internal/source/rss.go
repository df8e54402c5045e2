package source

import (
	"context"
	"fmt"
	"html"
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"newsrelay/internal/media"
	"newsrelay/internal/model"
)

// RSS reads entries from an RSS or Atom feed.
type RSS struct {
	client HTTPClient
	url    string
	parser *gofeed.Parser
	policy *bluemonday.Policy
}

// NewRSS creates an RSS source for the feed at feedURL.
func NewRSS(client HTTPClient, feedURL string) *RSS {
	return &RSS{
		client: client,
		url:    feedURL,
		parser: gofeed.NewParser(),
		policy: bluemonday.StrictPolicy(),
	}
}

// Fetch downloads and parses the feed. Items are returned newest first.
func (r *RSS) Fetch(ctx context.Context) ([]model.Entry, error) {
	body, err := download(ctx, r.client, r.url)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	feed, err := r.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := slices.Clone(feed.Items)
	slices.SortStableFunc(items, func(a, b *gofeed.Item) int {
		// undated items go last so the comparator stays a strict weak order
		switch {
		case a.PublishedParsed == nil && b.PublishedParsed == nil:
			return 0
		case a.PublishedParsed == nil:
			return 1
		case b.PublishedParsed == nil:
			return -1
		}
		return b.PublishedParsed.Compare(*a.PublishedParsed)
	})

	entries := make([]model.Entry, 0, len(items))
	for _, item := range items {
		text := r.itemText(item)
		if text == "" {
			continue
		}
		entries = append(entries, model.Entry{
			Text:   text,
			Author: itemAuthor(item),
			Media:  enclosureMedia(item),
		})
	}
	return entries, nil
}

// itemText returns the plain text of an item: the description, falling back
// to the content and then the title.
func (r *RSS) itemText(item *gofeed.Item) string {
	for _, raw := range []string{item.Description, item.Content, item.Title} {
		text := strings.TrimSpace(html.UnescapeString(r.policy.Sanitize(raw)))
		if text != "" {
			return text
		}
	}
	return ""
}

func itemAuthor(item *gofeed.Item) string {
	for _, p := range item.Authors {
		if p != nil && strings.TrimSpace(p.Name) != "" {
			return strings.TrimSpace(p.Name)
		}
	}
	return ""
}

// enclosureMedia ranks enclosures by MIME type, then by URL extension.
func enclosureMedia(item *gofeed.Item) rankedMedia {
	var m rankedMedia
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		u := enc.URL
		switch {
		case strings.HasPrefix(enc.Type, "video/"):
			m.video = append(m.video, constant(u))
		case strings.HasPrefix(enc.Type, "image/"):
			m.image = append(m.image, constant(media.Upscale(u)))
		case media.IsStream(u) || media.IsVideo(u):
			m.video = append(m.video, constant(u))
		}
	}
	if item.Image != nil && item.Image.URL != "" {
		m.image = append(m.image, constant(media.Upscale(item.Image.URL)))
	}
	return m
}

func constant(u string) Strategy {
	return func(context.Context) (string, bool) { return u, u != "" }
}
