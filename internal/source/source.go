// Package source implements the feeds that produce candidate entries: an
// RSS/Atom feed and a scraped HTML page.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"newsrelay/internal/model"
)

const maxBodySize = 5 * 1024 * 1024

// Source produces the current entries of a feed, newest first.
type Source interface {
	Fetch(ctx context.Context) ([]model.Entry, error)
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Strategy is one way of locating a media URL. It reports false when it
// found nothing.
type Strategy func(ctx context.Context) (string, bool)

// FirstMatch tries strategies in order and returns the first URL found.
func FirstMatch(ctx context.Context, strategies ...Strategy) (string, bool) {
	for _, s := range strategies {
		if ctx.Err() != nil {
			return "", false
		}
		if u, ok := s(ctx); ok && u != "" {
			return u, true
		}
	}
	return "", false
}

// rankedMedia is a MediaLocator backed by ranked strategy lists.
type rankedMedia struct {
	image []Strategy
	video []Strategy
}

func (m rankedMedia) ImageURL(ctx context.Context) (string, error) {
	u, _ := FirstMatch(ctx, m.image...)
	return u, ctx.Err()
}

func (m rankedMedia) VideoURL(ctx context.Context) (string, error) {
	u, _ := FirstMatch(ctx, m.video...)
	return u, ctx.Err()
}

// download performs a GET and returns at most maxBodySize bytes of the body.
func download(ctx context.Context, client HTTPClient, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsRelay/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// resolve makes ref absolute against base. Unparsable references are
// returned unchanged.
func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
