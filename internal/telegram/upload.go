package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxUploadSize is the Bot API limit for files sent by upload.
const maxUploadSize = 50 * 1024 * 1024

// reupload downloads rawURL to a temporary file and sends it as an upload.
// The file is removed whatever the outcome.
func (p *Publisher) reupload(ctx context.Context, rawURL string, build func(tgbotapi.RequestFileData) tgbotapi.Chattable) (int64, error) {
	file, err := p.download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := os.Remove(file); err != nil {
			p.log.Warn("remove temp media", "path", file, "error", err)
		}
	}()

	sent, err := p.send(ctx, build(tgbotapi.FilePath(file)))
	if err != nil {
		return 0, fmt.Errorf("upload %s: %w", path.Base(file), err)
	}
	return int64(sent.MessageID), nil
}

// download stores the body of rawURL in a new temporary file and returns
// its path.
func (p *Publisher) download(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsRelay/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	f, err := os.CreateTemp(p.opts.TempDir, "relay-media-*"+extension(rawURL))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()

	n, copyErr := io.Copy(f, io.LimitReader(resp.Body, maxUploadSize+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		err = fmt.Errorf("write temp file: %w", copyErr)
	case closeErr != nil:
		err = fmt.Errorf("close temp file: %w", closeErr)
	case n > maxUploadSize:
		err = fmt.Errorf("media larger than %d bytes", maxUploadSize)
	}
	if err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

func extension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return path.Ext(u.Path)
}
