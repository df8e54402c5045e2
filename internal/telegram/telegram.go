// Package telegram delivers posts to a Telegram channel: plain, photo and
// video sends with caption limits, message edits, retries and a re-upload
// fallback for media Telegram cannot fetch itself.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"newsrelay/internal/model"
)

// ErrNoMessage is returned by EditText when the target message is unknown.
var ErrNoMessage = errors.New("no message to edit")

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// HTTPClient downloads media for the re-upload fallback.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options tune delivery pacing and retries.
type Options struct {
	Interval   time.Duration // minimum gap between API calls
	Retries    int
	RetryDelay time.Duration
	TempDir    string // where fallback downloads are stored, os.TempDir when empty
}

// Publisher sends and edits messages in a single chat.
type Publisher struct {
	api     telegramAPI
	chatID  int64
	client  HTTPClient
	limiter *rate.Limiter
	opts    Options
	log     *slog.Logger
}

// NewBotAPI connects to the Telegram Bot API with token.
func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return api, nil
}

// New creates a Publisher for chatID.
func New(api telegramAPI, chatID int64, client HTTPClient, opts Options, log *slog.Logger) *Publisher {
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	return &Publisher{
		api:     api,
		chatID:  chatID,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		log:     log,
	}
}

// Publish delivers text in the shape chosen for m and returns the id of the
// (first) message sent together with the kind actually used.
func (p *Publisher) Publish(ctx context.Context, m model.Media, text string) (int64, model.MediaKind, error) {
	switch m.Kind {
	case model.MediaVideo:
		id, err := p.SendVideo(ctx, m.URL, text)
		return id, model.MediaVideo, err
	case model.MediaPhoto:
		id, err := p.SendPhoto(ctx, m.URL, text)
		return id, model.MediaPhoto, err
	default:
		id, err := p.SendPlain(ctx, text)
		return id, model.MediaNone, err
	}
}

// SendPlain sends text as one or more messages of at most MessageLimit runes
// and returns the id of the first one.
func (p *Publisher) SendPlain(ctx context.Context, text string) (int64, error) {
	var first int64
	for i, chunk := range Chunk(text, MessageLimit) {
		msg := tgbotapi.NewMessage(p.chatID, chunk)
		msg.DisableWebPagePreview = true
		sent, err := p.send(ctx, msg)
		if err != nil {
			return first, fmt.Errorf("send message chunk %d: %w", i, err)
		}
		if i == 0 {
			first = int64(sent.MessageID)
		}
	}
	return first, nil
}

// SendPhoto sends a photo by URL with a clipped caption. If Telegram cannot
// use the URL, the photo is downloaded and uploaded instead.
func (p *Publisher) SendPhoto(ctx context.Context, url, caption string) (int64, error) {
	build := func(file tgbotapi.RequestFileData) tgbotapi.Chattable {
		photo := tgbotapi.NewPhoto(p.chatID, file)
		photo.Caption = Clip(caption, CaptionLimit)
		return photo
	}
	return p.sendMedia(ctx, url, build)
}

// SendVideo sends a video by URL with a clipped caption and streaming
// enabled, re-uploading it when Telegram rejects the URL.
func (p *Publisher) SendVideo(ctx context.Context, url, caption string) (int64, error) {
	build := func(file tgbotapi.RequestFileData) tgbotapi.Chattable {
		video := tgbotapi.NewVideo(p.chatID, file)
		video.Caption = Clip(caption, CaptionLimit)
		video.SupportsStreaming = true
		return video
	}
	return p.sendMedia(ctx, url, build)
}

func (p *Publisher) sendMedia(ctx context.Context, url string, build func(tgbotapi.RequestFileData) tgbotapi.Chattable) (int64, error) {
	sent, err := p.send(ctx, build(tgbotapi.FileURL(url)))
	if err == nil {
		return int64(sent.MessageID), nil
	}
	if !isContentRejected(err) || p.client == nil {
		return 0, fmt.Errorf("send media: %w", err)
	}

	p.log.Warn("media url rejected, re-uploading", "url", url, "error", err)
	id, upErr := p.reupload(ctx, url, build)
	if upErr != nil {
		return 0, fmt.Errorf("re-upload media: %w", upErr)
	}
	return id, nil
}

// EditText replaces the text of a plain message or the caption of a media
// message. A message that is already up to date counts as edited.
func (p *Publisher) EditText(ctx context.Context, messageID int64, kind model.MediaKind, text string) error {
	if messageID <= 0 {
		return ErrNoMessage
	}

	var edit tgbotapi.Chattable
	switch kind {
	case model.MediaPhoto, model.MediaVideo:
		edit = tgbotapi.NewEditMessageCaption(p.chatID, int(messageID), Clip(text, CaptionLimit))
	default:
		msg := tgbotapi.NewEditMessageText(p.chatID, int(messageID), Clip(text, MessageLimit))
		msg.DisableWebPagePreview = true
		edit = msg
	}

	_, err := p.send(ctx, edit)
	switch {
	case err == nil:
		return nil
	case strings.Contains(err.Error(), "message is not modified"):
		return nil
	case strings.Contains(err.Error(), "message to edit not found"):
		return fmt.Errorf("edit message %d: %w", messageID, ErrNoMessage)
	default:
		return fmt.Errorf("edit message %d: %w", messageID, err)
	}
}

// send paces and retries a single API call. Only rate limiting and server
// errors are retried.
func (p *Publisher) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	var (
		sent  tgbotapi.Message
		final error
	)
	err := repeater.NewBackoff(p.opts.Retries, p.opts.RetryDelay, repeater.WithMaxDelay(30*time.Second)).Do(ctx, func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			final = err
			return nil
		}
		msg, err := p.api.Send(c)
		if err == nil {
			sent, final = msg, nil
			return nil
		}
		wait, retryable := retryAfter(err)
		if !retryable {
			final = err
			return nil
		}
		p.log.Debug("telegram call failed, retrying", "error", err, "wait", wait)
		final = err
		if wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		}
		return err
	})
	if final != nil {
		return tgbotapi.Message{}, final
	}
	if err != nil {
		return tgbotapi.Message{}, err
	}
	return sent, nil
}

// retryAfter reports whether err is worth retrying and how long Telegram
// asked to wait.
func retryAfter(err error) (time.Duration, bool) {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return 0, false
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return time.Duration(apiErr.RetryAfter) * time.Second, true
	case apiErr.Code >= http.StatusInternalServerError:
		return 0, true
	}
	return 0, false
}

// isContentRejected reports whether Telegram refused to fetch a media URL.
func isContentRejected(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"wrong file identifier/http url specified",
		"failed to get http url content",
		"wrong type of the web page content",
		"wrong remote file",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
