// Package translate implements the translators used before delivery.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Translator translates a text. Callers are expected to fall back to the
// original text on error.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Noop returns the text unchanged.
type Noop struct{}

// Translate returns text as is.
func (Noop) Translate(_ context.Context, text string) (string, error) {
	return text, nil
}

// Config configures an OpenAI-compatible chat translator.
type Config struct {
	APIKey   string
	Endpoint string
	Model    string
	From     string
	To       string
}

// OpenAI translates through an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	system string
}

// NewOpenAI creates a chat translator.
func NewOpenAI(cfg Config) *OpenAI {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		system: systemPrompt(cfg.From, cfg.To),
	}
}

func systemPrompt(from, to string) string {
	return fmt.Sprintf("You are a news translator. Translate the user's message from %s to %s. "+
		"Keep names, numbers and line breaks. Reply with the translation only, without quotes or comments.", from, to)
}

// Translate sends text for translation. Empty text is returned unchanged.
func (o *OpenAI) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.system},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("translate: empty response")
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("translate: empty translation")
	}
	return out, nil
}

// Chain tries translators in order and returns the first success.
type Chain struct {
	translators []Translator
	logger      *slog.Logger
}

// NewChain creates a chain over translators.
func NewChain(logger *slog.Logger, translators ...Translator) *Chain {
	return &Chain{translators: translators, logger: logger}
}

// Translate returns the first successful translation, or the joined errors
// of all translators.
func (c *Chain) Translate(ctx context.Context, text string) (string, error) {
	var errs []error
	for i, t := range c.translators {
		start := time.Now()
		out, err := t.Translate(ctx, text)
		if err == nil {
			c.logger.Debug("translated", "translator", i, "duration", time.Since(start))
			return out, nil
		}
		c.logger.Warn("translator failed, trying next", "translator", i, "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return text, nil
	}
	return "", errors.Join(errs...)
}
