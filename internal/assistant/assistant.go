// Package assistant answers free-form questions with a chat model.
package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"discordbot/internal/apperr"
	"discordbot/pkg/logger"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	FallbackModel = "gpt-4o-mini"
	MaxReplyRunes = 1900

	systemPrompt = "You are a concise, helpful assistant for a Discord bot. " +
		"Answer clearly and keep responses under 1200 characters when possible."
	truncationMarker = "\n… (truncated)"
	emptyReply       = "Sorry, I couldn't generate a response. Please try again."
	temperature      = 0.7
)

type Assistant struct {
	client *openai.Client
	log    *zap.SugaredLogger

	mu    sync.Mutex
	model string
}

func New(apiKey, baseURL, model string, log *zap.SugaredLogger) *Assistant {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Assistant{client: openai.NewClientWithConfig(cfg), model: model, log: log}
}

func (a *Assistant) Model() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.model
}

// Ask sends prompt to the current model. If the model call fails with an API
// error the fallback model is tried and, on success, kept for later calls.
func (a *Assistant) Ask(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", apperr.Validation("Please provide a question or instruction.")
	}

	start := time.Now()
	model := a.Model()
	resp, err := a.complete(ctx, model, prompt)

	var apiErr *openai.APIError
	if err != nil && errors.As(err, &apiErr) && model != FallbackModel {
		a.log.Warnf("Primary model '%s' failed, attempting fallback: %v", model, err)
		model = FallbackModel
		resp, err = a.complete(ctx, model, prompt)
		if err == nil {
			a.mu.Lock()
			a.model = model
			a.mu.Unlock()
		}
	}
	if err != nil {
		return "", apperr.Completion(err)
	}
	logger.Performance(a.log, "ask.openai_call", time.Since(start), "model", model)

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	if strings.TrimSpace(content) == "" {
		return emptyReply, nil
	}
	return Truncate(content, MaxReplyRunes), nil
}

func (a *Assistant) complete(ctx context.Context, model, prompt string) (openai.ChatCompletionResponse, error) {
	return a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
	})
}

// Truncate shortens s to at most max runes, marking the cut.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	cut := max - utf8.RuneCountInString(truncationMarker)
	if cut < 0 {
		cut = 0
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:cut]), " \t\n") + truncationMarker
}
