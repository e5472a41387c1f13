package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const defaultRetries = 2

// OpenAI embeds text with the OpenAI embeddings endpoint.
type OpenAI struct {
	client     *openai.Client
	model      string
	dimensions int
	retries    int
	// wait returns the pause before retry number attempt (0-based).
	wait func(attempt int, rateLimited bool) time.Duration
	log  *zap.SugaredLogger
}

func NewOpenAI(apiKey, baseURL, model string, dimensions int, log *zap.SugaredLogger) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
		retries:    defaultRetries,
		wait:       backoff,
		log:        log,
	}
}

// Rate limits back off exponentially; other API errors wait one second.
func backoff(attempt int, rateLimited bool) time.Duration {
	if rateLimited {
		return time.Duration(1<<attempt) * time.Second
	}
	return time.Second
}

func (o *OpenAI) Name() string {
	return fmt.Sprintf("%s-%d", o.model, o.dimensions)
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	req := openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(o.model),
		Dimensions: o.dimensions,
	}

	var lastErr error
	for attempt := 0; attempt <= o.retries; attempt++ {
		resp, err := o.client.CreateEmbeddings(ctx, req)
		if err == nil {
			if len(resp.Data) == 0 {
				return nil, errors.New("embedding response contained no data")
			}
			return resp.Data[0].Embedding, nil
		}
		lastErr = err

		if !retryable(err) || attempt == o.retries {
			break
		}
		d := o.wait(attempt, rateLimited(err))
		o.log.Warnf("Embedding request failed (attempt %d/%d), retrying in %s: %v", attempt+1, o.retries+1, d, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
		}
	}
	return nil, lastErr
}

func rateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

// Only provider-side failures are retried; cancellation and transport
// errors surface immediately.
func retryable(err error) bool {
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	return errors.As(err, &apiErr) || errors.As(err, &reqErr)
}
