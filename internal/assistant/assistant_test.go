package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"discordbot/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type chatServer struct {
	mu      sync.Mutex
	models  []string
	reject  map[string]bool
	content string
}

func (s *chatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	s.models = append(s.models, req.Model)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if s.reject[req.Model] {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error","code":"model_not_found"}}`))
		return
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  req.Model,
		"choices": []map[string]any{
			{"index": 0, "finish_reason": "stop", "message": map[string]string{"role": "assistant", "content": s.content}},
		},
	})
}

func TestAsk(t *testing.T) {
	h := &chatServer{content: "Goroutines are lightweight threads."}
	srv := httptest.NewServer(h)
	defer srv.Close()

	a := New("sk-test", srv.URL, "gpt-5-mini", zap.NewNop().Sugar())
	reply, err := a.Ask(context.Background(), "  what is a goroutine? ")
	require.NoError(t, err)
	assert.Equal(t, "Goroutines are lightweight threads.", reply)
	assert.Equal(t, []string{"gpt-5-mini"}, h.models)
}

func TestAskFallsBackAndKeepsFallback(t *testing.T) {
	h := &chatServer{content: "ok", reject: map[string]bool{"gpt-5-mini": true}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	a := New("sk-test", srv.URL, "gpt-5-mini", zap.NewNop().Sugar())
	_, err := a.Ask(context.Background(), "hello")
	require.NoError(t, err)
	_, err = a.Ask(context.Background(), "hello again")
	require.NoError(t, err)

	assert.Equal(t, []string{"gpt-5-mini", FallbackModel, FallbackModel}, h.models)
	assert.Equal(t, FallbackModel, a.Model())
}

func TestAskBothModelsFail(t *testing.T) {
	h := &chatServer{reject: map[string]bool{"gpt-5-mini": true, FallbackModel: true}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	a := New("sk-test", srv.URL, "gpt-5-mini", zap.NewNop().Sugar())
	_, err := a.Ask(context.Background(), "hello")
	assert.ErrorIs(t, err, apperr.ErrCompletion)
	assert.Equal(t, "gpt-5-mini", a.Model())
}

func TestAskEmptyPrompt(t *testing.T) {
	a := New("sk-test", "http://127.0.0.1:1", "gpt-5-mini", zap.NewNop().Sugar())
	_, err := a.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAskEmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(&chatServer{content: ""})
	defer srv.Close()

	a := New("sk-test", srv.URL, "gpt-5-mini", zap.NewNop().Sugar())
	reply, err := a.Ask(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, emptyReply, reply)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", MaxReplyRunes))

	long := strings.Repeat("ж", 2500)
	got := Truncate(long, MaxReplyRunes)
	assert.True(t, strings.HasSuffix(got, truncationMarker))
	assert.LessOrEqual(t, utf8.RuneCountInString(got), MaxReplyRunes)
}
