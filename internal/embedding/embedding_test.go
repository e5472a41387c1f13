package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHashIsDeterministicAndNormalised(t *testing.T) {
	h := NewHash(128)
	a, err := h.Embed(context.Background(), "Rust ownership rules")
	require.NoError(t, err)
	b, err := h.Embed(context.Background(), "rust ownership rules")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, Cosine(a, a), 1e-6)
}

func TestHashSharedWordsScoreHigher(t *testing.T) {
	h := NewHash(256)
	ctx := context.Background()
	saved, _ := h.Embed(ctx, "rust ownership rules")
	related, _ := h.Embed(ctx, "ownership in rust")
	unrelated, _ := h.Embed(ctx, "banana bread recipe")

	assert.Greater(t, Cosine(saved, related), Cosine(saved, unrelated))
}

func TestHashRejectsEmpty(t *testing.T) {
	_, err := NewHash(8).Embed(context.Background(), "  ...  ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

type embeddingServer struct {
	calls    atomic.Int32
	failures int32
	status   int
}

func (s *embeddingServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := s.calls.Add(1)
	w.Header().Set("Content-Type", "application/json")
	if n <= s.failures {
		w.WriteHeader(s.status)
		w.Write([]byte(`{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`))
		return
	}

	var req struct {
		Input      []string `json:"input"`
		Model      string   `json:"model"`
		Dimensions int      `json:"dimensions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Input) != 1 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"model":  req.Model,
		"data": []map[string]any{
			{"object": "embedding", "index": 0, "embedding": []float32{0.5, 0.25, float32(req.Dimensions)}},
		},
	})
}

func newTestOpenAI(url string) *OpenAI {
	o := NewOpenAI("sk-test", url, "text-embedding-3-small", 3, zap.NewNop().Sugar())
	o.wait = func(int, bool) time.Duration { return 0 }
	return o
}

func TestOpenAIEmbed(t *testing.T) {
	srv := httptest.NewServer(&embeddingServer{})
	defer srv.Close()

	vec, err := newTestOpenAI(srv.URL).Embed(context.Background(), "  rust ownership rules ")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25, 3}, vec)
}

func TestOpenAIRetriesRateLimit(t *testing.T) {
	h := &embeddingServer{failures: 2, status: http.StatusTooManyRequests}
	srv := httptest.NewServer(h)
	defer srv.Close()

	_, err := newTestOpenAI(srv.URL).Embed(context.Background(), "rust ownership rules")
	require.NoError(t, err)
	assert.EqualValues(t, 3, h.calls.Load())
}

func TestOpenAIGivesUpAfterRetries(t *testing.T) {
	h := &embeddingServer{failures: 10, status: http.StatusInternalServerError}
	srv := httptest.NewServer(h)
	defer srv.Close()

	_, err := newTestOpenAI(srv.URL).Embed(context.Background(), "rust ownership rules")
	require.Error(t, err)
	assert.EqualValues(t, 3, h.calls.Load())
}

func TestOpenAIRejectsEmptyWithoutCalling(t *testing.T) {
	h := &embeddingServer{}
	srv := httptest.NewServer(h)
	defer srv.Close()

	_, err := newTestOpenAI(srv.URL).Embed(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Zero(t, h.calls.Load())
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, backoff(0, true))
	assert.Equal(t, 2*time.Second, backoff(1, true))
	assert.Equal(t, time.Second, backoff(1, false))
}

func TestVectorCodec(t *testing.T) {
	vec := []float32{0.1, -2.5, 3e-7}
	got, err := decode(encode(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = decode([]byte{1, 2, 3})
	assert.Error(t, err)
}

type countingEmbedder struct {
	Embedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.Embedder.Embed(ctx, text)
}

func TestCacheFallsBackWhenRedisIsDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	defer rdb.Close()

	inner := &countingEmbedder{Embedder: NewHash(16)}
	cache := NewCache(inner, rdb, time.Minute, zap.NewNop().Sugar())

	vec, err := cache.Embed(context.Background(), "rust ownership rules")
	require.NoError(t, err)
	assert.Len(t, vec, 16)
	assert.Equal(t, 1, inner.calls)
}

func TestCacheKeyDependsOnModel(t *testing.T) {
	a := NewCache(NewHash(16), nil, time.Minute, zap.NewNop().Sugar())
	b := NewCache(NewHash(32), nil, time.Minute, zap.NewNop().Sugar())
	assert.NotEqual(t, a.key("same text"), b.key("same text"))
	assert.Equal(t, a.key("same text"), a.key("same text"))
}

func TestCacheWithRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx := context.Background()
	inner := &countingEmbedder{Embedder: NewHash(16)}
	cache := NewCache(inner, rdb, time.Minute, zap.NewNop().Sugar())
	defer rdb.Del(ctx, cache.key("cached snippet text"))

	first, err := cache.Embed(ctx, "cached snippet text")
	require.NoError(t, err)
	second, err := cache.Embed(ctx, "cached snippet text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
}
