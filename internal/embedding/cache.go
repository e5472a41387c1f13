package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache is a read-through Redis cache in front of another embedder. Redis
// failures are logged and fall back to the wrapped embedder.
type Cache struct {
	next Embedder
	rdb  *redis.Client
	name string
	ttl  time.Duration
	log  *zap.SugaredLogger
}

func NewCache(next Embedder, rdb *redis.Client, ttl time.Duration, log *zap.SugaredLogger) *Cache {
	name := "default"
	if n, ok := next.(Named); ok {
		name = n.Name()
	}
	return &Cache{next: next, rdb: rdb, name: name, ttl: ttl, log: log}
}

func (c *Cache) Name() string {
	return c.name
}

func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vec, decErr := decode(raw); decErr == nil {
			return vec, nil
		}
		c.log.Warnf("Discarding corrupt cached embedding %s", key)
	case !errors.Is(err, redis.Nil):
		c.log.Warnf("Embedding cache read failed: %v", err)
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.rdb.Set(ctx, key, encode(vec), c.ttl).Err(); err != nil {
		c.log.Warnf("Embedding cache write failed: %v", err)
	}
	return vec, nil
}

func (c *Cache) key(text string) string {
	sum := sha256.Sum256([]byte(c.name + "\x00" + text))
	return "embedding:" + hex.EncodeToString(sum[:])
}

func encode(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decode(buf []byte) ([]float32, error) {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, fmt.Errorf("invalid cached vector length %d", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}
