// Package embedding turns text into vectors for the content store.
package embedding

import (
	"context"
	"errors"
)

var ErrEmptyText = errors.New("text cannot be empty")

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Named is implemented by embedders whose vectors depend on a model; the
// cache keys on it so switching models never serves stale vectors.
type Named interface {
	Name() string
}
