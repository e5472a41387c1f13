package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Hash is an offline embedder. Each word is hashed into one signed bucket
// and the result is normalised, so texts sharing words score as similar and
// equal texts always produce equal vectors.
type Hash struct {
	dim int
}

func NewHash(dim int) *Hash {
	return &Hash{dim: dim}
}

func (h *Hash) Name() string {
	return fmt.Sprintf("hash-%d", h.dim)
}

func (h *Hash) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return nil, ErrEmptyText
	}

	vec := make([]float32, h.dim)
	for _, w := range words {
		sum := sha256.Sum256([]byte(w))
		idx := binary.BigEndian.Uint32(sum[0:4]) % uint32(h.dim)
		if sum[4]&1 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}
	return normalize(vec), nil
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// Cosine returns the cosine similarity of a and b, or 0 when either is zero
// or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
