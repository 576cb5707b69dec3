package embedding

import (
	"context"
	"crypto/md5" //nolint:gosec // not used for security
	"encoding/binary"
	"math"
	"strings"
)

// DefaultHashDimensions is used when no dimension is configured.
const DefaultHashDimensions = 256

// HashProvider produces deterministic unit vectors from word hashes, so the
// pipeline can run offline and in tests. Texts sharing words get similar
// vectors; an empty text gets a zero vector.
type HashProvider struct {
	dimensions int
}

// NewHashProvider creates a hash provider with the given dimensions.
func NewHashProvider(dimensions int) *HashProvider {
	if dimensions <= 0 {
		dimensions = DefaultHashDimensions
	}
	return &HashProvider{dimensions: dimensions}
}

// Name identifies the provider.
func (p *HashProvider) Name() string { return ProviderHash }

// Dimensions returns the vector length.
func (p *HashProvider) Dimensions() int { return p.dimensions }

// Embed never fails unless ctx is already done.
func (p *HashProvider) Embed(ctx context.Context, texts []string) ([]Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Embedding, len(texts))
	for i, t := range texts {
		out[i] = Embedding{Index: i, Vector: p.vector(t)}
	}
	return out, nil
}

func (p *HashProvider) vector(text string) []float32 {
	v := make([]float32, p.dimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		sum := md5.Sum([]byte(word)) //nolint:gosec // not used for security
		idx := int(binary.LittleEndian.Uint32(sum[0:4]) % uint32(p.dimensions))
		sign := float32(1)
		if sum[4]&1 == 1 {
			sign = -1
		}
		v[idx] += sign
	}

	var norm float64
	for _, f := range v {
		norm += float64(f) * float64(f)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
