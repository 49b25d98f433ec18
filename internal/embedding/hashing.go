package embedding

import (
	"context"
	"math"
	"strconv"

	"github.com/minio/highwayhash"

	"interviewsim/internal/domain"
)

const DefaultHashingDimension = 512

var hashKey = []byte("interviewsim-feature-hashing-key")

// Hashing is a stateless bag-of-words embedder. Each token is hashed into one
// of dim buckets with a hash-derived sign, term counts are damped with
// 1+log(tf) and the vector is L2-normalized. Adjacent token pairs are hashed
// too so phrase matches score above scattered word matches.
type Hashing struct {
	dim int
}

func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = DefaultHashingDimension
	}
	return &Hashing{dim: dim}
}

func (h *Hashing) Name() string   { return "hashing" }
func (h *Hashing) Dimension() int { return h.dim }

// ID names the vector space: the same dimension always hashes the same way.
func (h *Hashing) ID() string { return "hashing/" + strconv.Itoa(h.dim) }

// Embed never fails unless ctx is already done. Text without tokens maps to the zero vector.
func (h *Hashing) Embed(ctx context.Context, text string) (domain.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := make(map[int]float64)
	tokens := Tokenize(text)
	for i, tok := range tokens {
		h.add(counts, tok, 1)
		if i > 0 {
			h.add(counts, tokens[i-1]+" "+tok, 0.5)
		}
	}

	vec := make(domain.Embedding, h.dim)
	var norm float64
	for idx, c := range counts {
		v := math.Copysign(1+math.Log(math.Abs(c)), c)
		if c == 0 {
			v = 0
		}
		vec[idx] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		inv := 1 / math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) * inv)
		}
	}
	return vec, nil
}

func (h *Hashing) add(counts map[int]float64, feature string, weight float64) {
	sum := highwayhash.Sum64([]byte(feature), hashKey)
	idx := int(sum % uint64(h.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	counts[idx] += weight
}
