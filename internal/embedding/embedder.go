// Package embedding turns message text into fixed-size vectors for
// similarity search. The primary path calls a pretrained text encoder over
// HTTP; when the encoder is unavailable or fails, a deterministic hash-seeded
// fallback guarantees identical text still maps to an identical vector.
package embedding

import (
	"context"
	"hash/fnv"
	"math/rand"
	"strings"

	"github.com/rs/zerolog"

	"github.com/adityaxdubey/whisper-rebellion/internal/models"
)

// Dimensions is the fixed embedding size (all-MiniLM-L6-v2).
const Dimensions = 384

// Embedding is a vector plus its provenance. Fallback vectors are
// reproducible but carry no semantic meaning.
type Embedding struct {
	Vector []float32 `json:"v"`
	Source string    `json:"s"`
}

// Embedder converts text to fixed-length vectors. Implementations never
// return an error: internal failures degrade to a deterministic fallback.
type Embedder interface {
	Embed(ctx context.Context, text string) Embedding
	EmbedBatch(ctx context.Context, texts []string) []Embedding
	Dimensions() int
}

// Service is the production Embedder. Both encoder and cache are optional;
// with neither configured every call lands on the hash fallback.
type Service struct {
	encoder *EncoderClient
	cache   *Cache
	logger  zerolog.Logger
}

// NewService creates an embedding service. encoder and cache may be nil.
func NewService(encoder *EncoderClient, cache *Cache, logger zerolog.Logger) *Service {
	return &Service{
		encoder: encoder,
		cache:   cache,
		logger:  logger.With().Str("component", "embedding").Logger(),
	}
}

// Dimensions returns the embedding size.
func (s *Service) Dimensions() int {
	return Dimensions
}

// Embed converts one text to a vector. Text is trimmed and lower-cased
// first; empty text yields the zero vector.
func (s *Service) Embed(ctx context.Context, text string) Embedding {
	clean := normalize(text)
	if clean == "" {
		return Embedding{Vector: make([]float32, Dimensions), Source: models.VectorSourceFallback}
	}

	if s.cache != nil {
		if emb, ok := s.cache.Get(ctx, clean); ok {
			return emb
		}
	}

	if s.encoder != nil {
		vecs, err := s.encoder.Encode(ctx, []string{clean})
		if err == nil && len(vecs) == 1 {
			emb := Embedding{Vector: vecs[0], Source: models.VectorSourceEncoder}
			if s.cache != nil {
				s.cache.Put(ctx, clean, emb)
			}
			return emb
		}
		if err != nil {
			s.logger.Warn().Err(err).Msg("encoder failed, using fallback embedding")
		}
	}

	return Embedding{Vector: fallbackVector(clean), Source: models.VectorSourceFallback}
}

// EmbedBatch converts texts to vectors, one per input, in input order. A
// failed encoder call degrades every element to its per-item fallback.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) []Embedding {
	out := make([]Embedding, len(texts))
	if len(texts) == 0 {
		return out
	}

	cleaned := make([]string, len(texts))
	pending := make([]int, 0, len(texts))
	for i, text := range texts {
		cleaned[i] = normalize(text)
		if cleaned[i] == "" {
			out[i] = Embedding{Vector: make([]float32, Dimensions), Source: models.VectorSourceFallback}
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return out
	}

	if s.encoder != nil {
		inputs := make([]string, len(pending))
		for j, i := range pending {
			inputs[j] = cleaned[i]
		}
		vecs, err := s.encoder.Encode(ctx, inputs)
		if err == nil && len(vecs) == len(pending) {
			for j, i := range pending {
				out[i] = Embedding{Vector: vecs[j], Source: models.VectorSourceEncoder}
			}
			return out
		}
		if err != nil {
			s.logger.Warn().Err(err).Int("batch", len(pending)).Msg("batch encode failed, using fallback embeddings")
		}
	}

	for _, i := range pending {
		out[i] = Embedding{Vector: fallbackVector(cleaned[i]), Source: models.VectorSourceFallback}
	}
	return out
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// fallbackVector derives a reproducible pseudo-vector from a hash of the
// normalized text: the hash seeds a PRNG that draws Dimensions uniform
// values in [0,1). Identical text always produces an identical vector.
func fallbackVector(clean string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(clean))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float32, Dimensions)
	for i := range vec {
		vec[i] = rng.Float32()
	}
	return vec
}
