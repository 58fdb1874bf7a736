package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheTTL = 24 * time.Hour

// Cache is a content-addressed redis cache for embeddings, keyed by a hash
// of the normalized text. All failures are silent: a broken cache only costs
// encoder calls.
type Cache struct {
	client *redis.Client
}

// NewCache creates an embedding cache. Returns nil when client is nil.
func NewCache(client *redis.Client) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client}
}

func cacheKey(clean string) string {
	sum := sha256.Sum256([]byte(clean))
	return "embed:" + hex.EncodeToString(sum[:])
}

// Get retrieves a cached embedding for the normalized text.
func (c *Cache) Get(ctx context.Context, clean string) (Embedding, bool) {
	data, err := c.client.Get(ctx, cacheKey(clean)).Bytes()
	if err != nil {
		return Embedding{}, false
	}
	var emb Embedding
	if err := json.Unmarshal(data, &emb); err != nil {
		return Embedding{}, false
	}
	if len(emb.Vector) != Dimensions {
		return Embedding{}, false
	}
	return emb, true
}

// Put stores an embedding for the normalized text.
func (c *Cache) Put(ctx context.Context, clean string, emb Embedding) {
	data, err := json.Marshal(emb)
	if err != nil {
		return
	}
	c.client.Set(ctx, cacheKey(clean), data, cacheTTL)
}
