package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const DefaultCacheTTL = 7 * 24 * time.Hour

// RedisStore is the subset of *redis.Client used by Cached.
type RedisStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Cached memoizes vectors in Redis, keyed by model and text hash. Cache
// failures are logged and never fail the call.
type Cached struct {
	next   Gateway
	store  RedisStore
	model  string
	ttl    time.Duration
	logger *zap.Logger
}

func NewCached(next Gateway, store RedisStore, model string, ttl time.Duration, logger *zap.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, store: store, model: model, ttl: ttl, logger: logger}
}

// NewRedisClient connects to addr and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}

// Key returns the cache key of a document embedding.
func (c *Cached) Key(text string) string {
	return c.key(PurposeDocument, text)
}

func (c *Cached) key(p Purpose, text string) string {
	sum := sha256.Sum256([]byte(text))
	if p == PurposeDocument {
		return fmt.Sprintf("emb:%s:%x", c.model, sum[:])
	}
	return fmt.Sprintf("emb:%s:%s:%x", c.model, p, sum[:])
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(PurposeFrom(ctx), text)

	raw, err := c.store.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec []float32
		if jerr := json.Unmarshal(raw, &vec); jerr == nil && len(vec) > 0 {
			return vec, nil
		}
		c.logger.Warn("dropping malformed cached embedding", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("reading embedding cache", zap.String("key", key), zap.Error(err))
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(vec)
	if err != nil {
		return vec, nil
	}
	if err := c.store.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("writing embedding cache", zap.String("key", key), zap.Error(err))
	}

	return vec, nil
}
