// Package embedcache stores embeddings in Redis so identical texts are not
// sent to the embedding provider twice.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/scheme-matcher/internal/ai"
	"github.com/spigell/scheme-matcher/internal/logger"
	"github.com/spigell/scheme-matcher/internal/metrics"
)

const (
	keyPrefix  = "embedding"
	DefaultTTL = 7 * 24 * time.Hour
)

type Config struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

func NewRedis(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
}

// Embedder wraps another ai.Embedder. Redis failures are logged and fall
// through to the wrapped embedder.
type Embedder struct {
	next   ai.Embedder
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func New(next ai.Embedder, client *redis.Client, ttl time.Duration, log *zap.Logger) *Embedder {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Embedder{
		next:   next,
		redis:  client,
		ttl:    ttl,
		logger: logger.WithFields(log, zap.String("component", "embedcache")),
	}
}

func (e *Embedder) Model() string {
	return e.next.Model()
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(e.next.Model(), text)

	raw, err := e.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var values []float32
		if err := json.Unmarshal(raw, &values); err == nil && len(values) > 0 {
			metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
			return values, nil
		}
		e.logger.Warn("dropping unreadable cached embedding", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		e.logger.Warn("embedding cache lookup failed", zap.String("key", key), zap.Error(err))
	}

	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	values, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	if err := e.redis.Set(ctx, key, data, e.ttl).Err(); err != nil {
		e.logger.Warn("embedding cache store failed", zap.String("key", key), zap.Error(err))
	}

	return values, nil
}

// Key returns the cache key for text embedded with model.
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:%s:%s", keyPrefix, model, hex.EncodeToString(sum[:]))
}
