package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const cacheKeyPrefix = "review-sentiment:classify:"

// Cache stores classifier output keyed by model and text.
type Cache interface {
	Get(ctx context.Context, key string) ([]Prediction, bool, error)
	Set(ctx context.Context, key string, predictions []Prediction, ttl time.Duration) error
}

// RedisCache keeps predictions in Redis as JSON with an expiry.
type RedisCache struct {
	client redis.UniversalClient
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]Prediction, bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var predictions []Prediction
	if err := json.Unmarshal(raw, &predictions); err != nil {
		return nil, false, fmt.Errorf("decode cached predictions: %w", err)
	}
	return predictions, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, predictions []Prediction, ttl time.Duration) error {
	raw, err := json.Marshal(predictions)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, raw, ttl).Err()
}

// MemoryCache is an in-process cache used when no Redis address is configured.
type MemoryCache struct {
	entries sync.Map // map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	expires     time.Time
	predictions []Prediction
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]Prediction, bool, error) {
	value, ok := m.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	entry := value.(memoryEntry)
	if !entry.expires.IsZero() && m.now().After(entry.expires) {
		m.entries.Delete(key)
		return nil, false, nil
	}
	return entry.predictions, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, predictions []Prediction, ttl time.Duration) error {
	entry := memoryEntry{predictions: predictions}
	if ttl > 0 {
		entry.expires = m.now().Add(ttl)
	}
	m.entries.Store(key, entry)
	return nil
}

type cachedClassifier struct {
	inner Classifier
	cache Cache
	ttl   time.Duration
}

// Cached wraps a classifier so repeated texts skip the remote call. Only valid output
// produced by the wrapped classifier itself is stored; answers a nested fallback gave are
// returned but not cached under the wrapped classifier's key. Cache failures are logged
// and never fail classification.
func Cached(inner Classifier, cache Cache, ttl time.Duration) Classifier {
	if inner == nil || cache == nil {
		return inner
	}
	return &cachedClassifier{inner: inner, cache: cache, ttl: ttl}
}

func (c *cachedClassifier) Name() string  { return c.inner.Name() }
func (c *cachedClassifier) Enabled() bool { return c.inner.Enabled() }

func (c *cachedClassifier) Classify(ctx context.Context, text string) ([]Prediction, error) {
	predictions, _, err := c.classifyNamed(ctx, text)
	return predictions, err
}

func (c *cachedClassifier) classifyNamed(ctx context.Context, text string) ([]Prediction, string, error) {
	name := c.inner.Name()
	key := CacheKey(name, text)
	if predictions, ok, err := c.cache.Get(ctx, key); err != nil {
		logrus.WithError(err).Warn("classifier cache read failed")
	} else if ok {
		return predictions, name, nil
	}

	predictions, answeredBy, err := ClassifyNamed(ctx, c.inner, text)
	if err != nil {
		return nil, answeredBy, err
	}
	if answeredBy != name {
		logrus.WithField("classifier", answeredBy).Debug("not caching fallback predictions")
		return predictions, answeredBy, nil
	}
	if _, err := Top(predictions); err != nil {
		return predictions, answeredBy, nil
	}
	if err := c.cache.Set(ctx, key, predictions, c.ttl); err != nil {
		logrus.WithError(err).Warn("classifier cache write failed")
	}
	return predictions, answeredBy, nil
}

// CacheKey derives a stable key for a model name and input text.
func CacheKey(name, text string) string {
	sum := sha256.Sum256([]byte(name + "\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
