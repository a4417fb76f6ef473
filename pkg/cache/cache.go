// Package cache stores generation results keyed by (task, prompt, system).
//
// The response cache never fails a generation: backend and decoding errors
// degrade to a miss on read and a no-op on write, and are counted in the
// genroute_cache_total metric instead.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ogulcanaydogan/genroute/internal/metrics"
	"github.com/ogulcanaydogan/genroute/pkg/model"
)

// ErrMiss is returned by a Store when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is a namespaced key-value backend with per-entry expiry.
type Store interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, namespace, key string) error
}

// ResponseCache wraps a Store with generation-result encoding.
type ResponseCache struct {
	store     Store
	namespace string
	ttl       time.Duration
	logger    *slog.Logger
}

// New creates a response cache.
func New(store Store, namespace string, ttl time.Duration, logger *slog.Logger) *ResponseCache {
	return &ResponseCache{
		store:     store,
		namespace: namespace,
		ttl:       ttl,
		logger:    logger,
	}
}

// MakeKey returns the cache key for req, or false if the request must not
// be cached. Org-scoped critical requests are excluded; everything else is
// keyed on task, prompt and system only, so identical requests from
// different organizations share an entry.
func MakeKey(req model.GenerationRequest) (string, bool) {
	if req.OrganizationID != "" && req.Critical {
		return "", false
	}
	h := sha256.New()
	for _, part := range []string{req.Task, req.Prompt, req.System} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), true
}

// Get returns a cached result with FromCache set. Any failure is a miss.
func (c *ResponseCache) Get(ctx context.Context, key string) (model.GenerationResult, bool) {
	res, err := c.lookup(ctx, key)
	switch {
	case err == nil:
		metrics.CacheTotal.WithLabelValues("get", "hit").Inc()
		return res, true
	case errors.Is(err, ErrMiss):
		metrics.CacheTotal.WithLabelValues("get", "miss").Inc()
	default:
		metrics.CacheTotal.WithLabelValues("get", "error").Inc()
		c.logger.Warn("cache read failed", "key", key, "error", err)
	}
	return model.GenerationResult{}, false
}

func (c *ResponseCache) lookup(ctx context.Context, key string) (model.GenerationResult, error) {
	data, err := c.store.Get(ctx, c.namespace, key)
	if err != nil {
		return model.GenerationResult{}, err
	}
	var res model.GenerationResult
	if err := json.Unmarshal(data, &res); err != nil {
		return model.GenerationResult{}, fmt.Errorf("decode cached result: %w", err)
	}
	res.FromCache = true
	return res, nil
}

// Put stores result under key. Failures are logged and dropped.
func (c *ResponseCache) Put(ctx context.Context, key string, result model.GenerationResult) {
	result.FromCache = false
	data, err := json.Marshal(result)
	if err == nil {
		err = c.store.Set(ctx, c.namespace, key, data, c.ttl)
	}
	if err != nil {
		metrics.CacheTotal.WithLabelValues("put", "error").Inc()
		c.logger.Warn("cache write failed", "key", key, "error", err)
		return
	}
	metrics.CacheTotal.WithLabelValues("put", "ok").Inc()
}

// Invalidate removes a single entry.
func (c *ResponseCache) Invalidate(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, c.namespace, key); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	return nil
}
