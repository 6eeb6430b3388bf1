package scorecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbroute/internal/db"
	"github.com/kailas-cloud/kbroute/internal/domain/kb"
	dommap "github.com/kailas-cloud/kbroute/internal/domain/mapping"
)

// scorer is the decorated relevance scorer.
type scorer interface {
	Score(ctx context.Context, query string, catalog []kb.Descriptor) ([]dommap.Estimate, error)
}

// store is the consumer interface for the scorer cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedScorer caches scorer estimates per query and catalog snapshot.
// A catalog change produces a different key, so stale estimates are never served.
type CachedScorer struct {
	inner      scorer
	store      store
	keyPrefix  string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. Keys are <keyPrefix>scorer_cache:<sha256>.
func New(
	inner scorer,
	s store,
	keyPrefix string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedScorer {
	return &CachedScorer{
		inner:      inner,
		store:      s,
		keyPrefix:  keyPrefix + "scorer_cache:",
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Score returns cached estimates or calls the inner scorer. Errors are never cached.
func (c *CachedScorer) Score(ctx context.Context, query string, catalog []kb.Descriptor) ([]dommap.Estimate, error) {
	key := c.cacheKey(query, catalog)

	if est, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return est, nil
	}
	c.incCache("miss")

	est, err := c.inner.Score(ctx, query, catalog)
	if err != nil {
		return nil, fmt.Errorf("score query: %w", err)
	}

	c.putToCache(ctx, key, est)
	return est, nil
}

func (c *CachedScorer) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedScorer) cacheKey(query string, catalog []kb.Descriptor) string {
	h := sha256.New()
	h.Write([]byte(query))
	for _, d := range catalog {
		// NUL separators keep field boundaries unambiguous.
		fmt.Fprintf(h, "\x00%s\x00%s\x00%s", d.ID(), d.Title(), d.Description())
	}
	return c.keyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedScorer) getFromCache(ctx context.Context, key string) ([]dommap.Estimate, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached estimates", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var est []dommap.Estimate
	if err := json.Unmarshal(data, &est); err != nil {
		c.logger.Warn("Failed to parse cached estimates", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return est, true
}

func (c *CachedScorer) putToCache(ctx context.Context, key string, est []dommap.Estimate) {
	data, err := json.Marshal(est)
	if err != nil {
		c.logger.Warn("Failed to encode estimates", zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache estimates", zap.String("key", key), zap.Error(err))
	}
}
