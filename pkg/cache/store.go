// Package cache provides an optional Redis-backed cache of raw TechDirect
// asset lookups keyed by service tag. Only the vendor payload is cached;
// warranty status is always re-derived at read time so it can never go
// stale.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"github.com/hwsync/dell-warranty-client/pkg/warranty"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dellapi_cache_hits_total",
		Help: "Total asset lookup cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dellapi_cache_misses_total",
		Help: "Total asset lookup cache misses",
	})

	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dellapi_cache_errors_total",
		Help: "Total cache operation errors by operation",
	}, []string{"operation"})
)

// ErrCacheMiss indicates no cached payload exists for the service tag.
var ErrCacheMiss = errors.New("cache miss")

// DefaultTTL bounds how long a vendor payload is served without re-querying
// TechDirect. Entitlement data changes rarely.
const DefaultTTL = 15 * time.Minute

// Store caches raw asset payloads in Redis.
type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStore creates a cache store. TTL values <= 0 fall back to DefaultTTL.
func NewStore(redisClient *redis.Client, ttl time.Duration) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{redis: redisClient, ttl: ttl}
}

func assetKey(serviceTag string) string {
	return "dellapi:asset:" + serviceTag
}

// Get returns the cached raw payload for a service tag, or ErrCacheMiss.
func (s *Store) Get(ctx context.Context, serviceTag string) (*warranty.RawAsset, error) {
	data, err := s.redis.Get(ctx, assetKey(serviceTag)).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var raw warranty.RawAsset
	if err := json.Unmarshal(data, &raw); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		// Corrupt entry: drop it so the next lookup refetches.
		_ = s.Delete(ctx, serviceTag)
		return nil, ErrCacheMiss
	}

	cacheHits.Inc()
	return &raw, nil
}

// Set stores a raw payload under the store's TTL.
func (s *Store) Set(ctx context.Context, serviceTag string, raw warranty.RawAsset) error {
	data, err := json.Marshal(raw)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cached asset: %w", err)
	}
	if err := s.redis.Set(ctx, assetKey(serviceTag), data, s.ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a cached payload.
func (s *Store) Delete(ctx context.Context, serviceTag string) error {
	if err := s.redis.Del(ctx, assetKey(serviceTag)).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
