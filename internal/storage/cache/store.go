// Package cache adds Read-Aside caching over any SubscriptionStore.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/tinywideclouds/go-push-kit/pkg/push"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or a specific error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedStore is a Decorator that adds Read-Aside caching to any
// SubscriptionStore. Writes invalidate the cached topic list so an
// unsubscribe takes effect immediately.
type CachedStore struct {
	realStore    push.SubscriptionStore
	cache        CacheClient
	installation string
	ttl          time.Duration
}

// NewCachedStore creates the decorator. installation scopes the cache key to
// one installation of the kit.
func NewCachedStore(realStore push.SubscriptionStore, cache CacheClient, installation string, ttl time.Duration) *CachedStore {
	return &CachedStore{
		realStore:    realStore,
		cache:        cache,
		installation: installation,
		ttl:          ttl,
	}
}

// --- READ PATH (Read-Aside) ---

func (s *CachedStore) List(ctx context.Context) ([]string, error) {
	key := s.cacheKey()
	var cached []string

	// 1. Try Cache
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		if cached == nil {
			cached = []string{}
		}
		return cached, nil
	}

	// 2. Fallback to Real Store
	fresh, err := s.realStore.List(ctx)
	if err != nil {
		return nil, err
	}

	// 3. Populate Cache (Fire and Forget)
	// Caching is an optimization, not a transaction. If Redis is down, we
	// just serve from the real store.
	_ = s.cache.Set(ctx, key, fresh, s.ttl)

	return fresh, nil
}

// --- WRITE PATHS (Invalidate-on-Write) ---

func (s *CachedStore) Add(ctx context.Context, topic string) error {
	if err := s.realStore.Add(ctx, topic); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

// Remove invalidates the cache even though the real-store write already
// succeeded: the stale list must not keep reporting the topic.
func (s *CachedStore) Remove(ctx context.Context, topic string) error {
	if err := s.realStore.Remove(ctx, topic); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

func (s *CachedStore) Clear(ctx context.Context) error {
	if err := s.realStore.Clear(ctx); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

// --- Helpers ---

func (s *CachedStore) invalidate(ctx context.Context) error {
	return s.cache.Del(ctx, s.cacheKey())
}

func (s *CachedStore) cacheKey() string {
	return fmt.Sprintf("pushkit:topics:%s", s.installation)
}
