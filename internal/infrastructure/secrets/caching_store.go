package secrets

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// CachingStore caches secrets from an inner Store. JWT-shaped values are kept
// until their exp claim minus skew; other values are kept for ttl, or not at
// all when ttl is zero. Failed lookups are never cached.
type CachingStore struct {
	inner Store
	ttl   time.Duration
	skew  time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// Ensure CachingStore implements Store
var _ Store = (*CachingStore)(nil)

// NewCachingStore wraps inner with a cache.
func NewCachingStore(inner Store, ttl, skew time.Duration) *CachingStore {
	return &CachingStore{
		inner:   inner,
		ttl:     ttl,
		skew:    skew,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// GetSecret returns a cached value when still fresh, otherwise fetches it.
func (c *CachingStore) GetSecret(ctx context.Context, name string) (string, error) {
	now := c.now()

	c.mu.Lock()
	entry, ok := c.entries[name]
	c.mu.Unlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.value, nil
	}

	value, err := c.inner.GetSecret(ctx, name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if expiresAt := c.expiry(value, now); expiresAt.After(now) {
		c.entries[name] = cacheEntry{value: value, expiresAt: expiresAt}
	} else {
		delete(c.entries, name)
	}
	return value, nil
}

// Invalidate drops the cached value for name.
func (c *CachingStore) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
}

func (c *CachingStore) expiry(value string, now time.Time) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(value, claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Add(-c.skew)
	}
	if c.ttl > 0 {
		return now.Add(c.ttl)
	}
	return time.Time{}
}
