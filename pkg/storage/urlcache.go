package storage

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// URLCache memoizes time-limited URLs so callers that repeatedly resolve
// the same asset (report rendering, the API asset listing) don't re-sign on
// every request. Entries live for half the URL expiry, so a cached URL is
// always good for at least as long again after it is handed out.
type URLCache struct {
	backend Backend
	cache   *gocache.Cache
}

// NewURLCache wraps a backend with URL memoization.
func NewURLCache(b Backend) *URLCache {
	return &URLCache{
		backend: b,
		cache:   gocache.New(DefaultURLExpiry/2, 10*time.Minute),
	}
}

// URL returns a time-limited URL for path, from cache when possible.
func (c *URLCache) URL(ctx context.Context, path string, expiry time.Duration) (string, bool) {
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	key := fmt.Sprintf("%s|%d", path, int64(expiry.Seconds()))
	if cached, ok := c.cache.Get(key); ok {
		return cached.(string), true
	}

	url, ok := c.backend.URL(ctx, path, expiry)
	if !ok {
		return "", false
	}
	c.cache.Set(key, url, expiry/2)
	return url, true
}

// Invalidate drops any cached URLs for path.
func (c *URLCache) Invalidate(path string) {
	for key := range c.cache.Items() {
		if len(key) > len(path) && key[:len(path)] == path && key[len(path)] == '|' {
			c.cache.Delete(key)
		}
	}
}
