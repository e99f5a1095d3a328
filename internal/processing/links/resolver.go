package links

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/relaypath/edge/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// CacheTTL is how long a resolved link snapshot stays in the shared
// cache before the store is consulted again. The management layer
// deletes the entry explicitly when the cache key (domain/slug)
// changes on edit.
const CacheTTL = time.Hour

// CacheKey builds the canonical cache key for a link.
func CacheKey(domain, slug string) string {
	return fmt.Sprintf("link:%s:%s", strings.ToLower(domain), slug)
}

// Resolver performs cache-first link lookups with a persistent-store
// fallback.
type Resolver struct {
	store LinkStore
	cache LinkCache
}

func NewResolver(store LinkStore, cache LinkCache) *Resolver {
	return &Resolver{store: store, cache: cache}
}

// Resolve returns the active Link for (domain, slug). A cache failure
// degrades to the store; a cache write failure degrades to nothing.
// ErrInactive is distinct from ErrNotFound so the caller can show a
// different message for paused links than for missing ones.
func (r *Resolver) Resolve(ctx context.Context, domain, slug string) (*Link, error) {
	key := CacheKey(domain, slug)

	cached, err := r.cache.GetLink(ctx, key)
	if err == nil && cached != nil {
		return checkStatus(cached)
	}
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		logger.Warn("link cache read failed, falling through to store",
			zap.Error(err), zap.String("key", key))
	}

	link, err := r.store.FindByDomainSlug(ctx, domain, slug)
	if err != nil {
		return nil, err
	}

	// Best effort: a failed write must not fail resolution.
	if err := r.cache.SetLink(ctx, key, link, CacheTTL); err != nil {
		logger.Warn("link cache write failed",
			zap.Error(err), zap.String("key", key))
	}

	return checkStatus(link)
}

func checkStatus(link *Link) (*Link, error) {
	switch link.Status {
	case StatusActive:
		return link, nil
	case StatusDeleted:
		return nil, ErrNotFound
	default:
		return nil, ErrInactive
	}
}
