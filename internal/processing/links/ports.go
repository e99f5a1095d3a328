package links

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means no record exists for (domain, slug) in any source.
	ErrNotFound = errors.New("link not found")
	// ErrInactive means the record exists but its status is not active.
	// Callers surface it with a different message than ErrNotFound.
	ErrInactive = errors.New("link inactive")
	// ErrCacheMiss is returned by caches when the key is absent.
	ErrCacheMiss = errors.New("cache miss")
)

type LinkStore interface {
	FindByDomainSlug(ctx context.Context, domain, slug string) (*Link, error)
}

type LinkCache interface {
	GetLink(ctx context.Context, key string) (*Link, error)
	SetLink(ctx context.Context, key string, link *Link, ttl time.Duration) error
	DeleteLink(ctx context.Context, key string) error
}
