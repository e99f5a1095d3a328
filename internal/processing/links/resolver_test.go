package links

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockStore struct {
	findFn func(ctx context.Context, domain, slug string) (*Link, error)
	calls  int
}

func (m *mockStore) FindByDomainSlug(ctx context.Context, domain, slug string) (*Link, error) {
	m.calls++
	return m.findFn(ctx, domain, slug)
}

type mockCache struct {
	getFn    func(ctx context.Context, key string) (*Link, error)
	setFn    func(ctx context.Context, key string, link *Link, ttl time.Duration) error
	deleteFn func(ctx context.Context, key string) error
	setCalls int
}

func (m *mockCache) GetLink(ctx context.Context, key string) (*Link, error) {
	if m.getFn == nil {
		return nil, ErrCacheMiss
	}
	return m.getFn(ctx, key)
}

func (m *mockCache) SetLink(ctx context.Context, key string, link *Link, ttl time.Duration) error {
	m.setCalls++
	if m.setFn == nil {
		return nil
	}
	return m.setFn(ctx, key, link, ttl)
}

func (m *mockCache) DeleteLink(ctx context.Context, key string) error {
	if m.deleteFn == nil {
		return nil
	}
	return m.deleteFn(ctx, key)
}

func storedLink(status LinkStatus) *Link {
	return &Link{
		Domain:    "rlpth.io",
		Slug:      "promo",
		TargetURL: "https://shop.example.com",
		Status:    status,
	}
}

func TestCacheKey(t *testing.T) {
	if got := CacheKey("Go.Example.Com", "promo"); got != "link:go.example.com:promo" {
		t.Fatalf("CacheKey = %q", got)
	}
}

func TestResolveCacheHit(t *testing.T) {
	store := &mockStore{findFn: func(context.Context, string, string) (*Link, error) {
		t.Fatal("store must not be hit on cache hit")
		return nil, nil
	}}
	cache := &mockCache{getFn: func(context.Context, string) (*Link, error) {
		return storedLink(StatusActive), nil
	}}

	link, err := NewResolver(store, cache).Resolve(context.Background(), "rlpth.io", "promo")
	if err != nil {
		t.Fatalf("Resolve() err = %v", err)
	}
	if link.TargetURL != "https://shop.example.com" {
		t.Fatalf("target = %q", link.TargetURL)
	}
}

func TestResolveCacheMissFillsCache(t *testing.T) {
	store := &mockStore{findFn: func(context.Context, string, string) (*Link, error) {
		return storedLink(StatusActive), nil
	}}
	cache := &mockCache{}

	link, err := NewResolver(store, cache).Resolve(context.Background(), "rlpth.io", "promo")
	if err != nil {
		t.Fatalf("Resolve() err = %v", err)
	}
	if link == nil {
		t.Fatal("expected a link")
	}
	if store.calls != 1 {
		t.Fatalf("store calls = %d, want 1", store.calls)
	}
	if cache.setCalls != 1 {
		t.Fatalf("cache set calls = %d, want 1", cache.setCalls)
	}
}

func TestResolveCacheErrorFallsThrough(t *testing.T) {
	store := &mockStore{findFn: func(context.Context, string, string) (*Link, error) {
		return storedLink(StatusActive), nil
	}}
	cache := &mockCache{getFn: func(context.Context, string) (*Link, error) {
		return nil, errors.New("connection refused")
	}}

	link, err := NewResolver(store, cache).Resolve(context.Background(), "rlpth.io", "promo")
	if err != nil {
		t.Fatalf("Resolve() err = %v", err)
	}
	if link == nil {
		t.Fatal("store result must be returned despite cache failure")
	}
}

func TestResolveStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  LinkStatus
		wantErr error
	}{
		{"active resolves", StatusActive, nil},
		{"inactive maps to ErrInactive", StatusInactive, ErrInactive},
		{"deleted maps to ErrNotFound", StatusDeleted, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{findFn: func(context.Context, string, string) (*Link, error) {
				return storedLink(tt.status), nil
			}}

			link, err := NewResolver(store, &mockCache{}).Resolve(context.Background(), "rlpth.io", "promo")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && link == nil {
				t.Fatal("expected a link")
			}
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	store := &mockStore{findFn: func(context.Context, string, string) (*Link, error) {
		return nil, ErrNotFound
	}}
	cache := &mockCache{}

	_, err := NewResolver(store, cache).Resolve(context.Background(), "rlpth.io", "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if cache.setCalls != 0 {
		t.Fatal("missing links must not be cached")
	}
}
