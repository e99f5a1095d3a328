// Package redis wraps the shared key-value store. All cross-request
// coordination (link cache, blacklist, dedup windows) lives here,
// never in process memory: concurrent or retried requests may not
// share a process.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relaypath/edge/internal/processing/links"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type KV struct {
	client *redis.Client
}

func New(cfg Config) (*KV, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &KV{client: client}, nil
}

func (kv *KV) Close() error {
	return kv.client.Close()
}

// SetIfAbsent performs an atomic SET NX with TTL and reports whether
// the key was newly set. This is the only synchronization primitive
// shared between concurrent requests; the blacklist and both dedup
// windows are built on it.
func (kv *KV) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return kv.client.SetNX(ctx, key, value, ttl).Result()
}

// Exists reports whether the key is present.
func (kv *KV) Exists(ctx context.Context, key string) (bool, error) {
	n, err := kv.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (kv *KV) Delete(ctx context.Context, key string) error {
	return kv.client.Del(ctx, key).Err()
}

// GetLink reads a cached Link snapshot.
func (kv *KV) GetLink(ctx context.Context, key string) (*links.Link, error) {
	data, err := kv.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, links.ErrCacheMiss
		}
		return nil, err
	}

	var link links.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("unmarshal cached link: %w", err)
	}
	return &link, nil
}

// SetLink writes a Link snapshot with the given TTL.
func (kv *KV) SetLink(ctx context.Context, key string, link *links.Link, ttl time.Duration) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("marshal link: %w", err)
	}
	return kv.client.Set(ctx, key, data, ttl).Err()
}

func (kv *KV) DeleteLink(ctx context.Context, key string) error {
	return kv.client.Del(ctx, key).Err()
}

// SetRawJSON stores an arbitrary pre-marshalled JSON value. Used by the
// management cache-update endpoint, which receives the snapshot from
// the backoffice rather than reading the store itself.
func (kv *KV) SetRawJSON(ctx context.Context, key string, raw []byte, ttl time.Duration) error {
	if !json.Valid(raw) {
		return errors.New("value is not valid JSON")
	}
	return kv.client.Set(ctx, key, raw, ttl).Err()
}
