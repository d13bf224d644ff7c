// Package cache provides a Redis-backed read cache for published song
// records. Only approved song content is cached; vote counts, translation
// rankings, and viewer state are always read fresh.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"versebook/api/internal/store"
)

// ErrMiss is returned when the slug has no cached record.
var ErrMiss = errors.New("cache miss")

type SongCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewSongCache(redisURL string, ttl time.Duration) (*SongCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return newWithClient(client, ttl), nil
}

// NewSongCacheWithClient wraps an existing Redis client, used in tests.
func NewSongCacheWithClient(client *redis.Client, ttl time.Duration) *SongCache {
	return newWithClient(client, ttl)
}

func newWithClient(client *redis.Client, ttl time.Duration) *SongCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SongCache{
		client: client,
		prefix: "song:",
		ttl:    ttl,
	}
}

func (c *SongCache) key(slug string) string {
	return c.prefix + slug
}

func (c *SongCache) Get(ctx context.Context, slug string) (store.Song, error) {
	data, err := c.client.Get(ctx, c.key(slug)).Result()
	if errors.Is(err, redis.Nil) {
		return store.Song{}, ErrMiss
	}
	if err != nil {
		return store.Song{}, fmt.Errorf("get cached song: %w", err)
	}

	var song store.Song
	if err := json.Unmarshal([]byte(data), &song); err != nil {
		return store.Song{}, fmt.Errorf("unmarshal cached song: %w", err)
	}
	return song, nil
}

func (c *SongCache) Set(ctx context.Context, song store.Song) error {
	data, err := json.Marshal(song)
	if err != nil {
		return fmt.Errorf("marshal song: %w", err)
	}
	if err := c.client.Set(ctx, c.key(song.Slug), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache song: %w", err)
	}
	return nil
}

// Invalidate drops the cached record for a slug, called after an approval
// rewrites the live song.
func (c *SongCache) Invalidate(ctx context.Context, slug string) error {
	if err := c.client.Del(ctx, c.key(slug)).Err(); err != nil {
		return fmt.Errorf("invalidate cached song: %w", err)
	}
	return nil
}

func (c *SongCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *SongCache) Close() error {
	return c.client.Close()
}
