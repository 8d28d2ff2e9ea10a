// Package redis caches redirect lookups in Redis. Only the fields that never
// change after creation are stored, so access counts always come from the
// primary store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const (
	DefaultTTL = 10 * time.Minute
	keyPrefix  = "shortlink:code:"
)

type cachedLink struct {
	ID          int64     `json:"id"`
	ShortCode   string    `json:"shortCode"`
	OriginalURL string    `json:"originalUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type Cache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func New(client redis.Cmdable, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Cache{
		client: client,
		ttl:    ttl,
	}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	const op = "adapter.cache.redis.Connect"

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid redis url: %w", op, err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}

	return client, nil
}

// Get returns nil without error on a miss.
func (c *Cache) Get(ctx context.Context, code string) (*entity.ShortLink, error) {
	const op = "adapter.cache.redis.Cache.Get"

	data, err := c.client.Get(ctx, key(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var cl cachedLink
	if err := json.Unmarshal(data, &cl); err != nil {
		return nil, fmt.Errorf("%s: failed to decode cached link: %w", op, err)
	}

	return &entity.ShortLink{
		ID:          cl.ID,
		ShortCode:   cl.ShortCode,
		OriginalURL: cl.OriginalURL,
		ExpiresAt:   cl.ExpiresAt.UTC(),
	}, nil
}

// Set stores link until the earlier of its expiry and the cache TTL.
// Links already expired at now are not stored.
func (c *Cache) Set(ctx context.Context, link *entity.ShortLink, now time.Time) error {
	const op = "adapter.cache.redis.Cache.Set"

	ttl := c.ttlFor(link, now)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(cachedLink{
		ID:          link.ID,
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		ExpiresAt:   link.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("%s: failed to encode link: %w", op, err)
	}

	if err := c.client.Set(ctx, key(link.ShortCode), data, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Cache) ttlFor(link *entity.ShortLink, now time.Time) time.Duration {
	return min(c.ttl, link.ExpiresAt.Sub(now))
}

func key(code string) string {
	return keyPrefix + code
}
