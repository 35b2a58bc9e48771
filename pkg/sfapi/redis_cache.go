package sfapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisConfig configures the Redis connection used by RedisReadCache
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// NewRedisClient parses the URL, applies overrides and pings the server
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB > 0 {
		opts.DB = cfg.DB
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// RedisReadCache is a read-through cache of metadata bodies. It caches external
// reads, not analysis results: bodies are keyed by kind and full name and expire
// after the TTL. Redis failures degrade to cache misses.
type RedisReadCache struct {
	next   ReadService
	client *redis.Client
	ttl    time.Duration
	logger logrus.FieldLogger
}

// NewRedisReadCache wraps next with a Redis cache
func NewRedisReadCache(next ReadService, client *redis.Client, ttl time.Duration, logger logrus.FieldLogger) *RedisReadCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisReadCache{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func metadataCacheKey(kind, name string) string {
	return fmt.Sprintf("metadata:%s:%s", kind, name)
}

// Read serves cached bodies and reads the misses from the wrapped service
func (c *RedisReadCache) Read(ctx context.Context, kind string, names []string) ([]MetadataBody, error) {
	if len(names) == 0 {
		return nil, nil
	}

	hits := make(map[string]MetadataBody, len(names))
	misses := make([]string, 0, len(names))

	for _, name := range names {
		data, err := c.client.Get(ctx, metadataCacheKey(kind, name)).Bytes()
		if err == redis.Nil {
			misses = append(misses, name)
			continue
		}
		if err != nil {
			c.logger.WithError(err).WithField("kind", kind).Warn("metadata cache lookup failed")
			misses = append(misses, name)
			continue
		}

		var body MetadataBody
		if err := json.Unmarshal(data, &body); err != nil {
			c.client.Del(ctx, metadataCacheKey(kind, name))
			misses = append(misses, name)
			continue
		}
		hits[name] = body
	}

	if len(misses) > 0 {
		fetched, err := c.next.Read(ctx, kind, misses)
		if err != nil {
			return nil, err
		}
		for _, body := range fetched {
			hits[body.FullName] = body
			if body.AccessDenied {
				continue
			}
			data, err := json.Marshal(body)
			if err != nil {
				continue
			}
			if err := c.client.Set(ctx, metadataCacheKey(kind, body.FullName), data, c.ttl).Err(); err != nil {
				c.logger.WithError(err).WithField("kind", kind).Warn("metadata cache store failed")
			}
		}
	}

	bodies := make([]MetadataBody, 0, len(hits))
	for _, name := range names {
		if body, ok := hits[name]; ok {
			bodies = append(bodies, body)
		}
	}
	return bodies, nil
}

// Invalidate drops cached bodies for the given names
func (c *RedisReadCache) Invalidate(ctx context.Context, kind string, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = metadataCacheKey(kind, name)
	}
	return c.client.Del(ctx, keys...).Err()
}
