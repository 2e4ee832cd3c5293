package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "meetbot:occurrence:"

// RedisLedger shares claimed occurrences across restarts and hosts.
type RedisLedger struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisLedger(redisURL, prefix string, ttl time.Duration) (*RedisLedger, error) {
	url := strings.TrimSpace(redisURL)
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return newRedisLedger(client, prefix, ttl), nil
}

func newRedisLedger(client *redis.Client, prefix string, ttl time.Duration) *RedisLedger {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultRedisPrefix
	}
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	return &RedisLedger{client: client, prefix: prefix, ttl: ttl}
}

func (l *RedisLedger) key(occurrence string) string {
	return l.prefix + strings.TrimSpace(occurrence)
}

func (l *RedisLedger) Claim(ctx context.Context, key string) (bool, error) {
	if l == nil || l.client == nil {
		return true, nil
	}
	value := time.Now().UTC().Format(time.RFC3339)
	return l.client.SetNX(ctx, l.key(key), value, l.ttl).Result()
}

func (l *RedisLedger) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
