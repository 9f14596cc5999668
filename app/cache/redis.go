package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix      = "course-payments:status:"
	fieldStatus         = "status"
	fieldInitiatedAt    = "initiated_at"
	fieldUpdatedAt      = "updated_at"
	redisScanBatchCount = 100
)

// RedisCache stores entries as hashes so several service replicas share one view.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, transactionRef string) (*Entry, error) {
	values, err := c.client.HGetAll(ctx, redisKey(transactionRef)).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return decodeEntry(values)
}

func (c *RedisCache) Put(ctx context.Context, transactionRef string, entry Entry) error {
	key := redisKey(transactionRef)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, encodeEntry(entry))
		if c.ttl > 0 {
			pipe.Expire(ctx, key, c.ttl)
		}
		return nil
	})
	return err
}

func (c *RedisCache) SetStatus(ctx context.Context, transactionRef string, status string, at time.Time) error {
	key := redisKey(transactionRef)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldInitiatedAt, formatTime(at))
		pipe.HSet(ctx, key, fieldStatus, status, fieldUpdatedAt, formatTime(at))
		if c.ttl > 0 {
			pipe.Expire(ctx, key, c.ttl)
		}
		return nil
	})
	return err
}

func (c *RedisCache) Snapshot(ctx context.Context) (map[string]Entry, error) {
	out := make(map[string]Entry)

	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", redisScanBatchCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		values, err := c.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			continue
		}
		entry, err := decodeEntry(values)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		out[strings.TrimPrefix(key, redisKeyPrefix)] = *entry
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *RedisCache) Delete(ctx context.Context, transactionRefs ...string) error {
	if len(transactionRefs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(transactionRefs))
	for _, ref := range transactionRefs {
		keys = append(keys, redisKey(ref))
	}
	return c.client.Del(ctx, keys...).Err()
}

func redisKey(transactionRef string) string {
	return redisKeyPrefix + transactionRef
}

func encodeEntry(entry Entry) map[string]interface{} {
	return map[string]interface{}{
		fieldStatus:      entry.Status,
		fieldInitiatedAt: formatTime(entry.InitiatedAt),
		fieldUpdatedAt:   formatTime(entry.UpdatedAt),
	}
}

func decodeEntry(values map[string]string) (*Entry, error) {
	entry := &Entry{Status: values[fieldStatus]}

	var err error
	if entry.InitiatedAt, err = parseTime(values[fieldInitiatedAt]); err != nil {
		return nil, err
	}
	if entry.UpdatedAt, err = parseTime(values[fieldUpdatedAt]); err != nil {
		return nil, err
	}
	return entry, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseTime(value string) (time.Time, error) {
	if value == "" || value == "0" {
		return time.Time{}, nil
	}
	nanos, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	return time.Unix(0, nanos).UTC(), nil
}
