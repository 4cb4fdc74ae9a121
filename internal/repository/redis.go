package repository

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient stores the annotation payloads produced by the authoring tool. Payloads are kept verbatim, the
// envelope is only resolved when rendering.
type RedisClient struct {
	baseClient *redis.Client
}

func NewRedisClient(addr, username, password string) (RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	})
	ctx, ctxcancel := context.WithTimeout(context.Background(), time.Second)
	defer ctxcancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return RedisClient{}, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return RedisClient{
		baseClient: rdb,
	}, nil
}

// FetchAnnotation returns the raw payload stored at the key. A missing key is not an error, it means there is
// nothing to draw and the result is nil.
func (rc RedisClient) FetchAnnotation(ctx context.Context, key string) ([]byte, error) {
	result, err := rc.baseClient.Get(ctx, rc.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get the key '%s': %w", key, err)
	}
	return result, nil
}

// SaveAnnotation stores the raw payload at the key. A zero ttl keeps the payload forever.
func (rc RedisClient) SaveAnnotation(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if err := rc.baseClient.Set(ctx, rc.key(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set the key '%s': %w", key, err)
	}
	return nil
}

// Close the connection pool.
func (rc RedisClient) Close() error {
	return rc.baseClient.Close()
}

func (RedisClient) key(key string) string {
	return "annotations:" + key
}
