package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return RedisClient{baseClient: redis.NewClient(&redis.Options{Addr: mr.Addr()})}, mr
}

func TestRedisClientFetchAnnotation(t *testing.T) {
	t.Parallel()

	c, mr := newTestClient(t)
	payload := `{"shapes":[{"type":"circle","startX":0,"startY":0,"endX":1,"endY":0}]}`
	require.NoError(t, mr.Set("annotations:scan-1", payload))

	result, err := c.FetchAnnotation(context.Background(), "scan-1")
	require.NoError(t, err)
	require.Equal(t, payload, string(result))
}

func TestRedisClientFetchAnnotationMissing(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	result, err := c.FetchAnnotation(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestRedisClientFetchAnnotationError(t *testing.T) {
	t.Parallel()

	c, mr := newTestClient(t)
	mr.Close()
	_, err := c.FetchAnnotation(context.Background(), "scan-1")
	require.Error(t, err)
}

func TestRedisClientSaveAnnotation(t *testing.T) {
	t.Parallel()

	c, mr := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.SaveAnnotation(ctx, "scan-2", []byte(`[]`), time.Hour))

	stored, err := mr.Get("annotations:scan-2")
	require.NoError(t, err)
	require.Equal(t, `[]`, stored)
	require.Equal(t, time.Hour, mr.TTL("annotations:scan-2"))

	result, err := c.FetchAnnotation(ctx, "scan-2")
	require.NoError(t, err)
	require.Equal(t, `[]`, string(result))
}
