package service

import (
	"context"
	"io"
)

type bypassCache string

// BypassKey is the context key that skips the render cache, both reads and writes.
var BypassKey bypassCache = "bypassCacheKey" // nolint: gochecknoglobals

type bypassService interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, payload io.Reader) error
}

// Bypass is used to bypass the operations of the render cache.
type Bypass struct {
	Service bypassService
}

// WithBypass returns a context that skips the render cache.
func WithBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, BypassKey, true)
}

// Get object, nil when bypassed.
func (b Bypass) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if b.bypass(ctx) {
		return nil, nil
	}
	return b.Service.Get(ctx, key)
}

// Put a object, a no-op when bypassed.
func (b Bypass) Put(ctx context.Context, key string, payload io.Reader) error {
	if b.bypass(ctx) {
		return nil
	}
	return b.Service.Put(ctx, key, payload)
}

func (Bypass) bypass(ctx context.Context) bool {
	bypass, _ := ctx.Value(BypassKey).(bool)
	return bypass
}
