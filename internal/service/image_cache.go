package service

import (
	"fmt"
	"image"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// DefaultImageCacheSize is the default number of decoded backing images kept in memory.
const DefaultImageCacheSize = 64

// ImageCache is a simple LRU cache that holds decoded backing images, so repeated overlay requests for the same
// document page don't fetch and decode it again.
type ImageCache struct {
	Logger zerolog.Logger

	images *lru.Cache[string, image.Image]
}

// NewImageCache creates a new cache of the defined size.
func NewImageCache(size int, logger zerolog.Logger) (*ImageCache, error) {
	imageCache := &ImageCache{Logger: logger}

	cache, err := lru.NewWithEvict[string, image.Image](size, imageCache.onEvicted)
	if err != nil {
		return nil, fmt.Errorf("fail to create the lru cache: %w", err)
	}

	imageCache.images = cache
	return imageCache, nil
}

// Get a cached image.
func (c *ImageCache) Get(key string) (image.Image, bool) {
	if c == nil {
		return nil, false
	}
	return c.images.Get(key)
}

// Add an image, evicting the least recently used one when the cache is full.
func (c *ImageCache) Add(key string, img image.Image) {
	if c == nil || img == nil {
		return
	}
	c.images.Add(key, img)
}

// Remove checks if an image is present in the cache and then removes it.
func (c *ImageCache) Remove(key string) {
	if c == nil {
		return
	}
	if c.images.Remove(key) {
		c.Logger.Debug().Str("key", key).Msg("Removed from the image cache")
	}
}

// Purge cleans out everything in the cache.
func (c *ImageCache) Purge() {
	if c == nil {
		return
	}
	c.images.Purge()
	c.Logger.Info().Msg("Purged image cache")
}

// Len is the number of cached images.
func (c *ImageCache) Len() int {
	if c == nil {
		return 0
	}
	return c.images.Len()
}

func (c *ImageCache) onEvicted(key string, _ image.Image) {
	c.Logger.Debug().Str("key", key).Msg("Evicted from the image cache")
}
