package service

import (
	"context"
	"image"
	"sync"
)

// remoteImage is a backing image that is being fetched and decoded on another goroutine. It's the handle the
// overlay gate subscribes to.
type remoteImage struct {
	mutex     sync.Mutex
	img       image.Image
	complete  bool
	listeners map[int]func()
	nextID    int
}

func newRemoteImage() *remoteImage {
	return &remoteImage{listeners: make(map[int]func())}
}

func (r *remoteImage) NaturalSize() (int, int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.img == nil {
		return 0, 0
	}
	bounds := r.img.Bounds()
	return bounds.Dx(), bounds.Dy()
}

func (r *remoteImage) Complete() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.complete
}

func (r *remoteImage) OnLoad(fn func()) func() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn

	return func() {
		r.mutex.Lock()
		defer r.mutex.Unlock()
		delete(r.listeners, id)
	}
}

// Image returns the decoded image, nil until the load finishes successfully.
func (r *remoteImage) Image() image.Image {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.img
}

// load runs the loader and notifies the listeners, even when it fails: a failed image is complete, without a
// size.
func (r *remoteImage) load(ctx context.Context, loader func(context.Context) (image.Image, error)) error {
	img, err := loader(ctx)

	r.mutex.Lock()
	r.img = img
	r.complete = true
	listeners := make([]func(), 0, len(r.listeners))
	for _, fn := range r.listeners {
		listeners = append(listeners, fn)
	}
	r.listeners = make(map[int]func())
	r.mutex.Unlock()

	for _, fn := range listeners {
		fn()
	}
	return err
}
