package overlay

import "sync"

// ImageHandle is the raster image an overlay is anchored to.
type ImageHandle interface {
	// NaturalSize is the decoded pixel size, zero while the image is not decoded.
	NaturalSize() (width, height int)
	// Complete reports if the image finished loading, successfully or not.
	Complete() bool
	// OnLoad subscribes to the one-shot load notification. The returned function releases the subscription and
	// must be safe to call more than once.
	OnLoad(func()) (release func())
}

// GateState is the subscription state of a Gate.
type GateState int

const (
	GateUnsubscribed GateState = iota
	GateWaiting
	GateReady
)

func (s GateState) String() string {
	switch s {
	case GateWaiting:
		return "waiting"
	case GateReady:
		return "ready"
	default:
		return "unsubscribed"
	}
}

// Gate defers rendering until the attached image has a decoded, non zero, natural size. It holds at most one load
// subscription, released when the image changes or the gate is closed.
type Gate struct {
	// OnChange is called, outside the gate lock, every time the gate becomes ready.
	OnChange func()

	mutex      sync.Mutex
	image      ImageHandle
	state      GateState
	release    func()
	generation uint64
}

// Attach the gate to an image, releasing the subscription of the previous one. A nil image leaves the gate
// unsubscribed. Attaching the image that is already attached is a no-op, handles are compared by identity.
func (g *Gate) Attach(img ImageHandle) {
	g.mutex.Lock()
	if img != nil && img == g.image {
		g.mutex.Unlock()
		return
	}
	g.detach()
	if img == nil {
		g.mutex.Unlock()
		return
	}
	g.image = img
	g.state = GateWaiting
	generation := g.generation
	g.mutex.Unlock()

	// Subscribing before looking at the image state closes the window where the load happens in between.
	release := img.OnLoad(func() { g.loaded(generation) })

	g.mutex.Lock()
	if g.generation != generation || g.state == GateReady {
		g.mutex.Unlock()
		release()
		return
	}
	if loaded(img) {
		g.state = GateReady
		onChange := g.OnChange
		g.mutex.Unlock()
		release()
		if onChange != nil {
			onChange()
		}
		return
	}
	g.release = release
	g.mutex.Unlock()
}

// Close releases the current subscription.
func (g *Gate) Close() {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.detach()
}

// Ready reports if the image is attached, complete and has a non zero natural width.
func (g *Gate) Ready() bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.state == GateReady
}

// State of the gate subscription.
func (g *Gate) State() GateState {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.state
}

// Size is the natural size of the image, zero while the gate is not ready.
func (g *Gate) Size() Target {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if g.state != GateReady {
		return Target{}
	}
	width, height := g.image.NaturalSize()
	return Target{Width: float64(width), Height: float64(height)}
}

func (g *Gate) loaded(generation uint64) {
	g.mutex.Lock()
	if g.generation != generation || g.state != GateWaiting || !loaded(g.image) {
		g.mutex.Unlock()
		return
	}
	g.state = GateReady
	release := g.release
	g.release = nil
	onChange := g.OnChange
	g.mutex.Unlock()

	if release != nil {
		release()
	}
	if onChange != nil {
		onChange()
	}
}

// detach expects the lock to be held.
func (g *Gate) detach() {
	if g.release != nil {
		g.release()
		g.release = nil
	}
	g.image = nil
	g.state = GateUnsubscribed
	g.generation++
}

func loaded(img ImageHandle) bool {
	if img == nil || !img.Complete() {
		return false
	}
	width, _ := img.NaturalSize()
	return width > 0
}
