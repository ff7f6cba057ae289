package viewport

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/felixgeelhaar/statekit"
	"github.com/greut/iiif-viewer/manifest"
	"github.com/greut/iiif-viewer/viewstate"
	d "github.com/tj/go-debug"
)

var debug = d.Debug("viewport")

var capabilityError = "rendering capability unavailable: %v"

// ErrNoImage reports a canvas that carries no paintable image.
var ErrNoImage = errors.New("canvas has no image")

var errOpenFailed = errors.New("image source failed to open")

// CapabilityError wraps a failure to obtain the rendering capability.
type CapabilityError struct {
	Err error
}

func (e CapabilityError) Error() string {
	return fmt.Sprintf(capabilityError, e.Err)
}

func (e CapabilityError) Unwrap() error {
	return e.Err
}

// pendingView is the requested region and zoom, held until the surface
// reports it has opened the image.
type pendingView struct {
	region *viewstate.Region
	zoom   float64
}

// Controller drives one deep-zoom surface for the currently selected
// canvas. It owns the statechart, the pending view, and the rotation,
// and publishes notifications as they change. All methods are safe for
// concurrent use.
type Controller struct {
	notifier Notifier
	loader   *Loader

	mu         sync.Mutex
	interp     *statekit.Interpreter[*machineContext]
	epoch      uint64
	manifestID string
	canvas     *manifest.Canvas
	surface    Surface
	cancel     context.CancelFunc
	pending    *pendingView
	rotation   int
	lastErr    error
}

// NewController returns an unbound controller that obtains its surfaces
// through loader.
func NewController(loader *Loader) (*Controller, error) {
	interp, err := newInterpreter(&machineContext{})
	if err != nil {
		return nil, err
	}
	return &Controller{loader: loader, interp: interp}, nil
}

// Subscribe registers fn with the controller's notifier and returns a
// cancel func. Handlers run synchronously and must not call back into
// the controller.
func (c *Controller) Subscribe(fn func(Notification)) func() {
	return c.notifier.Subscribe(fn)
}

// State reports the current statechart state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Err reports the error behind an unavailable or failed state, nil
// otherwise.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Canvas reports the currently bound canvas, nil when unbound.
func (c *Controller) Canvas() *manifest.Canvas {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canvas
}

// Rotation reports the current rotation in degrees, a multiple of 90.
func (c *Controller) Rotation() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rotation
}

// View derives the current view from the live surface. Before the
// surface is ready only the manifest and canvas are filled in.
func (c *Controller) View() viewstate.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deriveViewLocked()
}

// SetCanvas binds the controller to canvas. A non-nil override seeds
// the pending view to restore once the surface opens; nil keeps only
// the current rotation and resets region and zoom. Any previous
// binding is torn down first and its late events are discarded. A
// canvas without an image puts the controller in the unavailable
// state.
func (c *Controller) SetCanvas(canvas *manifest.Canvas, override *viewstate.ViewState) {
	c.mu.Lock()
	c.teardownLocked()
	c.epoch++
	epoch := c.epoch
	c.canvas = canvas
	c.lastErr = nil
	if override != nil {
		c.manifestID = override.Manifest
		c.pending = pendingFrom(*override)
		c.rotation = 0
		if override.Rotation != nil {
			c.rotation = NormalizeRotation(*override.Rotation)
		}
	} else {
		c.pending = nil
	}
	id := ""
	if canvas != nil {
		id = canvas.ID
	}
	c.interp.UpdateContext(func(m **machineContext) {
		(*m).CanvasID = id
		(*m).Epoch = epoch
	})

	if canvas == nil || canvas.Image == nil {
		c.lastErr = ErrNoImage
		c.interp.Send(statekit.Event{Type: eventUnavailable})
		state := c.stateLocked()
		c.mu.Unlock()
		c.notifier.publish(
			Notification{Kind: CanvasChanged, Canvas: id},
			Notification{Kind: StatusChanged, State: state, Err: ErrNoImage},
		)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.interp.Send(statekit.Event{Type: eventBind})
	state := c.stateLocked()
	img := canvas.Image
	c.mu.Unlock()
	c.notifier.publish(
		Notification{Kind: CanvasChanged, Canvas: id},
		Notification{Kind: StatusChanged, State: state},
	)
	go c.open(ctx, epoch, img)
}

// SetRotation rotates the view to deg, snapped to the nearest multiple
// of 90.
func (c *Controller) SetRotation(deg int) {
	c.mu.Lock()
	c.rotation = NormalizeRotation(deg)
	note, ok := c.pushRotationLocked()
	c.mu.Unlock()
	if ok {
		c.notifier.publish(note)
	}
}

// RotateBy rotates the view by delta degrees relative to the current
// rotation.
func (c *Controller) RotateBy(delta int) {
	c.mu.Lock()
	c.rotation = NormalizeRotation(c.rotation + delta)
	note, ok := c.pushRotationLocked()
	c.mu.Unlock()
	if ok {
		c.notifier.publish(note)
	}
}

// GoHome resets the view to fit the whole image and drops any pending
// view still waiting to be applied.
func (c *Controller) GoHome() {
	c.mu.Lock()
	c.pending = nil
	if c.stateLocked() != StateReady || c.surface == nil {
		c.mu.Unlock()
		return
	}
	c.surface.GoHome()
	c.surface.ApplyConstraints()
	view := c.deriveViewLocked()
	c.mu.Unlock()
	c.notifier.publish(Notification{Kind: ViewChanged, View: view})
}

// Unbind tears the surface down and returns the controller to the
// unbound state.
func (c *Controller) Unbind() {
	c.mu.Lock()
	c.teardownLocked()
	c.epoch++
	c.manifestID = ""
	c.canvas = nil
	c.pending = nil
	c.rotation = 0
	c.lastErr = nil
	if c.stateLocked() == StateUnbound {
		c.mu.Unlock()
		return
	}
	c.interp.Send(statekit.Event{Type: eventUnbind})
	state := c.stateLocked()
	c.mu.Unlock()
	c.notifier.publish(Notification{Kind: StatusChanged, State: state})
}

func (c *Controller) open(ctx context.Context, epoch uint64, img *manifest.Image) {
	cp, err := c.loader.Load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.openFailed(epoch, CapabilityError{Err: err})
		return
	}

	c.mu.Lock()
	if epoch != c.epoch || c.stateLocked() != StateLoading {
		c.mu.Unlock()
		return
	}
	surface := cp.NewSurface(func(ev Event) {
		c.surfaceEvent(epoch, ev)
	})
	c.surface = surface
	surface.Open(TileSource{
		Service: img.Service,
		URL:     img.Best,
		Width:   img.Width,
		Height:  img.Height,
	})
	c.mu.Unlock()
}

func (c *Controller) surfaceEvent(epoch uint64, ev Event) {
	switch ev.Kind {
	case EventOpened:
		c.opened(epoch)
	case EventOpenFailed:
		err := ev.Err
		if err == nil {
			err = errOpenFailed
		}
		c.openFailed(epoch, err)
	case EventAnimation, EventRotate, EventZoom, EventPan:
		c.viewChanged(epoch)
	}
}

func (c *Controller) opened(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch || c.stateLocked() != StateLoading || c.surface == nil {
		c.mu.Unlock()
		return
	}
	c.applyPendingLocked()
	c.lastErr = nil
	c.interp.Send(statekit.Event{Type: eventOpened})
	state := c.stateLocked()
	view := c.deriveViewLocked()
	c.mu.Unlock()
	c.notifier.publish(
		Notification{Kind: StatusChanged, State: state},
		Notification{Kind: ViewChanged, View: view},
	)
}

func (c *Controller) openFailed(epoch uint64, err error) {
	c.mu.Lock()
	if epoch != c.epoch || c.stateLocked() != StateLoading {
		c.mu.Unlock()
		return
	}
	c.lastErr = err
	c.interp.Send(statekit.Event{Type: eventFail})
	state := c.stateLocked()
	c.mu.Unlock()
	c.notifier.publish(Notification{Kind: StatusChanged, State: state, Err: err})
}

func (c *Controller) viewChanged(epoch uint64) {
	c.mu.Lock()
	if epoch != c.epoch || c.stateLocked() != StateReady {
		c.mu.Unlock()
		return
	}
	view := c.deriveViewLocked()
	c.mu.Unlock()
	c.notifier.publish(Notification{Kind: ViewChanged, View: view})
}

// applyPendingLocked pushes the requested view onto a freshly opened
// surface: rotation first, then region, then zoom, then constraints.
func (c *Controller) applyPendingLocked() {
	if c.surface == nil {
		return
	}
	if c.rotation != 0 {
		c.surface.SetRotation(c.rotation)
	}
	p := c.pending
	c.pending = nil
	if p == nil {
		return
	}
	if p.region != nil && c.canvas != nil && c.canvas.Image != nil {
		w := float64(c.canvas.Image.Width)
		h := float64(c.canvas.Image.Height)
		r := p.region.Clamped()
		c.surface.FitBounds(Rect{
			X: float64(r.X) / w,
			Y: float64(r.Y) / h,
			W: float64(r.W) / w,
			H: float64(r.H) / h,
		})
	} else {
		c.surface.GoHome()
	}
	if p.zoom > 0 {
		c.surface.ZoomTo(p.zoom)
	}
	c.surface.ApplyConstraints()
}

// pushRotationLocked forwards the stored rotation to a ready surface
// and returns the resulting view notification. Before the surface is
// ready the rotation is only stored, to be applied at open.
func (c *Controller) pushRotationLocked() (Notification, bool) {
	if c.stateLocked() != StateReady || c.surface == nil {
		return Notification{}, false
	}
	c.surface.SetRotation(c.rotation)
	return Notification{Kind: ViewChanged, View: c.deriveViewLocked()}, true
}

// deriveViewLocked reads the surface back into a ViewState. The surface
// is the single source of truth for region, zoom and rotation once it
// is live; nothing is accumulated controller-side.
func (c *Controller) deriveViewLocked() viewstate.ViewState {
	v := viewstate.ViewState{Manifest: c.manifestID}
	if c.canvas != nil {
		v.Canvas = c.canvas.ID
	}
	if c.stateLocked() != StateReady || c.surface == nil || c.canvas == nil || c.canvas.Image == nil {
		return v
	}
	w := float64(c.canvas.Image.Width)
	h := float64(c.canvas.Image.Height)
	b := c.surface.Bounds()
	r := viewstate.Region{
		X: int(math.Round(b.X * w)),
		Y: int(math.Round(b.Y * h)),
		W: int(math.Round(b.W * w)),
		H: int(math.Round(b.H * h)),
	}
	r = r.Clamped()
	v.XYWH = &r
	if z := viewstate.Round4(c.surface.Zoom()); z > 0 {
		v.Zoom = z
	}
	if rot := c.surface.Rotation(); rot != 0 {
		rot = NormalizeRotation(rot)
		v.Rotation = &rot
	}
	return v
}

func (c *Controller) teardownLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.surface != nil {
		c.surface.Destroy()
		c.surface = nil
	}
}

func (c *Controller) stateLocked() State {
	return State(c.interp.State().Value)
}

func pendingFrom(view viewstate.ViewState) *pendingView {
	if view.XYWH == nil && !(view.Zoom > 0) {
		return nil
	}
	p := &pendingView{zoom: view.Zoom}
	if view.XYWH != nil {
		r := *view.XYWH
		p.region = &r
	}
	return p
}

// NormalizeRotation snaps deg to the nearest multiple of 90 within
// [0, 360).
func NormalizeRotation(deg int) int {
	r := int(math.Round(float64(deg)/90)) * 90
	r %= 360
	if r < 0 {
		r += 360
	}
	return r
}
