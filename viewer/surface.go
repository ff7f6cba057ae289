package viewer

import (
	"errors"
	"sync"

	"github.com/greut/iiif-viewer/viewport"
)

// remoteSurface runs the deep zoom viewport living in the driver
// browser. Commands go out as frames, the browser reports its geometry
// back and the controller reads the last report synchronously.
type remoteSurface struct {
	session *Session
	events  func(viewport.Event)

	mu        sync.Mutex
	src       *viewport.TileSource
	bounds    viewport.Rect
	zoom      float64
	rotation  int
	destroyed bool
}

func (rs *remoteSurface) Open(src viewport.TileSource) {
	rs.mu.Lock()
	rs.src = &src
	rs.mu.Unlock()
	rs.session.broadcast(wsMessage{Type: "open", Source: &src})
}

func (rs *remoteSurface) Destroy() {
	rs.mu.Lock()
	if rs.destroyed {
		rs.mu.Unlock()
		return
	}
	rs.destroyed = true
	rs.mu.Unlock()
	rs.session.broadcast(wsMessage{Type: "close"})
}

func (rs *remoteSurface) Bounds() viewport.Rect {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.bounds
}

func (rs *remoteSurface) Zoom() float64 {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.zoom
}

func (rs *remoteSurface) Rotation() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.rotation
}

func (rs *remoteSurface) SetRotation(deg int) {
	rs.mu.Lock()
	rs.rotation = deg
	rs.mu.Unlock()
	rs.session.broadcast(wsMessage{Type: "setRotation", Degrees: deg})
}

func (rs *remoteSurface) ZoomTo(zoom float64) {
	rs.mu.Lock()
	rs.zoom = zoom
	rs.mu.Unlock()
	rs.session.broadcast(wsMessage{Type: "zoomTo", Zoom: zoom})
}

func (rs *remoteSurface) ZoomBy(factor float64) {
	rs.mu.Lock()
	rs.zoom *= factor
	rs.mu.Unlock()
	rs.session.broadcast(wsMessage{Type: "zoomBy", Factor: factor})
}

func (rs *remoteSurface) FitBounds(r viewport.Rect) {
	rs.mu.Lock()
	rs.bounds = r
	rs.mu.Unlock()
	rs.session.broadcast(wsMessage{Type: "fitBounds", Bounds: &r})
}

func (rs *remoteSurface) GoHome() {
	rs.mu.Lock()
	rs.bounds = viewport.Rect{X: 0, Y: 0, W: 1, H: 1}
	rs.mu.Unlock()
	rs.session.broadcast(wsMessage{Type: "goHome"})
}

func (rs *remoteSurface) ApplyConstraints() {
	rs.session.broadcast(wsMessage{Type: "applyConstraints"})
}

// report ingests a geometry report from the browser and forwards the
// event. Reports arriving after Destroy are dropped here; the
// controller's epoch check would drop them anyway.
func (rs *remoteSurface) report(msg wsMessage) {
	rs.mu.Lock()
	if rs.destroyed {
		rs.mu.Unlock()
		return
	}
	if msg.Bounds != nil {
		rs.bounds = *msg.Bounds
		rs.rotation = msg.Rotation
	}
	if msg.Zoom > 0 {
		rs.zoom = msg.Zoom
	}
	events := rs.events
	rs.mu.Unlock()

	ev := viewport.Event{Kind: viewport.EventKind(msg.Kind)}
	if msg.Error != "" {
		ev.Err = errors.New(msg.Error)
	}
	events(ev)
}

// replay rebuilds the commands a late joiner needs to catch up.
func (rs *remoteSurface) replay() []wsMessage {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.src == nil || rs.destroyed {
		return nil
	}

	msgs := []wsMessage{{Type: "open", Source: rs.src}}
	if rs.rotation != 0 {
		msgs = append(msgs, wsMessage{Type: "setRotation", Degrees: rs.rotation})
	}
	b := rs.bounds
	msgs = append(msgs, wsMessage{Type: "fitBounds", Bounds: &b})
	return msgs
}
