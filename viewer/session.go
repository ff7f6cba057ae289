package viewer

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/greut/iiif-viewer/manifest"
	"github.com/greut/iiif-viewer/viewport"
	"github.com/greut/iiif-viewer/viewstate"
)

// writeWait bounds a single websocket write.
const writeWait = 5 * time.Second

// error messages
var canvasError = "no such canvas: %#v"

// wsMessage is the single frame format on the session socket, both
// directions. Type discriminates, unused fields stay empty.
//
// Server to browser: hello, role, open, close, setRotation, zoomTo,
// zoomBy, fitBounds, goHome, applyConstraints, manifest, canvas,
// status, url and error.
//
// Browser to server: load, select, rotate, home and event, where event
// reports the viewport geometry after a change of the given kind.
type wsMessage struct {
	Type     string               `json:"type"`
	ID       string               `json:"id,omitempty"`
	Session  string               `json:"session,omitempty"`
	Role     string               `json:"role,omitempty"`
	Manifest string               `json:"manifest,omitempty"`
	Canvas   string               `json:"canvas,omitempty"`
	Kind     string               `json:"kind,omitempty"`
	Source   *viewport.TileSource `json:"source,omitempty"`
	Bounds   *viewport.Rect       `json:"bounds,omitempty"`
	Zoom     float64              `json:"zoom,omitempty"`
	Factor   float64              `json:"factor,omitempty"`
	Degrees  int                  `json:"degrees,omitempty"`
	Delta    int                  `json:"delta,omitempty"`
	Rotation int                  `json:"rotation,omitempty"`
	Query    string               `json:"query,omitempty"`
	Replace  bool                 `json:"replace,omitempty"`
	State    string               `json:"state,omitempty"`
	Error    string               `json:"error,omitempty"`
	Document *manifest.Manifest   `json:"document,omitempty"`
}

// Session is one shared viewing context: a viewport controller, the
// manifest it browses and the sockets following it. The first socket
// is the driver, whose browser renders for the controller and reports
// geometry back; later sockets watch and mirror the commands.
type Session struct {
	ID string

	hub       *Hub
	createdAt time.Time
	attached  atomic.Bool

	// ready is closed when the driver arrives, resolving the
	// controller's rendering capability.
	ready chan struct{}
	once  sync.Once

	ctrl *viewport.Controller

	mu          sync.Mutex
	conns       map[*websocket.Conn]struct{}
	driver      *websocket.Conn
	surface     *remoteSurface
	doc         *manifest.Manifest
	manifestURL string
	seed        viewstate.ViewState
	cancel      context.CancelFunc
	lastURL     *wsMessage
}

func newSession(hub *Hub, seed viewstate.ViewState) (*Session, error) {
	s := &Session{
		ID:        newSessionID(),
		hub:       hub,
		createdAt: time.Now(),
		ready:     make(chan struct{}),
		conns:     make(map[*websocket.Conn]struct{}),
		seed:      seed,
	}

	ctrl, err := viewport.NewController(viewport.NewLoader(s.obtain))
	if err != nil {
		return nil, err
	}
	s.ctrl = ctrl
	ctrl.Subscribe(s.notification)

	return s, nil
}

// Controller exposes the session's viewport controller.
func (s *Session) Controller() *viewport.Controller {
	return s.ctrl
}

// obtain resolves the rendering capability once the driver browser is
// connected.
func (s *Session) obtain(ctx context.Context) (viewport.Capability, error) {
	select {
	case <-s.ready:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// NewSurface creates the remote surface driving the connected browser.
func (s *Session) NewSurface(events func(viewport.Event)) viewport.Surface {
	rs := &remoteSurface{
		session: s,
		events:  events,
		bounds:  viewport.Rect{W: 1, H: 1},
		zoom:    1,
	}
	s.mu.Lock()
	s.surface = rs
	s.mu.Unlock()
	return rs
}

// serve runs the read loop for one socket until it goes away.
func (s *Session) serve(conn *websocket.Conn) {
	role := s.attach(conn)
	debug("session %v: %s connected", s.ID, role)

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		s.dispatch(conn, msg)
	}

	s.detach(conn)
	debug("session %v: %s disconnected", s.ID, role)
}

func (s *Session) attach(conn *websocket.Conn) string {
	s.attached.Store(true)

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	role := "watcher"
	if s.driver == nil {
		s.driver = conn
		role = "driver"
	}
	s.mu.Unlock()

	s.write(conn, wsMessage{Type: "hello", Session: s.ID, Role: role})

	if role == "driver" {
		s.once.Do(func() { close(s.ready) })
		if seed := s.seedView(); seed.Manifest != "" {
			s.load(seed)
		}
	} else {
		s.resync(conn)
	}

	return role
}

func (s *Session) detach(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	var promoted *websocket.Conn
	if s.driver == conn {
		s.driver = nil
		// the viewport keeps living in another tab
		for c := range s.conns {
			s.driver = c
			promoted = c
			break
		}
	}
	empty := len(s.conns) == 0
	s.mu.Unlock()
	_ = conn.Close()

	if promoted != nil {
		s.write(promoted, wsMessage{Type: "role", Role: "driver"})
	}
	if empty {
		s.shutdown()
	}
}

// shutdown tears the session down once the last socket is gone.
func (s *Session) shutdown() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.ctrl.Unbind()
	s.hub.remove(s.ID)
}

// seedView hands the initial view out once; reconnections should not
// rewind the session to the URL it was born with.
func (s *Session) seedView() viewstate.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	seed := s.seed
	s.seed = viewstate.ViewState{}
	return seed
}

// resync replays the current state to a late joiner.
func (s *Session) resync(conn *websocket.Conn) {
	s.mu.Lock()
	doc := s.doc
	rawurl := s.manifestURL
	rs := s.surface
	last := s.lastURL
	s.mu.Unlock()

	if doc != nil {
		s.write(conn, wsMessage{Type: "manifest", Manifest: rawurl, Document: doc})
	}
	if rs != nil {
		for _, msg := range rs.replay() {
			s.write(conn, msg)
		}
	}
	s.write(conn, wsMessage{Type: "status", State: string(s.ctrl.State())})
	if last != nil {
		s.write(conn, *last)
	}
}

func (s *Session) dispatch(conn *websocket.Conn, msg wsMessage) {
	label := msg.Type
	switch msg.Type {
	case "load", "select", "rotate", "home", "event":
	default:
		label = "unknown"
	}
	NewMetrics().SessionMessageTotal.WithLabelValues(label).Inc()

	switch msg.Type {
	case "load":
		view := viewstate.ViewState{}
		if values, err := url.ParseQuery(msg.Query); err == nil {
			view = viewstate.Decode(values)
		}
		view.Manifest = msg.Manifest
		if view.Manifest != "" {
			s.load(view)
		}
	case "select":
		s.selectCanvas(msg.Canvas)
	case "rotate":
		s.ctrl.RotateBy(msg.Delta)
	case "home":
		s.ctrl.GoHome()
	case "event":
		s.report(conn, msg)
	default:
		debug("session %v: unknown message %#v", s.ID, msg.Type)
	}
}

// report routes a geometry report from the driver browser into the
// surface. Watchers never drive.
func (s *Session) report(conn *websocket.Conn, msg wsMessage) {
	s.mu.Lock()
	rs := s.surface
	driver := s.driver
	s.mu.Unlock()

	if rs == nil || conn != driver {
		return
	}
	rs.report(msg)
}

// load fetches and normalizes a manifest, then binds the view's canvas,
// or the first one. A newer load cancels this one.
func (s *Session) load(view viewstate.ViewState) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		doc, err := s.hub.fetcher.Fetch(ctx, view.Manifest)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.broadcast(wsMessage{Type: "error", Error: err.Error()})
			return
		}

		if s.hub.store != nil {
			if err := s.hub.store.Upsert(ctx, view.Manifest, doc); err != nil {
				debug("recording recent %v: %v", view.Manifest, err)
			}
		}

		s.mu.Lock()
		s.doc = doc
		s.manifestURL = view.Manifest
		s.mu.Unlock()

		s.broadcast(wsMessage{Type: "manifest", Manifest: view.Manifest, Document: doc})

		canvas := &doc.Canvases[0]
		if view.Canvas != "" {
			if c := doc.Canvas(view.Canvas); c != nil {
				canvas = c
			}
		}
		view.Canvas = canvas.ID
		s.ctrl.SetCanvas(canvas, &view)
	}()
}

func (s *Session) selectCanvas(id string) {
	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()

	if doc == nil {
		return
	}
	canvas := doc.Canvas(id)
	if canvas == nil {
		s.broadcast(wsMessage{Type: "error", Error: fmt.Sprintf(canvasError, id)})
		return
	}
	s.ctrl.SetCanvas(canvas, nil)
}

// notification fans controller changes out to the sockets: canvas
// switches and statuses as typed frames, committed views as URL
// updates.
func (s *Session) notification(n viewport.Notification) {
	switch n.Kind {
	case viewport.CanvasChanged:
		s.mu.Lock()
		rawurl := s.manifestURL
		s.mu.Unlock()

		s.broadcast(wsMessage{Type: "canvas", Canvas: n.Canvas})
		viewstate.Write(viewstate.ViewState{Manifest: rawurl, Canvas: n.Canvas}, s, false)
	case viewport.ViewChanged:
		viewstate.Write(n.View, s, true)
	case viewport.StatusChanged:
		msg := wsMessage{Type: "status", State: string(n.State)}
		if n.Err != nil {
			msg.Error = n.Err.Error()
		}
		s.broadcast(msg)
	}
}

// Push records a new history entry on every connected browser.
func (s *Session) Push(query string) {
	s.urlUpdate(query, false)
}

// Replace rewrites the current history entry on every connected
// browser.
func (s *Session) Replace(query string) {
	s.urlUpdate(query, true)
}

func (s *Session) urlUpdate(query string, replace bool) {
	msg := wsMessage{Type: "url", Query: query, Replace: replace}

	s.mu.Lock()
	s.lastURL = &msg
	s.mu.Unlock()

	s.broadcast(msg)
}

// broadcast sends msg to every socket, dropping the ones that stall.
func (s *Session) broadcast(msg wsMessage) {
	msg.ID = ulid.Make().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			debug("session %v: dropping socket: %v", s.ID, err)
			_ = conn.Close()
			delete(s.conns, conn)
			if s.driver == conn {
				s.driver = nil
			}
		}
	}
}

// write sends msg to a single socket.
func (s *Session) write(conn *websocket.Conn, msg wsMessage) {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[conn]; !ok {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		debug("session %v: dropping socket: %v", s.ID, err)
		_ = conn.Close()
		delete(s.conns, conn)
		if s.driver == conn {
			s.driver = nil
		}
	}
}
