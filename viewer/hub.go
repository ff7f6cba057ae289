package viewer

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/greut/iiif-viewer/manifest"
	"github.com/greut/iiif-viewer/viewstate"
)

// error messages
var sessionError = "no such session: %#v"
var hubMissingError = "sessions are not enabled"

// orphanAge is how long a session created by a page render may wait for
// its first socket before being swept.
const orphanAge = 5 * time.Minute

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub owns the live viewer sessions.
type Hub struct {
	fetcher *manifest.Fetcher
	store   *RecentStore

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHub builds an empty hub. The store may be nil.
func NewHub(fetcher *manifest.Fetcher, store *RecentStore) *Hub {
	if fetcher == nil {
		fetcher = manifest.NewFetcher("")
	}
	return &Hub{
		fetcher:  fetcher,
		store:    store,
		sessions: make(map[string]*Session),
	}
}

// Create registers a session seeded with the given view. The page
// render calls this; the browser then attaches over the socket.
func (h *Hub) Create(seed viewstate.ViewState) (*Session, error) {
	h.sweep()

	s, err := newSession(h, seed)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()

	NewMetrics().SessionsActive.Inc()
	debug("session %v created", s.ID)
	return s, nil
}

// Session looks a session up by id.
func (h *Hub) Session(id string) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[id]
}

// Count reports the number of live sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	_, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()

	if ok {
		NewMetrics().SessionsActive.Dec()
		debug("session %v removed", id)
	}
}

// sweep drops sessions whose page was rendered but whose socket never
// came, crawlers mostly.
func (h *Hub) sweep() {
	cutoff := time.Now().Add(-orphanAge)

	h.mu.Lock()
	var orphans []*Session
	for _, s := range h.sessions {
		if !s.attached.Load() && s.createdAt.Before(cutoff) {
			orphans = append(orphans, s)
		}
	}
	for _, s := range orphans {
		delete(h.sessions, s.ID)
	}
	h.mu.Unlock()

	for _, s := range orphans {
		NewMetrics().SessionsActive.Dec()
		debug("session %v swept", s.ID)
	}
}

// SocketHandler attaches a browser to its session.
func SocketHandler(w http.ResponseWriter, r *http.Request) {
	hub, _ := r.Context().Value(ContextKey("sessions")).(*Hub)
	if hub == nil {
		e := HTTPError{http.StatusServiceUnavailable, hubMissingError}
		http.Error(w, e.Error(), e.StatusCode)
		return
	}

	id := r.URL.Query().Get("session")
	session := hub.Session(id)
	if session == nil {
		e := HTTPError{http.StatusNotFound, fmt.Sprintf(sessionError, id)}
		http.Error(w, e.Error(), e.StatusCode)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	session.serve(conn)
}

func newSessionID() string {
	return uuid.New().String()
}
