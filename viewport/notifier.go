package viewport

import (
	"sort"
	"sync"

	"github.com/greut/iiif-viewer/viewstate"
)

// NotificationKind tells a subscriber what changed.
type NotificationKind int

const (
	// ViewChanged carries a fresh snapshot of the visible view.
	ViewChanged NotificationKind = iota
	// CanvasChanged fires when the controller binds another canvas.
	CanvasChanged
	// StatusChanged fires on every state transition.
	StatusChanged
)

// Notification is what observers receive. View is set for ViewChanged,
// Canvas for CanvasChanged, State (and Err when failed) for
// StatusChanged.
type Notification struct {
	Kind   NotificationKind
	View   viewstate.ViewState
	Canvas string
	State  State
	Err    error
}

// Notifier fans notifications out to subscribers. Subscribers are
// invoked synchronously in publish order, so handlers must not call
// back into the controller.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Notification)
}

// Subscribe registers fn and returns a cancel func.
func (n *Notifier) Subscribe(fn func(Notification)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = map[int]func(Notification){}
	}
	id := n.next
	n.next++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

func (n *Notifier) publish(notes ...Notification) {
	n.mu.Lock()
	fns := make([]func(Notification), 0, len(n.subs))
	ids := make([]int, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	// map order is random; keep subscription order stable.
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, n.subs[id])
	}
	n.mu.Unlock()

	for _, note := range notes {
		for _, fn := range fns {
			fn(note)
		}
	}
}
