package viewport

import (
	"context"
	"sync"
)

// ObtainFunc acquires the external rendering capability.
type ObtainFunc func(ctx context.Context) (Capability, error)

// Loader resolves the rendering capability at most once per process:
// concurrent callers share the in-flight initialization, success is
// cached for the life of the loader, failure is handed to the current
// waiters and cleared so the next access retries.
type Loader struct {
	obtain ObtainFunc

	mu   sync.Mutex
	cp   Capability
	call *loaderCall
}

type loaderCall struct {
	done chan struct{}
	cp   Capability
	err  error
}

// NewLoader wraps obtain with the at-most-once semantics.
func NewLoader(obtain ObtainFunc) *Loader {
	return &Loader{obtain: obtain}
}

// Load returns the capability, initializing it on first use. Waiters
// joining an in-flight initialization may bail out through their own
// context without cancelling it.
func (l *Loader) Load(ctx context.Context) (Capability, error) {
	l.mu.Lock()
	if l.cp != nil {
		l.mu.Unlock()
		return l.cp, nil
	}
	if l.call != nil {
		call := l.call
		l.mu.Unlock()
		select {
		case <-call.done:
			return call.cp, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &loaderCall{done: make(chan struct{})}
	l.call = call
	l.mu.Unlock()

	call.cp, call.err = l.obtain(ctx)

	l.mu.Lock()
	if call.err == nil {
		l.cp = call.cp
	}
	l.call = nil
	l.mu.Unlock()
	close(call.done)

	return call.cp, call.err
}
