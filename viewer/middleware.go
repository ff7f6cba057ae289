package viewer

import (
	"context"
	"net/http"

	"github.com/golang/groupcache"

	"github.com/greut/iiif-viewer/manifest"
)

// ContextKey is the request context key to use.
type ContextKey string

// WithGroupCaches sets the various caches.
func WithGroupCaches(h http.Handler, groups map[string]*groupcache.Group) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		for k, v := range groups {
			ctx = context.WithValue(ctx, ContextKey(k), v)
		}
		r = r.WithContext(ctx)
		h.ServeHTTP(w, r)
	})
}

// WithConfig sets the viewer configuration.
func WithConfig(h http.Handler, config *Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, ContextKey("config"), config)
		r = r.WithContext(ctx)
		h.ServeHTTP(w, r)
	})
}

// WithFetcher sets the manifest fetcher.
func WithFetcher(h http.Handler, fetcher *manifest.Fetcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, ContextKey("fetcher"), fetcher)
		r = r.WithContext(ctx)
		h.ServeHTTP(w, r)
	})
}

// WithRecents sets the recently opened manifests store.
func WithRecents(h http.Handler, store *RecentStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, ContextKey("recents"), store)
		r = r.WithContext(ctx)
		h.ServeHTTP(w, r)
	})
}

// WithSessions sets the session hub.
func WithSessions(h http.Handler, hub *Hub) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, ContextKey("sessions"), hub)
		r = r.WithContext(ctx)
		h.ServeHTTP(w, r)
	})
}
