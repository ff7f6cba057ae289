package viewer

import (
	"context"
	"net/http"

	"github.com/golang/groupcache"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	d "github.com/tj/go-debug"

	"github.com/greut/iiif-viewer/manifest"
)

var debug = d.Debug("viewer")

// MakeRouter construct the basic router (no middlewares)
func MakeRouter() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", IndexHandler)
	router.HandleFunc("/view", ViewHandler)
	router.HandleFunc("/ws", SocketHandler)
	router.HandleFunc("/api/manifest", ManifestHandler)
	router.HandleFunc("/api/recent", RecentHandler)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/thumb/{identifier:.*}", ThumbHandler)

	return router
}

// SetGroupCache sets the two caches, for manifest documents and
// thumbnail pictures.
func SetGroupCache(router http.Handler, config *Config, fetcher *manifest.Fetcher, peers ...string) http.Handler {
	// Caching
	pool := groupcache.NewHTTPPool(peers[0])
	pool.Set(peers...)

	var manifests = groupcache.NewGroup("manifests", config.Cache.ManifestsSize, groupcache.GetterFunc(
		func(ctx groupcache.Context, key string, dest groupcache.Sink) error {
			c, ok := ctx.(context.Context)
			if !ok || c == nil {
				c = context.Background()
			}
			data, err := fetcher.FetchRaw(c, key)
			if err != nil {
				return err
			}
			debug("caching manifest %s", key)
			dest.SetBytes(data)
			return nil
		},
	))

	var thumbnails = groupcache.NewGroup("thumbnails", config.Cache.ThumbnailsSize, groupcache.GetterFunc(
		func(ctx groupcache.Context, key string, dest groupcache.Sink) error {
			data, err := download(key)
			if err != nil {
				return err
			}
			debug("caching thumbnail %s", key)
			dest.SetBytes(data)
			return nil
		},
	))

	return WithGroupCaches(router, map[string]*groupcache.Group{
		"manifests":  manifests,
		"thumbnails": thumbnails,
	})
}
