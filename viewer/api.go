package viewer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang/groupcache"

	"github.com/greut/iiif-viewer/manifest"
)

// error messages
var urlMissingError = "a `url` query parameter is expected"
var urlInvalidError = "the `url` query parameter is not a http(s) URL: %#v"

// ManifestHandler fetches, normalizes and responds with a manifest.
func ManifestHandler(w http.ResponseWriter, r *http.Request) {
	rawurl := r.URL.Query().Get("url")
	if rawurl == "" {
		e := HTTPError{http.StatusBadRequest, urlMissingError}
		http.Error(w, e.Error(), e.StatusCode)
		return
	}
	if u, err := url.Parse(rawurl); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		e := HTTPError{http.StatusBadRequest, fmt.Sprintf(urlInvalidError, rawurl)}
		http.Error(w, e.Error(), e.StatusCode)
		return
	}

	ctx := r.Context()
	config, _ := ctx.Value(ContextKey("config")).(*Config)
	fetcher, _ := ctx.Value(ContextKey("fetcher")).(*manifest.Fetcher)
	manifests, _ := ctx.Value(ContextKey("manifests")).(*groupcache.Group)
	store, _ := ctx.Value(ContextKey("recents")).(*RecentStore)

	if fetcher == nil {
		fetcher = manifest.NewFetcher("")
	}

	m := NewMetrics()
	start := time.Now()

	var data []byte
	var err error
	if manifests != nil {
		err = manifests.Get(ctx, rawurl, groupcache.AllocatingByteSliceSink(&data))
		if err == nil {
			debug("manifest from cache %v", rawurl)
		}
	} else {
		data, err = fetcher.FetchRaw(ctx, rawurl)
	}

	var doc *manifest.Manifest
	if err == nil {
		doc, err = manifest.Parse(data, rawurl)
	}

	status := statusLabel(err)
	m.ManifestRequestTotal.WithLabelValues(status).Inc()
	m.ManifestRequestDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e := toHTTPError(err)
		http.Error(w, e.Error(), e.StatusCode)
		return
	}

	if store != nil {
		if err := store.Upsert(ctx, rawurl, doc); err != nil {
			debug("recording recent %v: %v", rawurl, err)
		}
	}

	buffer, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		http.Error(w, "Cannot encode manifest", http.StatusInternalServerError)
		return
	}

	header := w.Header()

	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/ld+json") {
		header.Set("Content-Type", "application/ld+json")
	} else {
		header.Set("Content-Type", "application/json")
	}
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	header.Set("ETag", getETag(string(buffer)))
	if config != nil {
		header.Set("Cache-Control", fmt.Sprintf("max-age=%v, public", config.Cache.HTTP))
	}
	http.ServeContent(w, r, "manifest.json", time.Time{}, bytes.NewReader(buffer))
}

// RecentHandler lists the recently opened manifests.
func RecentHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store, _ := ctx.Value(ContextKey("recents")).(*RecentStore)

	recents := []Recent{}
	if store != nil {
		var err error
		recents, err = store.List(ctx, 20)
		if err != nil {
			e := toHTTPError(err)
			http.Error(w, e.Error(), e.StatusCode)
			return
		}
	}

	buffer, err := json.MarshalIndent(recents, "", "  ")
	if err != nil {
		http.Error(w, "Cannot encode recents", http.StatusInternalServerError)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "application/json")
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	w.Write(buffer)
}

// statusLabel buckets an error for the metrics.
func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var fe *manifest.FetchError
	if errors.As(err, &fe) {
		return "fetch"
	}
	var pe *manifest.ParseError
	if errors.As(err, &pe) {
		return "parse"
	}
	var ee *manifest.EmptyManifestError
	if errors.As(err, &ee) {
		return "empty"
	}
	return "error"
}
