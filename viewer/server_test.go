package viewer

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/greut/iiif-viewer/manifest"
)

// TestWithGroupCache is the only test wiring the caches up; the group
// names are process-wide.
func TestWithGroupCache(t *testing.T) {
	origin := newOrigin(t)

	store, err := OpenRecentStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	fetcher := manifest.NewFetcher("http://viewer.test")
	hub := NewHub(fetcher, store)

	config := &Config{
		Templates: "../templates",
		Cache: CacheConfig{
			HTTP:           3600,
			ManifestsSize:  16 << 20,
			ThumbnailsSize: 16 << 20,
		},
	}

	r := MakeRouter()
	r = SetGroupCache(r, config, fetcher, "http://localhost/")
	r = WithConfig(r, config)
	r = WithFetcher(r, fetcher)
	r = WithRecents(r, store)
	r = WithSessions(r, hub)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	target := ts.URL + "/api/manifest?url=" + url.QueryEscape(origin.URL+"/manifest.json")
	for i := 0; i < 2; i++ {
		resp, err := http.Get(target)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()

		if status := resp.StatusCode; status != http.StatusOK {
			t.Fatalf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
		}
	}
	if got := origin.count("/manifest.json"); got != 1 {
		t.Errorf("manifest should be fetched once: got %v hits", got)
	}

	thumb := ts.URL + "/thumb/" + url.QueryEscape(origin.URL+"/picture.jpg")
	for i := 0; i < 2; i++ {
		resp, err := http.Get(thumb)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()

		if status := resp.StatusCode; status != http.StatusOK {
			t.Fatalf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
		}
	}
	if got := origin.count("/picture.jpg"); got != 1 {
		t.Errorf("picture should be fetched once: got %v hits", got)
	}
}
