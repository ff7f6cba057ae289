package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"code.cloudfoundry.org/bytefmt"
	"github.com/BurntSushi/toml"

	"github.com/greut/iiif-viewer/manifest"
	"github.com/greut/iiif-viewer/viewer"
)

func main() {
	// Configuration
	var configFile = flag.String("config", "config.toml", "Define the configuration file to use.")
	flag.Parse()

	if flag.NArg() > 0 {
		*configFile = flag.Arg(0)
	}

	var config viewer.Config
	log.Println(fmt.Sprintf("Reading configuration from %s", *configFile))
	if _, err := toml.DecodeFile(*configFile, &config); err != nil {
		fmt.Println(err)
		return
	}

	mS, _ := bytefmt.ToBytes(config.Cache.Manifests)
	tS, _ := bytefmt.ToBytes(config.Cache.Thumbnails)
	config.Cache.ManifestsSize = int64(mS)
	config.Cache.ThumbnailsSize = int64(tS)

	// Manifests fetched on behalf of browsers carry the public origin.
	origin := config.Origin
	if origin == "" {
		origin = fmt.Sprintf("http://%s:%d", config.Host, config.Port)
	}
	fetcher := manifest.NewFetcher(origin)

	var store *viewer.RecentStore
	if config.Database != "" {
		var err error
		store, err = viewer.OpenRecentStore(config.Database)
		if err != nil {
			log.Fatal(err)
		}
		defer store.Close()
	}

	hub := viewer.NewHub(fetcher, store)

	// build router with the middlewares and both caches.
	handler := viewer.WithConfig(viewer.MakeRouter(), &config)
	handler = viewer.WithFetcher(handler, fetcher)
	handler = viewer.WithRecents(handler, store)
	handler = viewer.WithSessions(handler, hub)
	handler = viewer.SetGroupCache(
		handler,
		&config,
		fetcher,
		fmt.Sprintf("http://%s/", config.Host), // TODO add any other servers here...
	)

	// Serving
	listen := fmt.Sprintf("%v:%v", config.Host, config.Port)

	log.Println(fmt.Sprintf("Server running on %v", listen))
	panic(http.ListenAndServe(listen, handler))
}
