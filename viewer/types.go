package viewer

// Config stores the viewer configuration.
type Config struct {
	Host      string      `toml:"host"`
	Port      int         `toml:"port"`
	Templates string      `toml:"templates"`
	Database  string      `toml:"database"`
	Origin    string      `toml:"origin"`
	Cache     CacheConfig `toml:"cache"`
}

// CacheConfig represents the configuration information regarding the caches.
type CacheConfig struct {
	HTTP           int64  `toml:"http"`
	Manifests      string `toml:"manifests"`
	Thumbnails     string `toml:"thumbnails"`
	ManifestsSize  int64
	ThumbnailsSize int64
}
