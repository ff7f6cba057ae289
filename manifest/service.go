package manifest

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

const (
	// thumbWidth bounds thumbnail tiles.
	thumbWidth = 320
	// bestWidth bounds the full-display tile derived from a service.
	bestWidth = 2048
)

// serviceBlock is the typed shape of an image-service descriptor.
// Documents disagree on key casing so both spellings are declared.
type serviceBlock struct {
	ID       string      `mapstructure:"id"`
	AtID     string      `mapstructure:"@id"`
	Type     string      `mapstructure:"type"`
	AtType   string      `mapstructure:"@type"`
	Profile  interface{} `mapstructure:"profile"`
	Service  interface{} `mapstructure:"service"`
	Services interface{} `mapstructure:"services"`
}

// serviceOf discovers the Image API endpoint attached to an image
// body: its service/services field first, then the nested bodies under
// items, whose bare id is the last resort.
func serviceOf(body map[string]interface{}) string {
	if s := findService(body["service"]); s != "" {
		return s
	}
	if s := findService(body["services"]); s != "" {
		return s
	}
	if items, ok := body["items"].([]interface{}); ok {
		for _, e := range items {
			nested, ok := e.(map[string]interface{})
			if !ok {
				continue
			}
			if s := serviceOf(nested); s != "" {
				return s
			}
			if id := firstString(nested, "id", "@id"); id != "" {
				return NormalizeService(id)
			}
		}
	}
	return ""
}

// findService walks a service value, which may be a bare URL, a single
// descriptor or a list of either. The first entry exposing an id wins.
func findService(v interface{}) string {
	switch t := v.(type) {
	case string:
		if t != "" {
			return NormalizeService(t)
		}
	case []interface{}:
		for _, e := range t {
			if s := findService(e); s != "" {
				return s
			}
		}
	case map[string]interface{}:
		var block serviceBlock
		if err := mapstructure.Decode(t, &block); err != nil {
			return ""
		}
		if block.ID != "" {
			return NormalizeService(block.ID)
		}
		if block.AtID != "" {
			return NormalizeService(block.AtID)
		}
		if s := findService(block.Service); s != "" {
			return s
		}
		if s := findService(block.Services); s != "" {
			return s
		}
	}
	return ""
}

// NormalizeService reduces a service URL to its base so the /info.json
// and trailing-slash spellings produce identical tile URLs.
func NormalizeService(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, "/info.json")
	return strings.TrimSuffix(s, "/")
}

// TileURL builds an Image API request for the full region with both
// dimensions bound to n, preserving the aspect ratio.
func TileURL(service string, n int) string {
	return fmt.Sprintf("%s/full/!%d,%d/0/default.jpg", NormalizeService(service), n, n)
}
