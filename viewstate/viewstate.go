package viewstate

import "math"

// Region is a viewport region in source-image pixel coordinates, not
// the rendering surface's normalized space.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Clamped returns the region with position at least 0 and size at
// least 1.
func (r Region) Clamped() Region {
	if r.X < 0 {
		r.X = 0
	}
	if r.Y < 0 {
		r.Y = 0
	}
	if r.W < 1 {
		r.W = 1
	}
	if r.H < 1 {
		r.H = 1
	}
	return r
}

// ViewState is the shareable, URL-borne description of what is on
// screen. Every field is optional and independent; the whole record is
// transient, reconstructed from the URL on navigation and rewritten on
// every committed view change.
type ViewState struct {
	Manifest string  `json:"manifest,omitempty"`
	Canvas   string  `json:"canvas,omitempty"`
	XYWH     *Region `json:"xywh,omitempty"`
	Zoom     float64 `json:"zoom,omitempty"` // zero means absent
	Rotation *int    `json:"rotation,omitempty"`
}

// Round4 rounds a zoom factor to four decimal digits. It keeps shared
// URLs short and stops floating-point noise from churning the history.
func Round4(z float64) float64 {
	return math.Round(z*10000) / 10000
}
