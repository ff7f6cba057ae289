package viewstate

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Decode reads a view state out of URL query parameters. A shared URL
// is untrusted input, so malformed fields decode as absent instead of
// failing the whole record.
func Decode(q url.Values) ViewState {
	v := ViewState{
		Manifest: q.Get("manifest"),
		Canvas:   q.Get("canvas"),
		XYWH:     parseRegion(q.Get("xywh")),
	}
	if z, err := strconv.ParseFloat(q.Get("zoom"), 64); err == nil && finite(z) && z > 0 {
		v.Zoom = z
	}
	if f, err := strconv.ParseFloat(q.Get("rotation"), 64); err == nil && finite(f) {
		if deg, ok := canonicalRotation(f); ok {
			v.Rotation = &deg
		}
	}
	return v
}

// Values writes the state into URL query parameters, omitting every
// absent field.
func (v ViewState) Values() url.Values {
	q := url.Values{}
	if v.Manifest != "" {
		q.Set("manifest", v.Manifest)
	}
	if v.Canvas != "" {
		q.Set("canvas", v.Canvas)
	}
	if v.XYWH != nil {
		r := v.XYWH.Clamped()
		q.Set("xywh", fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.W, r.H))
	}
	if v.Zoom > 0 {
		q.Set("zoom", formatZoom(v.Zoom))
	}
	if v.Rotation != nil {
		q.Set("rotation", strconv.Itoa(*v.Rotation))
	}
	return q
}

// Query is the encoded query-string form of the state.
func (v ViewState) Query() string {
	return v.Values().Encode()
}

// parseRegion accepts exactly four finite comma-separated numbers.
// Anything else is absent, never a partial tuple.
func parseRegion(s string) *Region {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil
	}
	nums := make([]int, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || !finite(f) {
			return nil
		}
		nums[i] = int(math.Round(f))
	}
	r := Region{X: nums[0], Y: nums[1], W: nums[2], H: nums[3]}.Clamped()
	return &r
}

// canonicalRotation reduces an angle modulo 360 and reports whether it
// lands exactly on a quarter turn. Off-grid values are dropped rather
// than rounded: a stale URL should not silently assert a wrong angle.
func canonicalRotation(f float64) (int, bool) {
	f = math.Mod(f, 360)
	if f < 0 {
		f += 360
	}
	switch f {
	case 0, 90, 180, 270:
		return int(f), true
	}
	return 0, false
}

// formatZoom writes the shortest decimal that keeps the four-digit
// rounding, with no trailing zeros.
func formatZoom(z float64) string {
	return strconv.FormatFloat(Round4(z), 'f', -1, 64)
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
