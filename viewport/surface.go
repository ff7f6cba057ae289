package viewport

// Rect is a region in the rendering surface's normalized unit space:
// x and width are fractions of the source width, y and height of the
// source height.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// TileSource tells a surface what to open: an Image API service when
// the image has one, else a single picture with explicit dimensions.
type TileSource struct {
	Service string `json:"service,omitempty"`
	URL     string `json:"url,omitempty"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// EventKind discriminates surface reports.
type EventKind string

const (
	EventOpened     EventKind = "opened"
	EventOpenFailed EventKind = "openFailed"
	EventAnimation  EventKind = "animationFinish"
	EventRotate     EventKind = "rotate"
	EventZoom       EventKind = "zoom"
	EventPan        EventKind = "pan"
)

// Event is a discrete report from a rendering surface.
type Event struct {
	Kind EventKind
	Err  error // EventOpenFailed only
}

// Surface is the deep-zoom rendering contract. Mutations are
// imperative and only meaningful once the surface reported opened.
// Implementations deliver events asynchronously, never from inside a
// mutating call.
type Surface interface {
	Open(src TileSource)
	Destroy()
	Bounds() Rect
	Zoom() float64
	Rotation() int
	SetRotation(deg int)
	ZoomTo(zoom float64)
	ZoomBy(factor float64)
	FitBounds(r Rect)
	GoHome()
	ApplyConstraints()
}

// Capability creates rendering surfaces once the external renderer is
// available. Reports flow back through the events fn handed to
// NewSurface.
type Capability interface {
	NewSurface(events func(Event)) Surface
}
