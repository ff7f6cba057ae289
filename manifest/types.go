package manifest

// Image is the primary visual content of a canvas.
type Image struct {
	ID string `json:"id"`
	// Service is the Image API base the tiles come from, normalized so
	// that the /info.json and trailing-slash spellings are equal.
	Service string `json:"service,omitempty"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	// Best is a ready-to-use URL for the full picture: a bounded tile
	// when a service exists, the raw resource otherwise.
	Best   string `json:"best"`
	Rights string `json:"rights,omitempty"`
}

// Canvas is one page or view of a manifest. Width and height may be
// zero when the document does not declare them; Image carries the
// render-time dimensions in that case.
type Canvas struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Image  *Image `json:"image"`
	Thumb  string `json:"thumb,omitempty"`
}

// Pair is one resolved metadata entry.
type Pair struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Manifest is the canonical form of a Presentation API document,
// version 2 or 3. A normalized manifest always has at least one
// canvas, in the document's reading order.
type Manifest struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Version  int      `json:"version"`
	Provider string   `json:"provider,omitempty"`
	Rights   string   `json:"rights,omitempty"`
	Metadata []Pair   `json:"metadata,omitempty"`
	Canvases []Canvas `json:"canvases"`
}

// Canvas returns the canvas with the given id, nil when absent.
func (m *Manifest) Canvas(id string) *Canvas {
	for i := range m.Canvases {
		if m.Canvases[i].ID == id {
			return &m.Canvases[i]
		}
	}
	return nil
}
