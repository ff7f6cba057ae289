package manifest

import "strings"

// Normalize turns a parsed Presentation 2 or 3 document into the
// canonical Manifest tree. src is the URL the document came from.
func Normalize(doc map[string]interface{}, src string) (*Manifest, error) {
	version := detectVersion(doc)

	m := &Manifest{
		ID:       firstString(doc, "id", "@id"),
		Label:    resolveString(doc["label"]),
		Version:  version,
		Provider: firstString(doc, "provider", "attribution"),
		Rights:   firstString(doc, "rights", "license"),
		Metadata: resolveMetadata(doc["metadata"]),
	}
	if m.ID == "" {
		m.ID = src
	}

	if version == 3 {
		m.Canvases = canvasesV3(doc)
	} else {
		m.Canvases = canvasesV2(doc)
	}
	if len(m.Canvases) == 0 {
		return nil, &EmptyManifestError{URL: src}
	}

	debug("normalized %s: v%d, %d canvases", src, version, len(m.Canvases))
	return m, nil
}

// detectVersion sniffs the Presentation API version: 3 when the
// context says so or when the document carries an items collection and
// a manifest type without the legacy sc: prefix, 2 otherwise.
func detectVersion(doc map[string]interface{}) int {
	if contextHas(doc["@context"], "/presentation/3/") {
		return 3
	}
	if _, ok := doc["items"]; ok {
		t := strings.ToLower(firstString(doc, "type", "@type"))
		if strings.Contains(t, "manifest") && !strings.Contains(t, "sc:") {
			return 3
		}
	}
	return 2
}

func contextHas(v interface{}, marker string) bool {
	switch t := v.(type) {
	case string:
		return strings.Contains(t, marker)
	case []interface{}:
		for _, e := range t {
			if contextHas(e, marker) {
				return true
			}
		}
	}
	return false
}

// resolveMetadata flattens the metadata block into displayable pairs.
func resolveMetadata(v interface{}) []Pair {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var pairs []Pair
	for _, e := range list {
		m, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		p := Pair{
			Label: resolveString(m["label"]),
			Value: resolveString(m["value"]),
		}
		if p.Label == "" && p.Value == "" {
			continue
		}
		pairs = append(pairs, p)
	}
	return pairs
}

func canvasesV3(doc map[string]interface{}) []Canvas {
	items, _ := doc["items"].([]interface{})
	canvases := make([]Canvas, 0, len(items))
	for _, e := range items {
		obj, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		c := Canvas{
			ID:     firstString(obj, "id", "@id"),
			Label:  resolveString(obj["label"]),
			Width:  toInt(obj["width"]),
			Height: toInt(obj["height"]),
		}
		c.Image = imageV3(obj, c.Width, c.Height)
		c.Thumb = resolveThumb(obj, c.Image)
		canvases = append(canvases, c)
	}
	return canvases
}

// imageV3 walks canvas items/annotations down to the annotations and
// keeps the first painting body that normalizes into an Image.
func imageV3(canvas map[string]interface{}, cw, ch int) *Image {
	for _, pk := range []string{"items", "annotations"} {
		pages, _ := canvas[pk].([]interface{})
		for _, pe := range pages {
			page, ok := pe.(map[string]interface{})
			if !ok {
				continue
			}
			for _, ak := range []string{"items", "annotations"} {
				annos, _ := page[ak].([]interface{})
				for _, ae := range annos {
					anno, ok := ae.(map[string]interface{})
					if !ok {
						continue
					}
					if !paintingMotivation(anno["motivation"]) {
						continue
					}
					if img := annotationImage(anno, cw, ch, "body", "resource"); img != nil {
						return img
					}
				}
			}
		}
	}
	return nil
}

// canvasesV2 reads the first sequence with a non-empty canvas list.
// Further sequences are alternate orderings the viewer does not
// present.
func canvasesV2(doc map[string]interface{}) []Canvas {
	seqs, _ := doc["sequences"].([]interface{})
	for _, se := range seqs {
		seq, ok := se.(map[string]interface{})
		if !ok {
			continue
		}
		var list []interface{}
		for _, k := range []string{"canvases", "items"} {
			if l, ok := seq[k].([]interface{}); ok && len(l) > 0 {
				list = l
				break
			}
		}
		if len(list) == 0 {
			continue
		}
		canvases := make([]Canvas, 0, len(list))
		for _, e := range list {
			obj, ok := e.(map[string]interface{})
			if !ok {
				continue
			}
			c := Canvas{
				ID:     firstString(obj, "id", "@id"),
				Label:  resolveString(obj["label"]),
				Width:  toInt(obj["width"]),
				Height: toInt(obj["height"]),
			}
			c.Image = imageV2(obj, c.Width, c.Height)
			c.Thumb = resolveThumb(obj, c.Image)
			canvases = append(canvases, c)
		}
		return canvases
	}
	return nil
}

func imageV2(canvas map[string]interface{}, cw, ch int) *Image {
	for _, k := range []string{"images", "items"} {
		annos, _ := canvas[k].([]interface{})
		for _, ae := range annos {
			anno, ok := ae.(map[string]interface{})
			if !ok {
				continue
			}
			if img := annotationImage(anno, cw, ch, "resource", "body"); img != nil {
				return img
			}
		}
	}
	return nil
}

// paintingMotivation implements the permissive filter: an annotation
// with no declared motivation counts as painting, otherwise at least
// one token has to mention paint.
func paintingMotivation(v interface{}) bool {
	if v == nil {
		return true
	}
	var tokens []string
	if list, ok := v.([]interface{}); ok {
		for _, e := range list {
			if s := resolveString(e); s != "" {
				tokens = append(tokens, s)
			}
		}
	} else if s := resolveString(v); s != "" {
		tokens = append(tokens, s)
	}
	if len(tokens) == 0 {
		return true
	}
	for _, t := range tokens {
		if strings.Contains(strings.ToLower(t), "paint") {
			return true
		}
	}
	return false
}

// annotationImage tries the annotation's body fields in the given key
// order, single values and lists alike.
func annotationImage(anno map[string]interface{}, cw, ch int, keys ...string) *Image {
	for _, k := range keys {
		switch b := anno[k].(type) {
		case []interface{}:
			for _, e := range b {
				if img := normalizeImage(e, cw, ch); img != nil {
					return img
				}
			}
		default:
			if b != nil {
				if img := normalizeImage(b, cw, ch); img != nil {
					return img
				}
			}
		}
	}
	return nil
}

// normalizeImage builds an Image out of an annotation body. The id is
// mandatory; dimensions come from the body, else from the canvas, and
// both have to end up positive.
func normalizeImage(body interface{}, cw, ch int) *Image {
	var id, service, rights string
	var w, h int
	switch b := body.(type) {
	case string:
		id = b
	case map[string]interface{}:
		id = firstString(b, "id", "@id")
		w = toInt(b["width"])
		h = toInt(b["height"])
		service = serviceOf(b)
		rights = firstString(b, "rights", "license")
	default:
		return nil
	}
	if w <= 0 {
		w = cw
	}
	if h <= 0 {
		h = ch
	}
	if id == "" || w <= 0 || h <= 0 {
		return nil
	}
	img := &Image{
		ID:      id,
		Service: service,
		Width:   w,
		Height:  h,
		Best:    id,
		Rights:  rights,
	}
	if service != "" {
		img.Best = TileURL(service, bestWidth)
	}
	return img
}

// resolveThumb picks a small preview for a canvas, preferring the
// document's explicit thumbnail over a tile derived from the image
// service, over the plain best URL.
func resolveThumb(canvas map[string]interface{}, img *Image) string {
	if s := thumbValue(canvas["thumbnail"]); s != "" {
		return s
	}
	if img == nil {
		return ""
	}
	if img.Service != "" {
		return TileURL(img.Service, thumbWidth)
	}
	return img.Best
}

// thumbValue resolves an explicit thumbnail: a bare URL, or the first
// record carrying an id or a derivable service tile.
func thumbValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		for _, e := range t {
			if s := thumbValue(e); s != "" {
				return s
			}
		}
	case map[string]interface{}:
		if id := firstString(t, "id", "@id"); id != "" {
			return id
		}
		if svc := serviceOf(t); svc != "" {
			return TileURL(svc, thumbWidth)
		}
	}
	return ""
}
