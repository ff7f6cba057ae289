package manifest

import (
	"encoding/json"
	"testing"
)

const manifestV3 = `{
  "@context": ["http://www.w3.org/ns/anno.jsonld", "http://iiif.io/api/presentation/3/context.json"],
  "id": "https://example.org/iiif/book1/manifest",
  "type": "Manifest",
  "label": {"en": ["Book of Hours"]},
  "rights": "http://creativecommons.org/licenses/by/4.0/",
  "provider": [{"id": "https://example.org/about", "type": "Agent", "label": {"en": ["Example Library"]}}],
  "metadata": [
    {"label": {"en": ["Author"]}, "value": {"none": ["Anonymous"]}},
    {"label": {"en": ["Date"]}, "value": {"en": ["c. 1450"]}}
  ],
  "items": [
    {
      "id": "https://example.org/iiif/book1/canvas/p1",
      "type": "Canvas",
      "label": {"none": ["f. 1r"]},
      "width": 4000,
      "height": 3000,
      "items": [
        {
          "id": "https://example.org/iiif/book1/page/p1",
          "type": "AnnotationPage",
          "items": [
            {
              "id": "https://example.org/iiif/book1/annotation/p1",
              "type": "Annotation",
              "motivation": "painting",
              "body": {
                "id": "https://example.org/iiif/book1/res/p1.jpg",
                "type": "Image",
                "width": 4000,
                "height": 3000,
                "service": [{"id": "https://iiif.example.org/book1%2Fp1", "type": "ImageService3", "profile": "level2"}]
              },
              "target": "https://example.org/iiif/book1/canvas/p1"
            }
          ]
        }
      ]
    },
    {
      "id": "https://example.org/iiif/book1/canvas/p2",
      "type": "Canvas",
      "label": {"none": ["f. 1v"]},
      "width": 4000,
      "height": 3000,
      "items": [
        {
          "type": "AnnotationPage",
          "items": [
            {
              "type": "Annotation",
              "motivation": ["painting"],
              "body": {
                "id": "https://example.org/iiif/book1/res/p2.jpg",
                "type": "Image"
              }
            }
          ]
        }
      ]
    }
  ]
}`

func TestNormalizeV3(t *testing.T) {
	m := normalize(t, manifestV3)

	if m.Version != 3 {
		t.Errorf("version: got %v want 3", m.Version)
	}
	if m.Label != "Book of Hours" {
		t.Errorf("label: got %#v want %#v", m.Label, "Book of Hours")
	}
	if m.Provider != "Example Library" {
		t.Errorf("provider: got %#v want %#v", m.Provider, "Example Library")
	}
	if len(m.Metadata) != 2 || m.Metadata[0].Label != "Author" || m.Metadata[0].Value != "Anonymous" {
		t.Errorf("metadata not resolved: got %#v", m.Metadata)
	}

	if len(m.Canvases) != 2 {
		t.Fatalf("canvases: got %v want 2", len(m.Canvases))
	}

	// Reading order is preserved.
	if m.Canvases[0].Label != "f. 1r" || m.Canvases[1].Label != "f. 1v" {
		t.Errorf("order lost: got %#v, %#v", m.Canvases[0].Label, m.Canvases[1].Label)
	}

	c := m.Canvases[0]
	if c.Image == nil {
		t.Fatal("first canvas has no image")
	}
	if c.Image.Service != "https://iiif.example.org/book1%2Fp1" {
		t.Errorf("service: got %#v", c.Image.Service)
	}
	if c.Image.Width != 4000 || c.Image.Height != 3000 {
		t.Errorf("image size: got %vx%v want 4000x3000", c.Image.Width, c.Image.Height)
	}
	if want := "https://iiif.example.org/book1%2Fp1/full/!320,320/0/default.jpg"; c.Thumb != want {
		t.Errorf("thumb: got %#v want %#v", c.Thumb, want)
	}
	if want := "https://iiif.example.org/book1%2Fp1/full/!2048,2048/0/default.jpg"; c.Image.Best != want {
		t.Errorf("best: got %#v want %#v", c.Image.Best, want)
	}

	// Second canvas: no service, dimensions inherited from the canvas.
	c = m.Canvases[1]
	if c.Image == nil {
		t.Fatal("second canvas has no image")
	}
	if c.Image.Service != "" {
		t.Errorf("unexpected service: %#v", c.Image.Service)
	}
	if c.Image.Width != 4000 || c.Image.Height != 3000 {
		t.Errorf("inherited size: got %vx%v want 4000x3000", c.Image.Width, c.Image.Height)
	}
	if c.Image.Best != "https://example.org/iiif/book1/res/p2.jpg" {
		t.Errorf("best without service: got %#v", c.Image.Best)
	}
	if c.Thumb != c.Image.Best {
		t.Errorf("thumb should fall back to best: got %#v", c.Thumb)
	}
}

const manifestV2 = `{
  "@context": "http://iiif.io/api/presentation/2/context.json",
  "@id": "https://example.org/iiif/scroll/manifest",
  "@type": "sc:Manifest",
  "label": "Emaki scroll",
  "license": "https://example.org/license",
  "attribution": "Example Archive",
  "sequences": [
    {
      "@type": "sc:Sequence",
      "canvases": [
        {
          "@id": "https://example.org/iiif/scroll/canvas/1",
          "@type": "sc:Canvas",
          "label": "Scene 1",
          "width": 6000,
          "height": 2000,
          "images": [
            {
              "@type": "oa:Annotation",
              "motivation": "sc:painting",
              "resource": {
                "@id": "https://example.org/images/scene1.jpg",
                "@type": "dctypes:Image",
                "width": 6000,
                "height": 2000,
                "service": {
                  "@context": "http://iiif.io/api/image/2/context.json",
                  "@id": "https://iiif.example.org/scene1/",
                  "profile": "http://iiif.io/api/image/2/level2.json"
                }
              },
              "on": "https://example.org/iiif/scroll/canvas/1"
            }
          ]
        },
        {
          "@id": "https://example.org/iiif/scroll/canvas/2",
          "@type": "sc:Canvas",
          "label": "Scene 2",
          "width": 5500,
          "height": 2000,
          "images": [
            {
              "@type": "oa:Annotation",
              "resource": {
                "@id": "https://example.org/images/scene2.jpg",
                "service": {"@id": "https://iiif.example.org/scene2/info.json"}
              }
            }
          ]
        }
      ]
    },
    {
      "@type": "sc:Sequence",
      "canvases": [
        {"@id": "https://example.org/iiif/scroll/canvas/alternate", "label": "should be ignored"}
      ]
    }
  ]
}`

func TestNormalizeV2(t *testing.T) {
	m := normalize(t, manifestV2)

	if m.Version != 2 {
		t.Errorf("version: got %v want 2", m.Version)
	}
	if m.Label != "Emaki scroll" {
		t.Errorf("label: got %#v", m.Label)
	}
	if m.Provider != "Example Archive" {
		t.Errorf("provider from attribution: got %#v", m.Provider)
	}
	if m.Rights != "https://example.org/license" {
		t.Errorf("rights from license: got %#v", m.Rights)
	}

	// Only the first sequence counts.
	if len(m.Canvases) != 2 {
		t.Fatalf("canvases: got %v want 2", len(m.Canvases))
	}
	if m.Canvases[0].Label != "Scene 1" || m.Canvases[1].Label != "Scene 2" {
		t.Errorf("order lost: got %#v, %#v", m.Canvases[0].Label, m.Canvases[1].Label)
	}

	c := m.Canvases[0]
	if c.Image == nil {
		t.Fatal("first canvas has no image")
	}
	if c.Image.Service != "https://iiif.example.org/scene1" {
		t.Errorf("service: got %#v", c.Image.Service)
	}

	// Canvas dimensions inherited when the resource declares none.
	c = m.Canvases[1]
	if c.Image == nil {
		t.Fatal("second canvas has no image")
	}
	if c.Image.Width != 5500 || c.Image.Height != 2000 {
		t.Errorf("inherited size: got %vx%v want 5500x2000", c.Image.Width, c.Image.Height)
	}
	if c.Image.Service != "https://iiif.example.org/scene2" {
		t.Errorf("service from info.json spelling: got %#v", c.Image.Service)
	}

	// Every present image has positive dimensions.
	for i, c := range m.Canvases {
		if c.Image != nil && (c.Image.Width <= 0 || c.Image.Height <= 0) {
			t.Errorf("canvas %d image has non-positive size: %vx%v", i, c.Image.Width, c.Image.Height)
		}
	}
}

func TestNormalizeCommentingOnly(t *testing.T) {
	doc := `{
	  "@context": "http://iiif.io/api/presentation/3/context.json",
	  "id": "https://example.org/iiif/notes/manifest",
	  "type": "Manifest",
	  "label": {"en": ["Annotated page"]},
	  "items": [
	    {
	      "id": "https://example.org/iiif/notes/canvas/1",
	      "type": "Canvas",
	      "width": 1000,
	      "height": 800,
	      "items": [
	        {
	          "type": "AnnotationPage",
	          "items": [
	            {
	              "type": "Annotation",
	              "motivation": "commenting",
	              "body": {"id": "https://example.org/note.jpg", "width": 100, "height": 100}
	            }
	          ]
	        }
	      ]
	    }
	  ]
	}`

	m := normalize(t, doc)
	if len(m.Canvases) != 1 {
		t.Fatalf("canvases: got %v want 1", len(m.Canvases))
	}
	// The canvas survives with no image rather than failing the parse.
	if m.Canvases[0].Image != nil {
		t.Errorf("commenting annotation accepted as image: %#v", m.Canvases[0].Image)
	}
}

func TestNormalizeMotivation(t *testing.T) {
	var tests = []struct {
		name       string
		motivation string
		accepted   bool
	}{
		{"painting", `"painting"`, true},
		{"legacy sc:painting", `"sc:painting"`, true},
		{"mixed case", `"Painting"`, true},
		{"list with painting", `["commenting", "painting"]`, true},
		{"none declared", `null`, true},
		{"commenting", `"commenting"`, false},
		{"list without painting", `["commenting", "tagging"]`, false},
	}

	for _, test := range tests {
		var v interface{}
		if err := json.Unmarshal([]byte(test.motivation), &v); err != nil {
			t.Fatalf("%s: bad fixture: %v", test.name, err)
		}
		if got := paintingMotivation(v); got != test.accepted {
			t.Errorf("%s: got %v want %v", test.name, got, test.accepted)
		}
	}
}

func TestNormalizeEmpty(t *testing.T) {
	var tests = []struct {
		name string
		doc  string
	}{
		{"no canvases v3", `{"@context": "http://iiif.io/api/presentation/3/context.json",
		  "id": "https://example.org/m", "type": "Manifest", "items": []}`},
		{"no sequences v2", `{"@id": "https://example.org/m", "@type": "sc:Manifest"}`},
		{"empty sequences v2", `{"@id": "https://example.org/m", "sequences": [{"canvases": []}]}`},
		{"items are not objects", `{"@context": "http://iiif.io/api/presentation/3/context.json",
		  "type": "Manifest", "items": ["nope", 4]}`},
	}

	for _, test := range tests {
		var doc map[string]interface{}
		if err := json.Unmarshal([]byte(test.doc), &doc); err != nil {
			t.Fatalf("%s: bad fixture: %v", test.name, err)
		}
		m, err := Normalize(doc, "https://example.org/m")
		if err == nil {
			t.Errorf("%s: want failure, got %d canvases", test.name, len(m.Canvases))
			continue
		}
		if _, ok := err.(*EmptyManifestError); !ok {
			t.Errorf("%s: got %T want *EmptyManifestError", test.name, err)
		}
	}
}

func TestDetectVersion(t *testing.T) {
	var tests = []struct {
		name string
		doc  string
		want int
	}{
		{"v3 context string", `{"@context": "http://iiif.io/api/presentation/3/context.json"}`, 3},
		{"v3 context in array", `{"@context": ["http://www.w3.org/ns/anno.jsonld",
		  "http://iiif.io/api/presentation/3/context.json"]}`, 3},
		{"v3 by shape", `{"type": "Manifest", "items": []}`, 3},
		{"v2 context", `{"@context": "http://iiif.io/api/presentation/2/context.json"}`, 2},
		{"legacy sc type", `{"@type": "sc:Manifest", "items": []}`, 2},
		{"bare document", `{}`, 2},
	}

	for _, test := range tests {
		var doc map[string]interface{}
		if err := json.Unmarshal([]byte(test.doc), &doc); err != nil {
			t.Fatalf("%s: bad fixture: %v", test.name, err)
		}
		if got := detectVersion(doc); got != test.want {
			t.Errorf("%s: got %v want %v", test.name, got, test.want)
		}
	}
}

func TestNormalizeSkipsUnusableBodies(t *testing.T) {
	// The first annotation has no id, the second no resolvable size;
	// the third is fine and wins. Skipping is per-annotation, not fatal
	// to the canvas.
	doc := `{
	  "@context": "http://iiif.io/api/presentation/3/context.json",
	  "id": "https://example.org/m",
	  "type": "Manifest",
	  "items": [
	    {
	      "id": "https://example.org/canvas/1",
	      "type": "Canvas",
	      "items": [
	        {
	          "type": "AnnotationPage",
	          "items": [
	            {"type": "Annotation", "body": {"width": 100, "height": 100}},
	            {"type": "Annotation", "body": {"id": "https://example.org/a.jpg"}},
	            {"type": "Annotation", "body": {"id": "https://example.org/b.jpg", "width": 640, "height": 480}}
	          ]
	        }
	      ]
	    }
	  ]
	}`

	m := normalize(t, doc)
	img := m.Canvases[0].Image
	if img == nil {
		t.Fatal("canvas has no image")
	}
	if img.ID != "https://example.org/b.jpg" {
		t.Errorf("wrong body won: got %#v", img.ID)
	}
	if img.Width != 640 || img.Height != 480 {
		t.Errorf("size: got %vx%v want 640x480", img.Width, img.Height)
	}
}

func TestNormalizeExplicitThumbnail(t *testing.T) {
	var tests = []struct {
		name  string
		thumb string
		want  string
	}{
		{"bare string", `"https://example.org/t.jpg"`, "https://example.org/t.jpg"},
		{"record id", `[{"id": "https://example.org/t2.jpg", "type": "Image"}]`, "https://example.org/t2.jpg"},
		{
			"record service",
			`[{"service": [{"id": "https://iiif.example.org/t3"}]}]`,
			"https://iiif.example.org/t3/full/!320,320/0/default.jpg",
		},
	}

	for _, test := range tests {
		doc := `{
		  "@context": "http://iiif.io/api/presentation/3/context.json",
		  "id": "https://example.org/m",
		  "type": "Manifest",
		  "items": [
		    {
		      "id": "https://example.org/canvas/1",
		      "type": "Canvas",
		      "thumbnail": ` + test.thumb + `,
		      "items": [
		        {
		          "type": "AnnotationPage",
		          "items": [
		            {"type": "Annotation", "motivation": "painting",
		             "body": {"id": "https://example.org/full.jpg", "width": 2000, "height": 1000}}
		          ]
		        }
		      ]
		    }
		  ]
		}`

		m := normalize(t, doc)
		if got := m.Canvases[0].Thumb; got != test.want {
			t.Errorf("%s: got %#v want %#v", test.name, got, test.want)
		}
	}
}

func normalize(t *testing.T, doc string) *Manifest {
	t.Helper()

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	m, err := Normalize(parsed, "https://example.org/manifest")
	if err != nil {
		t.Fatalf("Normalize returned %v", err)
	}
	return m
}
