package viewer

import (
	"crypto/sha1"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/greut/iiif-viewer/viewstate"
)

// titledURL contains a manifest URL and its display title.
type titledURL struct {
	URL   string
	Title string
}

// samples are shown on the homepage next to the recently opened ones.
var samples = []titledURL{
	{
		"https://iiif.io/api/cookbook/recipe/0009-book-1/manifest.json",
		"Simple book (Presentation 3)",
	},
	{
		"https://wellcomelibrary.org/iiif/b18035723/manifest",
		"Wunder der Vererbung, Wellcome Library",
	},
	{
		"https://www.e-codices.unifr.ch/metadata/iiif/sl-0002/manifest.json",
		"Sion fragment, e-codices",
	},
	{
		"https://media.nga.gov/public/manifests/nga_highlights.json",
		"National Gallery of Art highlights",
	},
}

// template functions
var fns = template.FuncMap{
	"viewURL": func(manifest string) string {
		return "/view?manifest=" + url.QueryEscape(manifest)
	},
	"thumbURL": func(u string) string {
		return "/thumb/" + url.QueryEscape(u)
	},
}

// IndexHandler shows the homepage.
func IndexHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	config, _ := ctx.Value(ContextKey("config")).(*Config)
	store, _ := ctx.Value(ContextKey("recents")).(*RecentStore)

	var recents []Recent
	if store != nil {
		var err error
		recents, err = store.List(ctx, 10)
		if err != nil {
			debug("listing recents: %v", err)
		}
	}

	p := struct {
		Samples []titledURL
		Recents []Recent
	}{
		Samples: samples,
		Recents: recents,
	}

	tpl := filepath.Join(config.Templates, "index.html")

	t := template.Must(template.New("index.html").Funcs(fns).ParseFiles(tpl))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	t.Execute(w, p)
}

// ViewHandler opens a session for the manifest named in the query and
// responds with the viewer page. The rest of the query seeds the
// session's initial view.
func ViewHandler(w http.ResponseWriter, r *http.Request) {
	view := viewstate.Decode(r.URL.Query())
	if view.Manifest == "" {
		http.Redirect(w, r, "/", 303)
		return
	}

	ctx := r.Context()
	config, _ := ctx.Value(ContextKey("config")).(*Config)
	hub, _ := ctx.Value(ContextKey("sessions")).(*Hub)
	if hub == nil {
		e := HTTPError{http.StatusServiceUnavailable, hubMissingError}
		http.Error(w, e.Error(), e.StatusCode)
		return
	}

	session, err := hub.Create(view)
	if err != nil {
		e := toHTTPError(err)
		http.Error(w, e.Error(), e.StatusCode)
		return
	}

	p := struct {
		Session  string
		Manifest string
		Socket   string
	}{
		Session:  session.ID,
		Manifest: view.Manifest,
		Socket:   socketURL(r, session.ID),
	}

	tpl := filepath.Join(config.Templates, "viewer.html")

	t := template.Must(template.New("viewer.html").Funcs(fns).ParseFiles(tpl))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	t.Execute(w, p)
}

// requestScheme honors the reverse proxy headers.
func requestScheme(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	if r.Header.Get("X-Forwarded-Proto") != "" {
		scheme = r.Header.Get("X-Forwarded-Proto")
	}
	return scheme
}

func requestHost(r *http.Request) string {
	host := r.Host
	if r.Header.Get("X-Forwarded-Host") != "" {
		host = r.Header.Get("X-Forwarded-Host")
	}
	return host
}

func socketURL(r *http.Request, session string) string {
	scheme := "ws"
	if requestScheme(r) == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws?session=%s", scheme, requestHost(r), session)
}

func getETag(str string) string {
	return fmt.Sprintf("\"%x\"", sha1.Sum([]byte(str)))
}
