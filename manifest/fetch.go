package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	d "github.com/tj/go-debug"
)

var debug = d.Debug("manifest")

// acceptHeader asks for Presentation 3 but takes anything JSON.
const acceptHeader = `application/ld+json;profile="http://iiif.io/api/presentation/3/context.json", application/json`

// excerptLimit bounds the body excerpt quoted in parse failures.
const excerptLimit = 160

// hint messages
var corsHint = "the remote host may not allow requests from %s, or an intermediary blocked it"
var unreachableHint = "the host appears unreachable or refused the connection"

// Fetcher retrieves and normalizes IIIF Presentation documents.
// Origin is the viewer's own origin; it only feeds the failure hints.
type Fetcher struct {
	Client *http.Client
	Origin string
}

// NewFetcher builds a fetcher with a sane request timeout.
func NewFetcher(origin string) *Fetcher {
	return &Fetcher{
		Client: &http.Client{Timeout: 30 * time.Second},
		Origin: origin,
	}
}

// Fetch retrieves, parses and normalizes the manifest at rawurl.
func (f *Fetcher) Fetch(ctx context.Context, rawurl string) (*Manifest, error) {
	data, err := f.FetchRaw(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	return Parse(data, rawurl)
}

// FetchRaw GETs a manifest document. Cancelling ctx aborts the request
// and returns the context error verbatim, so superseded fetches can be
// discarded without reporting anything.
func (f *Fetcher) FetchRaw(ctx context.Context, rawurl string) ([]byte, error) {
	debug("fetching %s", rawurl)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, &FetchError{URL: rawurl, Err: err, Hint: f.hintFor(rawurl)}
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		debug("fetch error: %q: %#v", rawurl, err)
		return nil, &FetchError{URL: rawurl, Err: err, Hint: f.hintFor(rawurl)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawurl, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &FetchError{URL: rawurl, Err: err, Hint: f.hintFor(rawurl)}
	}
	return data, nil
}

// Parse unmarshals a raw document and normalizes it.
func Parse(data []byte, src string) (*Manifest, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{URL: src, Excerpt: excerpt(data), Err: err}
	}
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, &ParseError{URL: src, Excerpt: excerpt(data), Err: errNotObject}
	}
	return Normalize(obj, src)
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

// hintFor guesses why a request died on the wire. Fetches leaving the
// viewer's own origin are commonly blocked by the remote end, fetches
// that stay on it mean the service is down.
func (f *Fetcher) hintFor(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil || f.Origin == "" {
		return unreachableHint
	}
	o, err := url.Parse(f.Origin)
	if err != nil {
		return unreachableHint
	}
	if u.Host != "" && o.Host != "" && u.Host != o.Host {
		return fmt.Sprintf(corsHint, o.Host)
	}
	return unreachableHint
}

func excerpt(data []byte) string {
	if len(data) > excerptLimit {
		data = data[:excerptLimit]
	}
	return string(data)
}
