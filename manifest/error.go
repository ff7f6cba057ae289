package manifest

import (
	"errors"
	"fmt"
	"net/http"
)

// error messages
var fetchStatusError = "fetching %s returned %d (%s)"
var fetchNetworkError = "fetching %s failed: %v (%s)"
var parseError = "%s is not a IIIF manifest: %v, body starts with %#v"
var emptyError = "%s has no canvas this viewer can present"

var errNotObject = errors.New("top-level value is not an object")

// FetchError reports a manifest request that died on the wire or came
// back with a non-2xx status.
type FetchError struct {
	URL        string
	StatusCode int // zero when the request never completed
	Hint       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf(fetchStatusError, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf(fetchNetworkError, e.URL, e.Err, e.Hint)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPStatus maps the failure onto a response code: upstream client
// errors pass through, everything else is a bad gateway.
func (e *FetchError) HTTPStatus() int {
	if e.StatusCode >= 400 {
		return e.StatusCode
	}
	return http.StatusBadGateway
}

// ParseError reports a manifest body that is not a JSON object.
type ParseError struct {
	URL     string
	Excerpt string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf(parseError, e.URL, e.Err, e.Excerpt)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) HTTPStatus() int { return http.StatusBadGateway }

// EmptyManifestError reports a document that is valid JSON but yields
// zero canvases, which is a hard failure rather than an empty result.
type EmptyManifestError struct {
	URL string
}

func (e *EmptyManifestError) Error() string {
	return fmt.Sprintf(emptyError, e.URL)
}

func (e *EmptyManifestError) HTTPStatus() int { return http.StatusUnprocessableEntity }
