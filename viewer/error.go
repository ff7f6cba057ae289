package viewer

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError represents a HTTP error to be shown to the user.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error formats the HTTPError message.
func (e HTTPError) Error() string {
	return fmt.Sprintf("%d (%s) %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// toHTTPError picks the status code a failure is served with. Errors
// carrying their own status keep it, anything else is a 500.
func toHTTPError(err error) HTTPError {
	var he HTTPError
	if errors.As(err, &he) {
		return he
	}
	var coded interface{ HTTPStatus() int }
	if errors.As(err, &coded) {
		return HTTPError{coded.HTTPStatus(), err.Error()}
	}
	return HTTPError{http.StatusInternalServerError, err.Error()}
}
