package authhttp

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is returned for a non-2xx response. The body has already been
// read and the response closed.
type HTTPError struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("request to %s failed: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsUnauthorized reports whether err is an HTTP 401 response.
func IsUnauthorized(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized
}
