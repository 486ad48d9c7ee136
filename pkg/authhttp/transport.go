package authhttp

import (
	"fmt"
	"io"
	"net/http"
)

// RoundTripper adapts an Executor to http.RoundTripper so any http.Client
// can send authenticated requests. Unlike Executor.Do, a final non-2xx
// response is returned as a response; only transport and refresh failures
// are errors.
type RoundTripper struct {
	executor *Executor
}

// NewRoundTripper wraps e. Requests are sent through base, or
// http.DefaultTransport when base is nil.
func NewRoundTripper(e *Executor, base http.RoundTripper) *RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	clone := *e
	clone.client = roundTripDoer{rt: base}
	return &RoundTripper{executor: &clone}
}

// roundTripDoer sends each attempt with a single round trip. Redirects and
// cookies are left to the outer http.Client.
type roundTripDoer struct {
	rt http.RoundTripper
}

func (d roundTripDoer) Do(req *http.Request) (*http.Response, error) {
	return d.rt.RoundTrip(req)
}

// RoundTrip implements http.RoundTripper.
func (t *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	opts := RequestOptions{
		Method: req.Method,
		Header: req.Header.Clone(),
	}
	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("authhttp: failed to read request body: %w", err)
		}
		opts.Body = body
	}
	return t.executor.execute(req.Context(), req.URL.String(), opts)
}

// Client returns an http.Client that authenticates through e.
func Client(e *Executor, base http.RoundTripper) *http.Client {
	return &http.Client{Transport: NewRoundTripper(e, base)}
}
