package auth

import (
	"context"
	"net/http"
)

// QueryParamHeader is the sentinel header a scheme sets when its credential
// belongs in the URL query string. The value is an encoded "name=value" pair.
// The executor strips it before the request is sent.
const QueryParamHeader = "X-Authsession-Query-Param"

// RefreshFunc renews a scheme's credential and persists the result.
type RefreshFunc func(ctx context.Context) error

// Scheme is a pluggable strategy for producing auth headers and optionally
// refreshing credentials.
type Scheme interface {
	// Headers returns the headers to attach to the next request. It may
	// refresh the credential first.
	Headers(ctx context.Context) (http.Header, error)

	// Refresher returns nil when the scheme cannot refresh.
	Refresher() RefreshFunc

	// IsAuthenticated reports whether a credential is available.
	IsAuthenticated() bool

	// Clear drops the scheme's credential state.
	Clear() error

	sealed()
}

// schemeBase closes the Scheme interface to the variants in this package.
type schemeBase struct{}

func (schemeBase) sealed() {}

// MergeHeaders collects headers from every scheme in order. Later schemes
// override earlier ones for the same header name.
func MergeHeaders(ctx context.Context, schemes []Scheme) (http.Header, error) {
	merged := make(http.Header)
	for _, s := range schemes {
		h, err := s.Headers(ctx)
		if err != nil {
			return nil, err
		}
		for name, values := range h {
			merged[http.CanonicalHeaderKey(name)] = values
		}
	}
	return merged, nil
}

// Refreshers returns the refresh functions of every refreshable scheme, in order.
func Refreshers(schemes []Scheme) []RefreshFunc {
	var fns []RefreshFunc
	for _, s := range schemes {
		if fn := s.Refresher(); fn != nil {
			fns = append(fns, fn)
		}
	}
	return fns
}
