package auth

import (
	"context"
	"net/http"
)

// CustomConfig supplies every capability of a scheme as a function. Only
// HeadersFunc is required.
type CustomConfig struct {
	HeadersFunc func(ctx context.Context) (http.Header, error)

	// RefreshFunc is nil for schemes that cannot refresh.
	RefreshFunc RefreshFunc

	// IsAuthenticatedFunc defaults to reporting true.
	IsAuthenticatedFunc func() bool

	ClearFunc func() error
}

// Custom passes every capability through to caller-supplied functions, for
// flows such as signed requests.
type Custom struct {
	schemeBase
	cfg CustomConfig
}

// NewCustom creates a Custom scheme.
func NewCustom(cfg CustomConfig) *Custom {
	return &Custom{cfg: cfg}
}

// Headers implements Scheme.
func (c *Custom) Headers(ctx context.Context) (http.Header, error) {
	if c.cfg.HeadersFunc == nil {
		return make(http.Header), nil
	}
	h, err := c.cfg.HeadersFunc(ctx)
	if err != nil {
		return nil, NewError(KindSchemeError, "custom scheme headers failed", err)
	}
	if h == nil {
		h = make(http.Header)
	}
	return h, nil
}

// Refresher implements Scheme.
func (c *Custom) Refresher() RefreshFunc {
	return c.cfg.RefreshFunc
}

// IsAuthenticated implements Scheme.
func (c *Custom) IsAuthenticated() bool {
	if c.cfg.IsAuthenticatedFunc == nil {
		return true
	}
	return c.cfg.IsAuthenticatedFunc()
}

// Clear implements Scheme.
func (c *Custom) Clear() error {
	if c.cfg.ClearFunc == nil {
		return nil
	}
	return c.cfg.ClearFunc()
}
