package auth

import (
	"context"
	"errors"
	"net/http"
)

// Composite aggregates several schemes behind the single-scheme contract.
type Composite struct {
	schemeBase
	members []Scheme
}

// NewComposite creates a Composite over schemes, in order.
func NewComposite(schemes ...Scheme) *Composite {
	return &Composite{members: append([]Scheme(nil), schemes...)}
}

// Members returns the aggregated schemes.
func (c *Composite) Members() []Scheme {
	return append([]Scheme(nil), c.members...)
}

// Headers implements Scheme. A header set by a later member replaces the
// same header from an earlier one.
func (c *Composite) Headers(ctx context.Context) (http.Header, error) {
	return MergeHeaders(ctx, c.members)
}

// Refresher implements Scheme. Only the first refreshable member is
// refreshed; later members are not tried when it fails.
func (c *Composite) Refresher() RefreshFunc {
	for _, m := range c.members {
		if fn := m.Refresher(); fn != nil {
			return fn
		}
	}
	return nil
}

// IsAuthenticated implements Scheme. It is true if any member is authenticated.
func (c *Composite) IsAuthenticated() bool {
	for _, m := range c.members {
		if m.IsAuthenticated() {
			return true
		}
	}
	return false
}

// Clear implements Scheme. Every member is cleared even if one fails.
func (c *Composite) Clear() error {
	var errs []error
	for _, m := range c.members {
		if err := m.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
