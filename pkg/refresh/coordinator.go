package refresh

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"authsession/pkg/auth"
)

// refreshKey is the single singleflight key; a coordinator performs one kind
// of operation.
const refreshKey = "refresh"

// Coordinator deduplicates concurrent refresh requests into a single
// in-flight operation shared by every caller.
type Coordinator struct {
	schemes []auth.Scheme
	logger  *slog.Logger
	group   singleflight.Group
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates a Coordinator over schemes. Only schemes whose
// Refresher is non-nil take part in a refresh.
func NewCoordinator(schemes []auth.Scheme, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		schemes: append([]auth.Scheme(nil), schemes...),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh renews credentials. If a refresh is already in flight the caller
// joins it and observes the same outcome.
//
// Refreshable schemes are tried in order until one succeeds. If all of them
// fail the returned error has kind REFRESH_FAILED and wraps the first
// failure. With no refreshable scheme the result is auth.ErrNoRefreshableScheme.
//
// The shared operation is detached from ctx cancellation so one caller
// giving up does not fail the others; ctx only bounds how long this caller
// waits.
func (c *Coordinator) Refresh(ctx context.Context) error {
	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		return nil, c.run(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("Joined in-flight credential refresh")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) run(ctx context.Context) error {
	refreshers := auth.Refreshers(c.schemes)
	if len(refreshers) == 0 {
		return auth.ErrNoRefreshableScheme
	}

	var firstErr error
	for i, fn := range refreshers {
		err := fn(ctx)
		if err == nil {
			c.logger.Debug("Credential refresh succeeded", "candidate", i)
			return nil
		}
		c.logger.Debug("Credential refresh candidate failed", "candidate", i, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	c.logger.Warn("Credential refresh failed", "candidates", len(refreshers), "error", firstErr)
	return auth.NewError(auth.KindRefreshFailed, "all refreshable schemes failed", firstErr)
}
