package interactive

import (
	"context"
	"net/url"
)

// Status is the outcome of an interactive authorization.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusCancelled Status = "cancelled"
	StatusTimeout   Status = "timeout"
	StatusError     Status = "error"
)

// Result is what an interactive flow resolves with.
type Result struct {
	Status Status

	// Data holds the callback parameters on success.
	Data url.Values

	// Message describes an error or cancellation.
	Message string
}

// Flow runs an interactive authorization in a separate browsing context.
type Flow interface {
	// Run opens authURL and waits for a callback whose origin equals
	// expectedOrigin. The returned error is reserved for failures to start
	// the flow; every other outcome is a Result.
	Run(ctx context.Context, authURL, expectedOrigin string) (Result, error)
}
