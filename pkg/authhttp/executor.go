package authhttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"authsession/pkg/auth"
)

const (
	// DefaultMaxRetries is how many times a request is retried after a 401.
	DefaultMaxRetries = 1

	// maxErrorBody bounds how much of a failed response is kept.
	maxErrorBody = 64 << 10
)

// Doer performs an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Refresher renews credentials after an authorization failure.
// *refresh.Coordinator satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RequestOptions describes the request to perform. Body is held as bytes so
// every attempt can send it again.
type RequestOptions struct {
	// Method defaults to GET.
	Method string
	Header http.Header
	Body   []byte
}

// Executor performs requests with credentials from a set of schemes and
// recovers from 401 responses by refreshing and retrying.
type Executor struct {
	schemes       []auth.Scheme
	refresher     Refresher
	client        Doer
	maxRetries    int
	onAuthFailure func(error)
	logger        *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient sets the client used to send requests.
func WithHTTPClient(client Doer) Option {
	return func(e *Executor) {
		e.client = client
	}
}

// WithMaxRetries sets how many times a 401 is retried after a refresh.
// Zero disables retries.
func WithMaxRetries(n int) Option {
	return func(e *Executor) {
		if n < 0 {
			n = 0
		}
		e.maxRetries = n
	}
}

// WithAuthFailureHandler sets a callback invoked when a refresh triggered by
// a 401 fails. It runs once per failed call.
func WithAuthFailureHandler(fn func(error)) Option {
	return func(e *Executor) {
		e.onAuthFailure = fn
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an Executor. refresher may be nil, in which case 401
// responses are returned without retry.
func NewExecutor(schemes []auth.Scheme, refresher Refresher, opts ...Option) *Executor {
	e := &Executor{
		schemes:    append([]auth.Scheme(nil), schemes...),
		refresher:  refresher,
		client:     http.DefaultClient,
		maxRetries: DefaultMaxRetries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do performs the request and returns the response for a 2xx status. Any
// other status is returned as *HTTPError. The caller closes the body.
//
// On 401 the refresher is invoked and the request is rebuilt and retried,
// up to the retry limit. If the refresh fails, its error is returned rather
// than the 401.
func (e *Executor) Do(ctx context.Context, target string, opts RequestOptions) (*http.Response, error) {
	resp, err := e.execute(ctx, target, opts)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return resp, nil
	}
	return nil, toHTTPError(resp, target)
}

// execute runs the retry loop and returns the last response regardless of
// its status.
func (e *Executor) execute(ctx context.Context, target string, opts RequestOptions) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := e.send(ctx, target, opts)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusUnauthorized || attempt >= e.maxRetries || e.refresher == nil {
			return resp, nil
		}

		drain(resp)
		e.logger.Debug("Request unauthorized, refreshing credentials",
			"url", redactQuery(target),
			"attempt", attempt+1)

		if err := e.refresher.Refresh(ctx); err != nil {
			if e.onAuthFailure != nil {
				e.onAuthFailure(err)
			}
			return nil, err
		}
	}
}

// send performs a single attempt with freshly computed credentials.
func (e *Executor) send(ctx context.Context, target string, opts RequestOptions) (*http.Response, error) {
	authHeaders, err := auth.MergeHeaders(ctx, e.schemes)
	if err != nil {
		var authErr *auth.Error
		if errors.As(err, &authErr) {
			return nil, err
		}
		return nil, auth.NewError(auth.KindSchemeError, "failed to build auth headers", err)
	}

	target = applyQueryParam(target, authHeaders.Get(auth.QueryParamHeader))
	authHeaders.Del(auth.QueryParamHeader)

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for name, values := range opts.Header {
		req.Header[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	for name, values := range authHeaders {
		req.Header[name] = values
	}
	req.Header.Del(auth.QueryParamHeader)

	return e.client.Do(req)
}

// applyQueryParam appends an encoded name=value pair to target.
func applyQueryParam(target, param string) string {
	if param == "" {
		return target
	}
	if strings.Contains(target, "?") {
		return target + "&" + param
	}
	return target + "?" + param
}

func toHTTPError(resp *http.Response, target string) *HTTPError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		URL:        redactQuery(target),
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

// redactQuery drops the query string, which may carry an API key.
func redactQuery(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}
