package interactive

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultTimeout bounds how long the flow waits for the callback.
	DefaultTimeout = 5 * time.Minute

	// DefaultPollInterval is how often an opened window is checked for closure.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultCallbackPath is where the callback is served.
	DefaultCallbackPath = "/callback"

	// RedirectURIPlaceholder in an authorization URL is replaced with the
	// query-escaped callback URL.
	RedirectURIPlaceholder = "{redirect_uri}"
)

var resultPage = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>authsession</title></head>
<body style="font-family: sans-serif; margin: 3em;">
{{if .Error}}<h1>Authorization failed</h1><p>{{.Error}}</p>{{else}}<h1>Authorization complete</h1>{{end}}
<p>You can close this window.</p>
</body></html>
`))

// LoopbackFlow receives the authorization result on a local HTTP server.
type LoopbackFlow struct {
	// Addr is the listen address. Defaults to "127.0.0.1:0".
	Addr string

	// Path defaults to DefaultCallbackPath.
	Path string

	// Opener defaults to BrowserOpener.
	Opener Opener

	Timeout      time.Duration
	PollInterval time.Duration

	Clock  clockwork.Clock
	Logger *slog.Logger
}

var _ Flow = (*LoopbackFlow)(nil)

// Run implements Flow. A RedirectURIPlaceholder in authURL is replaced with
// the callback URL. Callbacks from any other origin are rejected and do not
// end the flow.
func (f *LoopbackFlow) Run(ctx context.Context, authURL, expectedOrigin string) (Result, error) {
	clock := f.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opener := f.Opener
	if opener == nil {
		opener = BrowserOpener
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	pollInterval := f.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	srv, err := newCallbackServer(f.Addr, f.Path, expectedOrigin, logger)
	if err != nil {
		return Result{}, err
	}
	defer srv.stop()

	target := strings.ReplaceAll(authURL, RedirectURIPlaceholder, url.QueryEscape(srv.callbackURL))
	window, err := opener.Open(target)
	if err != nil {
		return Result{}, err
	}
	logger.Debug("Waiting for interactive authorization", "callback", srv.callbackURL, "timeout", timeout)

	deadline := clock.After(timeout)
	var poll <-chan time.Time
	if window != nil {
		ticker := clock.NewTicker(pollInterval)
		defer ticker.Stop()
		poll = ticker.Chan()
	}

	for {
		select {
		case res := <-srv.resultCh:
			return res, nil
		case err := <-srv.errorCh:
			return Result{Status: StatusError, Message: err.Error()}, nil
		case <-deadline:
			return Result{Status: StatusTimeout, Message: fmt.Sprintf("no callback within %s", timeout)}, nil
		case <-poll:
			if window.Closed() {
				return Result{Status: StatusCancelled, Message: "window closed"}, nil
			}
		case <-ctx.Done():
			return Result{Status: StatusCancelled, Message: ctx.Err().Error()}, nil
		}
	}
}

// callbackServer is a temporary local server that accepts one callback.
type callbackServer struct {
	server         *http.Server
	listener       net.Listener
	callbackURL    string
	expectedOrigin string
	logger         *slog.Logger

	once     sync.Once
	resultCh chan Result
	errorCh  chan error
}

func newCallbackServer(addr, path, expectedOrigin string, logger *slog.Logger) (*callbackServer, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	if path == "" {
		path = DefaultCallbackPath
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}

	s := &callbackServer{
		listener:       listener,
		callbackURL:    "http://" + listener.Addr().String() + path,
		expectedOrigin: expectedOrigin,
		logger:         logger,
		resultCh:       make(chan Result, 1),
		errorCh:        make(chan error, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, s.handleCallback)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	return s, nil
}

func (s *callbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	if origin := requestOrigin(r); s.expectedOrigin != "" && origin != s.expectedOrigin {
		s.logger.Warn("Ignoring callback from unexpected origin", "origin", origin)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	handled := false
	s.once.Do(func() {
		handled = true
		res := resultFromParams(r.Form)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = resultPage.Execute(w, map[string]string{"Error": res.Message})
		s.resultCh <- res
	})
	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

func resultFromParams(params url.Values) Result {
	if code := params.Get("error"); code != "" {
		msg := code
		if desc := params.Get("error_description"); desc != "" {
			msg = code + ": " + desc
		}
		return Result{Status: StatusError, Message: msg}
	}
	return Result{Status: StatusSuccess, Data: params}
}

// requestOrigin returns the Origin header, or the origin of the Referer.
func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Scheme == "" || ref.Host == "" {
		return ""
	}
	return ref.Scheme + "://" + ref.Host
}

func (s *callbackServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
	_ = s.listener.Close()
}
