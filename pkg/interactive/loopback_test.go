package interactive

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "https://idp.example.com"

// callbackOpener simulates a browser that is redirected back to the
// callback with the given parameters and origin.
func callbackOpener(t *testing.T, params url.Values, origin string, status chan<- int) Opener {
	return OpenerFunc(func(authURL string) (Window, error) {
		u, err := url.Parse(authURL)
		if !assert.NoError(t, err) {
			return nil, err
		}
		callback := u.Query().Get("redirect_uri")
		assert.NotEmpty(t, callback)

		go func() {
			req, err := http.NewRequest(http.MethodGet, callback+"?"+params.Encode(), nil)
			if err != nil {
				return
			}
			if origin != "" {
				req.Header.Set("Origin", origin)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			if status != nil {
				status <- resp.StatusCode
			}
		}()
		return nil, nil
	})
}

func TestLoopbackFlow_Success(t *testing.T) {
	flow := &LoopbackFlow{
		Opener: callbackOpener(t, url.Values{"code": {"abc"}, "state": {"xyz"}}, testOrigin, nil),
	}

	res, err := flow.Run(context.Background(), testOrigin+"/authorize?redirect_uri="+RedirectURIPlaceholder, testOrigin)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "abc", res.Data.Get("code"))
	assert.Equal(t, "xyz", res.Data.Get("state"))
}

func TestLoopbackFlow_ErrorCallback(t *testing.T) {
	flow := &LoopbackFlow{
		Opener: callbackOpener(t, url.Values{"error": {"access_denied"}, "error_description": {"user said no"}}, testOrigin, nil),
	}

	res, err := flow.Run(context.Background(), "https://idp.example.com/authorize?redirect_uri="+RedirectURIPlaceholder, testOrigin)
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, "access_denied: user said no", res.Message)
}

func TestLoopbackFlow_OriginMismatchIsIgnored(t *testing.T) {
	clock := clockwork.NewFakeClock()
	status := make(chan int, 1)
	flow := &LoopbackFlow{
		Opener:  callbackOpener(t, url.Values{"code": {"stolen"}}, "https://evil.example.com", status),
		Timeout: time.Minute,
		Clock:   clock,
	}

	done := make(chan Result, 1)
	go func() {
		res, err := flow.Run(context.Background(), "https://idp.example.com/authorize?redirect_uri="+RedirectURIPlaceholder, testOrigin)
		assert.NoError(t, err)
		done <- res
	}()

	select {
	case code := <-status:
		assert.Equal(t, http.StatusForbidden, code)
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not attempted")
	}

	clock.BlockUntil(1)
	clock.Advance(time.Minute)

	select {
	case res := <-done:
		assert.Equal(t, StatusTimeout, res.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("flow did not time out")
	}
}

type fakeWindow struct{ closed atomic.Bool }

func (w *fakeWindow) Closed() bool { return w.closed.Load() }

func TestLoopbackFlow_WindowClosed(t *testing.T) {
	window := &fakeWindow{}
	flow := &LoopbackFlow{
		Opener: OpenerFunc(func(string) (Window, error) {
			go func() {
				time.Sleep(30 * time.Millisecond)
				window.closed.Store(true)
			}()
			return window, nil
		}),
		PollInterval: 10 * time.Millisecond,
	}

	res, err := flow.Run(context.Background(), "https://idp.example.com/authorize", testOrigin)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, res.Status)
}

func TestLoopbackFlow_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	flow := &LoopbackFlow{
		Opener: OpenerFunc(func(string) (Window, error) {
			cancel()
			return nil, nil
		}),
	}

	res, err := flow.Run(ctx, "https://idp.example.com/authorize", testOrigin)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, res.Status)
}

func TestLoopbackFlow_OpenerError(t *testing.T) {
	boom := errors.New("no browser")
	flow := &LoopbackFlow{
		Opener: OpenerFunc(func(string) (Window, error) { return nil, boom }),
	}

	_, err := flow.Run(context.Background(), "https://idp.example.com/authorize", testOrigin)
	assert.ErrorIs(t, err, boom)
}

func TestRequestOrigin(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://127.0.0.1/callback", nil)
	assert.Equal(t, "", requestOrigin(req))

	req.Header.Set("Referer", "https://idp.example.com/consent?x=1")
	assert.Equal(t, "https://idp.example.com", requestOrigin(req))

	req.Header.Set("Origin", "https://other.example.com")
	assert.Equal(t, "https://other.example.com", requestOrigin(req))
}
