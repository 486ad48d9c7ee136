package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authsession/pkg/auth"
	"authsession/pkg/authhttp"
	"authsession/pkg/credstore"
	"authsession/pkg/crosssync"
)

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) listen(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func newBearerSession(t *testing.T, cfg Config) (*Session, *credstore.MemoryStore) {
	t.Helper()
	store := credstore.NewMemoryStore()
	cfg.Store = store
	cfg.Schemes = append(cfg.Schemes, auth.NewBearer(auth.BearerConfig{Store: store}))
	return New(cfg), store
}

func TestSession_RehydrateInvalidToken(t *testing.T) {
	var validated string
	s, store := newBearerSession(t, Config{
		ValidateToken: func(ctx context.Context, token string) (bool, error) {
			validated = token
			return false, nil
		},
	})
	require.NoError(t, store.Set(credstore.AccessTokenKey, "persisted"))
	require.NoError(t, store.Set(credstore.RefreshTokenKey, "r"))
	s.SetUser(map[string]string{"name": "dana"})

	var storeLenAtNotify int
	var states []State
	s.Subscribe(func(st State) {
		storeLenAtNotify = store.Len()
		states = append(states, st)
	})

	require.NoError(t, s.Rehydrate(context.Background()))

	assert.Equal(t, "persisted", validated)
	require.Len(t, states, 1)
	assert.Equal(t, State{Authenticated: false, User: nil}, states[0])
	assert.Equal(t, 0, storeLenAtNotify, "state must be cleared before listeners run")
	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.User())
}

func TestSession_RehydrateValidToken(t *testing.T) {
	s, store := newBearerSession(t, Config{
		ValidateToken: func(ctx context.Context, token string) (bool, error) { return true, nil },
	})
	require.NoError(t, store.Set(credstore.AccessTokenKey, "persisted"))

	rec := &stateRecorder{}
	s.Subscribe(rec.listen)

	require.NoError(t, s.Rehydrate(context.Background()))
	assert.Equal(t, []State{{Authenticated: true}}, rec.snapshot())
	token, ok := s.AccessToken()
	assert.True(t, ok)
	assert.Equal(t, "persisted", token)
}

func TestSession_RehydrateWithoutToken(t *testing.T) {
	s, _ := newBearerSession(t, Config{
		ValidateToken: func(ctx context.Context, token string) (bool, error) {
			t.Error("validator must not run without a token")
			return false, nil
		},
	})

	rec := &stateRecorder{}
	s.Subscribe(rec.listen)

	require.NoError(t, s.Rehydrate(context.Background()))
	assert.Equal(t, []State{{Authenticated: false}}, rec.snapshot())
}

func TestSession_RehydrateWithoutTokenIgnoresStaticSchemes(t *testing.T) {
	s, _ := newBearerSession(t, Config{
		Schemes: []auth.Scheme{auth.NewAPIKey(auth.APIKeyConfig{Key: "static"})},
	})
	require.True(t, s.IsAuthenticated(), "the API key alone counts as a credential")

	rec := &stateRecorder{}
	s.Subscribe(rec.listen)

	require.NoError(t, s.Rehydrate(context.Background()))
	assert.Equal(t, []State{{Authenticated: false}}, rec.snapshot())
}

func TestSession_RehydrateValidatorError(t *testing.T) {
	boom := errors.New("userinfo endpoint down")
	s, store := newBearerSession(t, Config{
		ValidateToken: func(ctx context.Context, token string) (bool, error) { return false, boom },
	})
	require.NoError(t, store.Set(credstore.AccessTokenKey, "persisted"))

	rec := &stateRecorder{}
	s.Subscribe(rec.listen)

	require.ErrorIs(t, s.Rehydrate(context.Background()), boom)
	assert.Empty(t, rec.snapshot())
	assert.True(t, s.IsAuthenticated())
}

func TestSession_TokensAndSubscriptions(t *testing.T) {
	s, store := newBearerSession(t, Config{})

	rec := &stateRecorder{}
	unsubscribe := s.Subscribe(rec.listen)
	other := &stateRecorder{}
	s.Subscribe(other.listen)

	_, ok := s.AccessToken()
	assert.False(t, ok)

	require.NoError(t, s.SetTokens(auth.TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60}))
	token, ok := s.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "a", token)
	_, ok = s.ExpiresAt()
	assert.True(t, ok)

	s.SetUser("user-1")
	assert.Equal(t, "user-1", s.User())

	unsubscribe()
	unsubscribe()

	require.NoError(t, s.Clear())
	assert.Equal(t, 0, store.Len())
	assert.Nil(t, s.User())

	assert.Equal(t, []State{
		{Authenticated: true},
		{Authenticated: true, User: "user-1"},
	}, rec.snapshot())
	assert.Equal(t, []State{
		{Authenticated: true},
		{Authenticated: true, User: "user-1"},
		{Authenticated: false},
	}, other.snapshot())
}

func TestSession_NoStore(t *testing.T) {
	s := New(Config{Schemes: []auth.Scheme{auth.NewAPIKey(auth.APIKeyConfig{Key: "k"})}})

	_, ok := s.AccessToken()
	assert.False(t, ok)
	assert.ErrorIs(t, s.SetTokens(auth.TokenPair{AccessToken: "a"}), ErrNoStore)
	assert.True(t, s.IsAuthenticated())
	assert.NoError(t, s.Clear())
	assert.NoError(t, s.Rehydrate(context.Background()))
}

func TestSession_ClearJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	cleared := false
	s := New(Config{Schemes: []auth.Scheme{
		auth.NewCustom(auth.CustomConfig{ClearFunc: func() error { return boom }}),
		auth.NewCustom(auth.CustomConfig{ClearFunc: func() error { cleared = true; return nil }}),
	}})

	assert.ErrorIs(t, s.Clear(), boom)
	assert.True(t, cleared)
}

func TestSession_DoRefreshFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	var failures atomic.Int32
	s, _ := newBearerSession(t, Config{
		HTTPClient:    server.Client(),
		OnAuthFailure: func(err error) { failures.Add(1) },
	})
	require.NoError(t, s.SetTokens(auth.TokenPair{AccessToken: "a"}))

	_, err := s.Do(context.Background(), server.URL, authhttp.RequestOptions{})
	require.ErrorIs(t, err, auth.ErrNoRefreshableScheme)
	assert.Equal(t, int32(1), failures.Load())

	assert.ErrorIs(t, s.Refresh(context.Background()), auth.ErrNoRefreshableScheme)
}

func TestSession_NegativeMaxRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	s, _ := newBearerSession(t, Config{HTTPClient: server.Client(), MaxRetries: -1})

	_, err := s.Do(context.Background(), server.URL, authhttp.RequestOptions{})
	assert.True(t, authhttp.IsUnauthorized(err))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestSession_AutoRefresh(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "renewed", "expires_in": 600})
	}))
	defer server.Close()

	store := credstore.NewMemoryStore()
	s := New(Config{
		Store: store,
		Schemes: []auth.Scheme{auth.NewOAuth2(auth.OAuth2Config{
			TokenURL:   server.URL,
			ClientID:   "cli",
			Store:      store,
			HTTPClient: server.Client(),
			Clock:      clock,
		})},
		AutoRefresh: &AutoRefreshConfig{Buffer: time.Minute},
		Clock:       clock,
	})
	require.NoError(t, s.SetTokens(auth.TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 120}))

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	defer s.Close()

	clock.BlockUntil(1)
	clock.Advance(time.Minute)

	require.Eventually(t, func() bool {
		token, _ := s.AccessToken()
		return token == "renewed"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSession_ExternalLogout(t *testing.T) {
	hub := crosssync.NewHub()
	backing := credstore.NewSessionBacking()

	writerStore := crosssync.NewPublishingStore(credstore.NewSessionStore(backing, "app."), hub.Channel())
	writer := New(Config{
		Store:   writerStore,
		Schemes: []auth.Scheme{auth.NewBearer(auth.BearerConfig{Store: writerStore})},
	})

	readerStore := credstore.NewSessionStore(backing, "app.")
	var logouts atomic.Int32
	reader := New(Config{
		Store:            readerStore,
		Schemes:          []auth.Scheme{auth.NewBearer(auth.BearerConfig{Store: readerStore})},
		Sync:             hub.Channel(),
		OnExternalLogout: func() { logouts.Add(1) },
	})
	require.NoError(t, reader.Start())
	defer reader.Close()

	rec := &stateRecorder{}
	reader.Subscribe(rec.listen)

	require.NoError(t, writer.SetTokens(auth.TokenPair{AccessToken: "shared"}))
	assert.True(t, reader.IsAuthenticated())
	reader.SetUser("dana")

	require.NoError(t, writer.Clear())

	assert.Equal(t, int32(1), logouts.Load())
	assert.False(t, reader.IsAuthenticated())
	assert.Nil(t, reader.User())

	states := rec.snapshot()
	require.NotEmpty(t, states)
	assert.Equal(t, State{Authenticated: true}, states[0], "external token update notifies")
	assert.Equal(t, State{Authenticated: false}, states[len(states)-1])
}
