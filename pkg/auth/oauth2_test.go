package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authsession/pkg/credstore"
)

func newTokenServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)
	return server
}

func TestOAuth2_Refresh(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))

	t.Run("sends refresh_token grant and stores the new pair", func(t *testing.T) {
		server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))
			assert.Equal(t, "client", r.PostForm.Get("client_id"))
			assert.Equal(t, "s3cret", r.PostForm.Get("client_secret"))
			assert.Equal(t, "read write", r.PostForm.Get("scope"))

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "new-access",
				"refresh_token": "new-refresh",
				"expires_in":    600,
			})
		})

		store := credstore.NewMemoryStore()
		o := NewOAuth2(OAuth2Config{
			TokenURL:     server.URL,
			ClientID:     "client",
			ClientSecret: "s3cret",
			Scope:        "read write",
			Store:        store,
			HTTPClient:   server.Client(),
			Clock:        clock,
		})
		require.NoError(t, o.SetTokens(TokenPair{AccessToken: "old-access", RefreshToken: "old-refresh"}))

		require.NoError(t, o.Refresher()(context.Background()))

		access, _ := store.Get(credstore.AccessTokenKey)
		refreshToken, _ := store.Get(credstore.RefreshTokenKey)
		assert.Equal(t, "new-access", access)
		assert.Equal(t, "new-refresh", refreshToken)

		expiresAt, ok := LoadExpiresAt(store)
		require.True(t, ok)
		assert.Equal(t, clock.Now().Add(10*time.Minute).UnixMilli(), expiresAt.UnixMilli())

		h, err := o.Headers(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Bearer new-access", h.Get("Authorization"))
	})

	t.Run("keeps the refresh token when not rotated", func(t *testing.T) {
		server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			assert.Empty(t, r.PostForm.Get("client_secret"))
			assert.Empty(t, r.PostForm.Get("scope"))
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "new-access"})
		})

		store := credstore.NewMemoryStore()
		o := NewOAuth2(OAuth2Config{TokenURL: server.URL, ClientID: "client", Store: store, Clock: clock})
		require.NoError(t, o.SetTokens(TokenPair{AccessToken: "old", RefreshToken: "keep-me", ExpiresIn: 60}))

		require.NoError(t, o.Refresh(context.Background()))

		refreshToken, _ := store.Get(credstore.RefreshTokenKey)
		assert.Equal(t, "keep-me", refreshToken)
		_, ok := store.Get(credstore.ExpiresAtKey)
		assert.False(t, ok, "unknown expiry must not keep the stale value")
	})

	t.Run("missing refresh token", func(t *testing.T) {
		var hits atomic.Int32
		server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		})

		o := NewOAuth2(OAuth2Config{TokenURL: server.URL, Clock: clock})
		require.NoError(t, o.SetTokens(TokenPair{AccessToken: "only-access"}))

		err := o.Refresh(context.Background())
		require.Error(t, err)
		assert.True(t, IsKind(err, KindRefreshFailed))
		assert.Contains(t, err.Error(), "no refresh token available")
		assert.Equal(t, int32(0), hits.Load())
	})

	t.Run("non-success status", func(t *testing.T) {
		server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
		})

		store := credstore.NewMemoryStore()
		o := NewOAuth2(OAuth2Config{TokenURL: server.URL, Store: store, Clock: clock})
		require.NoError(t, o.SetTokens(TokenPair{AccessToken: "old", RefreshToken: "r"}))

		err := o.Refresh(context.Background())
		require.Error(t, err)
		assert.True(t, IsKind(err, KindRefreshFailed))
		assert.Contains(t, err.Error(), "token endpoint returned HTTP 400")

		access, _ := store.Get(credstore.AccessTokenKey)
		assert.Equal(t, "old", access)
	})

	t.Run("response without access token", func(t *testing.T) {
		server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
		})

		o := NewOAuth2(OAuth2Config{TokenURL: server.URL, Clock: clock})
		require.NoError(t, o.SetTokens(TokenPair{AccessToken: "old", RefreshToken: "r"}))

		err := o.Refresh(context.Background())
		require.Error(t, err)
		assert.True(t, IsKind(err, KindRefreshFailed))
	})
}

func TestOAuth2_RefreshTokenExpiry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	var rotate atomic.Bool
	server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"access_token": "a", "expires_in": 60}
		if rotate.Load() {
			body["refresh_token"] = "rotated"
		} else {
			body["refresh_expires_in"] = 1800
		}
		_ = json.NewEncoder(w).Encode(body)
	})

	store := credstore.NewMemoryStore()
	o := NewOAuth2(OAuth2Config{TokenURL: server.URL, ClientID: "c", Store: store, HTTPClient: server.Client(), Clock: clock})
	require.NoError(t, o.SetTokens(TokenPair{AccessToken: "old", RefreshToken: "r"}))

	require.NoError(t, o.Refresh(context.Background()))
	refreshExpiry, ok := LoadRefreshExpiresAt(store)
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(30*time.Minute).UnixMilli(), refreshExpiry.UnixMilli())

	// A rotated refresh token without a reported lifetime drops the old expiry.
	rotate.Store(true)
	require.NoError(t, o.Refresh(context.Background()))
	_, ok = LoadRefreshExpiresAt(store)
	assert.False(t, ok)

	require.NoError(t, o.Clear())
	assert.Equal(t, 0, store.Len())
}

func TestOAuth2_TokenSource(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	var hits atomic.Int32
	server := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "renewed", "expires_in": 3600})
	})

	o := NewOAuth2(OAuth2Config{TokenURL: server.URL, Clock: clock})

	_, err := o.TokenSource(context.Background()).Token()
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnauthenticated))

	require.NoError(t, o.SetTokens(TokenPair{AccessToken: "valid", RefreshToken: "r", ExpiresIn: 3600}))
	tok, err := o.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	assert.Equal(t, "valid", tok.AccessToken)
	assert.Equal(t, int32(0), hits.Load())

	require.NoError(t, o.SetTokens(TokenPair{
		AccessToken:  "expired",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))
	tok, err = o.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	assert.Equal(t, "renewed", tok.AccessToken)
	assert.Equal(t, int32(1), hits.Load())
}

func TestOAuth2_Clear(t *testing.T) {
	store := credstore.NewMemoryStore()
	o := NewOAuth2(OAuth2Config{Store: store})
	require.NoError(t, o.SetTokens(TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60}))
	assert.True(t, o.IsAuthenticated())

	require.NoError(t, o.Clear())
	assert.False(t, o.IsAuthenticated())
	assert.Equal(t, 0, store.Len())
}
