package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"

	"authsession/pkg/credstore"
)

// DefaultHTTPTimeout is the default timeout for token endpoint requests.
const DefaultHTTPTimeout = 30 * time.Second

// OAuth2Config configures the refresh-token grant scheme.
type OAuth2Config struct {
	// TokenURL is the token endpoint.
	TokenURL string

	ClientID     string
	ClientSecret string

	// Scope is sent with refresh requests when set (space-separated).
	Scope string

	// Store holds the access token, refresh token and expiry. Defaults to a
	// private in-memory store.
	Store credstore.Store

	HTTPClient *http.Client
	Clock      clockwork.Clock
	Logger     *slog.Logger
}

// tokenResponse is the token endpoint's JSON body.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type,omitempty"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	ExpiresIn        int    `json:"expires_in,omitempty"`
	RefreshExpiresIn int    `json:"refresh_expires_in,omitempty"`
}

// OAuth2 keeps an access/refresh token pair and renews it with the
// refresh_token grant.
type OAuth2 struct {
	schemeBase
	cfg OAuth2Config

	// mu serializes refreshes so a single-use refresh token is sent once.
	mu sync.Mutex
}

// NewOAuth2 creates an OAuth2 scheme.
func NewOAuth2(cfg OAuth2Config) *OAuth2 {
	if cfg.Store == nil {
		cfg.Store = credstore.NewMemoryStore()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &OAuth2{cfg: cfg}
}

// Headers implements Scheme.
func (o *OAuth2) Headers(ctx context.Context) (http.Header, error) {
	h := make(http.Header)
	if token, ok := o.cfg.Store.Get(credstore.AccessTokenKey); ok && token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h, nil
}

// Refresher implements Scheme. The grant is always offered; a missing
// refresh token is reported by the refresh itself.
func (o *OAuth2) Refresher() RefreshFunc {
	return o.Refresh
}

// IsAuthenticated implements Scheme.
func (o *OAuth2) IsAuthenticated() bool {
	token, ok := o.cfg.Store.Get(credstore.AccessTokenKey)
	return ok && token != ""
}

// Clear implements Scheme.
func (o *OAuth2) Clear() error {
	return RemoveTokens(o.cfg.Store)
}

// SetTokens stores a new credential, e.g. after an interactive login.
func (o *OAuth2) SetTokens(pair TokenPair) error {
	return SaveTokens(o.cfg.Store, pair, o.cfg.Clock.Now(), false)
}

// Refresh exchanges the stored refresh token for a new access token. If the
// server does not rotate the refresh token, the previous one is kept.
func (o *OAuth2) Refresh(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	refreshToken, ok := o.cfg.Store.Get(credstore.RefreshTokenKey)
	if !ok || refreshToken == "" {
		return NewError(KindRefreshFailed, "no refresh token available", nil)
	}

	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {o.cfg.ClientID},
	}
	if o.cfg.ClientSecret != "" {
		data.Set("client_secret", o.cfg.ClientSecret)
	}
	if o.cfg.Scope != "" {
		data.Set("scope", o.cfg.Scope)
	}

	resp, err := o.doTokenRequest(ctx, data)
	if err != nil {
		return err
	}

	now := o.cfg.Clock.Now()
	pair := TokenPair{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	if resp.RefreshExpiresIn > 0 {
		pair.RefreshTokenExpiresAt = now.Add(time.Duration(resp.RefreshExpiresIn) * time.Second)
	}

	if err := SaveTokens(o.cfg.Store, pair, now, true); err != nil {
		return NewError(KindRefreshFailed, "failed to persist refreshed token", err)
	}

	o.cfg.Logger.Debug("OAuth2 token refreshed",
		"token_url", o.cfg.TokenURL,
		"rotated", resp.RefreshToken != "",
		"tokens", pair,
	)
	return nil
}

// doTokenRequest performs a token endpoint request.
func (o *OAuth2) doTokenRequest(ctx context.Context, data url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, NewError(KindRefreshFailed, "failed to create token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := o.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, NewError(KindRefreshFailed, "token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(KindRefreshFailed, "failed to read token response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		o.cfg.Logger.Debug("Token request failed",
			"status", resp.StatusCode,
			"body", string(body))
		return nil, NewError(KindRefreshFailed, fmt.Sprintf("token endpoint returned HTTP %d", resp.StatusCode), nil)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, NewError(KindRefreshFailed, "failed to parse token response", err)
	}
	if token.AccessToken == "" {
		return nil, NewError(KindRefreshFailed, "token response has no access_token", nil)
	}
	return &token, nil
}

// TokenSource exposes the stored credential as an oauth2.TokenSource. An
// expired token is refreshed on demand using ctx.
func (o *OAuth2) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &storeTokenSource{ctx: ctx, scheme: o}
}

type storeTokenSource struct {
	ctx    context.Context
	scheme *OAuth2
}

// Token implements oauth2.TokenSource.
func (s *storeTokenSource) Token() (*oauth2.Token, error) {
	token := s.current()
	if token == nil {
		return nil, NewError(KindUnauthenticated, "no access token stored", nil)
	}
	if token.Valid() {
		return token, nil
	}
	if err := s.scheme.Refresh(s.ctx); err != nil {
		return nil, err
	}
	if token = s.current(); token == nil {
		return nil, NewError(KindUnauthenticated, "no access token stored", nil)
	}
	return token, nil
}

func (s *storeTokenSource) current() *oauth2.Token {
	store := s.scheme.cfg.Store
	access, ok := store.Get(credstore.AccessTokenKey)
	if !ok || access == "" {
		return nil
	}
	refreshToken, _ := store.Get(credstore.RefreshTokenKey)
	expiresAt, _ := LoadExpiresAt(store)
	return &oauth2.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: refreshToken,
		Expiry:       expiresAt,
	}
}
