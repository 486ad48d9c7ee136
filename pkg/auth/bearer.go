package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"authsession/pkg/credstore"
)

// DefaultRefreshBuffer is how long before expiry a bearer token is renewed
// while building request headers.
const DefaultRefreshBuffer = 60 * time.Second

// BearerConfig configures a Bearer scheme.
type BearerConfig struct {
	// Token is a static token, used when neither TokenFunc nor the store
	// yields one.
	Token string

	// TokenFunc resolves the current token. An empty result means no token.
	TokenFunc func() string

	// Store holds the token pair and its expiry. Defaults to a private
	// in-memory store.
	Store credstore.Store

	// Refresh obtains a new token pair. When nil the scheme cannot refresh.
	Refresh func(ctx context.Context) (TokenPair, error)

	// RefreshBuffer is the proactive-refresh window before expiry.
	// Defaults to DefaultRefreshBuffer.
	RefreshBuffer time.Duration

	// HeaderName defaults to "Authorization".
	HeaderName string

	// Prefix defaults to "Bearer".
	Prefix string

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Bearer attaches "Authorization: Bearer <token>".
type Bearer struct {
	schemeBase
	cfg BearerConfig

	// group collapses proactive and explicit refreshes into one call to
	// cfg.Refresh.
	group singleflight.Group
}

// NewBearer creates a Bearer scheme.
func NewBearer(cfg BearerConfig) *Bearer {
	if cfg.Store == nil {
		cfg.Store = credstore.NewMemoryStore()
	}
	if cfg.RefreshBuffer == 0 {
		cfg.RefreshBuffer = DefaultRefreshBuffer
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = "Authorization"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "Bearer"
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bearer{cfg: cfg}
}

// Headers implements Scheme. If the stored token expires within the refresh
// buffer it is renewed first; a failed renewal is logged and the current
// token is used, leaving recovery to the executor's 401 handling.
func (b *Bearer) Headers(ctx context.Context) (http.Header, error) {
	if b.cfg.Refresh != nil && b.expiresSoon() {
		if err := b.shared(ctx, true); err != nil {
			b.cfg.Logger.Debug("Proactive bearer refresh failed, using current token",
				"error", err)
		}
	}

	h := make(http.Header)
	token := b.token()
	if token == "" {
		return h, nil
	}
	h.Set(b.cfg.HeaderName, b.cfg.Prefix+" "+token)
	return h, nil
}

// Refresher implements Scheme.
func (b *Bearer) Refresher() RefreshFunc {
	if b.cfg.Refresh == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return b.shared(ctx, false)
	}
}

// IsAuthenticated implements Scheme.
func (b *Bearer) IsAuthenticated() bool {
	return b.token() != ""
}

// Clear implements Scheme.
func (b *Bearer) Clear() error {
	return RemoveTokens(b.cfg.Store)
}

// SetTokens stores a new token pair.
func (b *Bearer) SetTokens(pair TokenPair) error {
	return SaveTokens(b.cfg.Store, pair, b.cfg.Clock.Now(), false)
}

func (b *Bearer) token() string {
	if b.cfg.TokenFunc != nil {
		return b.cfg.TokenFunc()
	}
	if token, ok := b.cfg.Store.Get(credstore.AccessTokenKey); ok && token != "" {
		return token
	}
	return b.cfg.Token
}

func (b *Bearer) expiresSoon() bool {
	expiresAt, ok := LoadExpiresAt(b.cfg.Store)
	if !ok {
		return false
	}
	return !b.cfg.Clock.Now().Add(b.cfg.RefreshBuffer).Before(expiresAt)
}

// shared runs a refresh or joins the one in flight. When the flight was
// started by a proactive caller and another flight has just renewed the
// token, it returns without calling cfg.Refresh.
func (b *Bearer) shared(ctx context.Context, proactive bool) error {
	ch := b.group.DoChan("refresh", func() (interface{}, error) {
		if proactive && !b.expiresSoon() {
			return nil, nil
		}
		return nil, b.refresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bearer) refresh(ctx context.Context) error {
	pair, err := b.cfg.Refresh(ctx)
	if err != nil {
		return NewError(KindRefreshFailed, "bearer refresh failed", err)
	}
	if pair.AccessToken == "" {
		return NewError(KindRefreshFailed, "bearer refresh returned no access token", nil)
	}
	if err := SaveTokens(b.cfg.Store, pair, b.cfg.Clock.Now(), true); err != nil {
		return NewError(KindRefreshFailed, "failed to persist refreshed token", err)
	}
	b.cfg.Logger.Debug("Bearer token refreshed", "tokens", pair)
	return nil
}
