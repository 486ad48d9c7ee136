package auth

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"authsession/pkg/credstore"
)

// TokenPair is a credential as handed to SetTokens or returned by a refresh.
//
// AccessToken is always present. An empty RefreshToken means the credential
// cannot be renewed by the scheme itself.
type TokenPair struct {
	// AccessToken is the bearer credential.
	AccessToken string `json:"access_token"`

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresIn is the token lifetime in seconds, relative to when it was issued.
	ExpiresIn int `json:"expires_in,omitempty"`

	// ExpiresAt is the absolute expiry. It takes precedence over ExpiresIn.
	ExpiresAt time.Time `json:"-"`

	// RefreshTokenExpiresAt is the absolute refresh token expiry, when the
	// server reports one.
	RefreshTokenExpiresAt time.Time `json:"-"`
}

// ExpiresAtFrom resolves the absolute expiry, using now as the issue time
// for a relative ExpiresIn. The zero time means the expiry is unknown.
func (p TokenPair) ExpiresAtFrom(now time.Time) time.Time {
	if !p.ExpiresAt.IsZero() {
		return p.ExpiresAt
	}
	if p.ExpiresIn > 0 {
		return now.Add(time.Duration(p.ExpiresIn) * time.Second)
	}
	return time.Time{}
}

// OAuth2Token converts the pair to an oauth2.Token for use with golang.org/x/oauth2.
func (p TokenPair) OAuth2Token(now time.Time) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  p.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: p.RefreshToken,
		Expiry:       p.ExpiresAtFrom(now),
	}
}

// TokenPairFromOAuth2 converts an oauth2.Token into a TokenPair.
func TokenPairFromOAuth2(t *oauth2.Token) TokenPair {
	if t == nil {
		return TokenPair{}
	}
	return TokenPair{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.Expiry,
	}
}

// String never includes token values.
func (p TokenPair) String() string {
	return fmt.Sprintf("TokenPair{access=[REDACTED] refreshable=%t}", p.RefreshToken != "")
}

// GoString never includes token values.
func (p TokenPair) GoString() string {
	return p.String()
}

// LogValue implements slog.LogValuer so pairs can be logged without leaking
// credentials.
func (p TokenPair) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Bool("has_refresh_token", p.RefreshToken != ""),
	}
	if !p.ExpiresAt.IsZero() {
		attrs = append(attrs, slog.Time("expires_at", p.ExpiresAt))
	} else if p.ExpiresIn > 0 {
		attrs = append(attrs, slog.Int("expires_in", p.ExpiresIn))
	}
	return slog.GroupValue(attrs...)
}

// SaveTokens persists pair under the canonical keys of store.
//
// When pair carries no refresh token, keepRefresh decides whether a
// previously stored refresh token is kept (refresh responses that did not
// rotate it) or removed (an explicit new credential). The refresh-token
// expiry follows the refresh token. An unknown access-token expiry removes
// any stale expires-at value.
func SaveTokens(store credstore.Store, pair TokenPair, now time.Time, keepRefresh bool) error {
	if err := store.Set(credstore.AccessTokenKey, pair.AccessToken); err != nil {
		return err
	}

	switch {
	case pair.RefreshToken != "":
		if err := store.Set(credstore.RefreshTokenKey, pair.RefreshToken); err != nil {
			return err
		}
	case !keepRefresh:
		if err := store.Remove(credstore.RefreshTokenKey); err != nil {
			return err
		}
	}

	switch {
	case !pair.RefreshTokenExpiresAt.IsZero():
		if err := store.Set(credstore.RefreshExpiresAtKey, FormatExpiresAt(pair.RefreshTokenExpiresAt)); err != nil {
			return err
		}
	case pair.RefreshToken != "" || !keepRefresh:
		if err := store.Remove(credstore.RefreshExpiresAtKey); err != nil {
			return err
		}
	}

	if expiresAt := pair.ExpiresAtFrom(now); !expiresAt.IsZero() {
		return store.Set(credstore.ExpiresAtKey, FormatExpiresAt(expiresAt))
	}
	return store.Remove(credstore.ExpiresAtKey)
}

// RemoveTokens deletes the canonical keys from store.
func RemoveTokens(store credstore.Store) error {
	for _, key := range []string{credstore.AccessTokenKey, credstore.RefreshTokenKey, credstore.ExpiresAtKey, credstore.RefreshExpiresAtKey} {
		if err := store.Remove(key); err != nil {
			return err
		}
	}
	return nil
}

// LoadExpiresAt reads the stored access token expiry.
func LoadExpiresAt(store credstore.Store) (time.Time, bool) {
	raw, ok := store.Get(credstore.ExpiresAtKey)
	if !ok || raw == "" {
		return time.Time{}, false
	}
	t, err := ParseExpiresAt(raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// LoadRefreshExpiresAt reads the stored refresh-token expiry.
func LoadRefreshExpiresAt(store credstore.Store) (time.Time, bool) {
	raw, ok := store.Get(credstore.RefreshExpiresAtKey)
	if !ok || raw == "" {
		return time.Time{}, false
	}
	t, err := ParseExpiresAt(raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatExpiresAt encodes t as epoch milliseconds.
func FormatExpiresAt(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// ParseExpiresAt decodes an epoch-millisecond string.
func ParseExpiresAt(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expires-at value: %w", err)
	}
	return time.UnixMilli(ms), nil
}
