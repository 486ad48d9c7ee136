package auth

import (
	"context"
	"net/http"
	"net/url"
)

// Placement is where an API key is attached.
type Placement string

const (
	InHeader Placement = "header"
	InQuery  Placement = "query"
)

// APIKeyConfig configures an APIKey scheme.
type APIKeyConfig struct {
	// Key is a static key.
	Key string

	// KeyFunc resolves the key and takes precedence over Key.
	KeyFunc func() string

	// Name is the header or query parameter name. Defaults to "X-API-Key"
	// for headers and "api_key" for query parameters.
	Name string

	// In defaults to InHeader.
	In Placement
}

// APIKey attaches a static or resolved key as a header or query parameter.
type APIKey struct {
	schemeBase
	cfg APIKeyConfig
}

// NewAPIKey creates an APIKey scheme.
func NewAPIKey(cfg APIKeyConfig) *APIKey {
	if cfg.In == "" {
		cfg.In = InHeader
	}
	if cfg.Name == "" {
		if cfg.In == InQuery {
			cfg.Name = "api_key"
		} else {
			cfg.Name = "X-API-Key"
		}
	}
	return &APIKey{cfg: cfg}
}

// Headers implements Scheme.
func (k *APIKey) Headers(ctx context.Context) (http.Header, error) {
	h := make(http.Header)
	key := k.key()
	if key == "" {
		return h, nil
	}
	if k.cfg.In == InQuery {
		h.Set(QueryParamHeader, url.QueryEscape(k.cfg.Name)+"="+url.QueryEscape(key))
		return h, nil
	}
	h.Set(k.cfg.Name, key)
	return h, nil
}

// Refresher implements Scheme. API keys are not refreshable.
func (k *APIKey) Refresher() RefreshFunc {
	return nil
}

// IsAuthenticated implements Scheme.
func (k *APIKey) IsAuthenticated() bool {
	return k.key() != ""
}

// Clear implements Scheme. The key is configuration rather than session
// state, so there is nothing to drop.
func (k *APIKey) Clear() error {
	return nil
}

func (k *APIKey) key() string {
	if k.cfg.KeyFunc != nil {
		return k.cfg.KeyFunc()
	}
	return k.cfg.Key
}
