package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks cfg for inconsistent or unusable values. filePath is used
// only for error reporting.
func Validate(cfg Config, filePath string) error {
	var errs []error
	fail := func(field, msg string, suggestions ...string) {
		errs = append(errs, ConfigurationError{
			FilePath:    filePath,
			Field:       field,
			ErrorType:   "validation",
			Message:     msg,
			Suggestions: suggestions,
		})
	}

	switch cfg.Storage.Kind {
	case StorageDurable, StorageSession, StorageMemory:
	default:
		fail("storage.kind", fmt.Sprintf("unknown storage kind %q", cfg.Storage.Kind),
			"use one of: durable, session, memory")
	}

	if cfg.OAuth2.TokenURL != "" {
		if u, err := url.Parse(cfg.OAuth2.TokenURL); err != nil || u.Scheme == "" || u.Host == "" {
			fail("oauth2.tokenURL", "must be an absolute URL")
		}
		if cfg.OAuth2.ClientID == "" {
			fail("oauth2.clientID", "is required when oauth2.tokenURL is set")
		}
	}

	switch cfg.APIKey.In {
	case "", "header", "query":
	default:
		fail("apiKey.in", fmt.Sprintf("unknown placement %q", cfg.APIKey.In), "use header or query")
	}

	if cfg.Refresh.Buffer.Duration < 0 {
		fail("refresh.buffer", "must not be negative")
	}
	if cfg.Refresh.MinInterval.Duration < minRefreshInterval {
		fail("refresh.minInterval", fmt.Sprintf("must be at least %s", minRefreshInterval))
	}
	if cfg.Refresh.MaxRetries < 0 {
		fail("refresh.maxRetries", "must not be negative", "set 0 to disable retries")
	}

	return errors.Join(errs...)
}
