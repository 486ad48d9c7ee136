package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"authsession/internal/config"
	"authsession/pkg/auth"
	"authsession/pkg/credstore"
	"authsession/pkg/crosssync"
	"authsession/pkg/logging"
	"authsession/pkg/session"
)

// apiKeyEnvVar overrides apiKey.value from the configuration.
const apiKeyEnvVar = "AUTHSESSION_API_KEY"

var errNotLoggedIn = errors.New("not logged in: run 'authsession login' first")

// environment is everything a command needs to work with the credential.
type environment struct {
	cfg     config.Config
	store   credstore.Store
	disk    *credstore.DiskBacking
	session *session.Session
}

// loadEnvironment reads the configuration and builds the session over the
// configured store.
func loadEnvironment(opts *globalOptions) (*environment, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	env := &environment{cfg: cfg}
	switch cfg.Storage.Kind {
	case config.StorageMemory:
		env.store = credstore.NewMemoryStore()
	case config.StorageSession:
		env.store = credstore.NewSessionStore(credstore.NewSessionBacking(), cfg.Storage.Prefix)
	default:
		disk, err := credstore.NewDiskBacking(credstore.DiskBackingConfig{Dir: cfg.Storage.Dir})
		if err != nil {
			return nil, err
		}
		env.disk = disk
		env.store = credstore.NewDurableStore(disk, cfg.Storage.Prefix)
	}

	logger := logging.Logger("Session")
	var schemes []auth.Scheme
	if cfg.OAuth2.TokenURL != "" {
		schemes = append(schemes, auth.NewOAuth2(auth.OAuth2Config{
			TokenURL:     cfg.OAuth2.TokenURL,
			ClientID:     cfg.OAuth2.ClientID,
			ClientSecret: cfg.OAuth2.ClientSecret,
			Scope:        cfg.OAuth2.Scope,
			Store:        env.store,
			Logger:       logging.Logger("OAuth2"),
		}))
	} else {
		schemes = append(schemes, auth.NewBearer(auth.BearerConfig{Store: env.store, Logger: logger}))
	}

	apiKey := cfg.APIKey.Value
	if v := os.Getenv(apiKeyEnvVar); v != "" {
		apiKey = v
	}
	if apiKey != "" {
		schemes = append(schemes, auth.NewAPIKey(auth.APIKeyConfig{
			Key:  apiKey,
			Name: cfg.APIKey.Name,
			In:   auth.Placement(strings.ToLower(cfg.APIKey.In)),
		}))
	}

	sessionCfg := session.Config{
		Schemes:    schemes,
		Store:      env.store,
		MaxRetries: cfg.Refresh.MaxRetries,
		OnAuthFailure: func(err error) {
			logging.Audit(logging.AuditEvent{
				Action:  "refresh",
				Outcome: "failure",
				Details: err.Error(),
			})
		},
		Logger: logger,
	}
	if cfg.Refresh.MaxRetries == 0 {
		sessionCfg.MaxRetries = -1
	}
	if env.disk != nil {
		sessionCfg.Sync = crosssync.NewFileChannel(env.disk, crosssync.WithLogger(logging.Logger("Sync")))
	}
	sessionCfg.AutoRefresh = &session.AutoRefreshConfig{
		Buffer:      cfg.Refresh.Buffer.Duration,
		MinInterval: cfg.Refresh.MinInterval.Duration,
	}

	env.session = session.New(sessionCfg)
	return env, nil
}

// storageDescription names the configured backend for display.
func (e *environment) storageDescription() string {
	if e.disk != nil {
		return fmt.Sprintf("%s (%s)", config.StorageDurable, e.disk.Dir())
	}
	return string(e.cfg.Storage.Kind)
}
