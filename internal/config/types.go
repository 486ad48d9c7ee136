package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// StorageKind selects the credential store backend.
type StorageKind string

const (
	StorageDurable StorageKind = "durable"
	StorageSession StorageKind = "session"
	StorageMemory  StorageKind = "memory"
)

// Config is the top-level configuration for authsession.
type Config struct {
	Storage     StorageConfig     `yaml:"storage"`
	OAuth2      OAuth2Config      `yaml:"oauth2,omitempty"`
	APIKey      APIKeyConfig      `yaml:"apiKey,omitempty"`
	Refresh     RefreshConfig     `yaml:"refresh"`
	Interactive InteractiveConfig `yaml:"interactive,omitempty"`
}

// StorageConfig defines where credentials are kept.
type StorageConfig struct {
	Kind   StorageKind `yaml:"kind"`             // durable (default), session or memory
	Dir    string      `yaml:"dir,omitempty"`    // durable storage directory
	Prefix string      `yaml:"prefix,omitempty"` // key namespace (default: authsession.)
}

// OAuth2Config defines the refresh-token grant endpoint. Leave TokenURL empty
// to use a plain bearer token.
type OAuth2Config struct {
	TokenURL     string `yaml:"tokenURL,omitempty"`
	ClientID     string `yaml:"clientID,omitempty"`
	ClientSecret string `yaml:"clientSecret,omitempty"`
	Scope        string `yaml:"scope,omitempty"`
}

// APIKeyConfig adds a static API key to every request when Value is set.
type APIKeyConfig struct {
	Name  string `yaml:"name,omitempty"`
	In    string `yaml:"in,omitempty"` // header (default) or query
	Value string `yaml:"value,omitempty"`
}

// RefreshConfig tunes proactive and reactive refresh.
type RefreshConfig struct {
	Buffer      Duration `yaml:"buffer"`
	MinInterval Duration `yaml:"minInterval"`
	MaxRetries  int      `yaml:"maxRetries"`
}

// InteractiveConfig describes the browser login used by "login --interactive".
type InteractiveConfig struct {
	AuthorizeURL   string   `yaml:"authorizeURL,omitempty"`
	ExpectedOrigin string   `yaml:"expectedOrigin,omitempty"`
	Timeout        Duration `yaml:"timeout,omitempty"`
}

// Duration is a time.Duration written as a string such as "60s" in YAML.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}
