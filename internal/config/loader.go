package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"authsession/pkg/logging"
)

const (
	userConfigDir  = ".config/authsession"
	configFileName = "config.yaml"
)

// DefaultConfigPath returns ~/.config/authsession/config.yaml.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

// Load reads the configuration file at path, or the default path when path
// is empty. A missing file yields the defaults. Values in the file override
// the defaults field by field.
func Load(path string) (Config, error) {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return Config{}, err
		}
	}

	cfg := GetDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", path)
			return cfg, nil
		}
		return Config{}, ConfigurationError{
			FilePath:  path,
			ErrorType: "io",
			Message:   err.Error(),
		}
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, ConfigurationError{
			FilePath:  path,
			ErrorType: "parse",
			Message:   err.Error(),
		}
	}

	if err := Validate(cfg, path); err != nil {
		return Config{}, err
	}

	logging.Debug("ConfigLoader", "Loaded configuration from %s", path)
	return cfg, nil
}
