package config

import (
	"time"

	"authsession/pkg/credstore"
	"authsession/pkg/interactive"
	"authsession/pkg/refresh"
)

// GetDefaultConfig returns the configuration used when no file is present.
func GetDefaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			Kind:   StorageDurable,
			Prefix: credstore.DefaultPrefix,
		},
		Refresh: RefreshConfig{
			Buffer:      Duration{refresh.DefaultBuffer},
			MinInterval: Duration{refresh.DefaultMinInterval},
			MaxRetries:  1,
		},
		Interactive: InteractiveConfig{
			Timeout: Duration{interactive.DefaultTimeout},
		},
	}
}

// minRefreshInterval is the smallest accepted refresh.minInterval.
const minRefreshInterval = time.Second
