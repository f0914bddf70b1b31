package configutil

import (
	"fmt"
	"sync"

	"github.com/theblitlabs/cook-staking/internal/config"
)

const DefaultConfigPath = "config/config.yaml"

var (
	cachedConfig *config.Config
	cachedPath   string
	configMutex  sync.RWMutex
)

// GetConfig loads the configuration at path once per process. A different
// path replaces the cached value.
func GetConfig(path string) (*config.Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	configMutex.RLock()
	if cachedConfig != nil && cachedPath == path {
		defer configMutex.RUnlock()
		return cachedConfig, nil
	}
	configMutex.RUnlock()

	configMutex.Lock()
	defer configMutex.Unlock()

	if cachedConfig != nil && cachedPath == path {
		return cachedConfig, nil
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cachedConfig = cfg
	cachedPath = path
	return cfg, nil
}

func ClearCache() {
	configMutex.Lock()
	defer configMutex.Unlock()
	cachedConfig = nil
	cachedPath = ""
}
