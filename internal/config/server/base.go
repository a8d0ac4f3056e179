package server

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type BaseServerConfig struct {
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout"`

	Log     LogServerConfig     `mapstructure:"log"     yaml:"log"     toml:"log"`
	Storage StorageServerConfig `mapstructure:"storage" yaml:"storage" toml:"storage"`
	Cache   CacheServerConfig   `mapstructure:"cache"   yaml:"cache"   toml:"cache"`
	Sync    SyncServerConfig    `mapstructure:"sync"    yaml:"sync"    toml:"sync"`
	Stats   StatsServerConfig   `mapstructure:"stats"   yaml:"stats"   toml:"stats"`
	Items   ItemsServerConfig   `mapstructure:"items"   yaml:"items"   toml:"items"`
	HTTP    HTTPServerConfig    `mapstructure:"http"    yaml:"http"    toml:"http"`
	Session SessionServerConfig `mapstructure:"session" yaml:"session" toml:"session"`
}

func LoadServerConfig() (*BaseServerConfig, error) {
	cfg := &BaseServerConfig{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// Duration parses value, returning fallback when it is empty or malformed.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
