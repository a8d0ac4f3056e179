package server

// StorageServerConfig selects the document store backing the remote collections
// and the durable cache.
type StorageServerConfig struct {
	Type   string              `mapstructure:"type"   yaml:"type"   toml:"type"`
	SQLite StorageSQLiteConfig `mapstructure:"sqlite" yaml:"sqlite" toml:"sqlite"`
}

type StorageSQLiteConfig struct {
	Path         string `mapstructure:"path"           yaml:"path"           toml:"path"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns" toml:"max_open_conns"`
	Debug        bool   `mapstructure:"debug"          yaml:"debug"          toml:"debug"`
}

// CacheServerConfig configures the namespaced durable cache.
type CacheServerConfig struct {
	ItemsTTL string `mapstructure:"items_ttl" yaml:"items_ttl" toml:"items_ttl"`
	StatsTTL string `mapstructure:"stats_ttl" yaml:"stats_ttl" toml:"stats_ttl"`
	LRUSize  int    `mapstructure:"lru_size"  yaml:"lru_size"  toml:"lru_size"`
}
