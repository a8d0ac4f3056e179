package server

type SyncServerConfig struct {
	PageSize   int                   `mapstructure:"page_size"   yaml:"page_size"   toml:"page_size"`
	BatchLimit int                   `mapstructure:"batch_limit" yaml:"batch_limit" toml:"batch_limit"`
	Propagate  PropagationSyncConfig `mapstructure:"propagation" yaml:"propagation" toml:"propagation"`
}

// PropagationSyncConfig bounds the read-after-write polling done after a
// confirmed write before the local view is reconciled.
type PropagationSyncConfig struct {
	InitialDelay string `mapstructure:"initial_delay" yaml:"initial_delay" toml:"initial_delay"`
	MaxDelay     string `mapstructure:"max_delay"     yaml:"max_delay"     toml:"max_delay"`
	MaxAttempts  int    `mapstructure:"max_attempts"  yaml:"max_attempts"  toml:"max_attempts"`
}

type StatsServerConfig struct {
	RefreshInterval string `mapstructure:"refresh_interval" yaml:"refresh_interval" toml:"refresh_interval"`
}

type ItemsServerConfig struct {
	NamesURL string `mapstructure:"names_url" yaml:"names_url" toml:"names_url"`
	Timeout  string `mapstructure:"timeout"   yaml:"timeout"   toml:"timeout"`
}

type HTTPServerConfig struct {
	Enabled     bool     `mapstructure:"enabled"      yaml:"enabled"      toml:"enabled"`
	Listen      string   `mapstructure:"listen"       yaml:"listen"       toml:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// SessionServerConfig seeds the current user of a headless agent.
type SessionServerConfig struct {
	UserID string `mapstructure:"user_id" yaml:"user_id" toml:"user_id"`
}
