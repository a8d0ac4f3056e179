package server

import "github.com/spf13/viper"

func GetServerDefault() BaseServerConfig {
	return BaseServerConfig{
		ShutdownTimeout: "10s",

		Log: LogServerConfig{
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogServerRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},
		Storage: StorageServerConfig{
			Type: "sqlite",
			SQLite: StorageSQLiteConfig{
				Path:         "./loadoutsync.db",
				MaxOpenConns: 1,
			},
		},
		Cache: CacheServerConfig{
			ItemsTTL: "24h",
			StatsTTL: "5m",
			LRUSize:  256,
		},
		Sync: SyncServerConfig{
			PageSize:   10,
			BatchLimit: 500,
			Propagate: PropagationSyncConfig{
				InitialDelay: "100ms",
				MaxDelay:     "1s",
				MaxAttempts:  5,
			},
		},
		Stats: StatsServerConfig{
			RefreshInterval: "5m",
		},
		Items: ItemsServerConfig{
			NamesURL: "https://raw.githubusercontent.com/runelite/static.runelite.net/master/cache/item/names.json",
			Timeout:  "15s",
		},
		HTTP: HTTPServerConfig{
			Enabled:     true,
			Listen:      "127.0.0.1:8089",
			CORSOrigins: []string{"http://localhost:4200"},
		},
	}
}

func setDefaults() {
	defaults := GetServerDefault()

	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("storage.type", defaults.Storage.Type)
	viper.SetDefault("storage.sqlite.path", defaults.Storage.SQLite.Path)
	viper.SetDefault("storage.sqlite.max_open_conns", defaults.Storage.SQLite.MaxOpenConns)
	viper.SetDefault("storage.sqlite.debug", defaults.Storage.SQLite.Debug)

	viper.SetDefault("cache.items_ttl", defaults.Cache.ItemsTTL)
	viper.SetDefault("cache.stats_ttl", defaults.Cache.StatsTTL)
	viper.SetDefault("cache.lru_size", defaults.Cache.LRUSize)

	viper.SetDefault("sync.page_size", defaults.Sync.PageSize)
	viper.SetDefault("sync.batch_limit", defaults.Sync.BatchLimit)
	viper.SetDefault("sync.propagation.initial_delay", defaults.Sync.Propagate.InitialDelay)
	viper.SetDefault("sync.propagation.max_delay", defaults.Sync.Propagate.MaxDelay)
	viper.SetDefault("sync.propagation.max_attempts", defaults.Sync.Propagate.MaxAttempts)

	viper.SetDefault("stats.refresh_interval", defaults.Stats.RefreshInterval)

	viper.SetDefault("items.names_url", defaults.Items.NamesURL)
	viper.SetDefault("items.timeout", defaults.Items.Timeout)

	viper.SetDefault("http.enabled", defaults.HTTP.Enabled)
	viper.SetDefault("http.listen", defaults.HTTP.Listen)
	viper.SetDefault("http.cors_origins", defaults.HTTP.CORSOrigins)

	viper.SetDefault("session.user_id", defaults.Session.UserID)
}
