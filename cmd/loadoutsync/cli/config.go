package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	envFiles    = []string{".env", ".env.local"}
	configPaths = []string{".", "./config", "/etc/loadoutsync", "$HOME/.loadoutsync"}
)

// loadEnvFiles loads the env files found in dirs. Missing files are skipped
// and variables already set are never overridden.
func loadEnvFiles(dirs ...string) {
	for _, dir := range dirs {
		for _, envFile := range envFiles {
			_ = godotenv.Load(filepath.Join(dir, envFile))
		}
	}
}

func initConfig(path string) error {
	if path != "" {
		loadEnvFiles(".", filepath.Dir(path))
		viper.SetConfigFile(path)
	} else {
		loadEnvFiles(configPaths...)

		viper.SetConfigName("loadoutsync")
		for _, configPath := range configPaths {
			viper.AddConfigPath(configPath)
		}
	}

	// LOADOUTSYNC_SYNC_PAGE_SIZE overrides sync.page_size
	viper.SetEnvPrefix("LOADOUTSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}
