package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	config "github.com/mwantia/loadoutsync/internal/config/server"
)

func TestMarshalConfig_RoundTrip(t *testing.T) {
	defaults := config.GetServerDefault()

	for _, format := range []string{"yaml", "toml"} {
		t.Run(format, func(t *testing.T) {
			data, err := marshalConfig(defaults, format)
			require.NoError(t, err)

			var decoded config.BaseServerConfig
			if format == "toml" {
				require.NoError(t, toml.Unmarshal(data, &decoded))
			} else {
				require.NoError(t, yaml.Unmarshal(data, &decoded))
			}
			assert.Equal(t, defaults.Sync, decoded.Sync)
			assert.Equal(t, defaults.Cache, decoded.Cache)
			assert.Equal(t, defaults.HTTP.Listen, decoded.HTTP.Listen)
		})
	}

	_, err := marshalConfig(defaults, "ini")
	assert.Error(t, err)
}

func TestConfigGenerate(t *testing.T) {
	dir := t.TempDir()

	cmd := NewConfigCommand()
	cmd.SetArgs([]string{"generate", "--output", dir, "--format", "toml"})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(filepath.Join(dir, "loadoutsync.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "page_size = 10")
}
