package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mwantia/fabric/pkg/container"
	config "github.com/mwantia/loadoutsync/internal/config/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   Debug,
		" TRACE ": Debug,
		"info":    Info,
		"":        Info,
		"warning": Warn,
		"ERROR":   Error,
		"fatal":   Fatal,
		"verbose": Info,
	}
	for in, want := range tests {
		assert.Equal(t, want, Parse(in), in)
	}
}

func TestWriterLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("agent", config.LogServerConfig{Level: "info", JSON: true}, &buf)

	logger.Debug("hidden")
	logger.Named("sync").Warn("Refresh failed, keeping %d local loadouts", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry logEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "agent/sync", entry.Service)
	assert.Equal(t, "Refresh failed, keeping 3 local loadouts", entry.Message)
	_, err := time.Parse(time.RFC3339, entry.Timestamp)
	assert.NoError(t, err)
}

func TestWriterLogger_ComponentLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("", config.LogServerConfig{
		Level:      "warn",
		Components: map[string]string{"stats": "debug"},
	}, &buf)

	logger.Named("sync").Info("dropped")
	logger.Named("stats").Debug("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "DEBUG [stats] kept")
	assert.NotContains(t, out, "\033[", "writer loggers never color")
}

func TestLoggerService_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loadoutsync.log")
	logger := NewLoggerService("agent", config.LogServerConfig{
		Level:      "info",
		File:       path,
		NoTerminal: true,
		Rotation:   config.LogServerRotationConfig{MaxSize: 1},
	})

	logger.Info("Listening on '%s'", "127.0.0.1:8089")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Listening on '127.0.0.1:8089'")
}

func TestLoggerTagProcessor(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriterLogger("root", config.LogServerConfig{Level: "debug"}, &buf)

	sc := container.NewServiceContainer()
	errs := container.Errors{}
	errs.Add(container.Register[LoggerServiceImpl](sc,
		container.With[LoggerService](),
		container.WithInstance(base)))
	require.NoError(t, errs.Errors())

	target := struct {
		Base   LoggerService `fabric:"logger"`
		Sync   LoggerService `fabric:"logger:sync"`
		Ignore LoggerService
	}{}

	processor := NewLoggerTagProcessor()
	assert.True(t, processor.CanProcess("Logger:cache"))
	assert.False(t, processor.CanProcess("inject"))

	require.NoError(t, processor.InjectLoggers(t.Context(), sc, &target))
	require.NotNil(t, target.Base)
	require.NotNil(t, target.Sync)
	assert.Nil(t, target.Ignore)

	target.Sync.Info("named")
	assert.Contains(t, buf.String(), "[root/sync] named")

	assert.Error(t, processor.InjectLoggers(t.Context(), sc, target))
}
