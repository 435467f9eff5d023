package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "server.log")

	log, err := New(Config{Level: "warn", Format: "json", OutputPath: path})
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("kept", zap.String("id", "abc"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "abc", entry["id"])

	parsed := ParseLogLine(lines[0], CategoryFetch)
	assert.Equal(t, "kept", parsed.Message)
	assert.Equal(t, "abc", parsed.Fields["id"])
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	log, err := New(Config{Level: "chatty", Format: "console", OutputPath: path})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("shown")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestNew_StreamOutputs(t *testing.T) {
	for _, out := range []string{"", "stdout", "stderr"} {
		log, err := New(Config{OutputPath: out})
		require.NoError(t, err, out)
		assert.NotNil(t, log)
	}
}
