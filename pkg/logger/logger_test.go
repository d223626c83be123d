package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func restore(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })
}

func TestDefaultIsNop(t *testing.T) {
	restore(t)
	Log = zap.NewNop().Sugar()
	assert.False(t, Log.Desugar().Core().Enabled(zapcore.ErrorLevel))
}

func TestBootstrap_EnablesConsoleBeforeConfig(t *testing.T) {
	restore(t)
	Log = zap.NewNop().Sugar()

	Bootstrap()
	core := Log.Desugar().Core()
	assert.True(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.FatalLevel))
	assert.False(t, core.Enabled(zapcore.DebugLevel))
}

func TestInit_WritesJSONFile(t *testing.T) {
	restore(t)
	path := filepath.Join(t.TempDir(), "app.log")

	require.NoError(t, Init(Options{Level: "warn", Path: path}))
	Log.Infof("dropped")
	Log.Warnf("kept %d", 1)
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "kept 1", entry["msg"])
}

func TestGetLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, getLogLevel("debug"))
	assert.Equal(t, zapcore.ErrorLevel, getLogLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, getLogLevel("verbose"))
}
