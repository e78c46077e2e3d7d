package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "loud", Encoding: "json"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_WritesJSONToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "app.log")
	l, err := New(Config{Level: "debug", Encoding: "xml", OutputPath: out})
	require.NoError(t, err)

	l.Debug("hello")
	_ = l.Sync()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"level":"DEBUG"`)
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestNew_ServiceFieldsAndSampling(t *testing.T) {
	out := filepath.Join(t.TempDir(), "app.log")
	l, err := New(Config{Level: " INFO ", OutputPath: out, Service: "aitale-server", Version: "1.2.3"})
	require.NoError(t, err)

	for i := 0; i < sampleInitial+50; i++ {
		l.Info("tick")
	}
	l.Debug("hidden")
	_ = l.Sync()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// граница секундного окна сэмплера может пропустить еще несколько записей
	assert.GreaterOrEqual(t, len(lines), sampleInitial)
	assert.Less(t, len(lines), sampleInitial+50, "repeated messages are sampled")
	assert.Contains(t, lines[0], `"service":"aitale-server"`)
	assert.Contains(t, lines[0], `"version":"1.2.3"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNew_DevelopmentKeepsEveryMessage(t *testing.T) {
	out := filepath.Join(t.TempDir(), "app.log")
	l, err := New(Config{Level: "debug", Encoding: "console", OutputPath: out, Development: true})
	require.NoError(t, err)

	for i := 0; i < sampleInitial+50; i++ {
		l.Debug("tick")
	}
	_ = l.Sync()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, sampleInitial+50, strings.Count(string(data), "tick"))
	assert.NotContains(t, string(data), `"msg"`, "console encoding")
}
