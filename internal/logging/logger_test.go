package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, o Options) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	SetRoot(zap.New(core), o)
	t.Cleanup(func() { SetRoot(nil, Options{}) })
	return logs
}

func TestCategoryLoggers_DisabledOutsideDebugMode(t *testing.T) {
	logs := observe(t, Options{DebugMode: false})

	PerceptionDebug("classified %s", "wifi")
	Session("turn %d", 1)

	assert.Equal(t, 0, logs.Len())
	assert.False(t, IsCategoryEnabled(CategoryPerception))
}

func TestCategoryLoggers_DebugModeWritesNamedEntries(t *testing.T) {
	logs := observe(t, Options{DebugMode: true})

	PerceptionDebug("classified %s", "wifi")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "perception", entry.LoggerName)
	assert.Equal(t, "classified wifi", entry.Message)
	assert.Equal(t, zapcore.DebugLevel, entry.Level)
}

func TestCategoryLoggers_CategoryToggle(t *testing.T) {
	logs := observe(t, Options{DebugMode: true, Categories: map[string]bool{"store": false}})

	StoreDebug("hidden")
	SessionDebug("visible")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "session", logs.All()[0].LoggerName)
	assert.True(t, IsCategoryEnabled(CategoryUX), "unlisted categories default to enabled")
}

func TestLogger_WithAddsFields(t *testing.T) {
	logs := observe(t, Options{DebugMode: true})

	Get(CategorySession).With("session_id", "abc").Info("hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "abc", logs.All()[0].ContextMap()["session_id"])
}

func TestTimer_StopWithThreshold(t *testing.T) {
	logs := observe(t, Options{DebugMode: true})

	timer := StartTimer(CategoryStore, "save")
	timer.start = time.Now().Add(-time.Second)
	timer.StopWithThreshold(10 * time.Millisecond)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
	assert.Contains(t, logs.All()[0].Message, "save took")
}

func TestInitialize_WritesToDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() { SetRoot(nil, Options{}) })

	require.NoError(t, Initialize(Options{Level: "debug", DebugMode: true, Dir: dir}))
	Boot("ready")
	CloseAll()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_chatbot.log"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "ready")
}

func TestInitialize_RejectsBadLevel(t *testing.T) {
	t.Cleanup(func() { SetRoot(nil, Options{}) })
	assert.Error(t, Initialize(Options{Level: "loud"}))
}
