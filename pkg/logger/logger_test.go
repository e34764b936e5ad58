package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestInfoCF_ComponentAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := L()
	SetLogger(zap.New(core))
	defer SetLogger(prev)

	InfoCF("tools", "tool executed", map[string]interface{}{
		"tool":  "read_csv",
		"bytes": 42,
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "tool executed", entries[0].Message)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "tools", ctx["component"])
	assert.Equal(t, "read_csv", ctx["tool"])
	assert.EqualValues(t, 42, ctx["bytes"])
}

func TestLevelsFilter(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	prev := L()
	SetLogger(zap.New(core))
	defer SetLogger(prev)

	DebugCF("agent", "debug", nil)
	InfoCF("agent", "info", nil)
	WarnCF("agent", "warn", nil)
	ErrorCF("agent", "error", nil)

	assert.Equal(t, 2, logs.Len())
}

func TestInit_File(t *testing.T) {
	prev := L()
	defer SetLogger(prev)

	path := filepath.Join(t.TempDir(), "logs", "agent.log")
	require.NoError(t, Init(Options{Level: "info", Format: "json", File: path}))

	InfoCF("cli", "hello file", map[string]interface{}{"k": "v"})
	_ = Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "hello file"))
}
