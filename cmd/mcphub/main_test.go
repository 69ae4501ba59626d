package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcphub/mcphub/internal/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	var out bytes.Buffer
	root := newRootCommand(config.NewViper())
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestToolsCommand(t *testing.T) {
	out, err := run(t, "tools", "cpp-analyzer")
	require.NoError(t, err)
	assert.Contains(t, out, "cpp-analyzer 1.0.0")
	assert.Contains(t, out, "run_cppcheck")
	assert.Contains(t, out, "path (string) required")

	out, err = run(t, "tools", "sp-metadata")
	require.NoError(t, err)
	assert.Contains(t, out, "SP Metadata MCP Server 1.0.0")
	assert.Contains(t, out, "get_sp_list")
	assert.Contains(t, out, "refresh (boolean)")
	assert.NotContains(t, out, "refresh (boolean) required")
}

func TestUnknownService(t *testing.T) {
	_, err := run(t, "tools", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown service "nope"`)

	_, err = run(t, "serve", "nope")
	require.Error(t, err)
}

func TestInstallCommand(t *testing.T) {
	settings := filepath.Join(t.TempDir(), "settings.json")

	out, err := run(t, "install", "cpp-analyzer", "--settings", settings)
	require.NoError(t, err)
	assert.Contains(t, out, "registered cpp-analyzer -> http://localhost:8001/")

	data, err := os.ReadFile(settings)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mcpServers":{"cpp-analyzer":{"httpUrl":"http://localhost:8001/"}}}`, string(data))

	out, err = run(t, "install", "cpp-analyzer", "--settings", settings)
	require.NoError(t, err)
	assert.Contains(t, out, "already points at")

	_, err = run(t, "install", "sp-metadata", "--settings", settings, "--name", "procs", "--url", "http://db-tools:9000/")
	require.NoError(t, err)
	data, err = os.ReadFile(settings)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mcpServers":{
		"cpp-analyzer":{"httpUrl":"http://localhost:8001/"},
		"procs":{"httpUrl":"http://db-tools:9000/"}
	}}`, string(data))
}

func TestServeRejectsInvalidConfiguration(t *testing.T) {
	t.Setenv("LOG_LEVEL", "chatty")

	_, err := run(t, "serve", "cpp-analyzer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "log_level")
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger("debug")
	require.NoError(t, err)

	_, err = newLogger("loud")
	require.Error(t, err)
}
