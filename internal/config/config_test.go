package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "project.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestReadDefaults(t *testing.T) {
	path := writeConfig(t, `
[project]

[settings]
main = "main.lua"
`)
	cfg, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, "unnamed", cfg.Project.Name())
	assert.Equal(t, "main.lua", cfg.Settings.Main)
	assert.Equal(t, 1024, cfg.Settings.BufferLength())
	assert.Equal(t, 44100, cfg.Settings.ProjectSampleRate())
	assert.Equal(t, Manual, cfg.Settings.WorkflowMode())
}

func TestReadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
[project]
name = "my-set"

[settings]
main = "main.lua"
buffer_length = 512
project_samplerate = 48000
workflow = "stream"
`)
	cfg, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, "my-set", cfg.Project.Name())
	assert.Equal(t, 512, cfg.Settings.BufferLength())
	assert.Equal(t, 48000, cfg.Settings.ProjectSampleRate())
	assert.Equal(t, Stream, cfg.Settings.WorkflowMode())
	assert.Equal(t, "stream", cfg.Settings.WorkflowMode().String())
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestReadUnknownWorkflowFallsBackToManual(t *testing.T) {
	path := writeConfig(t, `
[project]

[settings]
main = "main.lua"
workflow = "bogus"
`)
	cfg, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, Manual, cfg.Settings.WorkflowMode())
}
