package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "traceprocd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadWithNoPathReturnsDefaults(t *testing.T) {
	m, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), m.GetConfig().Get())
}

func TestLoadOverridesOnlyFieldsPresentInFile(t *testing.T) {
	path := writeConfigFile(t, "worker_concurrency: 8\nlog_level: debug\n")

	m, err := Load(path)
	require.NoError(t, err)

	cfg := m.GetConfig().Get()
	assert.Equal(t, 8, cfg.WorkerConcurrency)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, SortingModeDefaultHeuristics, cfg.SortingMode)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfigFile(t, "worker_concurrency: 0\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsNonYAMLExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "traceprocd.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestApplyFlagOverrides(t *testing.T) {
	m, err := Load("")
	require.NoError(t, err)

	require.NoError(t, m.ApplyFlagOverrides(16, "warn"))
	cfg := m.GetConfig().Get()
	assert.Equal(t, 16, cfg.WorkerConcurrency)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestApplyFlagOverridesRejectsInvalidOverride(t *testing.T) {
	m, err := Load("")
	require.NoError(t, err)

	err = m.ApplyFlagOverrides(0, "not-a-level")
	require.Error(t, err)
	assert.Equal(t, "info", m.GetConfig().Get().LogLevel)
}
