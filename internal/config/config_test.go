package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "custom_nodes", cfg.Paths.NodesRoot)
	assert.Equal(t, "uv", cfg.Installer.Binary)
	assert.True(t, cfg.Installer.SystemSite)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "Takumi-Installer/2.0", cfg.Telemetry.UserAgent)
	assert.Empty(t, cfg.Paths.KnowledgeFile, "knowledge path resolves through the meta root by default")
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "takumi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
paths:
  nodes_root: /srv/comfy/custom_nodes
installer:
  install_timeout: 30m
  python: /usr/bin/python3.11
telemetry:
  enabled: false
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/comfy/custom_nodes", cfg.Paths.NodesRoot)
	assert.Equal(t, "/usr/bin/python3.11", cfg.Installer.Python)
	assert.Equal(t, 30*time.Minute, cfg.GetInstallTimeout())
	assert.False(t, cfg.Telemetry.Enabled)

	// Untouched sections keep their defaults.
	assert.Equal(t, "uv", cfg.Installer.Binary)
	assert.Equal(t, filepath.Join("data", "takumi.db"), cfg.Paths.DatabasePath)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "takumi.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths: [not: a: map"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TAKUMI_NODES_ROOT", "/env/nodes")
	t.Setenv("TAKUMI_TELEMETRY_DISABLED", "1")
	t.Setenv("TAKUMI_TELEMETRY_URL", "https://collector.internal/logs")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/env/nodes", cfg.Paths.NodesRoot)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "https://collector.internal/logs", cfg.Telemetry.Endpoint)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	t.Setenv("TAKUMI_RECIPE", "/env/recipe.json")

	path := filepath.Join(t.TempDir(), "takumi.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths:\n  recipe_path: /file/recipe.json\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/env/recipe.json", cfg.Paths.RecipePath)
}

func TestDotEnvPreload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TAKUMI_DB=/dotenv/takumi.db\n"), 0644))
	t.Chdir(dir)
	defer os.Unsetenv("TAKUMI_DB")

	cfg, err := Load("absent.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/dotenv/takumi.db", cfg.Paths.DatabasePath)
}

func TestDurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Installer.InstallTimeout = "not a duration"
	cfg.Installer.ProbeTimeout = ""
	cfg.Telemetry.Timeout = "soon"

	assert.Equal(t, 15*time.Minute, cfg.GetInstallTimeout())
	assert.Equal(t, 60*time.Second, cfg.GetProbeTimeout())
	assert.Equal(t, 15*time.Second, cfg.GetTelemetryTimeout())
}

func TestZeroDisablesInstallTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Installer.InstallTimeout = "0"
	assert.Equal(t, time.Duration(0), cfg.GetInstallTimeout())
}
