package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8475", cfg.ListenAddr)
	assert.Equal(t, "fingerprints.db", cfg.DatabasePath)
	assert.Equal(t, BackendEmulator, cfg.Device.Backend)
	assert.Equal(t, 2000, cfg.Device.MemoryCapacity)
	assert.Equal(t, 55, cfg.Device.MatchThreshold)
	assert.Equal(t, 3, cfg.Workflow.SampleCount)
	assert.Equal(t, 15, cfg.Workflow.CaptureTimeoutSecs)
	assert.True(t, filepath.IsAbs(cfg.PreviewDir))
}

func TestLoadConfigFromTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	contents := `
listen_addr = ":9000"
database_path = "custom.db"

[device]
match_threshold = 70

[workflow]
sample_count = 5
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	t.Setenv("ZKFP_CONFIG", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "custom.db", cfg.DatabasePath)
	assert.Equal(t, 70, cfg.Device.MatchThreshold)
	assert.Equal(t, 5, cfg.Workflow.SampleCount)
	// untouched keys keep their defaults
	assert.Equal(t, BackendEmulator, cfg.Device.Backend)
	assert.Equal(t, 15, cfg.Workflow.CaptureTimeoutSecs)
}

func TestLoadConfigMissingExplicitFileFails(t *testing.T) {
	t.Setenv("ZKFP_CONFIG", filepath.Join(t.TempDir(), "absent.toml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "base.toml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr = \":9000\"\n"), 0o644))
	t.Setenv("ZKFP_CONFIG", path)
	t.Setenv("ZKFP_LISTEN_ADDR", ":9100")
	t.Setenv("ZKFP_SAMPLE_COUNT", "4")
	t.Setenv("ZKFP_MATCH_THRESHOLD", "62")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.ListenAddr)
	assert.Equal(t, 4, cfg.Workflow.SampleCount)
	assert.Equal(t, 62, cfg.Device.MatchThreshold)
}

func TestLoadConfigInvalidIntFallsBack(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ZKFP_SAMPLE_COUNT", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workflow.SampleCount)
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ZKFP_DEVICE_BACKEND", "telepathy")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigZKFPBackendRequiresThreeSamples(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ZKFP_DEVICE_BACKEND", BackendZKFP)
	t.Setenv("ZKFP_SAMPLE_COUNT", "5")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample_count")

	t.Setenv("ZKFP_SAMPLE_COUNT", "3")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, BackendZKFP, cfg.Device.Backend)
}
