package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gaze.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoad_AppliesDefaultsForMissingFields(t *testing.T) {
	path := writeConfig(t, "data_dir: /tmp/gaze-test\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/gaze-test", cfg.DataDir)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.BindAddr)
	assert.Equal(t, "./models", cfg.Vision.ModelsDir)
	assert.Equal(t, 0.25, cfg.Vision.DetectionThreshold)
	assert.Equal(t, 0.5, cfg.Vision.FaceDetectThreshold)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\nlogging:\n  level: warn\n")

	t.Setenv("GAZE_SERVER_PORT", "9100")
	t.Setenv("GAZE_LOG_LEVEL", "debug")
	t.Setenv("GAZE_BEARER_TOKEN", "secret-token")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "secret-token", cfg.Server.BearerToken)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}
