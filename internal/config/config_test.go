package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/flowcanvas/pkg/api"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FLOWCANVAS_CONFIG_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, api.DefaultZoomBounds(), cfg.ZoomBounds())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FLOWCANVAS_CONFIG_FILE", "")
	t.Setenv("FLOWCANVAS_BASE_PATH", "https://n8n.example.com/rest")
	t.Setenv("FLOWCANVAS_ZOOM_MIN", "0.5")
	t.Setenv("FLOWCANVAS_ZOOM_MAX", "2")
	t.Setenv("FLOWCANVAS_DEFAULT_ALLOW", "true")
	t.Setenv("FLOWCANVAS_UNDO_LIMIT", "10")
	t.Setenv("FLOWCANVAS_STATE_BACKEND", "sqlite")
	t.Setenv("FLOWCANVAS_SAVE_BACKOFF", "1s")
	t.Setenv("FLOWCANVAS_SAVE_MAX_ATTEMPTS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://n8n.example.com/rest", cfg.BasePath)
	assert.Equal(t, api.ZoomBounds{Min: 0.5, Max: 2}, cfg.ZoomBounds())
	assert.True(t, cfg.DefaultAllow)
	assert.Equal(t, 10, cfg.UndoLimit)
	assert.Equal(t, BackendSQLite, cfg.StateBackend)
	assert.Equal(t, time.Second, cfg.SaveBackoff)
	assert.Equal(t, 3, cfg.SaveMaxAttempts, "unparsable values keep the fallback")
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowcanvas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_path: /from-file
state_backend: redis
zoom_max: 3
save_backoff: 50ms
`), 0o600))

	t.Setenv("FLOWCANVAS_CONFIG_FILE", path)
	t.Setenv("FLOWCANVAS_BASE_PATH", "/from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/from-env", cfg.BasePath)
	assert.Equal(t, BackendRedis, cfg.StateBackend)
	assert.Equal(t, 3.0, cfg.ZoomMax)
	assert.Equal(t, api.DefaultZoomMin, cfg.ZoomMin, "keys missing from the file keep defaults")
	assert.Equal(t, 50*time.Millisecond, cfg.SaveBackoff)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("FLOWCANVAS_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("zoom_min: [1, 2"), 0o600))
		t.Setenv("FLOWCANVAS_CONFIG_FILE", path)
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Setenv("FLOWCANVAS_CONFIG_FILE", "")
		t.Setenv("FLOWCANVAS_ZOOM_MIN", "5")
		t.Setenv("FLOWCANVAS_STATE_BACKEND", "etcd")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "zoom bounds")
		assert.Contains(t, err.Error(), `unknown state backend "etcd"`)
	})
}

func TestConfig_Helpers(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 3, cfg.SaveMaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.SaveBackoff)

	for level, want := range map[string]string{"debug": "DEBUG", "WARN": "WARN", "error": "ERROR", "chatty": "INFO"} {
		cfg.LogLevel = level
		assert.Equal(t, want, cfg.SlogLevel().String())
	}
}
