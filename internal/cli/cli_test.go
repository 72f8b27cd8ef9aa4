package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/flowcanvas"
	"github.com/petrijr/flowcanvas/internal/config"
	"github.com/petrijr/flowcanvas/internal/persistence"
	"github.com/petrijr/flowcanvas/pkg/api"
)

// sqliteEnv points every command at a fresh SQLite file so state survives
// between Execute calls.
func sqliteEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FLOWCANVAS_CONFIG_FILE", "")
	t.Setenv("FLOWCANVAS_STATE_BACKEND", "sqlite")
	t.Setenv("FLOWCANVAS_SQLITE_PATH", filepath.Join(t.TempDir(), "state.db"))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "flowcanvas", cmd.Use)

	for _, path := range [][]string{
		{"flags", "list"}, {"flags", "get"}, {"flags", "set"},
		{"viewport", "list"}, {"viewport", "show"}, {"viewport", "reset"},
	} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	sqliteEnv(t)
	_, err := run(t, "flags", "list", "--format", "yaml")
	assert.ErrorContains(t, err, `invalid format "yaml"`)
}

func TestFlags_SetGetList(t *testing.T) {
	sqliteEnv(t)

	out, err := run(t, "flags", "set", "enterpriseAuditLogs", "true")
	require.NoError(t, err)
	assert.Equal(t, "enterpriseAuditLogs=true\n", out)

	_, err = run(t, "flags", "set", "beta", "false")
	require.NoError(t, err)

	out, err = run(t, "flags", "get", "enterpriseAuditLogs")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = run(t, "flags", "get", "neverSet")
	require.NoError(t, err)
	assert.Equal(t, "false\n", out)

	out, err = run(t, "flags", "list")
	require.NoError(t, err)
	assert.Equal(t, "beta=false\nenterpriseAuditLogs=true\n", out)

	out, err = run(t, "flags", "list", "--format", "json")
	require.NoError(t, err)
	var values map[string]bool
	require.NoError(t, json.Unmarshal([]byte(out), &values))
	assert.Equal(t, map[string]bool{"beta": false, "enterpriseAuditLogs": true}, values)
}

func TestFlags_SetRejectsNonBoolean(t *testing.T) {
	sqliteEnv(t)
	_, err := run(t, "flags", "set", "beta", "maybe")
	assert.ErrorContains(t, err, `invalid flag value "maybe"`)
}

func TestFlags_UnknownBackend(t *testing.T) {
	sqliteEnv(t)
	_, err := run(t, "flags", "list", "--backend", "etcd")
	assert.ErrorContains(t, err, `unknown state backend "etcd"`)
}

func TestViewport_ShowDefaultWhenUnsaved(t *testing.T) {
	sqliteEnv(t)

	out, err := run(t, "viewport", "show", "w1")
	require.NoError(t, err)
	assert.Equal(t, "x=0 y=0 zoom=1 (default)\n", out)

	out, err = run(t, "viewport", "list")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestViewport_ResetMissingIsFine(t *testing.T) {
	sqliteEnv(t)
	_, err := run(t, "viewport", "reset", "w1")
	require.NoError(t, err)
}

func TestViewport_ShowListReset(t *testing.T) {
	sqliteEnv(t)
	ctx := context.Background()

	cfg, err := config.Load()
	require.NoError(t, err)
	state, closeFn, err := flowcanvas.OpenStateStore(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, persistence.SaveValue(ctx, state, persistence.ViewportKey("w1"), api.Viewport{X: 12, Y: -4, Zoom: 1.5}))
	require.NoError(t, persistence.SaveValue(ctx, state, persistence.ViewportKey("w2"), api.Viewport{Zoom: 1}))
	require.NoError(t, closeFn())

	out, err := run(t, "viewport", "show", "w1")
	require.NoError(t, err)
	assert.Equal(t, "x=12 y=-4 zoom=1.5\n", out)

	out, err = run(t, "viewport", "show", "w1", "--format", "json")
	require.NoError(t, err)
	var entry viewportEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entry))
	assert.True(t, entry.Saved)
	assert.Equal(t, 1.5, entry.Viewport.Zoom)

	out, err = run(t, "viewport", "list")
	require.NoError(t, err)
	assert.Equal(t, "w1\nw2\n", out)

	_, err = run(t, "viewport", "reset", "w1")
	require.NoError(t, err)

	out, err = run(t, "viewport", "list")
	require.NoError(t, err)
	assert.Equal(t, "w2\n", out)
}
