package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/bgv-go/internal/bgv"
	"github.com/Benny93/bgv-go/internal/passes"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bgv.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, cfg.VersionCheck)
	assert.Equal(t, bgv.DefaultMaxDepth, cfg.MaxDepth)
	assert.Equal(t, passes.DefaultControlEdges, cfg.ControlEdges)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
version_check = false
max_depth = 32
keep_blocks = true
control_edges = ["next", "ends"]
index_dir = "/tmp/idx"
log_level = "debug"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	want := Default()
	want.VersionCheck = false
	want.MaxDepth = 32
	want.KeepBlocks = true
	want.ControlEdges = []string{"next", "ends"}
	want.IndexDir = "/tmp/idx"
	want.LogLevel = "debug"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, cfg.ParserOptions(), 2)
	assert.Equal(t, []string{"next", "ends"}, cfg.PassOptions().ControlEdges)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"Syntax", "max_depth = ", "parsing config"},
		{"UnknownKey", "colour = true", `unknown config key "colour"`},
		{"ZeroDepth", "max_depth = 0", "max_depth must be positive"},
		{"WrongType", `max_depth = "deep"`, "parsing config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParserOptions_Default(t *testing.T) {
	t.Parallel()

	assert.Len(t, Default().ParserOptions(), 1)
}
