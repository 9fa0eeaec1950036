package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		fullPath := filepath.Join(dir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
	}
}

func relPaths(dumps []DumpFile) []string {
	paths := make([]string, len(dumps))
	for i, d := range dumps {
		paths[i] = filepath.ToSlash(d.RelPath)
	}
	return paths
}

func TestWalkDumps(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"a.bgv":              "x",
		"run1/b.bgv":         "xy",
		"run1/C.BGV":         "xyz",
		"run1/notes.txt":     "not a dump",
		"run2/old/d.bgv":     "x",
		"run2/e.bgv":         "x",
		".bgv/index/f.bgv":   "hidden",
		"run3/keep.bgv":      "x",
		"run3/scratch-1.bgv": "x",
		IgnoreFile:           "# compiler scratch\nold/\n\nscratch-*.bgv\n",
	})

	t.Run("IgnoreFile", func(t *testing.T) {
		dumps, err := WalkDumps(tmpDir, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"a.bgv",
			"run1/C.BGV",
			"run1/b.bgv",
			"run2/e.bgv",
			"run3/keep.bgv",
		}, relPaths(dumps))
	})

	t.Run("ExtraPatterns", func(t *testing.T) {
		dumps, err := WalkDumps(tmpDir, []string{"run1/"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a.bgv", "run2/e.bgv", "run3/keep.bgv"}, relPaths(dumps))
	})

	t.Run("Sizes", func(t *testing.T) {
		dumps, err := WalkDumps(filepath.Join(tmpDir, "run1"), nil)
		require.NoError(t, err)
		require.Len(t, dumps, 2)
		assert.Equal(t, int64(3), dumps[0].Size)
		assert.Equal(t, int64(2), dumps[1].Size)
		assert.Equal(t, filepath.Join(tmpDir, "run1", "C.BGV"), dumps[0].Path)
	})
}

func TestWalkDumps_MissingDir(t *testing.T) {
	t.Parallel()

	_, err := WalkDumps(filepath.Join(t.TempDir(), "absent"), nil)
	assert.Error(t, err)
}

func TestIsDump(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{"graal.bgv", true},
		{"GRAAL.BGV", true},
		{"graal.bgv.gz", false},
		{"bgv", false},
		{"graal.cfg", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isDump(tt.name), tt.name)
	}
}
