package filter_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/idelchi/meshmark/internal/filter"
)

func touch(t *testing.T, root string, names ...string) {
	t.Helper()

	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
}

func rel(t *testing.T, root string, paths []string) []string {
	t.Helper()

	out := make([]string, len(paths))
	for i, path := range paths {
		r, err := filepath.Rel(root, path)
		require.NoError(t, err)

		out[i] = filepath.ToSlash(r)
	}

	return out
}

func TestResolve(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, root,
		"gear.stl",
		"GEAR2.STL",
		"notes.txt",
		"parts/bolt.stl",
		"parts/bolt.marked.stl",
		".cache/hidden.stl",
		"parts/.tmp-123",
	)

	tests := []struct {
		name    string
		sel     filter.Selection
		want    []string
		scanned int
	}{
		{
			name:    "no patterns takes everything visible",
			want:    []string{"GEAR2.STL", "gear.stl", "notes.txt", "parts/bolt.marked.stl", "parts/bolt.stl"},
			scanned: 5,
		},
		{
			name:    "include is case-sensitive",
			sel:     filter.Selection{Includes: []string{"*.stl"}},
			want:    []string{"gear.stl", "parts/bolt.marked.stl", "parts/bolt.stl"},
			scanned: 5,
		},
		{
			name:    "fold case",
			sel:     filter.Selection{Includes: []string{"*.stl"}, Excludes: []string{"*.marked.stl"}, FoldCase: true},
			want:    []string{"GEAR2.STL", "gear.stl", "parts/bolt.stl"},
			scanned: 5,
		},
		{
			name:    "exclude wins",
			sel:     filter.Selection{Includes: []string{"*.stl"}, Excludes: []string{"*/parts/*"}},
			want:    []string{"gear.stl"},
			scanned: 5,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			files, scanned, err := filter.Resolve([]string{root}, tc.sel)
			require.NoError(t, err)
			require.ElementsMatch(t, tc.want, rel(t, root, files))
			require.Equal(t, tc.scanned, scanned)
		})
	}
}

func TestResolveExplicitFilesBypassFilter(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, root, "notes.txt", "gear.stl")

	explicit := filepath.Join(root, "notes.txt")

	files, scanned, err := filter.Resolve(
		[]string{explicit, root, explicit},
		filter.Selection{Includes: []string{"*.stl"}},
	)
	require.NoError(t, err)
	require.Equal(t, []string{explicit, filepath.Join(root, "gear.stl")}, files)
	require.Equal(t, 4, scanned)
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, root, "notes.txt")

	_, _, err := filter.Resolve([]string{root}, filter.Selection{Includes: []string{"*.stl"}})
	require.ErrorIs(t, err, filter.ErrNoFiles)

	_, _, err = filter.Resolve([]string{root}, filter.Selection{Restrict: true})
	require.ErrorIs(t, err, filter.ErrNoFiles)

	_, _, err = filter.Resolve([]string{filepath.Join(root, "missing")}, filter.Selection{})
	require.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = filter.Resolve([]string{root}, filter.Selection{Includes: []string{"[stl"}})
	require.Error(t, err)

	_, _, err = filter.Resolve([]string{""}, filter.Selection{})
	require.Error(t, err)
}

func TestLoadPatterns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	jsonFile := filepath.Join(dir, "patterns.jsonc")
	require.NoError(t, os.WriteFile(jsonFile, []byte(`[
  // meshes only
  "*.stl",
  "./parts/*", /* trailing comma below */
]`), 0o644))

	patterns, err := filter.LoadPatterns(jsonFile)
	require.NoError(t, err)
	require.Equal(t, []string{"*.stl", "./parts/*"}, patterns)

	lineFile := filepath.Join(dir, "patterns.txt")
	require.NoError(t, os.WriteFile(lineFile, []byte("# meshes\n*.stl\n\n  archive/*  \n"), 0o644))

	patterns, err = filter.LoadPatterns(lineFile)
	require.NoError(t, err)
	require.Equal(t, []string{"*.stl", "archive/*"}, patterns)

	badFile := filepath.Join(dir, "bad.jsonc")
	require.NoError(t, os.WriteFile(badFile, []byte(`["*.stl", 3]`), 0o644))

	_, err = filter.LoadPatterns(badFile)
	require.Error(t, err)

	_, err = filter.LoadPatterns(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestFilterMatch(t *testing.T) {
	t.Parallel()

	flt, err := filter.NewFilter(filter.Selection{Includes: []string{"./parts/*"}})
	require.NoError(t, err)

	require.True(t, flt.Match("parts/gear.stl"))
	require.False(t, flt.Match("gear.stl"))
}
