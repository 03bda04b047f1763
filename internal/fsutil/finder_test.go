package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
}

func TestFindFilesByExtension(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.fn", "a.fn", "nested/c.fn", "ignore.js", "nested/ignore.txt")

	paths, err := FindFilesByExtension(dir, ".fn")

	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.fn"),
		filepath.Join(dir, "b.fn"),
		filepath.Join(dir, "nested", "c.fn"),
	}, paths)
}

func TestFindFilesByExtension_MissingDir(t *testing.T) {
	_, err := FindFilesByExtension(filepath.Join(t.TempDir(), "absent"), ".fn")

	require.Error(t, err)
}

func TestFindByPattern(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "vendor/lib/A.js", "vendor/lib/deep/B.js", "vendor/other/C.js", "vendor/lib/D.txt")

	paths, err := FindByPattern(dir, "vendor/lib/**/*.js")

	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "vendor", "lib", "A.js"),
		filepath.Join(dir, "vendor", "lib", "deep", "B.js"),
	}, paths)
}

func TestFindByPattern_NoMatches(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.fn")

	paths, err := FindByPattern(dir, "nothing/**/*.js")

	require.NoError(t, err)
	assert.Empty(t, paths)
}
