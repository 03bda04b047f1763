package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProjectFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fern.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FullConfiguration(t *testing.T) {
	// Arrange
	path := writeProjectFile(t, `
project {
  name     = "demo"
  src      = "src"
  foreigns = "src/**/*.js"
}

dependency "prelude" {
  sources  = "vendor/prelude/**/*.fn"
  foreigns = "vendor/prelude/**/*.js"
}

bundle {
  output    = "dist/app.js"
  roots     = ["Main"]
  namespace = "App"
  compress  = true
}

dev {
  cache_dir = ".cache"
}
`)

	// Act
	model, err := Load(context.Background(), path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "demo", model.Project.Name)
	assert.Equal(t, "src", model.Project.Src)
	assert.Equal(t, "src/**/*.js", model.Project.Foreigns)

	require.Len(t, model.Dependencies, 1)
	assert.Equal(t, "prelude", model.Dependencies[0].Name)
	assert.Equal(t, "vendor/prelude/**/*.fn", model.Dependencies[0].Sources)

	assert.Equal(t, "dist/app.js", model.Bundle.Output)
	assert.Equal(t, []string{"Main"}, model.Bundle.Roots)
	assert.Equal(t, "App", model.Bundle.Namespace)
	assert.True(t, model.Bundle.Compress)
	assert.False(t, model.Bundle.AllSourceModules)

	assert.Equal(t, ".cache", model.Dev.CacheDir)
}

func TestLoad_MinimalConfigurationDefaults(t *testing.T) {
	path := writeProjectFile(t, `
project {
  name = "demo"
  src  = "src"
}

bundle {
  output             = "dist/app.js"
  all_source_modules = true
}
`)

	model, err := Load(context.Background(), path)

	require.NoError(t, err)
	assert.True(t, model.Bundle.AllSourceModules)
	assert.Empty(t, model.Bundle.Roots)
	assert.Equal(t, DefaultCacheDir, model.Dev.CacheDir)
	assert.Empty(t, model.Dependencies)
}

func TestLoad_RootsAndAllSourceModulesAreExclusive(t *testing.T) {
	path := writeProjectFile(t, `
project {
  name = "demo"
  src  = "src"
}

bundle {
  output             = "dist/app.js"
  roots              = ["Main"]
  all_source_modules = true
}
`)

	_, err := Load(context.Background(), path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of roots and all_source_modules")
}

func TestLoad_NeitherRootsNorAllSourceModules(t *testing.T) {
	path := writeProjectFile(t, `
project {
  name = "demo"
  src  = "src"
}

bundle {
  output = "dist/app.js"
}
`)

	_, err := Load(context.Background(), path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of roots and all_source_modules")
}

func TestLoad_MissingBundleBlock(t *testing.T) {
	path := writeProjectFile(t, `
project {
  name = "demo"
  src  = "src"
}
`)

	_, err := Load(context.Background(), path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required bundle block")
}

func TestLoad_DependencyWithoutSources(t *testing.T) {
	path := writeProjectFile(t, `
project {
  name = "demo"
  src  = "src"
}

dependency "broken" {
  foreigns = "vendor/**/*.js"
}

bundle {
  output             = "dist/app.js"
  all_source_modules = true
}
`)

	_, err := Load(context.Background(), path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), `dependency "broken" has no sources pattern`)
}

func TestLoad_SyntaxErrorIsFatal(t *testing.T) {
	path := writeProjectFile(t, "project {\n")

	_, err := Load(context.Background(), path)

	require.Error(t, err)
}

func TestLoad_MissingFileIsFatal(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.hcl"))

	require.Error(t, err)
}
