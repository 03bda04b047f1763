package incremental_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fern-lang/fernc/internal/testutil"
)

// chainFiles builds a three-module chain: Top imports Mid imports Base, plus
// an independent Lone module.
func chainFiles() map[string]string {
	return map[string]string{
		"fern.hcl": `
project {
  name = "demo"
  src  = "src"
}

bundle {
  output             = "dist/app.js"
  all_source_modules = true
}
`,
		"src/Top.fn": `module Top

import Mid

export top

function top() { return Mid.mid() + 1; }
`,
		"src/Mid.fn": `module Mid

import Base

export mid

function mid() { return Base.base() + 1; }
`,
		"src/Base.fn": `module Base

export base

function base() { return 1; }
`,
		"src/Lone.fn": `module Lone

export lone

function lone() { return 0; }
`,
	}
}

func TestDevBuild_SecondRunIsFullyCached(t *testing.T) {
	// Arrange
	dir := testutil.WriteProject(t, chainFiles())

	// Act
	first := testutil.RunPipeline(t, dir, "dev", 4)
	second := testutil.RunPipeline(t, dir, "dev", 4)

	// Assert
	require.NoError(t, first.Err)
	assert.Equal(t, []string{"Base", "Lone", "Mid", "Top"}, first.Result.Compiled)

	require.NoError(t, second.Err)
	assert.Empty(t, second.Result.Compiled)
	assert.Equal(t, []string{"Base", "Lone", "Mid", "Top"}, second.Result.Skipped)
	assert.Equal(t, first.Artifact, second.Artifact, "a cached build must link identical bytes")
}

func TestDevBuild_TouchedModuleRebuildsItsDependents(t *testing.T) {
	// Arrange
	dir := testutil.WriteProject(t, chainFiles())
	require.NoError(t, testutil.RunPipeline(t, dir, "dev", 4).Err)

	// Act: touching Mid must rebuild Mid and Top, but not Base or Lone.
	testutil.Touch(t, filepath.Join(dir, "src", "Mid.fn"))
	res := testutil.RunPipeline(t, dir, "dev", 4)

	// Assert
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"Mid", "Top"}, res.Result.Compiled)
	assert.Equal(t, []string{"Base", "Lone"}, res.Result.Skipped)
}

func TestDevBuild_TouchedForeignFileRebuildsItsModule(t *testing.T) {
	// Arrange
	dir := testutil.WriteProject(t, map[string]string{
		"fern.hcl": `
project {
  name     = "demo"
  src      = "src"
  foreigns = "src/**/*.js"
}

bundle {
  output             = "dist/app.js"
  all_source_modules = true
}
`,
		"src/Clock.fn": `module Clock

foreign import now

export now
`,
		"src/Clock.js": `// module Clock
exports.now = function() { return 1; };
`,
	})
	require.NoError(t, testutil.RunPipeline(t, dir, "dev", 4).Err)

	// Act
	testutil.Touch(t, filepath.Join(dir, "src", "Clock.js"))
	res := testutil.RunPipeline(t, dir, "dev", 4)

	// Assert
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"Clock"}, res.Result.Compiled)
}

func TestProdBuild_NeverUsesTheCache(t *testing.T) {
	// Arrange: warm the disk cache first, then run production.
	dir := testutil.WriteProject(t, chainFiles())
	require.NoError(t, testutil.RunPipeline(t, dir, "dev", 4).Err)

	// Act
	res := testutil.RunPipeline(t, dir, "prod", 4)

	// Assert: everything recompiles regardless of the warm cache.
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"Base", "Lone", "Mid", "Top"}, res.Result.Compiled)
	assert.Empty(t, res.Result.Skipped)
}

func TestDevBuild_ColdCacheAfterDeletion(t *testing.T) {
	// Arrange
	dir := testutil.WriteProject(t, chainFiles())
	first := testutil.RunPipeline(t, dir, "dev", 4)
	require.NoError(t, first.Err)

	// Act: wiping the cache root between invocations is allowed; the next
	// build is simply cold.
	testutil.RemoveCache(t, dir)
	res := testutil.RunPipeline(t, dir, "dev", 4)

	// Assert
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"Base", "Lone", "Mid", "Top"}, res.Result.Compiled)
	assert.Equal(t, first.Artifact, res.Artifact)
}
