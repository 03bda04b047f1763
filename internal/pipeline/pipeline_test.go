package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fern-lang/fernc/internal/build"
	"github.com/fern-lang/fernc/internal/config"
	"github.com/fern-lang/fernc/internal/frontend"
)

func singleModuleProject(t *testing.T) (*config.Model, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	source := "module Main\n\nexport main\n\nfunction main() { return 1; }\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "Main.fn"), []byte(source), 0o644))
	model := &config.Model{
		Project: &config.Project{Name: "demo", Src: "src"},
		Bundle:  &config.Bundle{Output: "dist/app.js", Roots: []string{"Main"}},
		Dev:     &config.Dev{CacheDir: config.DefaultCacheDir},
	}
	return model, dir
}

func TestProduction_PostProcessHookApplies(t *testing.T) {
	// Arrange
	model, dir := singleModuleProject(t)
	pl := New(model, dir, frontend.New(), 2)
	pl.PostProcess = func(artifact []byte) ([]byte, error) {
		return append([]byte("/* processed */\n"), artifact...), nil
	}

	// Act
	artifact, _, err := pl.Production(context.Background())

	// Assert
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(artifact), "/* processed */\n"))
}

func TestProduction_PostProcessFailureIsFatal(t *testing.T) {
	model, dir := singleModuleProject(t)
	pl := New(model, dir, frontend.New(), 2)
	pl.PostProcess = func([]byte) ([]byte, error) {
		return nil, fmt.Errorf("minifier exploded")
	}

	_, _, err := pl.Production(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "post-processing artifact")
}

func TestStandInPayload_RendersDiagnostics(t *testing.T) {
	err := &build.CompileError{Diags: hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  "missing module declaration",
		Subject:  &hcl.Range{Filename: "src/Bad.fn", Start: hcl.Pos{Line: 1}},
	}}}

	payload := string(StandInPayload(err))

	assert.Contains(t, payload, "// fernc build failure stand-in.")
	assert.Contains(t, payload, "console.error")
	assert.Contains(t, payload, "src/Bad.fn:1")
	assert.Contains(t, payload, "missing module declaration")
}

func TestStandInPayload_RendersPlainErrors(t *testing.T) {
	payload := string(StandInPayload(errors.New("no source modules found")))

	assert.Contains(t, payload, "no source modules found")
	assert.True(t, bytes.HasPrefix([]byte(payload), []byte("// fernc build failure stand-in.")))
}
