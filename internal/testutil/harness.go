// Package testutil provides the shared harness for integration tests: it
// materializes a project from an in-memory file map, runs the pipeline in
// either mode, and captures artifact, result, and log output.
package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fern-lang/fernc/internal/build"
	"github.com/fern-lang/fernc/internal/config"
	"github.com/fern-lang/fernc/internal/ctxlog"
	"github.com/fern-lang/fernc/internal/frontend"
	"github.com/fern-lang/fernc/internal/pipeline"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// BuildResult holds the outcomes of one pipeline invocation.
type BuildResult struct {
	Artifact  []byte
	Result    *build.Result
	Err       error
	LogOutput string
}

// WriteProject materializes the given files under a fresh temporary
// directory and returns its path. Keys are paths relative to the project
// root; a "fern.hcl" entry is expected among them.
func WriteProject(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// RunPipeline loads the project file under dir and runs one build in the
// given mode ("dev" or "prod"). The directory persists between calls, so
// consecutive invocations exercise the disk cache.
func RunPipeline(t *testing.T, dir, mode string, workers int) *BuildResult {
	t.Helper()

	logBuffer := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(logBuffer, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	model, err := config.Load(ctx, filepath.Join(dir, "fern.hcl"))
	require.NoError(t, err, "project file must load")

	pl := pipeline.New(model, dir, frontend.New(), workers)

	var artifact []byte
	var result *build.Result
	switch mode {
	case "prod":
		artifact, result, err = pl.Production(ctx)
	case "dev":
		artifact, result, err = pl.Dev(ctx)
	default:
		t.Fatalf("unknown mode %q", mode)
	}

	return &BuildResult{
		Artifact:  artifact,
		Result:    result,
		Err:       err,
		LogOutput: logBuffer.String(),
	}
}

// RemoveCache deletes the project's disk cache root, forcing the next
// development build to run cold.
func RemoveCache(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.RemoveAll(filepath.Join(dir, config.DefaultCacheDir)))
}

// Touch moves a file's modification time past every artifact the previous
// build produced, marking it stale without sleeping.
func Touch(t *testing.T, path string) {
	t.Helper()
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
}
