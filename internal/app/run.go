package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/klauspost/compress/gzip"

	"github.com/fern-lang/fernc/internal/build"
	"github.com/fern-lang/fernc/internal/ctxlog"
	"github.com/fern-lang/fernc/internal/frontend"
	"github.com/fern-lang/fernc/internal/pipeline"
)

// Run executes one build in the configured mode and writes the artifact.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "mode", a.config.Mode)

	pl := pipeline.New(a.model, a.baseDir, frontend.New(), a.config.WorkerCount)
	outputPath := filepath.Join(a.baseDir, a.model.Bundle.Output)

	switch a.config.Mode {
	case ModeProd:
		artifact, result, err := pl.Production(ctx)
		if err != nil {
			a.logBuildError(err)
			return fmt.Errorf("production build failed: %w", err)
		}
		a.logWarnings(result.Warnings)
		a.logger.Info("Production build complete.",
			"compiled", len(result.Compiled), "artifact_bytes", len(artifact))
		return a.writeArtifact(outputPath, artifact, a.model.Bundle.Compress)

	case ModeDev:
		artifact, result, err := pl.Dev(ctx)
		if result != nil {
			a.logWarnings(result.Warnings)
		}
		if err != nil {
			// The stand-in payload keeps the iteration loop alive: the
			// failure is logged and displayed, never fatal in dev mode.
			a.logBuildError(err)
			a.logger.Warn("Development build failed, writing stand-in payload.")
			return a.writeArtifact(outputPath, artifact, false)
		}
		a.logger.Info("Development build complete.",
			"compiled", len(result.Compiled), "cached", len(result.Skipped), "artifact_bytes", len(artifact))
		return a.writeArtifact(outputPath, artifact, false)

	default:
		return fmt.Errorf("unknown mode %q", a.config.Mode)
	}
}

func (a *App) logBuildError(err error) {
	if ce, ok := err.(*build.CompileError); ok {
		a.logger.Error("Build failed with diagnostics.", "diagnostics", build.RenderDiagnostics(ce.Diags))
		return
	}
	a.logger.Error("Build failed.", "error", err)
}

func (a *App) logWarnings(warnings hcl.Diagnostics) {
	for _, w := range warnings {
		if w.Subject != nil {
			a.logger.Warn(w.Summary, "file", w.Subject.Filename, "line", w.Subject.Start.Line)
		} else {
			a.logger.Warn(w.Summary)
		}
	}
}

// writeArtifact writes the bundle, creating parent directories as needed,
// and optionally a pre-compressed .gz copy next to it.
func (a *App) writeArtifact(path string, artifact []byte, compress bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, artifact, 0o644); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	a.logger.Debug("Artifact written.", "path", path)

	if !compress {
		return nil
	}
	f, err := os.Create(path + ".gz")
	if err != nil {
		return fmt.Errorf("creating compressed artifact: %w", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if _, err := zw.Write(artifact); err != nil {
		return fmt.Errorf("compressing artifact: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing compressed artifact: %w", err)
	}
	a.logger.Debug("Compressed artifact written.", "path", path+".gz")
	return nil
}
