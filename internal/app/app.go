// Package app wires configuration, logging, and the build pipeline together
// and owns the lifecycle of one fernc invocation.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/fern-lang/fernc/internal/config"
	"github.com/fern-lang/fernc/internal/ctxlog"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	config  *Config
	model   *config.Model
	baseDir string
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger. A failure to load
// the project file is a fatal startup error and panics; the entrypoint
// recovers it into a clean exit message.
func NewApp(outW io.Writer, appConfig *Config) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := config.Load(ctx, appConfig.ProjectPath)
	if err != nil {
		panic(fmt.Errorf("failed to load project configuration: %w", err))
	}
	if appConfig.Output != "" {
		model.Bundle.Output = appConfig.Output
	}

	return &App{
		outW:    outW,
		logger:  logger,
		config:  appConfig,
		model:   model,
		baseDir: filepath.Dir(appConfig.ProjectPath),
	}
}

// Model returns the loaded project configuration. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}
