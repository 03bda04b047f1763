// Package pipeline composes discovery, the front end, the scheduler, a
// backend, and the bundler into the two operating modes: an incremental
// development build backed by the disk cache, and a one-shot production
// build in memory. The modes share every correctness-critical step and
// differ only in caching policy and error policy.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"

	"github.com/fern-lang/fernc/internal/build"
	"github.com/fern-lang/fernc/internal/bundle"
	"github.com/fern-lang/fernc/internal/config"
	"github.com/fern-lang/fernc/internal/ctxlog"
	"github.com/fern-lang/fernc/internal/diskstore"
	"github.com/fern-lang/fernc/internal/frontend"
	"github.com/fern-lang/fernc/internal/fsutil"
	"github.com/fern-lang/fernc/internal/memstore"
	"github.com/fern-lang/fernc/internal/module"
)

// SourceExt is the Fern source file extension.
const SourceExt = ".fn"

// Pipeline runs builds for one configured project.
type Pipeline struct {
	model    *config.Model
	baseDir  string
	compiler frontend.Compiler
	workers  int

	// PostProcess, when set, transforms the production artifact (for
	// example, a minifier). It is never applied to development builds.
	PostProcess func([]byte) ([]byte, error)
}

// New creates a pipeline rooted at baseDir (the directory of the project
// file, against which all configured paths and patterns resolve).
func New(model *config.Model, baseDir string, compiler frontend.Compiler, workers int) *Pipeline {
	return &Pipeline{model: model, baseDir: baseDir, compiler: compiler, workers: workers}
}

// Production performs a full rebuild in memory, bundles with dead-code
// elimination, and applies the post-processing hook. Any error is fatal to
// the whole build.
func (p *Pipeline) Production(ctx context.Context) ([]byte, *build.Result, error) {
	logger := ctxlog.FromContext(ctx)

	graph, parseWarnings, err := p.parse(ctx)
	if err != nil {
		return nil, nil, err
	}

	store := memstore.New(p.compiler, logger)
	result, err := build.NewScheduler(graph, store, p.workers).Run(ctx)
	if err != nil {
		return nil, nil, err
	}
	result.Warnings = append(parseWarnings, result.Warnings...)

	artifact, err := p.link(ctx, graph, store.Compiled())
	if err != nil {
		return nil, nil, err
	}

	if p.PostProcess != nil {
		artifact, err = p.PostProcess(artifact)
		if err != nil {
			return nil, nil, fmt.Errorf("post-processing artifact: %w", err)
		}
	}
	return artifact, result, nil
}

// Dev performs an incremental rebuild against the disk cache. Build and
// bundling errors are returned together with a displayable stand-in payload
// so callers can keep the iteration loop alive after a failed build.
func (p *Pipeline) Dev(ctx context.Context) ([]byte, *build.Result, error) {
	logger := ctxlog.FromContext(ctx)

	graph, parseWarnings, err := p.parse(ctx)
	if err != nil {
		return StandInPayload(err), nil, err
	}

	store, err := diskstore.New(graph, p.compiler, filepath.Join(p.baseDir, p.model.Dev.CacheDir), logger)
	if err != nil {
		return StandInPayload(err), nil, err
	}
	result, err := build.NewScheduler(graph, store, p.workers).Run(ctx)
	if err != nil {
		return StandInPayload(err), nil, err
	}
	result.Warnings = append(parseWarnings, result.Warnings...)

	compiled, err := store.LoadCompiled()
	if err != nil {
		return StandInPayload(err), result, err
	}
	artifact, err := p.link(ctx, graph, compiled)
	if err != nil {
		return StandInPayload(err), result, err
	}
	return artifact, result, nil
}

// parse discovers and header-parses all sources into the module graph.
// Front-end errors come back as a CompileError; warnings pass through.
func (p *Pipeline) parse(ctx context.Context) (*module.Graph, hcl.Diagnostics, error) {
	sources, foreigns, err := p.discover(ctx)
	if err != nil {
		return nil, nil, err
	}

	graph, diags := p.compiler.ParseModules(sources, foreigns)
	build.SortDiagnostics(diags)
	if diags.HasErrors() {
		return nil, nil, &build.CompileError{Diags: diags}
	}
	if graph.Len() == 0 {
		return nil, nil, fmt.Errorf("no source modules found under %q", p.model.Project.Src)
	}
	return graph, diags, nil
}

// discover finds and reads every configured source and foreign file.
func (p *Pipeline) discover(ctx context.Context) (sources, foreigns []frontend.SourceFile, err error) {
	logger := ctxlog.FromContext(ctx)

	srcDir := filepath.Join(p.baseDir, p.model.Project.Src)
	srcPaths, err := fsutil.FindFilesByExtension(srcDir, SourceExt)
	if err != nil {
		return nil, nil, fmt.Errorf("discovering project sources: %w", err)
	}
	sources, err = readAll(srcPaths, true)
	if err != nil {
		return nil, nil, err
	}
	if p.model.Project.Foreigns != "" {
		foreigns, err = p.readPattern(p.model.Project.Foreigns, true)
		if err != nil {
			return nil, nil, err
		}
	}

	for _, dep := range p.model.Dependencies {
		depSources, err := p.readPattern(dep.Sources, false)
		if err != nil {
			return nil, nil, fmt.Errorf("dependency %q: %w", dep.Name, err)
		}
		sources = append(sources, depSources...)

		if dep.Foreigns != "" {
			depForeigns, err := p.readPattern(dep.Foreigns, false)
			if err != nil {
				return nil, nil, fmt.Errorf("dependency %q: %w", dep.Name, err)
			}
			foreigns = append(foreigns, depForeigns...)
		}
	}

	logger.Debug("Source discovery complete.", "sources", len(sources), "foreigns", len(foreigns))
	return sources, foreigns, nil
}

func (p *Pipeline) readPattern(pattern string, firstParty bool) ([]frontend.SourceFile, error) {
	paths, err := fsutil.FindByPattern(p.baseDir, pattern)
	if err != nil {
		return nil, fmt.Errorf("resolving pattern %q: %w", pattern, err)
	}
	return readAll(paths, firstParty)
}

func readAll(paths []string, firstParty bool) ([]frontend.SourceFile, error) {
	files := make([]frontend.SourceFile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading source %q: %w", path, err)
		}
		files = append(files, frontend.SourceFile{Path: path, Text: string(data), FirstParty: firstParty})
	}
	return files, nil
}

// link resolves the root set and bundles the compiled set.
func (p *Pipeline) link(ctx context.Context, graph *module.Graph, compiled module.CompiledSet) ([]byte, error) {
	logger := ctxlog.FromContext(ctx)

	roots := p.model.Bundle.Roots
	if p.model.Bundle.AllSourceModules {
		// First-party membership is decided by where the source file came
		// from, not by the module's name.
		roots = nil
		for _, name := range graph.Names() {
			if mod, _ := graph.Lookup(name); mod.FirstParty {
				roots = append(roots, name)
			}
		}
		sort.Strings(roots)
	}

	artifact, err := bundle.Bundle(compiled, roots, bundle.Options{Namespace: p.model.Bundle.Namespace})
	if err != nil {
		return nil, err
	}
	logger.Debug("Bundle linked.", "bytes", len(artifact), "roots", len(roots))
	return artifact, nil
}

// StandInPayload renders a failed build as a displayable artifact: a script
// that reports the failure instead of running the application, keeping
// development-mode consumers working after a broken edit.
func StandInPayload(err error) []byte {
	var detail string
	if ce, ok := err.(*build.CompileError); ok {
		detail = build.RenderDiagnostics(ce.Diags)
	} else {
		detail = err.Error()
	}
	payload := "// fernc build failure stand-in.\n" +
		"\"use strict\";\n" +
		fmt.Sprintf("console.error(%q);\n", "fernc: build failed:\n"+detail)
	return []byte(payload)
}
