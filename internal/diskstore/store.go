// Package diskstore provides the disk-persisted build backend used by
// development builds: generated code and externs live in a cache directory
// keyed by module name, and file modification times drive staleness, so
// consecutive invocations recompile only what changed.
//
// Cache layout, one directory per module under the cache root:
//
//	<root>/<Module.Name>/index.js      generated code
//	<root>/<Module.Name>/externs.cbor  interface summary
//	<root>/<Module.Name>/foreign.js    paired foreign code, when present
//
// The cache root may be deleted wholesale between invocations (the next
// build is simply cold) but must not be removed while a build is running.
package diskstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/hashicorp/hcl/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fern-lang/fernc/internal/build"
	"github.com/fern-lang/fernc/internal/frontend"
	"github.com/fern-lang/fernc/internal/module"
)

const (
	codeFile    = "index.js"
	externsFile = "externs.cbor"
	foreignFile = "foreign.js"
)

// externsCacheSize bounds the in-process externs read cache. Dependents of a
// hub module all re-read the same externs file; the LRU keeps that from
// becoming one decode per edge.
const externsCacheSize = 256

// Store is the disk-persisted implementation of build.Action.
type Store struct {
	graph    *module.Graph
	compiler frontend.Compiler
	root     string
	logger   *slog.Logger

	externsCache *lru.Cache[string, *module.Externs]
}

// New creates a store over the given cache root, creating it if needed.
func New(graph *module.Graph, compiler frontend.Compiler, cacheRoot string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(cacheRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache root %q: %w", cacheRoot, err)
	}
	cache, err := lru.New[string, *module.Externs](externsCacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{
		graph:        graph,
		compiler:     compiler,
		root:         cacheRoot,
		logger:       logger,
		externsCache: cache,
	}, nil
}

func (s *Store) moduleDir(name string) string {
	return filepath.Join(s.root, name)
}

// InputStamp implements build.Action: the modification time of the module's
// source, combined with its paired foreign file when one exists. Virtual
// modules have no file and therefore no reliable staleness signal, so they
// always rebuild.
func (s *Store) InputStamp(name string) build.Stamp {
	mod, ok := s.graph.Lookup(name)
	if !ok || mod.Virtual() {
		return build.Rebuild
	}
	info, err := os.Stat(mod.Path)
	if err != nil {
		return build.Rebuild
	}
	stamp := build.FreshAt(info.ModTime())

	if foreign := s.graph.Foreign(name); foreign != nil && foreign.Path != "" {
		finfo, err := os.Stat(foreign.Path)
		if err != nil {
			return build.Rebuild
		}
		stamp = build.Combine(stamp, build.FreshAt(finfo.ModTime()))
	}
	return stamp
}

// OutputStamp implements build.Action: the modification time of the cached
// artifact, or Absent when either cache file is missing.
func (s *Store) OutputStamp(name string) build.Stamp {
	dir := s.moduleDir(name)
	codeInfo, err := os.Stat(filepath.Join(dir, codeFile))
	if err != nil {
		return build.Missing
	}
	if _, err := os.Stat(filepath.Join(dir, externsFile)); err != nil {
		return build.Missing
	}
	return build.FreshAt(codeInfo.ModTime())
}

// ReadExterns implements build.Action, re-parsing the persisted externs file
// through a small read cache.
func (s *Store) ReadExterns(name string) (*module.Externs, error) {
	if ex, ok := s.externsCache.Get(name); ok {
		return ex, nil
	}
	data, err := os.ReadFile(filepath.Join(s.moduleDir(name), externsFile))
	if err != nil {
		return nil, fmt.Errorf("reading externs for module %q: %w", name, build.ErrInternal)
	}
	var ex module.Externs
	if err := cbor.Unmarshal(data, &ex); err != nil {
		return nil, fmt.Errorf("decoding externs for module %q: %v: %w", name, err, build.ErrInternal)
	}
	s.externsCache.Add(name, &ex)
	return &ex, nil
}

// Codegen implements build.Action: compile, then persist the generated code
// and externs under the module's cache directory. Distinct modules write
// distinct directories, so concurrent calls never collide.
func (s *Store) Codegen(ctx context.Context, mod *module.Module, foreign *module.Fragment, depExterns map[string]*module.Externs) (*module.Externs, hcl.Diagnostics) {
	code, externs, diags := s.compiler.Compile(ctx, mod, depExterns)
	if diags.HasErrors() {
		return nil, diags
	}

	if len(externs.Foreigns) > 0 && foreign == nil {
		return nil, append(diags, build.MissingForeignDiagnostic(mod))
	}
	if foreign != nil {
		code = build.WithForeignReference(mod.Name, code)
	}

	dir := s.moduleDir(mod.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, append(diags, writeDiagnostic(mod.Name, err))
	}

	externsData, err := cbor.Marshal(externs)
	if err != nil {
		return nil, append(diags, writeDiagnostic(mod.Name, err))
	}
	if err := os.WriteFile(filepath.Join(dir, externsFile), externsData, 0o644); err != nil {
		return nil, append(diags, writeDiagnostic(mod.Name, err))
	}
	if foreign != nil {
		if err := os.WriteFile(filepath.Join(dir, foreignFile), []byte(foreign.Code), 0o644); err != nil {
			return nil, append(diags, writeDiagnostic(mod.Name, err))
		}
	}
	// The code file is written last: its mtime is the output stamp, and a
	// crash mid-write must leave the output looking absent, not fresh.
	if err := os.WriteFile(filepath.Join(dir, codeFile), []byte(code), 0o644); err != nil {
		return nil, append(diags, writeDiagnostic(mod.Name, err))
	}

	s.externsCache.Add(mod.Name, externs)
	return externs, diags
}

// Progress implements build.Action.
func (s *Store) Progress(ev build.Event) {
	switch ev.Kind {
	case build.EventCompile:
		s.logger.Debug("Compiling module.", "module", ev.Module)
	case build.EventCached:
		s.logger.Debug("Module cache hit.", "module", ev.Module)
	}
}

// LoadCompiled reads every module's generated artifact back from disk, in
// module order, to form the compiled set. This is a deliberate round trip
// through persistent storage: a warm development build returns exactly what
// a cold one would.
func (s *Store) LoadCompiled() (module.CompiledSet, error) {
	set := make(module.CompiledSet)
	for _, name := range s.graph.Names() {
		dir := s.moduleDir(name)

		code, err := os.ReadFile(filepath.Join(dir, codeFile))
		if err != nil {
			return nil, fmt.Errorf("reading cached code for module %q: %v: %w", name, err, build.ErrInternal)
		}
		if err := set.Add(&module.Fragment{Name: name, Kind: module.Regular, Code: string(code)}); err != nil {
			return nil, err
		}

		foreignCode, err := os.ReadFile(filepath.Join(dir, foreignFile))
		if err == nil {
			if err := set.Add(&module.Fragment{Name: name, Kind: module.Foreign, Code: string(foreignCode)}); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading cached foreign code for module %q: %v: %w", name, err, build.ErrInternal)
		}
	}
	return set, nil
}

func writeDiagnostic(name string, err error) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  fmt.Sprintf("writing build cache for module %s failed", name),
		Detail:   err.Error(),
	}
}
