// Package memstore provides the ephemeral in-memory build backend used by
// production builds: one full rebuild per invocation, nothing persisted.
//
// The store uses sync.Map because the scheduler's workers write distinct
// module keys concurrently while dependents read keys their dependencies
// finished writing; per-key atomic upsert is exactly sync.Map's contract.
// Each Store instance serves exactly one pipeline invocation — allocating a
// fresh one per build is what prevents cross-invocation contamination.
package memstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/hcl/v2"

	"github.com/fern-lang/fernc/internal/build"
	"github.com/fern-lang/fernc/internal/frontend"
	"github.com/fern-lang/fernc/internal/module"
)

// Store is the in-memory implementation of build.Action.
type Store struct {
	compiler frontend.Compiler
	logger   *slog.Logger

	fragments sync.Map // key: fragment key, value: *module.Fragment
	externs   sync.Map // key: module name, value: *module.Externs
}

// New creates a store for a single build invocation.
func New(compiler frontend.Compiler, logger *slog.Logger) *Store {
	return &Store{compiler: compiler, logger: logger}
}

// InputStamp implements build.Action. The memory backend has no
// incrementality: a stale disk cache would be a correctness risk for a
// one-shot production build, so every input is always stale.
func (s *Store) InputStamp(name string) build.Stamp {
	return build.Rebuild
}

// OutputStamp implements build.Action. Nothing is ever recorded before the
// invocation starts, so every output is absent.
func (s *Store) OutputStamp(name string) build.Stamp {
	return build.Missing
}

// ReadExterns implements build.Action. A miss means the scheduler violated
// dependency order, which is a defect, not user input.
func (s *Store) ReadExterns(name string) (*module.Externs, error) {
	ex, ok := s.externs.Load(name)
	if !ok {
		return nil, fmt.Errorf("no externs recorded for module %q: %w", name, build.ErrInternal)
	}
	return ex.(*module.Externs), nil
}

// Codegen implements build.Action. The (fragment, externs) pair is merged
// into the store atomically per key, so partial writes are never observed by
// concurrent codegen calls for sibling modules.
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
		s.fragments.Store(foreign.Key(), foreign)
	}

	frag := &module.Fragment{Name: mod.Name, Kind: module.Regular, Code: code}
	s.fragments.Store(frag.Key(), frag)
	s.externs.Store(mod.Name, externs)
	return externs, diags
}

// Progress implements build.Action.
func (s *Store) Progress(ev build.Event) {
	if ev.Kind == build.EventCompile {
		s.logger.Debug("Compiling module.", "module", ev.Module)
	}
}

// Compiled returns everything recorded during the walk as a compiled set.
func (s *Store) Compiled() module.CompiledSet {
	set := make(module.CompiledSet)
	s.fragments.Range(func(_, v any) bool {
		frag := v.(*module.Fragment)
		set[frag.Key()] = frag
		return true
	})
	return set
}
