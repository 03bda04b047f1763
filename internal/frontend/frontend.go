// Package frontend defines the contract between the build core and the
// language front end, plus a reference front end for the Fern surface
// syntax. The scheduler and the backends only ever see the Compiler
// interface; nothing in the build core depends on how source text becomes
// target code.
package frontend

import (
	"context"

	"github.com/hashicorp/hcl/v2"

	"github.com/fern-lang/fernc/internal/module"
)

// SourceFile is one discovered input file, already read into memory.
type SourceFile struct {
	// Path is where the file was found, used in diagnostics.
	Path string

	// Text is the file content.
	Text string

	// FirstParty is true when the file came from the project's own source
	// tree rather than a dependency location pattern.
	FirstParty bool
}

// Compiler turns parsed modules into target code and interface summaries.
//
// Compile must be safe to call concurrently for modules that share no
// dependency edge; the scheduler guarantees a module's dependencies have
// completed before the module itself is compiled.
type Compiler interface {
	// ParseModules reads the declaration headers of all source files and
	// builds the module graph, including the foreign-fragment side table.
	// Errors in the returned diagnostics abort the build before any
	// compilation happens.
	ParseModules(sources, foreigns []SourceFile) (*module.Graph, hcl.Diagnostics)

	// Compile elaborates one module given the interface summaries of its
	// dependencies and returns the generated code fragment text and the
	// module's own summary. Diagnostics may contain warnings alongside a
	// usable result; any error-severity diagnostic invalidates the result.
	Compile(ctx context.Context, mod *module.Module, depExterns map[string]*module.Externs) (string, *module.Externs, hcl.Diagnostics)
}
